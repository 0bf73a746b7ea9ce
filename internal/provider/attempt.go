package provider

import (
	"errors"
	"io/fs"
	"os"

	"galleryvault/internal/fileutil"
)

// FileAttempt reports a finished archive download. Filesize and Filecount
// describe the image members, the measure gallery metadata uses, so the
// verifier compares like with like. An unreadable archive is removed and
// reported as ErrCorruptArchive.
func FileAttempt(providerName, filename string) (Attempt, error) {
	images, err := fileutil.InspectZip(filename)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			_ = os.Remove(filename)
		}
		return Attempt{}, Wrap(ErrCorruptArchive, providerName, "inspect archive", filename, err)
	}
	checksum, _, err := fileutil.SHA1File(filename)
	if err != nil {
		return Attempt{}, err
	}
	return Attempt{
		Succeeded:      true,
		FileDownloaded: true,
		Filename:       filename,
		Checksum:       checksum,
		Filesize:       images.Size,
		Filecount:      images.Count,
	}, nil
}
