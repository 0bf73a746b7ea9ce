package fileutil

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
)

// ErrBadZip marks a file that is not a readable zip archive or has a member
// failing its CRC.
var ErrBadZip = errors.New("unreadable zip archive")

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
	".bmp":  {},
	".avif": {},
	".jxl":  {},
}

// ZipImages summarises the image members of an archive. Size is the sum of
// their uncompressed sizes, the same measure providers report for a gallery.
type ZipImages struct {
	Size  int64
	Count int
}

// IsImage reports whether a zip member name is a gallery page. Resource
// forks under __MACOSX/ and dot files never count.
func IsImage(name string) bool {
	if strings.HasPrefix(name, "__MACOSX/") {
		return false
	}
	base := path.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	_, ok := imageExtensions[strings.ToLower(path.Ext(base))]
	return ok
}

// InspectZip reads every member to EOF so CRCs are checked and sums the
// image members. A missing file keeps fs.ErrNotExist; any other failure
// wraps ErrBadZip.
func InspectZip(filename string) (ZipImages, error) {
	r, err := zip.OpenReader(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ZipImages{}, err
		}
		return ZipImages{}, fmt.Errorf("%w: %w", ErrBadZip, err)
	}
	defer r.Close()

	var out ZipImages
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return ZipImages{}, fmt.Errorf("%w: %s: %w", ErrBadZip, f.Name, err)
		}
		_, err = io.Copy(io.Discard, rc)
		rc.Close()
		if err != nil {
			return ZipImages{}, fmt.Errorf("%w: %s: %w", ErrBadZip, f.Name, err)
		}
		if IsImage(f.Name) {
			out.Size += int64(f.UncompressedSize64)
			out.Count++
		}
	}
	return out, nil
}
