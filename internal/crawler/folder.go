package crawler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"galleryvault/internal/catalog"
	"galleryvault/internal/fileutil"
	"galleryvault/internal/gallery"
	"galleryvault/internal/logging"
	"galleryvault/internal/matcher"
	"galleryvault/internal/registry"
)

// FolderSource is the source_type of archives catalogued from disk.
const FolderSource = "folder_crawler"

var archiveExtensions = map[string]struct{}{
	".zip": {},
	".cbz": {},
}

// FileMatcher matches a local archive against provider matchers.
type FileMatcher interface {
	MatchFile(ctx context.Context, path string, rq registry.Query) (*matcher.Result, error)
}

// ScanResult summarises one folder scan.
type ScanResult struct {
	Scanned   int
	Known     int
	Matched   int
	Unmatched int
	Archives  []int64
}

// Folder catalogues archives already present on disk.
type Folder struct {
	store   *catalog.Store
	matcher FileMatcher
	logger  *slog.Logger
}

// NewFolder builds a folder scanner.
func NewFolder(store *catalog.Store, m FileMatcher, logger *slog.Logger) *Folder {
	return &Folder{
		store:   store,
		matcher: m,
		logger:  logging.NewComponentLogger(logger, "folder"),
	}
}

// Scan walks dir for archives the catalog does not know yet, matches each
// one and stores gallery and archive rows. Unmatched archives are stored
// without a gallery so they are not rescanned.
func (f *Folder) Scan(ctx context.Context, dir string, rq registry.Query) (ScanResult, error) {
	var result ScanResult
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			if path != dir && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := archiveExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		result.Scanned++
		return f.scanFile(ctx, path, rq, &result)
	})
	if err != nil {
		return result, fmt.Errorf("scan %s: %w", dir, err)
	}
	f.logger.Info("folder scan finished",
		logging.String("dir", dir),
		logging.Int("scanned", result.Scanned),
		logging.Int("known", result.Known),
		logging.Int("matched", result.Matched),
		logging.Int("unmatched", result.Unmatched),
		logging.String(logging.FieldEventType, "folder_scan_finished"),
	)
	return result, nil
}

func (f *Folder) scanFile(ctx context.Context, path string, rq registry.Query, result *ScanResult) error {
	existing, err := f.store.ArchiveByPath(ctx, path)
	if err != nil {
		return err
	}
	if existing != nil {
		result.Known++
		return nil
	}
	images, inspectErr := fileutil.InspectZip(path)
	if inspectErr != nil && !errors.Is(inspectErr, fileutil.ErrBadZip) {
		return inspectErr
	}
	checksum, _, err := fileutil.SHA1File(path)
	if err != nil {
		return err
	}
	if dup, err := f.store.ArchiveByChecksum(ctx, checksum); err != nil {
		return err
	} else if dup != nil {
		result.Known++
		f.logger.Info("archive already catalogued under another path",
			logging.String("path", path),
			logging.String("catalogued_path", dup.Path),
		)
		return nil
	}

	archive := catalog.Archive{
		Path:       path,
		Title:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Checksum:   checksum,
		Filesize:   images.Size,
		Filecount:  images.Count,
		SourceType: FolderSource,
	}
	if inspectErr != nil {
		archive.Status = catalog.ArchiveCorrupt
		archive.Reason = inspectErr.Error()
		result.Unmatched++
		logging.WarnWithContext(f.logger, "archive on disk is unreadable", "archive_corrupt",
			logging.String("path", path),
			logging.Error(inspectErr),
			logging.String(logging.FieldErrorHint, "replace the file"),
			logging.String(logging.FieldImpact, "archive catalogued as corrupt without a gallery"),
		)
		stored, err := f.store.UpsertArchive(ctx, archive)
		if err != nil {
			return err
		}
		result.Archives = append(result.Archives, stored.ID)
		return nil
	}

	match, err := f.matcher.MatchFile(ctx, path, rq)
	if err != nil {
		return err
	}
	if match != nil {
		rec := match.Record
		rec.DLType = gallery.DLTypeFolder
		rec.Filename = path
		g, err := f.store.UpsertGallery(ctx, rec, false)
		if err != nil {
			return err
		}
		archive.GalleryID = g.ID
		archive.Title = rec.DisplayTitle()
		archive.MatchType = match.MatcherType
		result.Matched++
	} else {
		result.Unmatched++
		f.logger.Info("no match for archive", logging.String("path", path))
	}

	stored, err := f.store.UpsertArchive(ctx, archive)
	if err != nil {
		return err
	}
	result.Archives = append(result.Archives, stored.ID)
	return nil
}
