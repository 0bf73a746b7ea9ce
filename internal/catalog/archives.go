package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const archiveColumns = "id, path, gallery_id, title, checksum, filesize, filecount, match_type, source_type, status, reason, created_at, updated_at"

func scanArchive(row scanner) (*Archive, error) {
	var a Archive
	var (
		galleryID                              sql.NullInt64
		title, checksum, matchType, sourceType sql.NullString
		reason, createdRaw, updatedRaw         sql.NullString
		status                                 string
	)
	if err := row.Scan(
		&a.ID, &a.Path, &galleryID, &title, &checksum, &a.Filesize, &a.Filecount,
		&matchType, &sourceType, &status, &reason, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	a.GalleryID = galleryID.Int64
	a.Title = title.String
	a.Checksum = checksum.String
	a.MatchType = matchType.String
	a.SourceType = sourceType.String
	a.Status = ArchiveStatus(status)
	a.Reason = reason.String
	a.CreatedAt = parseTime(createdRaw)
	a.UpdatedAt = parseTime(updatedRaw)
	return &a, nil
}

func (s *Store) queryArchive(ctx context.Context, where string, args ...any) (*Archive, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+archiveColumns+" FROM archives WHERE "+where, args...)
	a, err := scanArchive(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan archive: %w", err)
	}
	return a, nil
}

func (s *Store) queryArchives(ctx context.Context, query string, args ...any) ([]*Archive, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	defer rows.Close()

	var out []*Archive
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertArchive creates or updates the archive stored at a.Path. Empty fields
// of a leave the stored values untouched.
func (s *Store) UpsertArchive(ctx context.Context, a Archive) (*Archive, error) {
	if strings.TrimSpace(a.Path) == "" {
		return nil, errors.New("upsert archive: path is required")
	}
	if a.Status == "" {
		a.Status = ArchiveOK
	}
	now := nowString()
	_, err := s.execWithRetry(ctx,
		`INSERT INTO archives (
            path, gallery_id, title, checksum, filesize, filecount, match_type, source_type,
            status, reason, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(path) DO UPDATE SET
            gallery_id = COALESCE(excluded.gallery_id, archives.gallery_id),
            title = COALESCE(excluded.title, archives.title),
            checksum = COALESCE(excluded.checksum, archives.checksum),
            filesize = CASE WHEN excluded.filesize > 0 THEN excluded.filesize ELSE archives.filesize END,
            filecount = CASE WHEN excluded.filecount > 0 THEN excluded.filecount ELSE archives.filecount END,
            match_type = COALESCE(excluded.match_type, archives.match_type),
            source_type = COALESCE(excluded.source_type, archives.source_type),
            status = excluded.status,
            reason = COALESCE(excluded.reason, archives.reason),
            updated_at = excluded.updated_at`,
		a.Path, nullableID(a.GalleryID), nullableString(a.Title), nullableString(a.Checksum),
		a.Filesize, a.Filecount, nullableString(a.MatchType), nullableString(a.SourceType),
		a.Status, nullableString(a.Reason), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert archive %s: %w", a.Path, err)
	}
	stored, err := s.ArchiveByPath(ctx, a.Path)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("upsert archive %s: row missing after write", a.Path)
	}
	return stored, nil
}

// GetArchive returns the archive with the given id, or nil.
func (s *Store) GetArchive(ctx context.Context, id int64) (*Archive, error) {
	return s.queryArchive(ctx, "id = ?", id)
}

// ArchiveByPath returns the archive stored at path, or nil.
func (s *Store) ArchiveByPath(ctx context.Context, path string) (*Archive, error) {
	return s.queryArchive(ctx, "path = ?", path)
}

// ArchiveByChecksum returns the oldest archive with the given checksum, or nil.
func (s *Store) ArchiveByChecksum(ctx context.Context, checksum string) (*Archive, error) {
	if checksum == "" {
		return nil, nil
	}
	return s.queryArchive(ctx, "checksum = ? ORDER BY id LIMIT 1", checksum)
}

// ArchivesForGallery lists every archive linked to a gallery.
func (s *Store) ArchivesForGallery(ctx context.Context, galleryID int64) ([]*Archive, error) {
	return s.queryArchives(ctx, "SELECT "+archiveColumns+" FROM archives WHERE gallery_id = ? ORDER BY id", galleryID)
}

// ListArchives returns archives matching filter ordered by id.
func (s *Store) ListArchives(ctx context.Context, filter ArchiveFilter) ([]*Archive, error) {
	var (
		clauses []string
		args    []any
	)
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if filter.GalleryID > 0 {
		clauses = append(clauses, "gallery_id = ?")
		args = append(args, filter.GalleryID)
	}
	query := "SELECT " + archiveColumns + " FROM archives"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	return s.queryArchives(ctx, query, args...)
}

// UpdateArchiveContents stores the verified checksum, image size and image
// count of an archive and marks it ok.
func (s *Store) UpdateArchiveContents(ctx context.Context, id int64, checksum string, filesize int64, filecount int) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE archives SET checksum = ?, filesize = ?, filecount = ?, status = ?, updated_at = ? WHERE id = ?`,
		nullableString(checksum), filesize, filecount, ArchiveOK, nowString(), id,
	)
	if err != nil {
		return fmt.Errorf("update archive contents: %w", err)
	}
	return nil
}

// SetArchiveStatus changes the status of an archive and records why.
func (s *Store) SetArchiveStatus(ctx context.Context, id int64, status ArchiveStatus, reason string) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE archives SET status = ?, reason = COALESCE(?, reason), updated_at = ? WHERE id = ?`,
		status, nullableString(reason), nowString(), id,
	)
	if err != nil {
		return fmt.Errorf("set archive status: %w", err)
	}
	return nil
}

// MoveArchive changes the stored path of an archive.
func (s *Store) MoveArchive(ctx context.Context, id int64, path string) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE archives SET path = ?, updated_at = ? WHERE id = ?`,
		path, nowString(), id,
	)
	if err != nil {
		return fmt.Errorf("move archive: %w", err)
	}
	return nil
}
