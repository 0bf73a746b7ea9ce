package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"galleryvault/internal/gallery"
)

const galleryColumns = "id, gid, provider, token, link, tags_json, title, title_jpn, category, posted, filesize, filecount, uploader, thumbnail_url, rating, expunged, hidden, public, fjord, archiver_key, root, dl_type, filename, status, reprocess, created_at, updated_at"

func scanGallery(row scanner) (*Gallery, error) {
	var g Gallery
	var (
		token, link, tags, title, titleJpn  sql.NullString
		category, posted, uploader, thumb   sql.NullString
		archiverKey, root, dlType, filename sql.NullString
		createdRaw, updatedRaw              sql.NullString
	)
	var expunged, hidden, public, fjord, reproc int
	var status string
	if err := row.Scan(
		&g.ID, &g.GID, &g.Provider, &token, &link, &tags, &title, &titleJpn, &category, &posted,
		&g.Filesize, &g.Filecount, &uploader, &thumb, &g.Rating, &expunged, &hidden, &public, &fjord,
		&archiverKey, &root, &dlType, &filename, &status, &reproc, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	g.Token = token.String
	g.Link = link.String
	g.Tags = decodeStrings(tags)
	g.Title = title.String
	g.TitleJpn = titleJpn.String
	g.Category = category.String
	g.Posted = parseTime(posted)
	g.Uploader = uploader.String
	g.ThumbnailURL = thumb.String
	g.Expunged = expunged != 0
	g.Hidden = hidden != 0
	g.Public = public != 0
	g.Fjord = fjord != 0
	g.ArchiverKey = archiverKey.String
	g.Root = root.String
	g.DLType = gallery.DLType(dlType.String)
	g.Filename = filename.String
	g.Status = GalleryStatus(status)
	g.Reprocess = reproc != 0
	g.CreatedAt = parseTime(createdRaw)
	g.UpdatedAt = parseTime(updatedRaw)
	return &g, nil
}

func (s *Store) queryGallery(ctx context.Context, where string, args ...any) (*Gallery, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+galleryColumns+" FROM galleries WHERE "+where, args...)
	g, err := scanGallery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan gallery: %w", err)
	}
	return g, nil
}

// FindGallery returns the gallery with the given identity, or nil.
func (s *Store) FindGallery(ctx context.Context, key gallery.Key) (*Gallery, error) {
	return s.queryGallery(ctx, "gid = ? AND provider = ?", key.GID, key.Provider)
}

// GetGallery returns the gallery with the given row id, or nil.
func (s *Store) GetGallery(ctx context.Context, id int64) (*Gallery, error) {
	return s.queryGallery(ctx, "id = ?", id)
}

// GalleryExists reports whether a gallery with the given identity is stored.
func (s *Store) GalleryExists(ctx context.Context, key gallery.Key) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT COUNT(1) FROM galleries WHERE gid = ? AND provider = ?", key.GID, key.Provider,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count gallery: %w", err)
	}
	return count > 0, nil
}

// UpsertGallery creates the gallery or updates it in place. Existing metadata
// is only overwritten when replace is set; the download outcome, assigned
// filename and reprocess flag are always refreshed.
func (s *Store) UpsertGallery(ctx context.Context, rec gallery.Record, replace bool) (*Gallery, error) {
	key := rec.Key()
	if !key.Valid() {
		return nil, fmt.Errorf("upsert gallery: identity %q is incomplete", key)
	}
	tags, err := encodeStrings(rec.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	onConflict := `dl_type = excluded.dl_type,
            filename = COALESCE(excluded.filename, galleries.filename),
            reprocess = 0,
            updated_at = excluded.updated_at`
	if replace {
		onConflict = `token = excluded.token, link = excluded.link, tags_json = excluded.tags_json,
            title = excluded.title, title_jpn = excluded.title_jpn, category = excluded.category,
            posted = excluded.posted, filesize = excluded.filesize, filecount = excluded.filecount,
            uploader = excluded.uploader, thumbnail_url = excluded.thumbnail_url, rating = excluded.rating,
            expunged = excluded.expunged, public = excluded.public, fjord = excluded.fjord,
            archiver_key = excluded.archiver_key, root = excluded.root, ` + onConflict
	}

	now := nowString()
	_, err = s.execWithRetry(ctx,
		`INSERT INTO galleries (
            gid, provider, token, link, tags_json, title, title_jpn, category, posted,
            filesize, filecount, uploader, thumbnail_url, rating, expunged, hidden, public, fjord,
            archiver_key, root, dl_type, filename, status, reprocess, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
        ON CONFLICT(gid, provider) DO UPDATE SET `+onConflict,
		rec.GID, rec.Provider,
		nullableString(rec.Token), nullableString(rec.Link), tags,
		nullableString(rec.Title), nullableString(rec.TitleJpn), nullableString(rec.Category),
		nullableTime(rec.Posted), rec.Filesize, rec.Filecount,
		nullableString(rec.Uploader), nullableString(rec.ThumbnailURL), rec.Rating,
		boolToInt(rec.Expunged), boolToInt(rec.Hidden), boolToInt(rec.Public), boolToInt(rec.Fjord),
		nullableString(rec.ArchiverKey), nullableString(rec.Root),
		nullableString(string(rec.DLType)), nullableString(rec.Filename),
		GalleryNormal, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert gallery %s: %w", key, err)
	}
	g, err := s.FindGallery(ctx, key)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("upsert gallery %s: row missing after write", key)
	}
	return g, nil
}

// SetGalleryHidden flips the hidden flag of a gallery.
func (s *Store) SetGalleryHidden(ctx context.Context, id int64, hidden bool) error {
	_, err := s.execWithRetry(ctx,
		"UPDATE galleries SET hidden = ?, updated_at = ? WHERE id = ?",
		boolToInt(hidden), nowString(), id,
	)
	if err != nil {
		return fmt.Errorf("set gallery hidden: %w", err)
	}
	return nil
}

// SetGalleryStatus changes the administrative status of a gallery.
func (s *Store) SetGalleryStatus(ctx context.Context, id int64, status GalleryStatus) error {
	_, err := s.execWithRetry(ctx,
		"UPDATE galleries SET status = ?, updated_at = ? WHERE id = ?",
		status, nowString(), id,
	)
	if err != nil {
		return fmt.Errorf("set gallery status: %w", err)
	}
	return nil
}

// MarkReprocess flags a gallery so the next crawl processes it again.
func (s *Store) MarkReprocess(ctx context.Context, id int64) error {
	_, err := s.execWithRetry(ctx,
		"UPDATE galleries SET reprocess = 1, updated_at = ? WHERE id = ?",
		nowString(), id,
	)
	if err != nil {
		return fmt.Errorf("mark reprocess: %w", err)
	}
	return nil
}

// ListGalleries returns galleries matching filter ordered by id.
func (s *Store) ListGalleries(ctx context.Context, filter GalleryFilter) ([]*Gallery, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Provider != "" {
		clauses = append(clauses, "provider = ?")
		args = append(args, strings.ToLower(filter.Provider))
	}
	if filter.DLType != "" {
		clauses = append(clauses, "dl_type = ?")
		args = append(args, filter.DLType)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	query := "SELECT " + galleryColumns + " FROM galleries"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list galleries: %w", err)
	}
	defer rows.Close()

	var out []*Gallery
	for rows.Next() {
		g, err := scanGallery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan gallery: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// DeleteGallery removes a gallery. Linked archives keep their files and lose
// the link.
func (s *Store) DeleteGallery(ctx context.Context, key gallery.Key) error {
	_, err := s.execWithRetry(ctx, "DELETE FROM galleries WHERE gid = ? AND provider = ?", key.GID, key.Provider)
	if err != nil {
		return fmt.Errorf("delete gallery %s: %w", key, err)
	}
	return nil
}
