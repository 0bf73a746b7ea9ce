package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"galleryvault/internal/wanted"
)

const wantedColumns = "id, name, search_title, title_regexp, wanted_tags_json, exclusive_scope, unwanted_tags_json, min_pages, max_pages, category, provider, found, hide_on_found, reason"

func scanWanted(row scanner) (wanted.Filter, error) {
	var f wanted.Filter
	var (
		searchTitle, titleRegexp, wantedTags, unwantedTags sql.NullString
		category, provider, reason                         sql.NullString
		exclusive, found, hide                             int
	)
	if err := row.Scan(
		&f.ID, &f.Name, &searchTitle, &titleRegexp, &wantedTags, &exclusive, &unwantedTags,
		&f.MinPages, &f.MaxPages, &category, &provider, &found, &hide, &reason,
	); err != nil {
		return wanted.Filter{}, err
	}
	f.SearchTitle = searchTitle.String
	f.TitleRegexp = titleRegexp.String
	f.WantedTags = decodeStrings(wantedTags)
	f.ExclusiveScope = exclusive != 0
	f.UnwantedTags = decodeStrings(unwantedTags)
	f.Category = category.String
	f.Provider = provider.String
	f.Found = found != 0
	f.HideOnFound = hide != 0
	f.Reason = reason.String
	return f, nil
}

// CreateWanted validates and stores a wanted filter.
func (s *Store) CreateWanted(ctx context.Context, f wanted.Filter) (wanted.Filter, error) {
	if err := f.Validate(); err != nil {
		return wanted.Filter{}, err
	}
	wantedTags, err := encodeStrings(f.WantedTags)
	if err != nil {
		return wanted.Filter{}, fmt.Errorf("encode wanted tags: %w", err)
	}
	unwantedTags, err := encodeStrings(f.UnwantedTags)
	if err != nil {
		return wanted.Filter{}, fmt.Errorf("encode unwanted tags: %w", err)
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO wanted_filters (
            name, search_title, title_regexp, wanted_tags_json, exclusive_scope, unwanted_tags_json,
            min_pages, max_pages, category, provider, found, hide_on_found, reason, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Name, nullableString(f.SearchTitle), nullableString(f.TitleRegexp), wantedTags,
		boolToInt(f.ExclusiveScope), unwantedTags, f.MinPages, f.MaxPages,
		nullableString(f.Category), nullableString(f.Provider), boolToInt(f.Found),
		boolToInt(f.HideOnFound), nullableString(f.Reason), nowString(),
	)
	if err != nil {
		return wanted.Filter{}, fmt.Errorf("insert wanted filter: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return wanted.Filter{}, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return f, nil
}

// ListWanted returns every wanted filter ordered by id.
func (s *Store) ListWanted(ctx context.Context) ([]wanted.Filter, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT "+wantedColumns+" FROM wanted_filters ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list wanted filters: %w", err)
	}
	defer rows.Close()

	var out []wanted.Filter
	for rows.Next() {
		f, err := scanWanted(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wanted filter: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetWanted returns one wanted filter.
func (s *Store) GetWanted(ctx context.Context, id int64) (wanted.Filter, bool, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+wantedColumns+" FROM wanted_filters WHERE id = ?", id)
	f, err := scanWanted(row)
	if errors.Is(err, sql.ErrNoRows) {
		return wanted.Filter{}, false, nil
	}
	if err != nil {
		return wanted.Filter{}, false, fmt.Errorf("scan wanted filter: %w", err)
	}
	return f, true, nil
}

// LinkFound records that a gallery satisfied a wanted filter. Linking the
// same pair twice is a no-op.
func (s *Store) LinkFound(ctx context.Context, filterID, galleryID int64) error {
	_, err := s.execWithRetry(ctx,
		"INSERT OR IGNORE INTO found_galleries (filter_id, gallery_id, created_at) VALUES (?, ?, ?)",
		filterID, galleryID, nowString(),
	)
	if err != nil {
		return fmt.Errorf("link found gallery: %w", err)
	}
	return nil
}

// MarkWantedFound sets the found flag of a filter.
func (s *Store) MarkWantedFound(ctx context.Context, filterID int64) error {
	_, err := s.execWithRetry(ctx, "UPDATE wanted_filters SET found = 1 WHERE id = ?", filterID)
	if err != nil {
		return fmt.Errorf("mark wanted found: %w", err)
	}
	return nil
}

// FoundGalleries lists the gallery ids linked to a filter.
func (s *Store) FoundGalleries(ctx context.Context, filterID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT gallery_id FROM found_galleries WHERE filter_id = ? ORDER BY gallery_id", filterID)
	if err != nil {
		return nil, fmt.Errorf("list found galleries: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan found gallery: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
