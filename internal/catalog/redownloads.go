package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

const redownloadColumns = "id, gallery_id, provider, downloader, reason, status, created_at, updated_at"

func scanRedownload(row scanner) (*Redownload, error) {
	var r Redownload
	var status string
	var reason, createdRaw, updatedRaw sql.NullString
	if err := row.Scan(&r.ID, &r.GalleryID, &r.Provider, &r.Downloader, &reason, &status, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	r.Reason = reason.String
	r.Status = RedownloadStatus(status)
	r.CreatedAt = parseTime(createdRaw)
	r.UpdatedAt = parseTime(updatedRaw)
	return &r, nil
}

// EnqueueRedownload queues a forced redownload of a gallery through one
// downloader. At most one pending request exists per gallery; the returned
// flag reports whether this call created it.
func (s *Store) EnqueueRedownload(ctx context.Context, galleryID int64, provider, downloader, reason string) (bool, error) {
	now := nowString()
	res, err := s.execWithRetry(ctx,
		`INSERT OR IGNORE INTO redownloads (gallery_id, provider, downloader, reason, status, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		galleryID, provider, downloader, nullableString(reason), RedownloadPending, now, now,
	)
	if err != nil {
		return false, fmt.Errorf("enqueue redownload: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// PendingRedownloads lists queued redownloads oldest first.
func (s *Store) PendingRedownloads(ctx context.Context) ([]*Redownload, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT "+redownloadColumns+" FROM redownloads WHERE status = ? ORDER BY id", RedownloadPending)
	if err != nil {
		return nil, fmt.Errorf("list redownloads: %w", err)
	}
	defer rows.Close()

	var out []*Redownload
	for rows.Next() {
		r, err := scanRedownload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redownload: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CompleteRedownload closes a queued redownload with a final status.
func (s *Store) CompleteRedownload(ctx context.Context, id int64, status RedownloadStatus) error {
	_, err := s.execWithRetry(ctx,
		"UPDATE redownloads SET status = ?, updated_at = ? WHERE id = ?",
		status, nowString(), id,
	)
	if err != nil {
		return fmt.Errorf("complete redownload: %w", err)
	}
	return nil
}

// RedownloadAttempted reports whether a request for the gallery with the
// given reason has already run, whatever its outcome.
func (s *Store) RedownloadAttempted(ctx context.Context, galleryID int64, reason string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT COUNT(*) FROM redownloads WHERE gallery_id = ? AND reason = ? AND status != ?",
		galleryID, reason, RedownloadPending,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count redownloads: %w", err)
	}
	return n > 0, nil
}
