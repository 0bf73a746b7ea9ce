package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const transferColumns = "id, archive_id, method, transfer_id, destination, expected_size, status, progress, created_at, updated_at"

func scanTransfer(row scanner) (*Transfer, error) {
	var t Transfer
	var status string
	var createdRaw, updatedRaw sql.NullString
	if err := row.Scan(
		&t.ID, &t.ArchiveID, &t.Method, &t.TransferID, &t.Destination, &t.ExpectedSize,
		&status, &t.Progress, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	t.Status = TransferStatus(status)
	t.CreatedAt = parseTime(createdRaw)
	t.UpdatedAt = parseTime(updatedRaw)
	return &t, nil
}

// CreateTransfer registers an in-progress remote transfer for an archive.
func (s *Store) CreateTransfer(ctx context.Context, t Transfer) (*Transfer, error) {
	if t.ArchiveID <= 0 || t.Method == "" || t.TransferID == "" {
		return nil, errors.New("create transfer: archive id, method and transfer id are required")
	}
	if t.Status == "" {
		t.Status = TransferInProgress
	}
	now := nowString()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO transfers (
            archive_id, method, transfer_id, destination, expected_size, status, progress, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ArchiveID, t.Method, t.TransferID, t.Destination, t.ExpectedSize, t.Status, t.Progress, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert transfer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetTransfer(ctx, id)
}

// GetTransfer returns one transfer, or nil.
func (s *Store) GetTransfer(ctx context.Context, id int64) (*Transfer, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+transferColumns+" FROM transfers WHERE id = ?", id)
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan transfer: %w", err)
	}
	return t, nil
}

// ListTransfers returns transfers in the given status ordered by id. An empty
// status lists every transfer.
func (s *Store) ListTransfers(ctx context.Context, status TransferStatus) ([]*Transfer, error) {
	query := "SELECT " + transferColumns + " FROM transfers"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var out []*Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTransfer records progress and status of a transfer.
func (s *Store) UpdateTransfer(ctx context.Context, id int64, status TransferStatus, progress float64) error {
	_, err := s.execWithRetry(ctx,
		"UPDATE transfers SET status = ?, progress = ?, updated_at = ? WHERE id = ?",
		status, progress, nowString(), id,
	)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	return nil
}
