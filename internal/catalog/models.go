package catalog

import (
	"time"

	"galleryvault/internal/gallery"
)

// GalleryStatus is the administrative state of a gallery row.
type GalleryStatus string

const (
	GalleryNormal GalleryStatus = "normal"
	GalleryDenied GalleryStatus = "denied"
)

// Gallery is a persisted gallery record.
type Gallery struct {
	ID int64
	gallery.Record
	Status    GalleryStatus
	Reprocess bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ArchiveStatus tracks the on-disk state of an archive.
type ArchiveStatus string

const (
	ArchiveOK           ArchiveStatus = "ok"
	ArchiveTransferring ArchiveStatus = "transferring"
	ArchiveCorrupt      ArchiveStatus = "corrupt"
	ArchiveFailed       ArchiveStatus = "failed"
)

// Archive is a physical artifact linked to zero or one gallery.
type Archive struct {
	ID         int64
	Path       string
	GalleryID  int64
	Title      string
	Checksum   string
	Filesize   int64
	Filecount  int
	MatchType  string
	SourceType string
	Status     ArchiveStatus
	Reason     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasGallery reports whether the archive is linked to a gallery.
func (a Archive) HasGallery() bool {
	return a.GalleryID > 0
}

// TransferStatus tracks an asynchronous transfer.
type TransferStatus string

const (
	TransferInProgress TransferStatus = "in_progress"
	TransferComplete   TransferStatus = "complete"
	TransferFailed     TransferStatus = "failed"
)

// Transfer is a remote transfer registered by an asynchronous downloader.
type Transfer struct {
	ID           int64
	ArchiveID    int64
	Method       string
	TransferID   string
	Destination  string
	ExpectedSize int64
	Status       TransferStatus
	Progress     float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RedownloadStatus tracks a queued forced redownload.
type RedownloadStatus string

const (
	RedownloadPending RedownloadStatus = "pending"
	RedownloadDone    RedownloadStatus = "done"
	RedownloadFailed  RedownloadStatus = "failed"
)

// Redownload is a forced single-backend redownload request.
type Redownload struct {
	ID         int64
	GalleryID  int64
	Provider   string
	Downloader string
	Reason     string
	Status     RedownloadStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// GalleryFilter narrows ListGalleries. Zero values are ignored.
type GalleryFilter struct {
	Provider string
	DLType   gallery.DLType
	Status   GalleryStatus
	Limit    int
}

// ArchiveFilter narrows ListArchives. Zero values are ignored.
type ArchiveFilter struct {
	Statuses  []ArchiveStatus
	GalleryID int64
	Limit     int
}
