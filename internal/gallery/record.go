package gallery

import (
	"fmt"
	"strings"
	"time"
)

// DLType records how a gallery ended up in the catalog.
type DLType string

const (
	DLTypeNone   DLType = ""
	DLTypeFailed DLType = "failed"
	DLTypeInfo   DLType = "info"
	DLTypeFolder DLType = "folder"
)

// Key is the catalog identity of a gallery.
type Key struct {
	GID      string
	Provider string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Provider, k.GID)
}

// Valid reports whether both identity components are present.
func (k Key) Valid() bool {
	return strings.TrimSpace(k.GID) != "" && strings.TrimSpace(k.Provider) != ""
}

// Record is the canonical external-source metadata unit.
type Record struct {
	GID          string
	Provider     string
	Token        string
	Link         string
	Tags         []string
	Title        string
	TitleJpn     string
	Category     string
	Posted       time.Time
	Filesize     int64
	Filecount    int
	Uploader     string
	ThumbnailURL string
	Rating       float64
	Expunged     bool
	Hidden       bool
	Public       bool
	Fjord        bool
	ArchiverKey  string
	Root         string
	DLType       DLType
	Filename     string
}

// Key returns the identity of the record.
func (r Record) Key() Key {
	return Key{GID: r.GID, Provider: r.Provider}
}

// DisplayTitle prefers the romanised title and falls back to the original one.
func (r Record) DisplayTitle() string {
	if t := strings.TrimSpace(r.Title); t != "" {
		return t
	}
	return strings.TrimSpace(r.TitleJpn)
}

// Clone returns a copy whose tag slice does not alias the receiver's.
func (r Record) Clone() Record {
	if r.Tags != nil {
		r.Tags = append([]string(nil), r.Tags...)
	}
	return r
}
