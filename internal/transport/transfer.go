package transport

import "context"

// Progress is the state of one asynchronous transfer.
type Progress struct {
	ID      string
	Percent float64
	Done    bool
	// Name is the payload name inside the backend's download directory.
	Name string
	Dir  string
}

// Transfer is an asynchronous download backend.
type Transfer interface {
	Name() string
	Connect(ctx context.Context) error
	AddByURL(ctx context.Context, url, dir string) (string, error)
	AddByPayload(ctx context.Context, payload []byte, dir string) (string, error)
	// Progress reports every requested id the backend knows. Unknown ids are
	// absent from the result.
	Progress(ctx context.Context, ids []string) (map[string]Progress, error)
}
