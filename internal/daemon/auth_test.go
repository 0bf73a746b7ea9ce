package daemon

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"galleryvault/internal/logging"
)

func TestRequireToken(t *testing.T) {
	srv := &apiServer{logger: logging.NewNop()}
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{name: "open api", token: "", header: "", want: http.StatusNoContent},
		{name: "missing header", token: "secret", header: "", want: http.StatusUnauthorized},
		{name: "basic scheme", token: "secret", header: "Basic secret", want: http.StatusUnauthorized},
		{name: "wrong token", token: "secret", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "lowercase scheme", token: "secret", header: "bearer secret", want: http.StatusNoContent},
		{name: "valid token", token: "secret", header: "Bearer secret", want: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			srv.requireToken(tt.token, ok).ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
			if w.Code == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Fatal("expected WWW-Authenticate challenge")
			}
		})
	}
}
