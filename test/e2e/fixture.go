package e2e

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	"github.com/abelbrown/postboard/internal/store"
)

// seedMirror writes a mirror the binary will restore at startup.
func seedMirror(homeDir string) error {
	dataDir := filepath.Join(homeDir, ".postboard")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}
	st, err := store.Open(filepath.Join(dataDir, "mirror.db"))
	if err != nil {
		return err
	}
	defer st.Close()

	return st.ReplaceAll([]store.Post{
		{ID: 1, Title: "Restored Post One", Body: "Restored body."},
		{ID: 2, Title: "Restored Post Two", Body: "Restored body."},
	})
}

// newPostsServer serves two posts per page for pages 1-3. Page 1 is held
// back for firstPageDelay so the restored mirror is on screen first.
func newPostsServer(firstPageDelay time.Duration) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/posts" {
			http.NotFound(w, r)
			return
		}
		page := r.URL.Query().Get("page")
		if page == "1" {
			select {
			case <-time.After(firstPageDelay):
			case <-r.Context().Done():
				return
			}
		}
		switch page {
		case "1", "2", "3":
		default:
			_, _ = w.Write([]byte("[]"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w,
			`[{"id":%[1]s1,"title":"Network Post %[1]s-a","body":"Body of %[1]s-a."},{"id":%[1]s2,"title":"Network Post %[1]s-b","body":"Body of %[1]s-b."}]`,
			page)
	}))
}
