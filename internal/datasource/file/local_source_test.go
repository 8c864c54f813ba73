package file

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestLocalOpen covers a readable extract, a missing path and a context
// that is already canceled.
func TestLocalOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	extract := filepath.Join(dir, "PNADC.txt")
	const payload = "3510\n3521\n"
	if err := os.WriteFile(extract, []byte(payload), 0o644); err != nil {
		t.Fatalf("write extract: %v", err)
	}
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	cases := []struct {
		name        string
		path        string
		ctx         context.Context
		wantErrIs   error
		wantContent string
	}{
		{name: "reads_content", path: extract, ctx: context.Background(), wantContent: payload},
		{name: "missing_path", path: filepath.Join(dir, "absent.txt"), ctx: context.Background(), wantErrIs: os.ErrNotExist},
		{name: "canceled_context", path: extract, ctx: canceled, wantErrIs: context.Canceled},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			src := NewLocal(c.path)
			rc, err := src.Open(c.ctx)
			if c.wantErrIs != nil {
				if !errors.Is(err, c.wantErrIs) {
					t.Fatalf("errors.Is(%v, %v) = false", err, c.wantErrIs)
				}
				if rc != nil {
					_ = rc.Close()
					t.Fatalf("got non-nil ReadCloser on error")
				}
				if c.wantErrIs == os.ErrNotExist && !strings.Contains(err.Error(), c.path) {
					t.Fatalf("error %q does not name the path", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer rc.Close()
			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if string(got) != c.wantContent {
				t.Fatalf("content = %q, want %q", got, c.wantContent)
			}
		})
	}
}
