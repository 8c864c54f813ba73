package file

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// DefaultMember derives the member name the survey archives use: the archive
// base name with its extension replaced by ".txt" (PNADC_042022.zip ->
// PNADC_042022.txt).
func DefaultMember(archivePath string) string {
	base := filepath.Base(archivePath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".txt"
}

// Extract copies member out of the zip archive at archivePath into destDir
// and returns the extracted file's path. An existing file of the same name is
// replaced atomically. Only the base name of member is used for the
// destination, so entries cannot escape destDir.
//
// A missing archive or member yields an error matching fs.ErrNotExist.
func Extract(ctx context.Context, archivePath, member, destDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer zr.Close()

	var entry *zip.File
	for _, f := range zr.File {
		if f.Name == member || filepath.Base(f.Name) == member {
			entry = f
			break
		}
	}
	if entry == nil {
		return "", fmt.Errorf("archive %s: member %q: %w", archivePath, member, fs.ErrNotExist)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", destDir, err)
	}
	dest := filepath.Join(destDir, filepath.Base(entry.Name))

	src, err := entry.Open()
	if err != nil {
		return "", fmt.Errorf("open member %q: %w", entry.Name, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(destDir, ".extract-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, ctxReader{ctx: ctx, r: src}); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("extract %q: %w", entry.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("extract %q: %w", entry.Name, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("extract %q: %w", entry.Name, err)
	}
	return dest, nil
}

// ctxReader stops a long copy between reads once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
