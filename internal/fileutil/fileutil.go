package fileutil

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// MoveFile renames src to dst, creating the destination directory. Moves
// across filesystems fall back to a verified copy followed by removal of src.
func MoveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := copyVerified(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// UniquePath returns path, or path with a " (n)" suffix before the extension
// when path already exists.
func UniquePath(path string) string {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for n := 2; ; n++ {
		candidate := stem + " (" + strconv.Itoa(n) + ")" + ext
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
	}
}

// SHA1File returns the hex SHA-1 digest and size of a file.
func SHA1File(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha1.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// copyVerified copies src to dst and removes dst unless its SHA-1 and size
// match the source. Archive checksums are SHA-1, so the same digest that
// identifies the archive in the catalog guards the copy.
func copyVerified(src, dst string) error {
	want, size, err := SHA1File(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	h := sha1.New()
	written, copyErr := io.Copy(io.MultiWriter(out, h), in)
	closeErr := out.Close()
	switch {
	case copyErr != nil:
		err = copyErr
	case closeErr != nil:
		err = closeErr
	case written != size || hex.EncodeToString(h.Sum(nil)) != want:
		err = fmt.Errorf("copy of %s does not match the source (%d of %d bytes)", src, written, size)
	}
	if err != nil {
		_ = os.Remove(dst)
	}
	return err
}
