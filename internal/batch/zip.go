package batch

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// fallbackMemberName is used when sanitization leaves nothing of a title.
const fallbackMemberName = "file"

// SanitizeName reduces a member title to a zip-safe name: anything outside
// [A-Za-z0-9._-] becomes '_'. Idempotent. Collisions between sanitized
// names are not deduplicated.
func SanitizeName(name string) string {
	out := make([]byte, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, byte(r))
		case r == '.' || r == '-' || r == '_':
			out = append(out, byte(r))
		default:
			out = append(out, '_')
		}
	}
	if !hasWord(out) {
		return fallbackMemberName
	}
	return string(out)
}

// hasWord reports whether the name contains anything beyond separator
// characters, so "...", "___" and "" all fall back to the placeholder.
func hasWord(name []byte) bool {
	for _, c := range name {
		if c != '.' && c != '-' && c != '_' {
			return true
		}
	}
	return false
}

// memberName is the name a member is stored under inside a container:
// sanitized title plus the original file extension.
func memberName(m Member) string {
	return SanitizeName(m.Title) + filepath.Ext(m.Path)
}

// WriteContainer packages a closed batch into a zip archive at path.
// Members whose file has gone missing are skipped, but a container where
// every member is missing is an error; any other failure is fatal for this
// container only, and the partial archive is removed.
func WriteContainer(path string, b *Batch) (err error) {
	if b == nil || b.Len() == 0 {
		return errors.New("refusing to write an empty container")
	}
	log := zap.S().Named("batch")

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	zw := zip.NewWriter(f)
	written := 0
	for _, m := range b.Members() {
		if writeErr := writeMember(zw, m); writeErr != nil {
			if errors.Is(writeErr, fs.ErrNotExist) {
				log.Warnw("skipping missing member", "path", m.Path)
				continue
			}
			_ = zw.Close()
			_ = f.Close()
			err = fmt.Errorf("failed to write member %q: %w", m.Title, writeErr)
			return err
		}
		written++
	}
	if err = zw.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to close container: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to close container: %w", err)
	}
	if written == 0 {
		err = errors.New("all container members are missing")
		return err
	}
	return nil
}

func writeMember(zw *zip.Writer, m Member) error {
	src, err := os.Open(m.Path)
	if err != nil {
		return err
	}
	defer src.Close()
	w, err := zw.Create(memberName(m))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
