// Package source provides the document source: it enumerates supported files
// in the docs directory, hashes their raw bytes, and extracts text via the
// parser package. The document id is the filename, unique within one source.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	rserrors "github.com/ramsok/ramsok/internal/errors"
	"github.com/ramsok/ramsok/internal/parser"
)

// FileInfo describes one readable document in the source set.
type FileInfo struct {
	// ID is the document identifier (base filename).
	ID string

	// Path is the absolute or docs-dir-relative path on disk.
	Path string

	// Hash is the SHA-256 hex digest of the raw document bytes.
	Hash string
}

// Failure records a document that could not be read or hashed.
// Unreadable documents are excluded from the change diff; they never cause
// manifest mutations.
type Failure struct {
	ID  string
	Err error
}

// Source reads documents from a directory on the local filesystem.
type Source struct {
	dir string
}

// New creates a Source over the given directory.
func New(dir string) *Source {
	return &Source{dir: dir}
}

// Dir returns the source directory.
func (s *Source) Dir() string {
	return s.dir
}

// Scan lists all supported documents in sorted filename order, hashing each.
// Read failures are reported per document, not as a scan error; only a
// missing or unlistable directory fails the scan itself.
func (s *Source) Scan(ctx context.Context) ([]FileInfo, []Failure, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, nil, rserrors.New(rserrors.ErrCodeConfigNotFound,
			fmt.Sprintf("cannot list docs directory %s", s.dir), err)
	}

	var files []FileInfo
	var failures []Failure

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if entry.IsDir() || !parser.IsSupportedExtension(entry.Name()) {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		hash, err := hashFile(path)
		if err != nil {
			slog.Warn("document_unreadable",
				slog.String("document", entry.Name()),
				slog.String("error", err.Error()))
			failures = append(failures, Failure{
				ID:  entry.Name(),
				Err: rserrors.UnreadableError(fmt.Sprintf("cannot hash %s", entry.Name()), err),
			})
			continue
		}

		files = append(files, FileInfo{
			ID:   entry.Name(),
			Path: path,
			Hash: hash,
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, failures, nil
}

// ExtractText parses the document at path into plain text.
func (s *Source) ExtractText(path string) (string, error) {
	p, err := parser.ForFile(path)
	if err != nil {
		return "", rserrors.UnreadableError(
			fmt.Sprintf("no parser for %s", filepath.Base(path)), err)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", rserrors.UnreadableError(
			fmt.Sprintf("cannot open %s", filepath.Base(path)), err)
	}
	defer f.Close()

	text, err := p.Parse(f, filepath.Base(path))
	if err != nil {
		return "", rserrors.UnreadableError(
			fmt.Sprintf("cannot parse %s", filepath.Base(path)), err)
	}

	return text, nil
}

// hashFile computes the SHA-256 hex digest of a file's raw bytes.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
