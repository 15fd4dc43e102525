// Package storage keeps uploaded attachment bytes.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Blob describes stored bytes.
type Blob struct {
	Key  string
	URL  string
	Size int64
}

// BlobStore saves and removes attachment content.
type BlobStore interface {
	Save(ctx context.Context, fileName string, r io.Reader) (Blob, error)
	Delete(ctx context.Context, url string) error
}

// LocalStore writes blobs under a directory served at baseURL.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir is the directory to serve.
func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) Save(ctx context.Context, fileName string, r io.Reader) (Blob, error) {
	key := uuid.NewString() + "-" + sanitize(fileName)
	f, err := os.Create(filepath.Join(s.dir, key))
	if err != nil {
		return Blob{}, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return Blob{}, err
	}
	return Blob{Key: key, URL: s.baseURL + "/" + key, Size: n}, nil
}

// Delete removes a blob this store owns. Foreign URLs are ignored.
func (s *LocalStore) Delete(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || key == "" || strings.ContainsAny(key, `/\`) {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return strings.Map(func(r rune) rune {
		if r == ' ' || r < 0x20 {
			return '_'
		}
		return r
	}, name)
}
