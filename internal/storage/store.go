package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("object not found")

// Store holds uploaded file bytes. Objects are addressed by the public URL
// returned from Put, which is what documents persist.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Get(ctx context.Context, url string) ([]byte, error)
	Delete(ctx context.Context, url string) error
}

// ObjectKey builds "clurb/{user}/{yyyy}/{mm}/{uuid}-{filename}".
func ObjectKey(userID uint64, filename string, now time.Time) string {
	name := sanitize(filename)
	return fmt.Sprintf("clurb/%d/%04d/%02d/%s-%s", userID, now.Year(), int(now.Month()), uuid.NewString(), name)
}

func sanitize(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r < 0x20 || r == '?' || r == '#' || r == '%':
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == "/" {
		return "file"
	}
	return name
}

func urlFor(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}

func keyFromURL(base, url string) (string, error) {
	prefix := strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", fmt.Errorf("url %q is outside %q", url, base)
	}
	return strings.TrimPrefix(url, prefix), nil
}

type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string][]byte
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: baseURL, objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	return urlFor(s.baseURL, key), nil
}

func (s *MemoryStore) Get(_ context.Context, url string) ([]byte, error) {
	key, err := keyFromURL(s.baseURL, url)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (s *MemoryStore) Delete(_ context.Context, url string) error {
	key, err := keyFromURL(s.baseURL, url)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}
