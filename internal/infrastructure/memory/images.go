package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/bucket-api/internal/domain"
)

type storedImage struct {
	data        []byte
	contentType string
}

// ImageStore keeps uploaded product images in process memory.
type ImageStore struct {
	mu      sync.RWMutex
	objects map[string]storedImage
}

func NewImageStore() *ImageStore {
	return &ImageStore{objects: make(map[string]storedImage)}
}

func (s *ImageStore) Upload(_ context.Context, key string, r io.Reader, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = storedImage{data: data, contentType: contentType}
	return nil
}

func (s *ImageStore) Download(_ context.Context, key string) (io.ReadCloser, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, "", fmt.Errorf("image %s: %w", key, domain.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.contentType, nil
}

func (s *ImageStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// Keys lists the stored object keys.
func (s *ImageStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}
