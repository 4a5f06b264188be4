package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStore keeps objects in a map. Meant for local development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

func NewMemory() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func (s *MemoryStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	var buf bytes.Buffer

	// Copy in chunks so a cancelled context stops the write midway
	chunk := make([]byte, 32<<10)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := body.Read(chunk)
		buf.Write(chunk[:n])

		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read object body, %w", err)
		}
	}

	if size >= 0 && int64(buf.Len()) != size {
		return fmt.Errorf("short write, expected %d bytes but got %d", size, buf.Len())
	}

	s.mu.Lock()
	s.objects[key] = memoryObject{data: buf.Bytes(), contentType: contentType}
	s.mu.Unlock()

	return nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.objects[key]
	return ok, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()

	return nil
}

// Get returns a copy of the object stored under key
func (s *MemoryStore) Get(key string) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.objects[key]
	if !ok {
		return nil, "", ErrNotFound
	}

	return bytes.Clone(o.data), o.contentType, nil
}

// Len returns the number of stored objects
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.objects)
}
