package storage

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/spec-kit/support-desk/internal/domain"
)

type memoryObject struct {
	contentType string
	data        []byte
}

// MemoryStore keeps attachments in process. It backs local runs without MinIO.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func (m *MemoryStore) Put(ctx context.Context, upload Upload) (domain.Attachment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Attachment{}, err
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, upload.Body)
	if err != nil {
		return domain.Attachment{}, err
	}

	att := domain.Attachment{
		Key:         objectKey(upload.FileName),
		FileName:    upload.FileName,
		ContentType: contentTypeOrDefault(upload.ContentType),
		SizeBytes:   n,
	}

	m.mu.Lock()
	m.objects[att.Key] = memoryObject{contentType: att.ContentType, data: buf.Bytes()}
	m.mu.Unlock()
	return att, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(m.objects, key)
	return nil
}

// Get returns a stored object's bytes.
func (m *MemoryStore) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj.data, ok
}

// Len reports the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
