package blob

import (
	"context"
	"io"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
)

type object struct {
	contentType string
	data        []byte
}

// Memory keeps attachments in process memory. It is used when no bucket is configured.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]object
	maxSize int64
}

var _ interfaces.BlobStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string]object),
		maxSize: DefaultMaxSize,
	}
}

func (m *Memory) Put(ctx context.Context, key, contentType string, body io.Reader) (string, int64, error) {
	data, err := io.ReadAll(limit(body, m.maxSize))
	if err != nil {
		return "", 0, goerr.Wrap(err, "failed to read object", goerr.V("key", key))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = object{contentType: contentType, data: data}

	return "memory://" + key, int64(len(data)), nil
}

// Get returns a stored object and its content type
func (m *Memory) Get(key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), obj.data...), obj.contentType, true
}
