// internal/common/blobstore/memory.go
package blobstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "procurement-harvester/internal/common/errors"
)

// Memory is an in-process Store used by tests and dry runs.
type Memory struct {
	mu     sync.Mutex
	seq    int
	byName map[string]string
	blobs  map[string]*memBlob
	writes int

	// Fail, when set, is consulted before every operation ("find",
	// "download", "create", "update") and its non-nil result is returned.
	Fail func(op, nameOrID string) error
}

type memBlob struct {
	Blob
	data []byte
}

func NewMemory() *Memory {
	return &Memory{
		byName: make(map[string]string),
		blobs:  make(map[string]*memBlob),
	}
}

func (m *Memory) Find(_ context.Context, name string) (*Blob, error) {
	if err := m.fail("find", name); err != nil {
		return nil, apperrors.NewStoreDownloadError(name, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byName[name]
	if !ok {
		return nil, nil
	}
	b := m.blobs[id].Blob
	return &b, nil
}

func (m *Memory) Download(_ context.Context, id string) ([]byte, error) {
	if err := m.fail("download", id); err != nil {
		return nil, apperrors.NewStoreDownloadError(id, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[id]
	if !ok {
		return nil, apperrors.NewStoreDownloadError(id, fmt.Errorf("no blob with id %s", id))
	}
	return append([]byte(nil), b.data...), nil
}

func (m *Memory) Create(_ context.Context, name string, data []byte) (*Blob, error) {
	if err := m.fail("create", name); err != nil {
		return nil, apperrors.NewStoreUploadError(name, apperrors.IsRetryable(err), err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := fmt.Sprintf("mem-%d", m.seq)
	b := &memBlob{
		Blob: Blob{ID: id, Name: name, Size: int64(len(data)), Modified: time.Now().UTC()},
		data: append([]byte(nil), data...),
	}
	m.blobs[id] = b
	m.byName[name] = id
	m.writes++
	out := b.Blob
	return &out, nil
}

func (m *Memory) Update(_ context.Context, id string, data []byte) error {
	if err := m.fail("update", id); err != nil {
		return apperrors.NewStoreUploadError(id, apperrors.IsRetryable(err), err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[id]
	if !ok {
		return apperrors.NewStoreUploadError(id, false, fmt.Errorf("no blob with id %s", id))
	}
	b.data = append([]byte(nil), data...)
	b.Size = int64(len(data))
	b.Modified = time.Now().UTC()
	m.writes++
	return nil
}

// Put seeds a blob by name, replacing any existing content. Seeding does not
// count as a write and bypasses Fail.
func (m *Memory) Put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byName[name]
	if !ok {
		m.seq++
		id = fmt.Sprintf("mem-%d", m.seq)
		m.byName[name] = id
	}
	m.blobs[id] = &memBlob{
		Blob: Blob{ID: id, Name: name, Size: int64(len(data)), Modified: time.Now().UTC()},
		data: append([]byte(nil), data...),
	}
}

// Get returns the content stored under name.
func (m *Memory) Get(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byName[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), m.blobs[id].data...), true
}

// Names lists stored blob names.
func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.byName))
	for n := range m.byName {
		out = append(out, n)
	}
	return out
}

// Writes counts successful Create and Update calls.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *Memory) fail(op, key string) error {
	if m.Fail == nil {
		return nil
	}
	return m.Fail(op, key)
}
