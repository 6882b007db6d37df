package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Persister keeps the encoded snapshot between process runs. Load returns
// nil, nil when nothing is stored.
type Persister interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, s Snapshot) error
	Clear(ctx context.Context) error
}

type nopPersister struct{}

func (nopPersister) Load(context.Context) (*Snapshot, error) { return nil, nil }
func (nopPersister) Save(context.Context, Snapshot) error     { return nil }
func (nopPersister) Clear(context.Context) error              { return nil }

// MemoryPersister holds the encoded snapshot in memory.
type MemoryPersister struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

func (p *MemoryPersister) Load(context.Context) (*Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data == nil {
		return nil, nil
	}
	return DecodeSnapshot(p.data)
}

func (p *MemoryPersister) Save(_ context.Context, s Snapshot) error {
	data, err := EncodeSnapshot(s)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.data = data
	p.mu.Unlock()
	return nil
}

func (p *MemoryPersister) Clear(context.Context) error {
	p.mu.Lock()
	p.data = nil
	p.mu.Unlock()
	return nil
}

// Raw returns the stored bytes. Tests use it to corrupt or inspect the
// encoding.
func (p *MemoryPersister) Raw() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.data...)
}

// SetRaw replaces the stored bytes.
func (p *MemoryPersister) SetRaw(data []byte) {
	p.mu.Lock()
	p.data = append([]byte(nil), data...)
	p.mu.Unlock()
}

// FilePersister stores the snapshot in dir/nextcrm-auth with owner-only
// permissions.
type FilePersister struct {
	path string
	mu   sync.Mutex
}

func NewFilePersister(dir string) *FilePersister {
	return &FilePersister{path: filepath.Join(dir, SnapshotKey)}
}

func (p *FilePersister) Path() string {
	return p.path
}

func (p *FilePersister) Load(context.Context) (*Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return DecodeSnapshot(data)
}

func (p *FilePersister) Save(_ context.Context, s Snapshot) error {
	data, err := EncodeSnapshot(s)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p.path), SnapshotKey+".*")
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (p *FilePersister) Clear(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := os.Remove(p.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}
