// Package session persists the single user-session blob the wizard reads at
// start and writes after persisted steps pass.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Blob is the persisted user session.
type Blob struct {
	Token string `json:"token,omitempty"`
	// Saved holds the answers of persisted steps: step name -> field key -> value.
	Saved     map[string]map[string]string `json:"saved,omitempty"`
	Onboarded bool                         `json:"onboarded"`
	UpdatedAt time.Time                    `json:"updated_at"`
}

// SavedStep reports whether answers for the named step were stored.
func (b Blob) SavedStep(name string) bool {
	_, ok := b.Saved[name]
	return ok
}

// Store loads and saves the session blob.
type Store interface {
	Load(ctx context.Context) (Blob, bool, error)
	Save(ctx context.Context, b Blob) error
	Clear(ctx context.Context) error
}

// Driver names accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Open returns the store for driver rooted at path.
func Open(driver, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverFile:
		return NewFile(path)
	case DriverSQLite:
		return NewSQLite(path)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown session driver: %s", driver)
	}
}

// DefaultPath returns ~/.onboard/<name>.
func DefaultPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".onboard", name)
}

// Memory keeps the blob in process memory.
type Memory struct {
	mu   sync.RWMutex
	blob *Blob
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load(ctx context.Context) (Blob, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.blob == nil {
		return Blob{}, false, nil
	}
	return clone(*m.blob), true, nil
}

func (m *Memory) Save(ctx context.Context, b Blob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := clone(b)
	m.blob = &c
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = nil
	return nil
}

func clone(b Blob) Blob {
	if b.Saved == nil {
		return b
	}
	saved := make(map[string]map[string]string, len(b.Saved))
	for step, fields := range b.Saved {
		cp := make(map[string]string, len(fields))
		for k, v := range fields {
			cp[k] = v
		}
		saved[step] = cp
	}
	b.Saved = saved
	return b
}
