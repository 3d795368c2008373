// engine/test/mock/node.go
package mock

import (
	"context"
	"sync"
	"time"

	aegis_errors "github.com/dev-mohitbeniwal/aegis/engine/errors"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
)

// FakeNode is an in-memory remote cache node speaking the same versioned
// protocol as the Redis implementation. Versioned writes and delete-and-bump
// behave atomically under the node mutex.
type FakeNode struct {
	name string

	mu       sync.Mutex
	data     map[string]string
	versions map[string]int64

	Down         bool
	GetCalls     int
	SetCalls     int
	VersionCalls int
}

func NewFakeNode(name string) *FakeNode {
	return &FakeNode{
		name:     name,
		data:     make(map[string]string),
		versions: make(map[string]int64),
	}
}

func (n *FakeNode) Name() string {
	return n.name
}

func (n *FakeNode) Get(ctx context.Context, key string) (string, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.GetCalls++
	if n.Down {
		return "", false, aegis_errors.ErrStoreUnavailable
	}
	val, ok := n.data[key]
	return val, ok, nil
}

func (n *FakeNode) MGet(ctx context.Context, keys []string) (map[string]string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.GetCalls++
	if n.Down {
		return nil, aegis_errors.ErrStoreUnavailable
	}
	hits := make(map[string]string)
	for _, key := range keys {
		if val, ok := n.data[key]; ok {
			hits[key] = val
		}
	}
	return hits, nil
}

func (n *FakeNode) Version(ctx context.Context, verKey string) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.VersionCalls++
	if n.Down {
		return 0, aegis_errors.ErrStoreUnavailable
	}
	return n.versions[verKey], nil
}

func (n *FakeNode) VersionBatch(ctx context.Context, verKeys []string) (map[string]int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.VersionCalls++
	if n.Down {
		return nil, aegis_errors.ErrStoreUnavailable
	}
	versions := make(map[string]int64, len(verKeys))
	for _, verKey := range verKeys {
		versions[verKey] = n.versions[verKey]
	}
	return versions, nil
}

func (n *FakeNode) SetIfVersion(ctx context.Context, key, verKey, payload string, ttl time.Duration, observed int64) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.SetCalls++
	if n.Down {
		return false, aegis_errors.ErrStoreUnavailable
	}
	if n.versions[verKey] != observed {
		return false, nil
	}
	n.data[key] = payload
	return true, nil
}

func (n *FakeNode) SetIfVersionBatch(ctx context.Context, writes []model.VersionedWrite) (map[string]bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.SetCalls++
	if n.Down {
		return nil, aegis_errors.ErrStoreUnavailable
	}
	committed := make(map[string]bool, len(writes))
	for _, w := range writes {
		if n.versions[w.VersionKey] != w.Observed {
			committed[w.Key] = false
			continue
		}
		n.data[w.Key] = w.Payload
		committed[w.Key] = true
	}
	return committed, nil
}

func (n *FakeNode) DeleteAndBump(ctx context.Context, key, verKey string, verTTL time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Down {
		return aegis_errors.ErrStoreUnavailable
	}
	n.versions[verKey]++
	delete(n.data, key)
	return nil
}

func (n *FakeNode) Ping(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Down {
		return aegis_errors.ErrStoreUnavailable
	}
	return nil
}

// Has reports whether the node currently stores key.
func (n *FakeNode) Has(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.data[key]
	return ok
}
