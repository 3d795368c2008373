// engine/test/mock/store.go
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dev-mohitbeniwal/aegis/engine/db"
	aegis_errors "github.com/dev-mohitbeniwal/aegis/engine/errors"
)

// FakeStore is a stateful in-memory db.ConfigStore. Invalidation and
// resilience tests need real set and sorted-set semantics, not canned
// returns, so this is a working implementation rather than an expectation
// mock. Set FailNext to make upcoming calls fail with ErrStoreUnavailable.
type FakeStore struct {
	mu       sync.Mutex
	kv       map[string]string
	sets     map[string]map[string]struct{}
	zsets    map[string]map[string]float64
	counters map[string]int64

	FailNext int
	Calls    map[string]int
}

var _ db.ConfigStore = &FakeStore{}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		kv:       make(map[string]string),
		sets:     make(map[string]map[string]struct{}),
		zsets:    make(map[string]map[string]float64),
		counters: make(map[string]int64),
		Calls:    make(map[string]int),
	}
}

func (f *FakeStore) fail(op string) error {
	f.Calls[op]++
	if f.FailNext > 0 {
		f.FailNext--
		return aegis_errors.ErrStoreUnavailable
	}
	return nil
}

func (f *FakeStore) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("Get"); err != nil {
		return "", false, err
	}
	val, ok := f.kv[key]
	return val, ok, nil
}

func (f *FakeStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("Set"); err != nil {
		return err
	}
	f.kv[key] = value
	return nil
}

func (f *FakeStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SetNX"); err != nil {
		return false, err
	}
	if _, ok := f.kv[key]; ok {
		return false, nil
	}
	f.kv[key] = value
	return true, nil
}

func (f *FakeStore) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("Del"); err != nil {
		return err
	}
	for _, key := range keys {
		delete(f.kv, key)
		delete(f.sets, key)
		delete(f.zsets, key)
	}
	return nil
}

func (f *FakeStore) Incr(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("Incr"); err != nil {
		return 0, err
	}
	f.counters[key]++
	return f.counters[key], nil
}

func (f *FakeStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail("Expire")
}

func (f *FakeStore) SAdd(ctx context.Context, key string, members ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SAdd"); err != nil {
		return err
	}
	set, ok := f.sets[key]
	if !ok {
		set = make(map[string]struct{})
		f.sets[key] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	return nil
}

func (f *FakeStore) SMembers(ctx context.Context, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SMembers"); err != nil {
		return nil, err
	}
	var members []string
	for m := range f.sets[key] {
		members = append(members, m)
	}
	sort.Strings(members)
	return members, nil
}

func (f *FakeStore) SRem(ctx context.Context, key string, members ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SRem"); err != nil {
		return err
	}
	for _, m := range members {
		delete(f.sets[key], m)
	}
	return nil
}

func (f *FakeStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ZAdd"); err != nil {
		return err
	}
	zset, ok := f.zsets[key]
	if !ok {
		zset = make(map[string]float64)
		f.zsets[key] = zset
	}
	zset[member] = score
	return nil
}

func (f *FakeStore) sortedMembers(key string) []string {
	zset := f.zsets[key]
	members := make([]string, 0, len(zset))
	for m := range zset {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		if zset[members[i]] == zset[members[j]] {
			return members[i] < members[j]
		}
		return zset[members[i]] < zset[members[j]]
	})
	return members
}

func (f *FakeStore) ZPopOldest(ctx context.Context, key string, count int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ZPopOldest"); err != nil {
		return nil, err
	}
	members := f.sortedMembers(key)
	if count < len(members) {
		members = members[:count]
	}
	for _, m := range members {
		delete(f.zsets[key], m)
	}
	return members, nil
}

func (f *FakeStore) ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ZRangeByScore"); err != nil {
		return nil, err
	}
	var out []string
	for _, m := range f.sortedMembers(key) {
		score := f.zsets[key][m]
		if score >= min && score <= max {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *FakeStore) ZRemRangeByScore(ctx context.Context, key string, min, max float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ZRemRangeByScore"); err != nil {
		return err
	}
	for m, score := range f.zsets[key] {
		if score >= min && score <= max {
			delete(f.zsets[key], m)
		}
	}
	return nil
}

func (f *FakeStore) ZRem(ctx context.Context, key string, members ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ZRem"); err != nil {
		return err
	}
	for _, m := range members {
		delete(f.zsets[key], m)
	}
	return nil
}

func (f *FakeStore) ZCard(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ZCard"); err != nil {
		return 0, err
	}
	return int64(len(f.zsets[key])), nil
}

func (f *FakeStore) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail("Ping")
}
