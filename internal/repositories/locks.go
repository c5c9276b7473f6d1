package repositories

import (
	"sort"
	"sync"
)

// keyedLocker hands out one mutex per record key so that mutations touching
// disjoint records never wait on each other.
type keyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// Lock acquires the locks for keys in a stable order and returns the release func.
func (k *keyedLocker) Lock(keys ...string) func() {
	ordered := uniqueSorted(keys)

	held := make([]*keyedLock, 0, len(ordered))
	for _, key := range ordered {
		l := k.ref(key)
		l.mu.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			k.unref(ordered[i])
		}
	}
}

func (k *keyedLocker) ref(key string) *keyedLock {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	return l
}

func (k *keyedLocker) unref(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		return
	}
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

func uniqueSorted(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func accountKey(id string) string { return "account:" + id }

func workKey(id string) string { return "work:" + id }

func followKey(follower, followed string) string { return "follow:" + follower + "|" + followed }
