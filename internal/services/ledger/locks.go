package ledger

import (
	"context"
	"sort"
	"sync"
)

type refLock struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex serializes work per ledger key. Entries are dropped once no
// goroutine holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[Key]*refLock
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[Key]*refLock)}
}

// Lock acquires every key in sorted order and returns the matching unlock.
func (k *keyedMutex) Lock(keys ...Key) func() {
	keys = sortedUnique(keys)

	held := make([]*refLock, 0, len(keys))
	for _, key := range keys {
		k.mu.Lock()
		l, ok := k.locks[key]
		if !ok {
			l = &refLock{}
			k.locks[key] = l
		}
		l.refs++
		k.mu.Unlock()

		l.mu.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			k.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(k.locks, keys[i])
			}
			k.mu.Unlock()
		}
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func sortedUnique(keys []Key) []Key {
	out := append([]Key(nil), keys...)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	n := 0
	for i, key := range out {
		if i > 0 && key == out[n-1] {
			continue
		}
		out[n] = key
		n++
	}
	return out[:n]
}

type heldKeysCtx struct{}

func withHeld(ctx context.Context, keys []Key) context.Context {
	held := make(map[Key]bool, len(keys))
	for _, k := range keys {
		held[k] = true
	}
	return context.WithValue(ctx, heldKeysCtx{}, held)
}

func heldFrom(ctx context.Context) map[Key]bool {
	held, _ := ctx.Value(heldKeysCtx{}).(map[Key]bool)
	return held
}
