package service

import (
	"hash/fnv"
	"sync"
)

// keyLocks serializes ingest critical sections per (sku, seller) key.
// Independent keys hash to different shards and proceed in parallel;
// colliding keys share a mutex, which only costs extra serialization.
type keyLocks struct {
	shards []sync.Mutex
}

func newKeyLocks(n int) *keyLocks {
	if n <= 0 {
		n = 64
	}
	return &keyLocks{shards: make([]sync.Mutex, n)}
}

func (k *keyLocks) lock(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	mu := &k.shards[h.Sum32()%uint32(len(k.shards))]
	mu.Lock()
	return mu
}
