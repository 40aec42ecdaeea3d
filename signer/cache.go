package signer

import (
	"sync"

	"github.com/go-gotop/bnconnector/utils"
)

// Cache keeps one Signer per *Credentials, keyed by pointer identity.
// It belongs to the client that created it; Clear drops every entry.
type Cache struct {
	mu      sync.Mutex
	signers map[*Credentials]Signer
	build   func(*Credentials) (Signer, error)
}

func NewCache() *Cache {
	return &Cache{
		signers: make(map[*Credentials]Signer),
		build:   New,
	}
}

// Get returns the cached signer for c, building it on first use.
func (sc *Cache) Get(c *Credentials) (Signer, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if s, ok := sc.signers[c]; ok {
		return s, nil
	}
	s, err := sc.build(c)
	if err != nil {
		return nil, err
	}
	sc.signers[c] = s
	return s, nil
}

// Sign signs utils.BuildQueryString(params) with the signer for c.
func (sc *Cache) Sign(c *Credentials, params utils.Params) (string, error) {
	s, err := sc.Get(c)
	if err != nil {
		return "", err
	}
	return s.Sign(utils.BuildQueryString(params))
}

func (sc *Cache) Len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.signers)
}

// Clear forgets every signer, e.g. after a credential rotation.
func (sc *Cache) Clear() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.signers = make(map[*Credentials]Signer)
}
