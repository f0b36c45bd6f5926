package partstore

import (
	"context"
	"errors"
	"sync"

	"github.com/sirosfoundation/go-xop/pkg/attachment"
)

// Provider resolves Content-IDs against a Store. Fetched parts are verified
// against their checksum and cached.
//
// Provider implements attachment.Provider.
type Provider struct {
	ctx   context.Context
	store Store

	mu    sync.Mutex
	cache map[string][]byte
}

// NewProvider creates a provider over store. ctx bounds every fetch.
func NewProvider(ctx context.Context, store Store) *Provider {
	return &Provider{
		ctx:   ctx,
		store: store,
		cache: make(map[string][]byte),
	}
}

// IsLoaded reports whether a part has already been fetched
func (p *Provider) IsLoaded(contentID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.cache[contentID]
	return ok
}

// Get returns the bytes of a part, fetching it on first use
func (p *Provider) Get(contentID string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if data, ok := p.cache[contentID]; ok {
		return data, nil
	}

	part, err := p.store.Get(p.ctx, contentID)
	if errors.Is(err, attachment.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, &attachment.LoadError{ContentID: contentID, Err: err}
	}
	if err := Verify(part); err != nil {
		return nil, &attachment.LoadError{ContentID: contentID, Err: err}
	}

	data := part.Data
	if data == nil {
		data = []byte{}
	}
	p.cache[contentID] = data
	return data, nil
}
