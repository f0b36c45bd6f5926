package attachment

import "fmt"

// Provider resolves Content-IDs to the bytes of MIME parts
type Provider interface {
	// IsLoaded reports whether the part is already materialized.
	IsLoaded(contentID string) bool
	// Get returns the part bytes. It fails with ErrNotFound for unknown
	// Content-IDs and with a *LoadError when fetching fails.
	Get(contentID string) ([]byte, error)
}

// Deferred is a Handle that calls a load function once and caches the result
// after the first successful call.
type Deferred struct {
	load   func() ([]byte, error)
	data   []byte
	loaded bool
}

// NewDeferred creates a Deferred handle around load
func NewDeferred(load func() ([]byte, error)) *Deferred {
	return &Deferred{load: load}
}

// Loaded reports whether a previous Load succeeded
func (d *Deferred) Loaded() bool {
	return d.loaded
}

// Load fetches the bytes on first use
func (d *Deferred) Load() ([]byte, error) {
	if d.loaded {
		return d.data, nil
	}
	data, err := d.load()
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	d.data = data
	d.loaded = true
	return data, nil
}

// partHandle narrows a Provider to a single Content-ID
type partHandle struct {
	provider  Provider
	contentID string
}

// PartHandle returns a Handle that loads contentID from p
func PartHandle(p Provider, contentID string) Handle {
	return partHandle{provider: p, contentID: contentID}
}

func (h partHandle) Loaded() bool {
	return h.provider.IsLoaded(h.contentID)
}

func (h partHandle) Load() ([]byte, error) {
	data, err := h.provider.Get(h.contentID)
	if err != nil {
		return nil, WrapLoadError(h.contentID, err)
	}
	return data, nil
}

// Parts is an in-memory Provider
type Parts map[string][]byte

// IsLoaded reports whether contentID is present
func (p Parts) IsLoaded(contentID string) bool {
	_, ok := p[contentID]
	return ok
}

// Get returns the bytes stored for contentID
func (p Parts) Get(contentID string) ([]byte, error) {
	data, ok := p[contentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, contentID)
	}
	if data == nil {
		return []byte{}, nil
	}
	return data, nil
}

type emptyProvider struct{}

// Empty is a Provider without parts; every lookup fails with ErrNotFound.
var Empty Provider = emptyProvider{}

func (emptyProvider) IsLoaded(string) bool { return false }

func (emptyProvider) Get(contentID string) ([]byte, error) {
	return nil, fmt.Errorf("%w: %s (stream has no parts)", ErrNotFound, contentID)
}
