package xop

import (
	"fmt"

	"github.com/sirosfoundation/go-xop/pkg/attachment"
)

// Registry associates Content-IDs with binary objects in registration order.
// It implements attachment.Provider. Entries are never removed.
type Registry struct {
	generator ContentIDGenerator
	ids       []string
	parts     map[string]attachment.Object
}

// NewRegistry creates an empty registry; a nil generator uses UUIDGenerator
func NewRegistry(generator ContentIDGenerator) *Registry {
	if generator == nil {
		generator = UUIDGenerator{}
	}
	return &Registry{
		generator: generator,
		parts:     make(map[string]attachment.Object),
	}
}

// maxGenerateAttempts bounds how often Register asks the generator for a
// fresh Content-ID when the minted one is already taken.
const maxGenerateAttempts = 8

// Register stores obj and returns the Content-ID it was stored under.
// existing is passed to the generator as a hint. Registering a Content-ID a
// second time replaces the object but keeps its original position.
//
// A freshly minted Content-ID never replaces a registered part: Register
// asks the generator again and fails with ErrInvalidArgument when every
// attempt collides. An ObjectIDGenerator is trusted to return equal IDs only
// for equal content.
func (r *Registry) Register(obj attachment.Object, existing string) (string, error) {
	if obj == nil {
		return "", fmt.Errorf("%w: nil binary object", ErrInvalidArgument)
	}

	if g, ok := r.generator.(ObjectIDGenerator); ok {
		id, err := g.GenerateObjectID(obj, existing)
		if err != nil {
			return "", fmt.Errorf("failed to allocate content ID: %w", err)
		}
		return r.store(id, obj)
	}

	for attempt := 0; ; attempt++ {
		id, err := r.generator.GenerateContentID(existing)
		if err != nil {
			return "", fmt.Errorf("failed to allocate content ID: %w", err)
		}
		if _, taken := r.parts[id]; !taken || id == existing {
			return r.store(id, obj)
		}
		if attempt+1 == maxGenerateAttempts {
			return "", fmt.Errorf("%w: generated content ID %q is already registered", ErrInvalidArgument, id)
		}
	}
}

func (r *Registry) store(id string, obj attachment.Object) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: generator returned an empty content ID", ErrInvalidArgument)
	}

	if _, dup := r.parts[id]; !dup {
		r.ids = append(r.ids, id)
	}
	r.parts[id] = obj
	return id, nil
}

// ContentIDs returns a copy of the registered Content-IDs in registration order
func (r *Registry) ContentIDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Len returns the number of registered parts
func (r *Registry) Len() int {
	return len(r.ids)
}

// Object returns the binary object registered under contentID
func (r *Registry) Object(contentID string) (attachment.Object, bool) {
	obj, ok := r.parts[contentID]
	return obj, ok
}

// IsLoaded reports whether the part is in memory. Unknown IDs report false.
func (r *Registry) IsLoaded(contentID string) bool {
	obj, ok := r.parts[contentID]
	if !ok {
		return false
	}
	return attachment.Loaded(obj)
}

// Get returns the bytes of a registered part. Asking for an unregistered
// Content-ID is a caller bug and matches both ErrInvalidArgument and
// attachment.ErrNotFound.
func (r *Registry) Get(contentID string) ([]byte, error) {
	obj, ok := r.parts[contentID]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q is not registered", ErrInvalidArgument, attachment.ErrNotFound, contentID)
	}
	data, err := attachment.Load(obj)
	if err != nil {
		return nil, attachment.WrapLoadError(contentID, err)
	}
	return data, nil
}
