// Package attachment provides binary objects and part providers for XOP packages
package attachment

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a Content-ID is not known to a provider
	ErrNotFound = errors.New("content ID not found")
	// ErrLoad is returned when the bytes of a part cannot be fetched
	ErrLoad = errors.New("failed to load part")
)

// LoadError reports an I/O failure while fetching the bytes of a part
type LoadError struct {
	ContentID string
	Err       error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to load part %q", e.ContentID)
	}
	return fmt.Sprintf("failed to load part %q: %v", e.ContentID, e.Err)
}

// Unwrap exposes both ErrLoad and the underlying cause to errors.Is.
func (e *LoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrLoad}
	}
	return []error{ErrLoad, e.Err}
}

// WrapLoadError wraps err as a LoadError for contentID. Errors that already
// are load errors, and ErrNotFound, are returned unchanged.
func WrapLoadError(contentID string, err error) error {
	if err == nil {
		return nil
	}
	var le *LoadError
	if errors.As(err, &le) || errors.Is(err, ErrNotFound) {
		return err
	}
	return &LoadError{ContentID: contentID, Err: err}
}

// Handle is a lazily loaded binary value
type Handle interface {
	// Loaded reports whether the bytes are already materialized. It may
	// report false when unsure but never true when a Load would do I/O.
	Loaded() bool
	// Load returns the bytes, fetching them if needed.
	Load() ([]byte, error)
}

// Object is binary content in one of two forms: Eager or Lazy.
type Object interface {
	isObject()
}

// Eager is binary content that is already in memory
type Eager []byte

// Lazy is binary content behind a Handle
type Lazy struct {
	Handle Handle
}

func (Eager) isObject() {}
func (Lazy) isObject()  {}

// Load returns the bytes of obj. A successful load never returns nil.
func Load(obj Object) ([]byte, error) {
	switch o := obj.(type) {
	case Eager:
		if o == nil {
			return []byte{}, nil
		}
		return o, nil
	case Lazy:
		if o.Handle == nil {
			return nil, errors.New("lazy object has no handle")
		}
		data, err := o.Handle.Load()
		if err != nil {
			return nil, err
		}
		if data == nil {
			data = []byte{}
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported binary object %T", obj)
	}
}

// Loaded reports whether the bytes of obj are available without I/O.
func Loaded(obj Object) bool {
	switch o := obj.(type) {
	case Eager:
		return true
	case Lazy:
		return o.Handle != nil && o.Handle.Loaded()
	default:
		return false
	}
}

// IsDeferred reports whether obj is lazy.
func IsDeferred(obj Object) bool {
	_, ok := obj.(Lazy)
	return ok
}
