// Package partstore keeps the binary parts of XOP packages outside the
// package itself.
//
// # Interface Design
//
// A [Store] holds [PartData] records keyed by Content-ID. Encoders save their
// registered parts with [Save]; decoders resolve xop:Include references
// through [NewProvider], which adapts a store to attachment.Provider.
//
// # Implementations
//
//   - [MemoryStore]: in-process map, used by tests and one-shot tools
//   - mongodb sub-package: MongoDB GridFS
//
// # Concurrency
//
// All store implementations must be safe for concurrent use from multiple
// goroutines.
package partstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/sirosfoundation/go-xop/pkg/attachment"
)

// ErrChecksumMismatch is returned when stored bytes do not match their
// recorded checksum
var ErrChecksumMismatch = errors.New("part checksum mismatch")

// PartData is a stored binary part
type PartData struct {
	ContentID string
	MimeType  string
	Data      []byte
	// Checksum is the hex SHA-256 of Data. Put fills it when empty.
	Checksum string
}

// Store holds binary parts keyed by Content-ID
type Store interface {
	// Put stores a part, replacing any part with the same Content-ID
	Put(ctx context.Context, part *PartData) error

	// Get retrieves a part. Missing parts wrap attachment.ErrNotFound.
	Get(ctx context.Context, contentID string) (*PartData, error)

	// Exists reports whether a part is stored
	Exists(ctx context.Context, contentID string) (bool, error)

	// Delete removes a part. Missing parts wrap attachment.ErrNotFound.
	Delete(ctx context.Context, contentID string) error

	// Close releases storage resources
	Close(ctx context.Context) error
}

// Checksum returns the hex SHA-256 of data
func Checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Verify checks part.Data against part.Checksum. An empty checksum passes.
func Verify(part *PartData) error {
	if part.Checksum == "" {
		return nil
	}
	if got := Checksum(part.Data); got != part.Checksum {
		return fmt.Errorf("%w: %s: expected %s, got %s", ErrChecksumMismatch, part.ContentID, part.Checksum, got)
	}
	return nil
}

// PartSource lists parts in the order they were referenced.
// xop.EncodingReader and xop.EncodingWriter implement it.
type PartSource interface {
	ContentIDs() []string
	Get(contentID string) ([]byte, error)
}

// Save stores every part of src and returns their Content-IDs in src order
func Save(ctx context.Context, store Store, src PartSource, mimeType string) ([]string, error) {
	ids := src.ContentIDs()
	for _, id := range ids {
		data, err := src.Get(id)
		if err != nil {
			return nil, fmt.Errorf("reading part %q: %w", id, err)
		}
		if err := store.Put(ctx, &PartData{ContentID: id, MimeType: mimeType, Data: data}); err != nil {
			return nil, fmt.Errorf("storing part %q: %w", id, err)
		}
	}
	return ids, nil
}

func notFound(contentID string) error {
	return fmt.Errorf("%w: %s", attachment.ErrNotFound, contentID)
}
