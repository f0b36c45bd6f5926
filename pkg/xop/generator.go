package xop

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/sirosfoundation/go-xop/pkg/attachment"
)

// DefaultDomain is the right-hand side of generated Content-IDs
const DefaultDomain = "xop.siros.org"

// ContentIDGenerator picks the Content-ID for a part. existing is the
// Content-ID already carried by the content, or "".
type ContentIDGenerator interface {
	GenerateContentID(existing string) (string, error)
}

// ObjectIDGenerator is implemented by generators that derive the Content-ID
// from the content itself. Registries prefer it over GenerateContentID.
type ObjectIDGenerator interface {
	ContentIDGenerator
	GenerateObjectID(obj attachment.Object, existing string) (string, error)
}

// GeneratorFunc adapts a function to ContentIDGenerator
type GeneratorFunc func(existing string) (string, error)

// GenerateContentID calls f
func (f GeneratorFunc) GenerateContentID(existing string) (string, error) {
	return f(existing)
}

// UUIDGenerator keeps existing Content-IDs and mints uuid@domain otherwise
type UUIDGenerator struct {
	// Domain defaults to DefaultDomain.
	Domain string
	// Rand is the random source; nil uses crypto/rand.
	Rand io.Reader
}

// GenerateContentID returns existing or a fresh random Content-ID
func (g UUIDGenerator) GenerateContentID(existing string) (string, error) {
	if existing != "" {
		return existing, nil
	}
	var id uuid.UUID
	var err error
	if g.Rand != nil {
		id, err = uuid.NewRandomFromReader(g.Rand)
	} else {
		id, err = uuid.NewRandom()
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate content ID: %w", err)
	}
	return fmt.Sprintf("%s@%s", id.String(), domainOrDefault(g.Domain)), nil
}

// CounterGenerator keeps existing Content-IDs and mints prefix-N@domain
// otherwise. The zero value is ready to use.
type CounterGenerator struct {
	Prefix string
	Domain string
	n      uint64
}

// GenerateContentID returns existing or the next numbered Content-ID
func (g *CounterGenerator) GenerateContentID(existing string) (string, error) {
	if existing != "" {
		return existing, nil
	}
	g.n++
	prefix := g.Prefix
	if prefix == "" {
		prefix = "part"
	}
	return fmt.Sprintf("%s-%d@%s", prefix, g.n, domainOrDefault(g.Domain)), nil
}

type freshGenerator struct {
	g ContentIDGenerator
}

// AlwaysFresh returns a generator that ignores existing Content-IDs
func AlwaysFresh(g ContentIDGenerator) ContentIDGenerator {
	return freshGenerator{g: g}
}

func (f freshGenerator) GenerateContentID(string) (string, error) {
	return f.g.GenerateContentID("")
}

// ContentAddressedGenerator derives Content-IDs from the content: a CIDv1
// over the raw sha2-256 multihash, followed by @domain. Existing Content-IDs
// are kept. Deferred content is loaded to hash it.
type ContentAddressedGenerator struct {
	Domain string
}

var errNeedsContent = errors.New("content-addressed IDs require the part content")

// GenerateContentID returns existing; fresh IDs need GenerateObjectID
func (g ContentAddressedGenerator) GenerateContentID(existing string) (string, error) {
	if existing != "" {
		return existing, nil
	}
	return "", errNeedsContent
}

// GenerateObjectID hashes obj unless existing is set
func (g ContentAddressedGenerator) GenerateObjectID(obj attachment.Object, existing string) (string, error) {
	if existing != "" {
		return existing, nil
	}
	data, err := attachment.Load(obj)
	if err != nil {
		return "", err
	}
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("failed to hash content: %w", err)
	}
	return fmt.Sprintf("%s@%s", cid.NewCidV1(cid.Raw, sum).String(), domainOrDefault(g.Domain)), nil
}

func domainOrDefault(domain string) string {
	if domain == "" {
		return DefaultDomain
	}
	return domain
}
