package mime

import (
	"fmt"
	"strings"

	"github.com/sirosfoundation/go-xop/pkg/attachment"
)

// PartSet resolves Content-IDs to the parts of a parsed package.
// Gzip-encoded parts are decompressed on first access and cached.
//
// PartSet implements attachment.Provider.
type PartSet struct {
	parts        map[string]*Part
	compressor   *Compressor
	decompressed map[string][]byte
}

// Provider returns a provider over the parts of m. Gzip parts inflate
// without a size limit; see ProviderWithCompressor.
func (m *Message) Provider() *PartSet {
	return m.ProviderWithCompressor(nil)
}

// ProviderWithCompressor returns a provider that decompresses gzip parts
// with c, so c.MaxSize bounds how far each part may inflate. A nil c uses
// NewCompressor.
func (m *Message) ProviderWithCompressor(c *Compressor) *PartSet {
	if c == nil {
		c = NewCompressor()
	}
	s := &PartSet{
		parts:        make(map[string]*Part, len(m.Parts)),
		compressor:   c,
		decompressed: make(map[string][]byte),
	}
	for i := range m.Parts {
		s.parts[m.Parts[i].ContentID] = &m.Parts[i]
	}
	return s
}

func isGzip(p *Part) bool {
	enc := strings.ToLower(strings.TrimSpace(p.ContentEncoding))
	return enc == ContentEncodingGzip || enc == "x-gzip"
}

// IsLoaded reports whether the part bytes are available without decompression
func (s *PartSet) IsLoaded(contentID string) bool {
	p, ok := s.parts[contentID]
	if !ok {
		return false
	}
	if !isGzip(p) {
		return true
	}
	_, ok = s.decompressed[contentID]
	return ok
}

// Get returns the decoded bytes of a part
func (s *PartSet) Get(contentID string) ([]byte, error) {
	p, ok := s.parts[contentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", attachment.ErrNotFound, contentID)
	}
	if !isGzip(p) {
		if p.Data == nil {
			return []byte{}, nil
		}
		return p.Data, nil
	}
	if data, ok := s.decompressed[contentID]; ok {
		return data, nil
	}
	data, err := s.compressor.Decompress(p.Data)
	if err != nil {
		return nil, &attachment.LoadError{ContentID: contentID, Err: err}
	}
	if data == nil {
		data = []byte{}
	}
	s.decompressed[contentID] = data
	return data, nil
}
