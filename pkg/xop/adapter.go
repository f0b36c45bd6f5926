package xop

import (
	"github.com/sirosfoundation/go-xop/pkg/attachment"
	"github.com/sirosfoundation/go-xop/pkg/xmlstream"
)

// EncodedStream is an XOP infoset together with the parts it references
type EncodedStream struct {
	Reader xmlstream.Reader
	Parts  attachment.Provider
}

// Adapt returns r as an XOP infoset:
//   - an EncodingReader is returned as is, providing its own parts
//   - a Decoder is unwrapped to the stream and provider it decodes
//   - any other BinaryReader is wrapped in an EncodingReader that optimizes
//     all binary content
//   - plain readers are returned unchanged with attachment.Empty
//
// opts apply to a newly created EncodingReader and may override the policy.
func Adapt(r xmlstream.Reader, opts ...Option) EncodedStream {
	switch s := r.(type) {
	case *EncodingReader:
		return EncodedStream{Reader: s, Parts: s}
	case *Decoder:
		return s.Encoded()
	case xmlstream.BinaryReader:
		o := buildOptions(append([]Option{WithPolicy(PolicyAll)}, opts...))
		enc := newEncodingReader(s, o)
		return EncodedStream{Reader: enc, Parts: enc}
	default:
		return EncodedStream{Reader: r, Parts: attachment.Empty}
	}
}
