package xop

import (
	"fmt"
	"log/slog"

	"github.com/sirosfoundation/go-xop/pkg/xmlstream"
)

type encoderState uint8

const (
	encoderPassThrough encoderState = iota
	encoderMarkerStart
	encoderMarkerEnd
)

// EncodingReader wraps a binary-aware reader and replaces optimized binary
// character events with xop:Include elements. The binary content is kept in
// the reader's registry, which it exposes as an attachment.Provider.
type EncodingReader struct {
	src      xmlstream.BinaryReader
	registry *Registry
	policy   OptimizationPolicy
	logger   *slog.Logger

	state     encoderState
	contentID string
}

// NewEncodingReader wraps src. It fails with ErrConfiguration when src does
// not implement xmlstream.BinaryReader.
func NewEncodingReader(src xmlstream.Reader, opts ...Option) (*EncodingReader, error) {
	br, ok := src.(xmlstream.BinaryReader)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %T does not report binary content", ErrConfiguration, ErrInvalidArgument, src)
	}
	return newEncodingReader(br, buildOptions(opts)), nil
}

func newEncodingReader(src xmlstream.BinaryReader, o options) *EncodingReader {
	return &EncodingReader{
		src:      src,
		registry: NewRegistry(o.generator),
		policy:   o.policy,
		logger:   o.logger,
	}
}

// Next advances to the next event
func (e *EncodingReader) Next() (xmlstream.Kind, error) {
	switch e.state {
	case encoderMarkerStart:
		e.state = encoderMarkerEnd
		return xmlstream.KindEndElement, nil
	case encoderMarkerEnd:
		e.state = encoderPassThrough
		e.contentID = ""
	}

	kind, err := e.src.Next()
	if err != nil || kind != xmlstream.KindCharData {
		return kind, err
	}
	bin, ok := e.src.Binary()
	if !ok {
		return kind, nil
	}

	optimize, err := e.policy.ShouldOptimize(bin.Object, bin.Optimized)
	if err != nil {
		return xmlstream.KindNone, fmt.Errorf("optimization policy failed for %q: %w", bin.ContentID, err)
	}
	if !optimize {
		return kind, nil
	}
	id, err := e.registry.Register(bin.Object, bin.ContentID)
	if err != nil {
		return xmlstream.KindNone, err
	}
	e.logger.Debug("emitting xop:Include",
		slog.String("content_id", id),
		slog.Bool("eligible", bin.Optimized),
		slog.Bool("deferred", bin.Deferred()))
	e.contentID = id
	e.state = encoderMarkerStart
	return xmlstream.KindStartElement, nil
}

func (e *EncodingReader) inMarker() bool {
	return e.state == encoderMarkerStart || e.state == encoderMarkerEnd
}

// Kind returns the kind of the current event
func (e *EncodingReader) Kind() xmlstream.Kind {
	switch e.state {
	case encoderMarkerStart:
		return xmlstream.KindStartElement
	case encoderMarkerEnd:
		return xmlstream.KindEndElement
	}
	return e.src.Kind()
}

// Name returns the name of the current element
func (e *EncodingReader) Name() (xmlstream.Name, error) {
	if e.inMarker() {
		return IncludeName, nil
	}
	return e.src.Name()
}

// Attrs returns the attributes of the current start element
func (e *EncodingReader) Attrs() ([]xmlstream.Attr, error) {
	switch e.state {
	case encoderMarkerStart:
		return []xmlstream.Attr{{
			Name:  xmlstream.Name{Local: HrefAttr},
			Value: HrefForContentID(e.contentID),
		}}, nil
	case encoderMarkerEnd:
		return nil, xmlstream.ErrInvalidState
	}
	return e.src.Attrs()
}

// Namespaces returns the namespace declarations of the current start element
func (e *EncodingReader) Namespaces() ([]xmlstream.NamespaceDecl, error) {
	switch e.state {
	case encoderMarkerStart:
		return []xmlstream.NamespaceDecl{{Prefix: DefaultPrefix, URI: NamespaceURI}}, nil
	case encoderMarkerEnd:
		return nil, xmlstream.ErrInvalidState
	}
	return e.src.Namespaces()
}

// Text returns the text of the current event
func (e *EncodingReader) Text() (string, error) {
	if e.inMarker() {
		return "", xmlstream.ErrInvalidState
	}
	return e.src.Text()
}

// ElementText reads the text of the current start element. On an emitted
// xop:Include it returns "" and moves to the include's end.
func (e *EncodingReader) ElementText() (string, error) {
	switch e.state {
	case encoderMarkerStart:
		e.state = encoderMarkerEnd
		return "", nil
	case encoderMarkerEnd:
		return "", fmt.Errorf("%w: element text requires a start element", xmlstream.ErrInvalidState)
	}
	return e.src.ElementText()
}

// NamespaceContext returns the bindings in scope, including the xop prefix
// while an xop:Include is reported
func (e *EncodingReader) NamespaceContext() xmlstream.NamespaceContext {
	if e.inMarker() {
		return xopNamespaceContext{parent: e.src.NamespaceContext()}
	}
	return e.src.NamespaceContext()
}

// Binary reports binary content the policy left inline
func (e *EncodingReader) Binary() (xmlstream.Binary, bool) {
	if e.inMarker() {
		return xmlstream.Binary{}, false
	}
	return e.src.Binary()
}

// ContentID returns the Content-ID of the xop:Include being reported, or ""
func (e *EncodingReader) ContentID() string {
	return e.contentID
}

// Registry returns the parts registered so far
func (e *EncodingReader) Registry() *Registry {
	return e.registry
}

// ContentIDs returns the registered Content-IDs in the order their
// xop:Include elements were produced
func (e *EncodingReader) ContentIDs() []string {
	return e.registry.ContentIDs()
}

// IsLoaded reports whether a registered part is in memory
func (e *EncodingReader) IsLoaded(contentID string) bool {
	return e.registry.IsLoaded(contentID)
}

// Get returns the bytes of a registered part
func (e *EncodingReader) Get(contentID string) ([]byte, error) {
	return e.registry.Get(contentID)
}

// Close closes the underlying reader
func (e *EncodingReader) Close() error {
	return e.src.Close()
}

// xopNamespaceContext adds the binding declared on an emitted xop:Include
type xopNamespaceContext struct {
	parent xmlstream.NamespaceContext
}

func (c xopNamespaceContext) LookupURI(prefix string) (string, bool) {
	if prefix == DefaultPrefix {
		return NamespaceURI, true
	}
	if c.parent == nil {
		return "", prefix == ""
	}
	return c.parent.LookupURI(prefix)
}

// LookupPrefix reports DefaultPrefix for the XOP namespace, matching the
// prefix on the reported element name.
func (c xopNamespaceContext) LookupPrefix(uri string) (string, bool) {
	if uri == NamespaceURI {
		return DefaultPrefix, true
	}
	for _, p := range c.Prefixes(uri) {
		return p, true
	}
	return "", false
}

func (c xopNamespaceContext) Prefixes(uri string) []string {
	var out []string
	if c.parent != nil {
		for _, p := range c.parent.Prefixes(uri) {
			if p == DefaultPrefix && uri != NamespaceURI {
				// shadowed by the xop:Include declaration
				continue
			}
			out = append(out, p)
		}
	}
	if uri != NamespaceURI {
		return out
	}
	for _, p := range out {
		if p == DefaultPrefix {
			return out
		}
	}
	return append(out, DefaultPrefix)
}
