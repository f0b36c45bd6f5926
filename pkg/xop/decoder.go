package xop

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/sirosfoundation/go-xop/pkg/attachment"
	"github.com/sirosfoundation/go-xop/pkg/xmlstream"
)

type decoderState uint8

const (
	decoderNormal decoderState = iota
	// decoderBinaryPending reports a synthesized character event for the
	// include just consumed. The source already sits on the enclosing end
	// element.
	decoderBinaryPending
)

// Decoder reads an XOP infoset and reports every xop:Include as a binary
// character event. Part bytes are fetched from the provider on demand.
//
// Decoder implements xmlstream.BinaryReader.
type Decoder struct {
	src    xmlstream.Reader
	parts  attachment.Provider
	logger *slog.Logger

	state     decoderState
	prev      xmlstream.Kind
	contentID string
	text      string
	textSet   bool
}

// NewDecoder creates a decoder over src resolving parts from parts. A nil
// provider behaves like attachment.Empty. src may already be positioned
// inside the document; an include directly below its current start element
// is still recognized.
func NewDecoder(src xmlstream.Reader, parts attachment.Provider, opts ...Option) *Decoder {
	o := buildOptions(opts)
	if parts == nil {
		parts = attachment.Empty
	}
	return &Decoder{
		src:    src,
		parts:  parts,
		logger: o.logger,
		prev:   src.Kind(),
	}
}

// Next advances to the next event
func (d *Decoder) Next() (xmlstream.Kind, error) {
	if d.state == decoderBinaryPending {
		d.clearPending()
		d.prev = d.src.Kind()
		return d.prev, nil
	}

	kind, err := d.src.Next()
	if err != nil {
		return kind, err
	}
	if kind == xmlstream.KindStartElement && d.prev == xmlstream.KindStartElement {
		name, err := d.src.Name()
		if err != nil {
			return kind, err
		}
		if IsInclude(name) {
			id, err := d.readInclude()
			if err != nil {
				return xmlstream.KindNone, err
			}
			d.state = decoderBinaryPending
			d.contentID = id
			d.prev = xmlstream.KindCharData
			return xmlstream.KindCharData, nil
		}
	}
	d.prev = kind
	return kind, nil
}

// readInclude consumes the xop:Include the source is positioned on and
// leaves the source on the end of the enclosing element.
func (d *Decoder) readInclude() (string, error) {
	attrs, err := d.src.Attrs()
	if err != nil {
		return "", err
	}
	if len(attrs) != 1 {
		return "", formatError("", "expected exactly one attribute, found %d", len(attrs))
	}
	if attrs[0].Name.Space != "" || attrs[0].Name.Local != HrefAttr {
		return "", formatError("", "unexpected attribute %s", attrs[0].Name.QualifiedName())
	}
	id, err := ContentIDFromHref(attrs[0].Value)
	if err != nil {
		return "", err
	}

	kind, err := d.src.Next()
	if err != nil {
		return "", fmt.Errorf("failed to read xop:Include for %q: %w", id, err)
	}
	if kind != xmlstream.KindEndElement {
		return "", formatError(id, "element must be empty, found %s", kind)
	}
	kind, err = d.src.Next()
	if err != nil {
		return "", fmt.Errorf("failed to read xop:Include for %q: %w", id, err)
	}
	if kind != xmlstream.KindEndElement {
		return "", formatError(id, "element must be the only child of its parent, found %s after it", kind)
	}

	d.logger.Debug("resolved xop:Include", slog.String("content_id", id))
	return id, nil
}

func (d *Decoder) clearPending() {
	d.state = decoderNormal
	d.contentID = ""
	d.text = ""
	d.textSet = false
}

// Kind returns the kind of the current event
func (d *Decoder) Kind() xmlstream.Kind {
	if d.state == decoderBinaryPending {
		return xmlstream.KindCharData
	}
	return d.src.Kind()
}

// Name returns the name of the current element
func (d *Decoder) Name() (xmlstream.Name, error) {
	if d.state == decoderBinaryPending {
		return xmlstream.Name{}, xmlstream.ErrInvalidState
	}
	return d.src.Name()
}

// Attrs returns the attributes of the current start element
func (d *Decoder) Attrs() ([]xmlstream.Attr, error) {
	if d.state == decoderBinaryPending {
		return nil, xmlstream.ErrInvalidState
	}
	return d.src.Attrs()
}

// Namespaces returns the namespace declarations of the current start element
func (d *Decoder) Namespaces() ([]xmlstream.NamespaceDecl, error) {
	if d.state == decoderBinaryPending {
		return nil, xmlstream.ErrInvalidState
	}
	return d.src.Namespaces()
}

// Text returns the text of the current event. For a decoded include it is
// the base64 form of the part, fetched on first access.
func (d *Decoder) Text() (string, error) {
	if d.state != decoderBinaryPending {
		return d.src.Text()
	}
	if !d.textSet {
		text, err := d.partBase64(d.contentID)
		if err != nil {
			return "", err
		}
		d.text = text
		d.textSet = true
	}
	return d.text, nil
}

func (d *Decoder) partBase64(contentID string) (string, error) {
	return xmlstream.EncodeBase64(attachment.Lazy{Handle: attachment.PartHandle(d.parts, contentID)})
}

// ElementText reads the text of the current start element. An xop:Include
// child yields the base64 form of the referenced part.
func (d *Decoder) ElementText() (string, error) {
	if d.state == decoderBinaryPending || d.src.Kind() != xmlstream.KindStartElement {
		return "", fmt.Errorf("%w: element text requires a start element", xmlstream.ErrInvalidState)
	}

	kind, err := d.src.Next()
	if err != nil {
		return "", err
	}
	if kind == xmlstream.KindStartElement {
		name, err := d.src.Name()
		if err != nil {
			return "", err
		}
		if IsInclude(name) {
			id, err := d.readInclude()
			if err != nil {
				return "", err
			}
			d.prev = xmlstream.KindEndElement
			return d.partBase64(id)
		}
	}

	text, err := xmlstream.ElementTextFrom(d.src, kind)
	if errors.Is(err, xmlstream.ErrUnexpectedEvent) {
		return "", formatError("", "%v", err)
	}
	if err != nil {
		return "", err
	}
	d.prev = xmlstream.KindEndElement
	return text, nil
}

// NamespaceContext returns the bindings in scope
func (d *Decoder) NamespaceContext() xmlstream.NamespaceContext {
	return d.src.NamespaceContext()
}

// Binary reports the part behind the current decoded include
func (d *Decoder) Binary() (xmlstream.Binary, bool) {
	if d.state != decoderBinaryPending {
		return xmlstream.Binary{}, false
	}
	return xmlstream.Binary{
		ContentID: d.contentID,
		Optimized: true,
		Object:    attachment.Lazy{Handle: attachment.PartHandle(d.parts, d.contentID)},
	}, true
}

// ContentID returns the Content-ID of the current decoded include, or ""
func (d *Decoder) ContentID() string {
	return d.contentID
}

// Encoded returns the XOP stream and provider the decoder was built from
func (d *Decoder) Encoded() EncodedStream {
	return EncodedStream{Reader: d.src, Parts: d.parts}
}

// Close closes the underlying reader
func (d *Decoder) Close() error {
	return d.src.Close()
}
