package xmlstream

import (
	"fmt"
	"io"

	"github.com/beevik/etree"
	"github.com/sirosfoundation/go-xop/pkg/attachment"
)

// BinaryDetector decides whether the text of elem is base64 binary content.
// ns resolves prefixes in scope at elem.
type BinaryDetector func(elem *etree.Element, ns NamespaceContext) bool

// XMIMEDetector reports elements that carry an xmime:contentType attribute
// and a single text child.
func XMIMEDetector(elem *etree.Element, ns NamespaceContext) bool {
	if elem == nil || len(elem.Child) != 1 {
		return false
	}
	for _, a := range elem.Attr {
		if a.Key != "contentType" || a.Space == "" {
			continue
		}
		if uri, ok := ns.LookupURI(a.Space); ok && uri == XMIMENamespace {
			return true
		}
	}
	return false
}

// TreeOption configures a TreeReader
type TreeOption func(*TreeReader)

// WithBinaryDetector replaces the default xmime detector. A nil detector
// disables binary detection.
func WithBinaryDetector(detect BinaryDetector) TreeOption {
	return func(r *TreeReader) {
		r.detect = detect
	}
}

type treeFrame struct {
	elem   *etree.Element // nil at document level
	tokens []etree.Token
	next   int
}

// TreeReader walks an etree document as an event stream
type TreeReader struct {
	stack      []treeFrame
	ns         nsStack
	pendingPop bool
	detect     BinaryDetector

	kind   Kind
	elem   *etree.Element
	text   string
	target string
	binary *Binary
}

// NewTreeReader creates a reader over doc
func NewTreeReader(doc *etree.Document, opts ...TreeOption) *TreeReader {
	return newTreeReader(doc.Child, opts)
}

// NewElementReader creates a reader over a single element subtree
func NewElementReader(elem *etree.Element, opts ...TreeOption) *TreeReader {
	return newTreeReader([]etree.Token{elem}, opts)
}

func newTreeReader(tokens []etree.Token, opts []TreeOption) *TreeReader {
	r := &TreeReader{
		stack:  []treeFrame{{tokens: tokens}},
		detect: XMIMEDetector,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ParseTree parses an XML document from src and returns a reader over it
func ParseTree(src io.Reader, opts ...TreeOption) (*TreeReader, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.PreserveCData = true
	if _, err := doc.ReadFrom(src); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	return NewTreeReader(doc, opts...), nil
}

// Next advances to the next event
func (r *TreeReader) Next() (Kind, error) {
	if r.pendingPop {
		r.ns.pop()
		r.pendingPop = false
	}
	r.binary = nil

	for {
		if len(r.stack) == 0 {
			r.kind = KindNone
			r.elem = nil
			return KindNone, io.EOF
		}
		top := &r.stack[len(r.stack)-1]
		if top.next >= len(top.tokens) {
			elem := top.elem
			r.stack = r.stack[:len(r.stack)-1]
			if elem == nil {
				continue
			}
			r.kind = KindEndElement
			r.elem = elem
			r.pendingPop = true
			return r.kind, nil
		}

		tok := top.tokens[top.next]
		top.next++
		parent := top.elem

		switch t := tok.(type) {
		case *etree.Element:
			r.ns.push(elementDecls(t))
			r.stack = append(r.stack, treeFrame{elem: t, tokens: t.Child})
			r.kind = KindStartElement
			r.elem = t
			return r.kind, nil

		case *etree.CharData:
			if parent == nil && t.IsWhitespace() {
				continue
			}
			r.text = t.Data
			switch {
			case t.IsCData():
				r.kind = KindCDATA
			case t.IsWhitespace():
				r.kind = KindSpace
			default:
				r.kind = KindCharData
				if r.detect != nil && parent != nil && r.detect(parent, &r.ns) {
					r.binary = inlineBinary(t.Data)
				}
			}
			return r.kind, nil

		case *etree.Comment:
			r.text = t.Data
			r.kind = KindComment
			return r.kind, nil

		case *etree.ProcInst:
			r.target = t.Target
			r.text = t.Inst
			r.kind = KindProcInst
			return r.kind, nil
		}
	}
}

func inlineBinary(text string) *Binary {
	return &Binary{
		Optimized: true,
		Object: attachment.Lazy{Handle: attachment.NewDeferred(func() ([]byte, error) {
			return DecodeBase64(text)
		})},
	}
}

func elementDecls(elem *etree.Element) []NamespaceDecl {
	var decls []NamespaceDecl
	for _, a := range elem.Attr {
		switch {
		case a.Space == "xmlns":
			decls = append(decls, NamespaceDecl{Prefix: a.Key, URI: a.Value})
		case a.Space == "" && a.Key == "xmlns":
			decls = append(decls, NamespaceDecl{URI: a.Value})
		}
	}
	return decls
}

// Kind returns the kind of the current event
func (r *TreeReader) Kind() Kind {
	return r.kind
}

// Name returns the current element name or processing instruction target
func (r *TreeReader) Name() (Name, error) {
	switch r.kind {
	case KindStartElement, KindEndElement:
		uri, _ := r.ns.LookupURI(r.elem.Space)
		return Name{Space: uri, Local: r.elem.Tag, Prefix: r.elem.Space}, nil
	case KindProcInst:
		return Name{Local: r.target}, nil
	default:
		return Name{}, ErrInvalidState
	}
}

// Attrs returns the attributes of the current start element
func (r *TreeReader) Attrs() ([]Attr, error) {
	if r.kind != KindStartElement {
		return nil, ErrInvalidState
	}
	attrs := make([]Attr, 0, len(r.elem.Attr))
	for _, a := range r.elem.Attr {
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			continue
		}
		name := Name{Local: a.Key, Prefix: a.Space}
		if a.Space != "" {
			name.Space, _ = r.ns.LookupURI(a.Space)
		}
		attrs = append(attrs, Attr{Name: name, Value: a.Value})
	}
	return attrs, nil
}

// Namespaces returns the declarations of the current start element
func (r *TreeReader) Namespaces() ([]NamespaceDecl, error) {
	if r.kind != KindStartElement {
		return nil, ErrInvalidState
	}
	return elementDecls(r.elem), nil
}

// Text returns the text of the current event
func (r *TreeReader) Text() (string, error) {
	switch r.kind {
	case KindCharData, KindCDATA, KindSpace, KindComment, KindProcInst:
		return r.text, nil
	default:
		return "", ErrInvalidState
	}
}

// ElementText reads the text of the current start element
func (r *TreeReader) ElementText() (string, error) {
	return ReadElementText(r)
}

// NamespaceContext returns the bindings in scope
func (r *TreeReader) NamespaceContext() NamespaceContext {
	return &r.ns
}

// Binary reports detected binary content on the current event
func (r *TreeReader) Binary() (Binary, bool) {
	if r.kind != KindCharData || r.binary == nil {
		return Binary{}, false
	}
	return *r.binary, true
}

// Close releases the tree
func (r *TreeReader) Close() error {
	r.stack = nil
	return nil
}
