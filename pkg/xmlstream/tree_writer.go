package xmlstream

import (
	"errors"
	"fmt"
	"io"

	"github.com/beevik/etree"
)

type openElement struct {
	elem  *etree.Element
	name  Name
	attrs []Name
	// closed is set once content follows the start tag.
	closed bool
}

// TreeWriter builds an etree document from written events. Namespaces used
// by element and attribute names but never declared are declared when the
// start tag is completed.
type TreeWriter struct {
	doc  *etree.Document
	open []*openElement
	ns   nsStack
}

// NewTreeWriter creates a writer building a new document
func NewTreeWriter() *TreeWriter {
	return &TreeWriter{doc: etree.NewDocument()}
}

// Document returns the document built so far
func (w *TreeWriter) Document() *etree.Document {
	return w.doc
}

// WriteTo serializes the document
func (w *TreeWriter) WriteTo(out io.Writer) (int64, error) {
	return w.doc.WriteTo(out)
}

// Bytes serializes the document
func (w *TreeWriter) Bytes() ([]byte, error) {
	return w.doc.WriteToBytes()
}

func (w *TreeWriter) current() *openElement {
	if len(w.open) == 0 {
		return nil
	}
	return w.open[len(w.open)-1]
}

// container closes any pending start tag and returns the element new
// content goes into.
func (w *TreeWriter) container() *etree.Element {
	cur := w.current()
	if cur == nil {
		return &w.doc.Element
	}
	w.completeStartTag(cur)
	return cur.elem
}

func (w *TreeWriter) completeStartTag(o *openElement) {
	if o.closed {
		return
	}
	o.closed = true
	w.ensureDeclared(o.elem, o.name.Prefix, o.name.Space)
	for _, a := range o.attrs {
		if a.Prefix != "" {
			w.ensureDeclared(o.elem, a.Prefix, a.Space)
		}
	}
}

func (w *TreeWriter) ensureDeclared(elem *etree.Element, prefix, uri string) {
	if uri == "" || prefix == "xml" {
		return
	}
	if got, ok := w.ns.LookupURI(prefix); ok && got == uri {
		return
	}
	elem.CreateAttr(nsAttrKey(prefix), uri)
	w.ns.declare(prefix, uri)
}

func nsAttrKey(prefix string) string {
	if prefix == "" {
		return "xmlns"
	}
	return "xmlns:" + prefix
}

// WriteStartDocument writes the XML declaration
func (w *TreeWriter) WriteStartDocument() error {
	if len(w.doc.Child) > 0 {
		return fmt.Errorf("%w: document already started", ErrInvalidState)
	}
	w.doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	return nil
}

// WriteEndDocument checks that every element was closed
func (w *TreeWriter) WriteEndDocument() error {
	if len(w.open) > 0 {
		return fmt.Errorf("%w: %d unclosed elements", ErrInvalidState, len(w.open))
	}
	return nil
}

// WriteStartElement opens a child element
func (w *TreeWriter) WriteStartElement(name Name) error {
	if name.Local == "" {
		return errors.New("element name is required")
	}
	parent := w.container()
	if parent == &w.doc.Element && w.doc.Root() != nil {
		return fmt.Errorf("%w: document already has a root element", ErrInvalidState)
	}
	elem := etree.NewElement(name.Local)
	elem.Space = name.Prefix
	parent.AddChild(elem)
	w.open = append(w.open, &openElement{elem: elem, name: name})
	w.ns.push(nil)
	return nil
}

// WriteNamespace declares a prefix on the current start tag
func (w *TreeWriter) WriteNamespace(prefix, uri string) error {
	cur := w.current()
	if cur == nil || cur.closed {
		return fmt.Errorf("%w: namespace declaration outside a start tag", ErrInvalidState)
	}
	cur.elem.CreateAttr(nsAttrKey(prefix), uri)
	w.ns.declare(prefix, uri)
	return nil
}

// WriteAttribute adds an attribute to the current start tag
func (w *TreeWriter) WriteAttribute(name Name, value string) error {
	cur := w.current()
	if cur == nil || cur.closed {
		return fmt.Errorf("%w: attribute outside a start tag", ErrInvalidState)
	}
	cur.elem.CreateAttr(name.QualifiedName(), value)
	cur.attrs = append(cur.attrs, name)
	return nil
}

// WriteEndElement closes the current element
func (w *TreeWriter) WriteEndElement() error {
	cur := w.current()
	if cur == nil {
		return fmt.Errorf("%w: no open element", ErrInvalidState)
	}
	w.completeStartTag(cur)
	w.open = w.open[:len(w.open)-1]
	w.ns.pop()
	return nil
}

// WriteCharacters appends text
func (w *TreeWriter) WriteCharacters(text string) error {
	w.container().CreateText(text)
	return nil
}

// WriteCData appends a CDATA section
func (w *TreeWriter) WriteCData(text string) error {
	w.container().CreateCData(text)
	return nil
}

// WriteComment appends a comment
func (w *TreeWriter) WriteComment(text string) error {
	w.container().CreateComment(text)
	return nil
}

// WriteProcInst appends a processing instruction
func (w *TreeWriter) WriteProcInst(target, data string) error {
	w.container().CreateProcInst(target, data)
	return nil
}

// NamespaceContext returns the bindings in scope at the current element
func (w *TreeWriter) NamespaceContext() NamespaceContext {
	return &w.ns
}

// Flush is a no-op; the document is serialized by WriteTo
func (w *TreeWriter) Flush() error {
	return nil
}

// Close fails if elements are still open
func (w *TreeWriter) Close() error {
	return w.WriteEndDocument()
}
