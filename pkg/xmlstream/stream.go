// Package xmlstream provides pull and push XML event streams
package xmlstream

import (
	"errors"

	"github.com/sirosfoundation/go-xop/pkg/attachment"
)

// Common namespaces
const (
	XMLNamespace   = "http://www.w3.org/XML/1998/namespace"
	XMLNSNamespace = "http://www.w3.org/2000/xmlns/"
	// XMIMENamespace is the namespace of the xmime:contentType attribute
	XMIMENamespace = "http://www.w3.org/2005/05/xmlmime"
)

var (
	// ErrInvalidState is returned by accessors that do not apply to the current event
	ErrInvalidState = errors.New("operation not valid for the current event")
	// ErrUnexpectedEvent is returned when an event cannot appear at the current position
	ErrUnexpectedEvent = errors.New("unexpected event")
)

// Kind identifies an XML event
type Kind uint8

// Event kinds
const (
	KindNone Kind = iota
	KindStartElement
	KindEndElement
	KindCharData
	KindCDATA
	KindSpace
	KindComment
	KindProcInst
	KindEntityRef
)

func (k Kind) String() string {
	switch k {
	case KindStartElement:
		return "StartElement"
	case KindEndElement:
		return "EndElement"
	case KindCharData:
		return "CharData"
	case KindCDATA:
		return "CDATA"
	case KindSpace:
		return "Space"
	case KindComment:
		return "Comment"
	case KindProcInst:
		return "ProcInst"
	case KindEntityRef:
		return "EntityRef"
	default:
		return "None"
	}
}

// IsText reports whether k carries element text
func (k Kind) IsText() bool {
	switch k {
	case KindCharData, KindCDATA, KindSpace, KindEntityRef:
		return true
	}
	return false
}

// Name is a namespace-qualified name. Prefix is the lexical prefix used in the document.
type Name struct {
	Space  string
	Local  string
	Prefix string
}

// QualifiedName returns prefix:local, or local when there is no prefix
func (n Name) QualifiedName() string {
	if n.Prefix == "" {
		return n.Local
	}
	return n.Prefix + ":" + n.Local
}

// Attr is an attribute of a start element
type Attr struct {
	Name  Name
	Value string
}

// NamespaceDecl is a namespace declaration on a start element. An empty
// Prefix declares the default namespace.
type NamespaceDecl struct {
	Prefix string
	URI    string
}

// NamespaceContext resolves prefixes and namespace URIs in scope
type NamespaceContext interface {
	LookupURI(prefix string) (string, bool)
	LookupPrefix(uri string) (string, bool)
	// Prefixes returns every prefix bound to uri, innermost first.
	Prefixes(uri string) []string
}

// Reader is a cursor over XML events
type Reader interface {
	// Next advances to the next event. It returns io.EOF after the last event.
	Next() (Kind, error)
	// Kind returns the kind of the current event.
	Kind() Kind
	// Name returns the element name of a start or end element, or the target
	// of a processing instruction.
	Name() (Name, error)
	// Attrs returns the attributes of a start element, excluding namespace
	// declarations.
	Attrs() ([]Attr, error)
	// Namespaces returns the namespace declarations of a start element.
	Namespaces() ([]NamespaceDecl, error)
	// Text returns the text of a text, comment or processing instruction event.
	Text() (string, error)
	// ElementText reads the text content of the current start element and
	// leaves the reader on its end element.
	ElementText() (string, error)
	// NamespaceContext returns the namespace bindings in scope.
	NamespaceContext() NamespaceContext
	Close() error
}

// Binary describes binary content carried by a character event
type Binary struct {
	// ContentID is the Content-ID already associated with the content, if any.
	ContentID string
	// Optimized reports whether the producer marked the content as eligible
	// for out-of-band transport.
	Optimized bool
	Object    attachment.Object
}

// Deferred reports whether the content is loaded on demand
func (b Binary) Deferred() bool {
	return attachment.IsDeferred(b.Object)
}

// BinaryReader is a Reader that can flag character events as binary content.
// Text on a binary event returns its base64 form.
type BinaryReader interface {
	Reader
	// Binary reports the binary content of the current event. ok is false
	// when the current event is not binary character data.
	Binary() (b Binary, ok bool)
}

// Writer is a push-based XML event sink
type Writer interface {
	WriteStartDocument() error
	WriteEndDocument() error
	// WriteStartElement opens an element. The prefix is written as given;
	// declare it with WriteNamespace if it is not in scope.
	WriteStartElement(name Name) error
	WriteNamespace(prefix, uri string) error
	WriteAttribute(name Name, value string) error
	WriteEndElement() error
	WriteCharacters(text string) error
	WriteCData(text string) error
	WriteComment(text string) error
	WriteProcInst(target, data string) error
	NamespaceContext() NamespaceContext
	Flush() error
	Close() error
}

// BinaryWriter is a Writer that accepts binary content
type BinaryWriter interface {
	Writer
	// WriteBinary writes obj as element content. contentID may be empty;
	// optimize is the producer's hint that the content may be sent out of band.
	WriteBinary(obj attachment.Object, contentID string, optimize bool) error
}
