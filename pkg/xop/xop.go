package xop

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirosfoundation/go-xop/pkg/xmlstream"
)

const (
	// NamespaceURI is the XOP namespace
	NamespaceURI = "http://www.w3.org/2004/08/xop/include"
	// DefaultPrefix is the prefix used when the XOP namespace is not bound
	DefaultPrefix = "xop"
	// IncludeElement is the local name of the inclusion element
	IncludeElement = "Include"
	// HrefAttr is the attribute referencing the part
	HrefAttr = "href"
	// ContentIDScheme prefixes Content-ID URLs
	ContentIDScheme = "cid:"
)

// IncludeName is the name of the xop:Include element
var IncludeName = xmlstream.Name{Space: NamespaceURI, Local: IncludeElement, Prefix: DefaultPrefix}

var (
	// ErrFormat is returned for malformed XOP infosets
	ErrFormat = errors.New("malformed XOP infoset")
	// ErrInvalidArgument is returned for programming errors by the caller
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConfiguration is returned when a stream cannot be built from its inputs
	ErrConfiguration = errors.New("invalid configuration")
)

// FormatError describes an xop:Include that violates the XOP rules
type FormatError struct {
	ContentID string
	Reason    string
}

func (e *FormatError) Error() string {
	if e.ContentID == "" {
		return fmt.Sprintf("malformed xop:Include: %s", e.Reason)
	}
	return fmt.Sprintf("malformed xop:Include for %q: %s", e.ContentID, e.Reason)
}

// Unwrap returns ErrFormat
func (e *FormatError) Unwrap() error {
	return ErrFormat
}

func formatError(contentID, format string, args ...any) error {
	return &FormatError{ContentID: contentID, Reason: fmt.Sprintf(format, args...)}
}

// HrefForContentID returns the cid: URL for a Content-ID. Only '%' is
// escaped; RFC 2392 is vague about the rest and wider escaping breaks
// interoperability.
func HrefForContentID(contentID string) string {
	return ContentIDScheme + strings.ReplaceAll(contentID, "%", "%25")
}

// ContentIDFromHref extracts the Content-ID from a cid: URL
func ContentIDFromHref(href string) (string, error) {
	if !strings.HasPrefix(href, ContentIDScheme) {
		return "", formatError("", "href %q is not a cid: URL", href)
	}
	id, err := url.PathUnescape(href[len(ContentIDScheme):])
	if err != nil {
		return "", formatError("", "invalid escape in href %q: %v", href, err)
	}
	if id == "" {
		return "", formatError("", "href %q has an empty Content-ID", href)
	}
	return id, nil
}

// IsInclude reports whether name is xop:Include
func IsInclude(name xmlstream.Name) bool {
	return name.Local == IncludeElement && name.Space == NamespaceURI
}
