// Package mime implements MIME multipart/related packaging for XOP
package mime

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
)

const (
	// ContentTypeMultipartRelated is the MIME type for multipart/related
	ContentTypeMultipartRelated = "multipart/related"
	// ContentTypeXOP is the MIME type of the root part of an XOP package
	ContentTypeXOP = "application/xop+xml"
	// ContentTypeTextXML is the MIME type for text XML
	ContentTypeTextXML = "text/xml"
	// ContentTypeSOAPXML is the MIME type for SOAP 1.2
	ContentTypeSOAPXML = "application/soap+xml"
	// ContentTypeOctetStream is the default MIME type of binary parts
	ContentTypeOctetStream = "application/octet-stream"

	// ContentEncodingGzip marks a gzip-compressed part
	ContentEncodingGzip = "gzip"

	// Domain is the right-hand side of generated root Content-IDs
	Domain = "xop.siros.org"
)

var (
	// ErrNotMultipart is returned when parsing a body that is not multipart
	ErrNotMultipart = errors.New("not a multipart message")
	// ErrRootNotFound is returned when a package has no root part
	ErrRootNotFound = errors.New("root part not found in message")
	// ErrInvalidTransferEncoding is returned when a base64 part does not decode
	ErrInvalidTransferEncoding = errors.New("invalid content transfer encoding")
)

// Message is an XOP package
type Message struct {
	Boundary    string
	ContentType string
	// StartID is the Content-ID of the root part, without brackets.
	StartID string
	// Type is the media type of the root part, application/xop+xml.
	Type string
	// StartInfo is the media type of the XML carried in the root part.
	StartInfo string
	Root      []byte
	Parts     []Part
}

// Part is a binary MIME part
type Part struct {
	// ContentID is the bare Content-ID, as referenced from cid: URLs.
	ContentID       string
	ContentType     string
	ContentTransfer string
	// ContentEncoding is "gzip" for compressed parts.
	ContentEncoding string
	Data            []byte
	Headers         textproto.MIMEHeader
}

// PartSource lists binary parts in package order. Encoders and registries
// from the xop package implement it.
type PartSource interface {
	ContentIDs() []string
	Get(contentID string) ([]byte, error)
}

// NewMessage creates an XOP package with the given root and parts. rootType
// is the media type of the XML in the root part.
func NewMessage(root []byte, rootType string, parts []Part) *Message {
	if rootType == "" {
		rootType = ContentTypeTextXML
	}
	return &Message{
		Boundary:    generateBoundary(),
		ContentType: ContentTypeMultipartRelated,
		StartID:     fmt.Sprintf("root.%s@%s", uuid.New().String(), Domain),
		Type:        ContentTypeXOP,
		StartInfo:   rootType,
		Root:        root,
		Parts:       parts,
	}
}

// FromRegistry creates an XOP package whose parts are taken from src in
// src.ContentIDs() order
func FromRegistry(root []byte, rootType string, src PartSource) (*Message, error) {
	ids := src.ContentIDs()
	parts := make([]Part, 0, len(ids))
	for _, id := range ids {
		data, err := src.Get(id)
		if err != nil {
			return nil, fmt.Errorf("failed to read part %q: %w", id, err)
		}
		parts = append(parts, CreatePartWithID(data, ContentTypeOctetStream, id))
	}
	return NewMessage(root, rootType, parts), nil
}

// Serialize creates the complete MIME multipart message and returns it with
// its Content-Type header value
func (m *Message) Serialize() ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.SetBoundary(m.Boundary); err != nil {
		return nil, "", fmt.Errorf("failed to set boundary: %w", err)
	}

	rootType := m.StartInfo
	if rootType == "" {
		rootType = ContentTypeTextXML
	}
	rootHeader := textproto.MIMEHeader{}
	rootHeader.Set("Content-Type", mime.FormatMediaType(m.rootMediaType(), map[string]string{
		"charset": "UTF-8",
		"type":    rootType,
	}))
	rootHeader.Set("Content-Transfer-Encoding", "8bit")
	rootHeader.Set("Content-ID", AddContentIDBrackets(m.StartID))

	rootPart, err := writer.CreatePart(rootHeader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create root part: %w", err)
	}
	if _, err := rootPart.Write(m.Root); err != nil {
		return nil, "", fmt.Errorf("failed to write root part: %w", err)
	}

	for _, part := range m.Parts {
		if part.ContentID == "" {
			return nil, "", fmt.Errorf("part without Content-ID")
		}
		header := textproto.MIMEHeader{}

		contentType := part.ContentType
		if contentType == "" {
			contentType = ContentTypeOctetStream
		}
		header.Set("Content-Type", contentType)

		transferEncoding := part.ContentTransfer
		if transferEncoding == "" {
			transferEncoding = "binary"
		}
		header.Set("Content-Transfer-Encoding", transferEncoding)
		header.Set("Content-ID", AddContentIDBrackets(part.ContentID))
		if part.ContentEncoding != "" {
			header.Set("Content-Encoding", part.ContentEncoding)
		}

		for key, values := range part.Headers {
			if header.Get(key) != "" {
				continue
			}
			for _, value := range values {
				header.Add(key, value)
			}
		}

		w, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create part %q: %w", part.ContentID, err)
		}
		if _, err := w.Write(part.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write part %q: %w", part.ContentID, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	params := map[string]string{
		"boundary": m.Boundary,
		"type":     m.rootMediaType(),
		"start":    AddContentIDBrackets(m.StartID),
	}
	if m.StartInfo != "" {
		params["start-info"] = m.StartInfo
	}
	contentType := m.ContentType
	if contentType == "" {
		contentType = ContentTypeMultipartRelated
	}

	return buf.Bytes(), mime.FormatMediaType(contentType, params), nil
}

func (m *Message) rootMediaType() string {
	if m.Type == "" {
		return ContentTypeXOP
	}
	return m.Type
}

// Parse parses an XOP package. The root part is the part named by the start
// parameter, or the first part when there is none.
func Parse(r io.Reader, contentType string) (*Message, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to parse content type: %w", err)
	}

	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil, fmt.Errorf("%w: %s", ErrNotMultipart, mediaType)
	}

	boundary := params["boundary"]
	if boundary == "" {
		return nil, fmt.Errorf("boundary not found in content type")
	}

	startID := NormalizeContentID(params["start"])
	msg := &Message{
		Boundary:    boundary,
		ContentType: mediaType,
		StartID:     startID,
		Type:        params["type"],
		StartInfo:   params["start-info"],
		Parts:       []Part{},
	}

	reader := multipart.NewReader(r, boundary)
	foundRoot := false

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read part: %w", err)
		}

		// NextPart strips Content-Transfer-Encoding: quoted-printable.
		data, err := io.ReadAll(part)
		if err != nil {
			return nil, fmt.Errorf("failed to read part data: %w", err)
		}

		contentID := NormalizeContentID(part.Header.Get("Content-ID"))
		transfer := part.Header.Get("Content-Transfer-Encoding")
		if strings.EqualFold(strings.TrimSpace(transfer), "base64") {
			if data, err = decodeBase64Part(data); err != nil {
				return nil, fmt.Errorf("failed to decode part %q: %w", contentID, err)
			}
			transfer = "binary"
		}
		partContentType := part.Header.Get("Content-Type")

		isRoot := false
		if !foundRoot {
			isRoot = startID == "" || contentID == startID
		}

		if isRoot {
			foundRoot = true
			msg.Root = data
			if msg.StartID == "" {
				msg.StartID = contentID
			}
			if _, rootParams, err := mime.ParseMediaType(partContentType); err == nil && msg.StartInfo == "" {
				msg.StartInfo = rootParams["type"]
			}
			continue
		}

		msg.Parts = append(msg.Parts, Part{
			ContentID:       contentID,
			ContentType:     partContentType,
			ContentTransfer: transfer,
			ContentEncoding: part.Header.Get("Content-Encoding"),
			Data:            data,
			Headers:         part.Header,
		})
	}

	if !foundRoot {
		return nil, ErrRootNotFound
	}

	return msg, nil
}

// decodeBase64Part decodes a base64 body, ignoring the line breaks and
// other whitespace MIME allows between encoded characters
func decodeBase64Part(data []byte) ([]byte, error) {
	compact := bytes.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, data)
	out := make([]byte, base64.StdEncoding.DecodedLen(len(compact)))
	n, err := base64.StdEncoding.Decode(out, compact)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTransferEncoding, err)
	}
	return out[:n], nil
}

// NormalizeContentID strips a cid: prefix and angle brackets
func NormalizeContentID(contentID string) string {
	contentID = strings.TrimSpace(contentID)
	contentID = strings.TrimPrefix(contentID, "cid:")
	return GetContentIDWithoutBrackets(contentID)
}

// CreatePart creates a binary part with a generated Content-ID
func CreatePart(data []byte, contentType string) Part {
	return CreatePartWithID(data, contentType, fmt.Sprintf("%s@%s", uuid.New().String(), Domain))
}

// CreatePartWithID creates a binary part with a specific Content-ID
func CreatePartWithID(data []byte, contentType, contentID string) Part {
	return Part{
		ContentID:       NormalizeContentID(contentID),
		ContentType:     contentType,
		ContentTransfer: "binary",
		Data:            data,
		Headers:         make(textproto.MIMEHeader),
	}
}

// GetPart finds a part by its Content-ID, with or without cid: and brackets
func (m *Message) GetPart(contentID string) *Part {
	normalizedSearch := NormalizeContentID(contentID)

	for i := range m.Parts {
		if m.Parts[i].ContentID == normalizedSearch {
			return &m.Parts[i]
		}
	}
	return nil
}

// ContentIDs returns the Content-IDs of the binary parts in package order
func (m *Message) ContentIDs() []string {
	ids := make([]string, 0, len(m.Parts))
	for _, p := range m.Parts {
		ids = append(ids, p.ContentID)
	}
	return ids
}

// generateBoundary generates a MIME boundary string
func generateBoundary() string {
	return fmt.Sprintf("----=_Part_%s", strings.ReplaceAll(uuid.New().String(), "-", ""))
}

// GetContentIDWithoutBrackets removes < and > from Content-ID
func GetContentIDWithoutBrackets(contentID string) string {
	contentID = strings.TrimPrefix(contentID, "<")
	contentID = strings.TrimSuffix(contentID, ">")
	return contentID
}

// AddContentIDBrackets adds < and > to Content-ID if not present
func AddContentIDBrackets(contentID string) string {
	if !strings.HasPrefix(contentID, "<") {
		contentID = "<" + contentID
	}
	if !strings.HasSuffix(contentID, ">") {
		contentID = contentID + ">"
	}
	return contentID
}
