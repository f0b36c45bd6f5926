package xmlstream

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/sirosfoundation/go-xop/pkg/attachment"
)

// ReadElementText reads the text content of the start element r is positioned
// on. Comments and processing instructions are skipped; any nested element is
// an error. The reader is left on the matching end element.
func ReadElementText(r Reader) (string, error) {
	if r.Kind() != KindStartElement {
		return "", fmt.Errorf("%w: element text requires a start element, got %s", ErrInvalidState, r.Kind())
	}
	kind, err := r.Next()
	if err != nil {
		return "", err
	}
	return ElementTextFrom(r, kind)
}

// ElementTextFrom continues ReadElementText after the caller already advanced
// past the start element onto an event of the given kind.
func ElementTextFrom(r Reader, kind Kind) (string, error) {
	var b strings.Builder
	for {
		switch {
		case kind.IsText():
			text, err := r.Text()
			if err != nil {
				return "", err
			}
			b.WriteString(text)
		case kind == KindComment || kind == KindProcInst:
		case kind == KindEndElement:
			return b.String(), nil
		default:
			return "", fmt.Errorf("%w: %s while reading element text", ErrUnexpectedEvent, kind)
		}
		var err error
		kind, err = r.Next()
		if err != nil {
			return "", err
		}
	}
}

// EncodeBase64 returns the base64 text of obj
func EncodeBase64(obj attachment.Object) (string, error) {
	data, err := attachment.Load(obj)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeBase64 decodes base64 element text, ignoring XML whitespace
func DecodeBase64(text string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, text)
	data, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 content: %w", err)
	}
	return data, nil
}

// WriteBase64 writes obj to w as base64 character data
func WriteBase64(w Writer, obj attachment.Object) error {
	text, err := EncodeBase64(obj)
	if err != nil {
		return err
	}
	return w.WriteCharacters(text)
}
