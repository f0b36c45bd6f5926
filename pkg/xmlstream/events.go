package xmlstream

import (
	"errors"
	"fmt"
	"io"
)

// Event is a recorded XML event
type Event struct {
	Kind       Kind
	Name       Name
	Attrs      []Attr
	Namespaces []NamespaceDecl
	Text       string
	// Binary is set for binary character data.
	Binary *Binary
}

// StartElement returns a start element event
func StartElement(name Name, attrs ...Attr) Event {
	return Event{Kind: KindStartElement, Name: name, Attrs: attrs}
}

// EndElement returns an end element event
func EndElement(name Name) Event {
	return Event{Kind: KindEndElement, Name: name}
}

// CharData returns a character data event
func CharData(text string) Event {
	return Event{Kind: KindCharData, Text: text}
}

// BinaryData returns a binary character data event
func BinaryData(b Binary) Event {
	return Event{Kind: KindCharData, Binary: &b}
}

// Collect drains r into a list of events. Binary events keep their Binary
// descriptor and are not materialized.
func Collect(r Reader) ([]Event, error) {
	br, _ := r.(BinaryReader)
	var events []Event
	for {
		kind, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		ev, err := record(r, br, kind)
		if err != nil {
			return events, fmt.Errorf("failed to record %s event: %w", kind, err)
		}
		events = append(events, ev)
	}
}

func record(r Reader, br BinaryReader, kind Kind) (Event, error) {
	ev := Event{Kind: kind}
	var err error
	switch kind {
	case KindStartElement:
		if ev.Name, err = r.Name(); err != nil {
			return ev, err
		}
		if ev.Attrs, err = r.Attrs(); err != nil {
			return ev, err
		}
		if ev.Namespaces, err = r.Namespaces(); err != nil {
			return ev, err
		}
	case KindEndElement:
		ev.Name, err = r.Name()
	case KindProcInst:
		if ev.Name, err = r.Name(); err != nil {
			return ev, err
		}
		ev.Text, err = r.Text()
	default:
		if br != nil && kind == KindCharData {
			if b, ok := br.Binary(); ok {
				ev.Binary = &b
				return ev, nil
			}
		}
		ev.Text, err = r.Text()
	}
	return ev, err
}

// EventReader replays a list of events
type EventReader struct {
	events     []Event
	pos        int
	ns         nsStack
	pendingPop bool
}

// NewEventReader creates a reader over events
func NewEventReader(events []Event) *EventReader {
	return &EventReader{events: events, pos: -1}
}

func (r *EventReader) current() *Event {
	if r.pos < 0 || r.pos >= len(r.events) {
		return nil
	}
	return &r.events[r.pos]
}

// Next advances to the next event
func (r *EventReader) Next() (Kind, error) {
	if r.pendingPop {
		r.ns.pop()
		r.pendingPop = false
	}
	if r.pos < len(r.events) {
		r.pos++
	}
	ev := r.current()
	if ev == nil {
		return KindNone, io.EOF
	}
	switch ev.Kind {
	case KindStartElement:
		r.ns.push(ev.Namespaces)
	case KindEndElement:
		r.pendingPop = true
	}
	return ev.Kind, nil
}

// Kind returns the kind of the current event
func (r *EventReader) Kind() Kind {
	if ev := r.current(); ev != nil {
		return ev.Kind
	}
	return KindNone
}

// Name returns the name of the current element or processing instruction
func (r *EventReader) Name() (Name, error) {
	ev := r.current()
	if ev == nil || (ev.Kind != KindStartElement && ev.Kind != KindEndElement && ev.Kind != KindProcInst) {
		return Name{}, ErrInvalidState
	}
	return ev.Name, nil
}

// Attrs returns the attributes of the current start element
func (r *EventReader) Attrs() ([]Attr, error) {
	ev := r.current()
	if ev == nil || ev.Kind != KindStartElement {
		return nil, ErrInvalidState
	}
	return ev.Attrs, nil
}

// Namespaces returns the namespace declarations of the current start element
func (r *EventReader) Namespaces() ([]NamespaceDecl, error) {
	ev := r.current()
	if ev == nil || ev.Kind != KindStartElement {
		return nil, ErrInvalidState
	}
	return ev.Namespaces, nil
}

// Text returns the text of the current event. Binary events are base64 encoded.
func (r *EventReader) Text() (string, error) {
	ev := r.current()
	if ev == nil || ev.Kind == KindStartElement || ev.Kind == KindEndElement {
		return "", ErrInvalidState
	}
	if ev.Binary != nil && ev.Text == "" {
		return EncodeBase64(ev.Binary.Object)
	}
	return ev.Text, nil
}

// ElementText reads the text of the current start element
func (r *EventReader) ElementText() (string, error) {
	return ReadElementText(r)
}

// NamespaceContext returns the bindings in scope
func (r *EventReader) NamespaceContext() NamespaceContext {
	return &r.ns
}

// Binary reports the binary content of the current event
func (r *EventReader) Binary() (Binary, bool) {
	ev := r.current()
	if ev == nil || ev.Kind != KindCharData || ev.Binary == nil {
		return Binary{}, false
	}
	return *ev.Binary, true
}

// Close is a no-op
func (r *EventReader) Close() error {
	return nil
}
