package xop

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/sirosfoundation/go-xop/pkg/attachment"
	"github.com/sirosfoundation/go-xop/pkg/xmlstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// binaryDoc wraps each binary in a d:photo element followed by a d:note
func binaryDoc(bins ...xmlstream.Binary) []xmlstream.Event {
	events := []xmlstream.Event{xmlstream.StartElement(docName)}
	for _, b := range bins {
		events = append(events,
			xmlstream.StartElement(photoName),
			xmlstream.BinaryData(b),
			xmlstream.EndElement(photoName),
			xmlstream.StartElement(noteName),
			xmlstream.CharData("note"),
			xmlstream.EndElement(noteName),
		)
	}
	return append(events, xmlstream.EndElement(docName))
}

func includes(t *testing.T, events []xmlstream.Event) []string {
	t.Helper()
	var hrefs []string
	for _, ev := range events {
		if ev.Kind != xmlstream.KindStartElement || !IsInclude(ev.Name) {
			continue
		}
		require.Len(t, ev.Attrs, 1)
		hrefs = append(hrefs, ev.Attrs[0].Value)
	}
	return hrefs
}

type plainReader struct {
	xmlstream.Reader
}

func TestNewEncodingReader_RequiresBinaryReader(t *testing.T) {
	_, err := NewEncodingReader(plainReader{xmlstream.NewEventReader(nil)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestEncodingReader_Order(t *testing.T) {
	src := xmlstream.NewEventReader(binaryDoc(
		xmlstream.Binary{ContentID: "a", Optimized: true, Object: attachment.Eager("1")},
		xmlstream.Binary{ContentID: "b", Optimized: true, Object: attachment.Eager("2")},
		xmlstream.Binary{ContentID: "c", Optimized: true, Object: attachment.Eager("3")},
	))
	enc, err := NewEncodingReader(src)
	require.NoError(t, err)

	events, err := xmlstream.Collect(enc)
	require.NoError(t, err)

	assert.Equal(t, []string{"cid:a", "cid:b", "cid:c"}, includes(t, events))
	assert.Equal(t, []string{"a", "b", "c"}, enc.ContentIDs())

	data, err := enc.Get("b")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), data)
}

func TestEncodingReader_MarkerSurface(t *testing.T) {
	src := xmlstream.NewEventReader(binaryDoc(
		xmlstream.Binary{ContentID: "ab%cd", Optimized: true, Object: attachment.Eager("x")},
	))
	enc, err := NewEncodingReader(src)
	require.NoError(t, err)

	kind := advance(t, enc, 3)
	require.Equal(t, xmlstream.KindStartElement, kind)
	assert.Equal(t, "ab%cd", enc.ContentID())

	name, err := enc.Name()
	require.NoError(t, err)
	assert.Equal(t, IncludeName, name)

	attrs, err := enc.Attrs()
	require.NoError(t, err)
	assert.Equal(t, []xmlstream.Attr{hrefAttr("cid:ab%25cd")}, attrs)

	decls, err := enc.Namespaces()
	require.NoError(t, err)
	assert.Equal(t, []xmlstream.NamespaceDecl{{Prefix: DefaultPrefix, URI: NamespaceURI}}, decls)

	_, err = enc.Text()
	assert.ErrorIs(t, err, xmlstream.ErrInvalidState)
	_, ok := enc.Binary()
	assert.False(t, ok)

	uri, ok := enc.NamespaceContext().LookupURI(DefaultPrefix)
	require.True(t, ok)
	assert.Equal(t, NamespaceURI, uri)

	kind = advance(t, enc, 1)
	assert.Equal(t, xmlstream.KindEndElement, kind)
	name, err = enc.Name()
	require.NoError(t, err)
	assert.Equal(t, IncludeName, name)
	_, err = enc.Attrs()
	assert.ErrorIs(t, err, xmlstream.ErrInvalidState)

	kind = advance(t, enc, 1)
	assert.Equal(t, xmlstream.KindEndElement, kind)
	name, err = enc.Name()
	require.NoError(t, err)
	assert.Equal(t, photoName, name)
	assert.Empty(t, enc.ContentID())
}

func TestEncodingReader_ElementTextOnMarker(t *testing.T) {
	src := xmlstream.NewEventReader(binaryDoc(
		xmlstream.Binary{Optimized: true, Object: attachment.Eager("x")},
	))
	enc, err := NewEncodingReader(src)
	require.NoError(t, err)

	advance(t, enc, 3)
	text, err := enc.ElementText()
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, xmlstream.KindEndElement, enc.Kind())

	_, err = enc.ElementText()
	assert.ErrorIs(t, err, xmlstream.ErrInvalidState)
}

func TestEncodingReader_NamespaceContextPrefersXOPPrefix(t *testing.T) {
	events := []xmlstream.Event{
		{Kind: xmlstream.KindStartElement, Name: photoName, Namespaces: []xmlstream.NamespaceDecl{{Prefix: "x", URI: NamespaceURI}}},
		xmlstream.BinaryData(xmlstream.Binary{Optimized: true, Object: attachment.Eager("x")}),
		xmlstream.EndElement(photoName),
	}
	enc, err := NewEncodingReader(xmlstream.NewEventReader(events))
	require.NoError(t, err)

	advance(t, enc, 2)
	ns := enc.NamespaceContext()
	assert.Equal(t, []string{"x", DefaultPrefix}, ns.Prefixes(NamespaceURI))
	prefix, ok := ns.LookupPrefix(NamespaceURI)
	require.True(t, ok)
	assert.Equal(t, DefaultPrefix, prefix)
	assert.Empty(t, ns.Prefixes("urn:unbound"))
	_, ok = ns.LookupPrefix("urn:unbound")
	assert.False(t, ok)
}

func TestEncodingReader_PolicyShortCircuit(t *testing.T) {
	bin := xmlstream.Binary{ContentID: "p1", Optimized: false, Object: attachment.Eager("hello")}

	t.Run("default", func(t *testing.T) {
		enc, err := NewEncodingReader(xmlstream.NewEventReader(binaryDoc(bin)))
		require.NoError(t, err)

		kind := advance(t, enc, 3)
		assert.Equal(t, xmlstream.KindCharData, kind)
		got, ok := enc.Binary()
		require.True(t, ok)
		assert.Equal(t, "p1", got.ContentID)
		text, err := enc.Text()
		require.NoError(t, err)
		assert.Equal(t, "aGVsbG8=", text)

		_, err = xmlstream.Collect(enc)
		require.NoError(t, err)
		assert.Empty(t, enc.ContentIDs())
	})

	t.Run("all", func(t *testing.T) {
		enc, err := NewEncodingReader(xmlstream.NewEventReader(binaryDoc(bin)), WithPolicy(PolicyAll))
		require.NoError(t, err)

		events, err := xmlstream.Collect(enc)
		require.NoError(t, err)
		assert.Equal(t, []string{"cid:p1"}, includes(t, events))
		assert.Equal(t, []string{"p1"}, enc.ContentIDs())
	})
}

func TestEncodingReader_IDPreservation(t *testing.T) {
	bin := xmlstream.Binary{ContentID: "X", Optimized: true, Object: attachment.Eager("x")}

	enc, err := NewEncodingReader(xmlstream.NewEventReader(binaryDoc(bin)))
	require.NoError(t, err)
	events, err := xmlstream.Collect(enc)
	require.NoError(t, err)
	assert.Equal(t, []string{"cid:X"}, includes(t, events))

	fresh, err := NewEncodingReader(xmlstream.NewEventReader(binaryDoc(bin)), WithGenerator(AlwaysFresh(UUIDGenerator{})))
	require.NoError(t, err)
	events, err = xmlstream.Collect(fresh)
	require.NoError(t, err)
	hrefs := includes(t, events)
	require.Len(t, hrefs, 1)
	assert.NotEqual(t, "cid:X", hrefs[0])
	assert.NotContains(t, fresh.ContentIDs(), "X")
}

func TestEncodingReader_LazyLoad(t *testing.T) {
	h := attachment.NewDeferred(func() ([]byte, error) { return []byte("big"), nil })
	bin := xmlstream.Binary{Optimized: true, Object: attachment.Lazy{Handle: h}}

	enc, err := NewEncodingReader(xmlstream.NewEventReader(binaryDoc(bin)), WithGenerator(&CounterGenerator{}))
	require.NoError(t, err)
	_, err = xmlstream.Collect(enc)
	require.NoError(t, err)

	id := enc.ContentIDs()[0]
	assert.False(t, enc.IsLoaded(id))
	assert.False(t, h.Loaded())

	data, err := enc.Get(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("big"), data)
	assert.True(t, enc.IsLoaded(id))
}

func TestEncodingReader_PolicyError(t *testing.T) {
	cause := errors.New("policy backend down")
	policy := PolicyFunc(func(attachment.Object, bool) (bool, error) { return false, cause })
	enc, err := NewEncodingReader(xmlstream.NewEventReader(binaryDoc(
		xmlstream.Binary{Optimized: true, Object: attachment.Eager("x")},
	)), WithPolicy(policy))
	require.NoError(t, err)

	_, err = xmlstream.Collect(enc)
	assert.ErrorIs(t, err, cause)
}

func TestEncodingWriter_DeclaresPrefix(t *testing.T) {
	tw := xmlstream.NewTreeWriter()
	w := NewEncodingWriter(tw, WithGenerator(&CounterGenerator{}))

	require.NoError(t, w.WriteStartElement(photoName))
	require.NoError(t, w.WriteBinary(attachment.Eager("hello"), "", true))
	require.NoError(t, w.WriteEndElement())
	require.NoError(t, w.Close())

	root := tw.Document().Root()
	require.NotNil(t, root)
	inc := root.SelectElement(IncludeElement)
	require.NotNil(t, inc)
	assert.Equal(t, DefaultPrefix, inc.Space)
	assert.Equal(t, NamespaceURI, inc.SelectAttrValue("xmlns:"+DefaultPrefix, ""))
	assert.Equal(t, "cid:part-1@"+DefaultDomain, inc.SelectAttrValue(HrefAttr, ""))
	assert.Empty(t, inc.ChildElements())

	assert.Equal(t, []string{"part-1@" + DefaultDomain}, w.ContentIDs())
	data, err := w.Get("part-1@" + DefaultDomain)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestEncodingWriter_ReusesPrefix(t *testing.T) {
	tw := xmlstream.NewTreeWriter()
	w := NewEncodingWriter(tw, WithGenerator(&CounterGenerator{}))

	require.NoError(t, w.WriteStartElement(photoName))
	require.NoError(t, w.WriteNamespace("inc", NamespaceURI))
	require.NoError(t, w.WriteBinary(attachment.Eager("hello"), "p1", true))
	require.NoError(t, w.WriteEndElement())

	inc := tw.Document().Root().SelectElement(IncludeElement)
	require.NotNil(t, inc)
	assert.Equal(t, "inc", inc.Space)
	assert.Nil(t, inc.SelectAttr("xmlns:"+DefaultPrefix))
	assert.Nil(t, inc.SelectAttr("xmlns:inc"))
	assert.Equal(t, "cid:p1", inc.SelectAttrValue(HrefAttr, ""))
}

func TestEncodingWriter_Inline(t *testing.T) {
	tw := xmlstream.NewTreeWriter()
	w := NewEncodingWriter(tw)

	require.NoError(t, w.WriteStartElement(photoName))
	require.NoError(t, w.WriteBinary(attachment.Eager("hello"), "p1", false))
	require.NoError(t, w.WriteEndElement())

	root := tw.Document().Root()
	assert.Equal(t, "aGVsbG8=", root.Text())
	assert.Nil(t, root.SelectElement(IncludeElement))
	assert.Empty(t, w.ContentIDs())
}

func TestEncodingWriter_CustomInlineEncoder(t *testing.T) {
	var seen []attachment.Object
	inline := func(w xmlstream.Writer, obj attachment.Object) error {
		seen = append(seen, obj)
		return w.WriteCharacters("inline")
	}
	tw := xmlstream.NewTreeWriter()
	w := NewEncodingWriter(tw, WithInlineEncoder(inline), WithPolicy(ThresholdPolicy(10)))

	require.NoError(t, w.WriteStartElement(photoName))
	require.NoError(t, w.WriteBinary(attachment.Eager("tiny"), "", true))
	require.NoError(t, w.WriteEndElement())

	assert.Len(t, seen, 1)
	assert.Equal(t, "inline", tw.Document().Root().Text())
}

func TestEncodingWriter_NilObject(t *testing.T) {
	w := NewEncodingWriter(xmlstream.NewTreeWriter())
	assert.ErrorIs(t, w.WriteBinary(nil, "", true), ErrInvalidArgument)
}

func TestRoundTrip_Events(t *testing.T) {
	bins := []xmlstream.Binary{
		{ContentID: "a", Optimized: false, Object: attachment.Eager("first")},
		{Optimized: true, Object: attachment.Lazy{Handle: attachment.NewDeferred(func() ([]byte, error) {
			return []byte("second"), nil
		})}},
		{ContentID: "c", Optimized: true, Object: attachment.Eager{}},
	}
	original, err := xmlstream.Collect(xmlstream.NewEventReader(binaryDoc(bins...)))
	require.NoError(t, err)

	enc, err := NewEncodingReader(xmlstream.NewEventReader(binaryDoc(bins...)),
		WithPolicy(PolicyAll), WithGenerator(&CounterGenerator{}))
	require.NoError(t, err)
	encoded, err := xmlstream.Collect(enc)
	require.NoError(t, err)
	require.Len(t, enc.ContentIDs(), len(bins))

	decoded, err := xmlstream.Collect(NewDecoder(xmlstream.NewEventReader(encoded), enc))
	require.NoError(t, err)
	require.Len(t, decoded, len(original))

	i := 0
	for k := range original {
		want, got := original[k], decoded[k]
		if want.Binary == nil {
			assert.Equal(t, want, got)
			continue
		}
		require.NotNil(t, got.Binary)
		wantData, err := attachment.Load(want.Binary.Object)
		require.NoError(t, err)
		gotData, err := attachment.Load(got.Binary.Object)
		require.NoError(t, err)
		assert.Equal(t, wantData, gotData)
		assert.Equal(t, enc.ContentIDs()[i], got.Binary.ContentID)
		i++
	}
	assert.Equal(t, len(bins), i)
}

const scanDoc = `<d:doc xmlns:d="urn:example:doc" xmlns:xmime="http://www.w3.org/2005/05/xmlmime">` +
	`<d:scan xmime:contentType="image/png">aGVsbG8gd29ybGQ=</d:scan>` +
	`<d:note>plain</d:note>` +
	`</d:doc>`

func TestRoundTrip_Tree(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	src, err := xmlstream.ParseTree(strings.NewReader(scanDoc))
	require.NoError(t, err)
	enc, err := NewEncodingReader(src, WithGenerator(&CounterGenerator{Domain: "example.org"}), WithLogger(logger))
	require.NoError(t, err)

	packaged := xmlstream.NewTreeWriter()
	_, err = xmlstream.Copy(packaged, enc)
	require.NoError(t, err)
	xml, err := packaged.Bytes()
	require.NoError(t, err)
	assert.Contains(t, string(xml), `<xop:Include xmlns:xop="http://www.w3.org/2004/08/xop/include" href="cid:part-1@example.org"/>`)
	assert.NotContains(t, string(xml), "aGVsbG8gd29ybGQ=")

	data, err := enc.Get("part-1@example.org")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), data)

	infoset, err := xmlstream.ParseTree(bytes.NewReader(xml))
	require.NoError(t, err)
	restored := xmlstream.NewTreeWriter()
	_, err = xmlstream.Copy(restored, NewDecoder(infoset, enc, WithLogger(logger)))
	require.NoError(t, err)
	out, err := restored.Bytes()
	require.NoError(t, err)
	assert.Equal(t, scanDoc, string(out))
}

func TestRoundTrip_Writer(t *testing.T) {
	src, err := xmlstream.ParseTree(strings.NewReader(scanDoc))
	require.NoError(t, err)

	tw := xmlstream.NewTreeWriter()
	w := NewEncodingWriter(tw, WithGenerator(&CounterGenerator{Domain: "example.org"}))
	_, err = xmlstream.Copy(w, src)
	require.NoError(t, err)
	require.Equal(t, []string{"part-1@example.org"}, w.ContentIDs())

	xml, err := tw.Bytes()
	require.NoError(t, err)
	infoset, err := xmlstream.ParseTree(bytes.NewReader(xml))
	require.NoError(t, err)

	restored := xmlstream.NewTreeWriter()
	_, err = xmlstream.Copy(restored, NewDecoder(infoset, w))
	require.NoError(t, err)
	out, err := restored.Bytes()
	require.NoError(t, err)
	assert.Equal(t, scanDoc, string(out))
}

func TestAdapt(t *testing.T) {
	t.Run("encoder", func(t *testing.T) {
		enc, err := NewEncodingReader(xmlstream.NewEventReader(nil))
		require.NoError(t, err)
		s := Adapt(enc)
		assert.Same(t, enc, s.Reader)
		assert.Same(t, enc, s.Parts)
	})

	t.Run("decoder", func(t *testing.T) {
		src := xmlstream.NewEventReader(nil)
		parts := attachment.Parts{}
		s := Adapt(NewDecoder(src, parts))
		assert.Same(t, src, s.Reader)
		assert.Equal(t, parts, s.Parts)
	})

	t.Run("binary reader", func(t *testing.T) {
		src := xmlstream.NewEventReader(binaryDoc(
			xmlstream.Binary{ContentID: "p1", Optimized: false, Object: attachment.Eager("x")},
		))
		s := Adapt(src)
		enc, ok := s.Reader.(*EncodingReader)
		require.True(t, ok)
		assert.Same(t, enc, s.Parts)

		again := Adapt(s.Reader)
		assert.Same(t, enc, again.Reader)

		events, err := xmlstream.Collect(s.Reader)
		require.NoError(t, err)
		assert.Equal(t, []string{"cid:p1"}, includes(t, events))
	})

	t.Run("plain reader", func(t *testing.T) {
		src := plainReader{xmlstream.NewEventReader(nil)}
		s := Adapt(src)
		assert.Equal(t, src, s.Reader)
		assert.Equal(t, attachment.Empty, s.Parts)
	})
}
