package xmlstream

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/sirosfoundation/go-xop/pkg/attachment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `<?xml version="1.0" encoding="UTF-8"?>
<m:order xmlns:m="urn:example:order" xmlns:xmime="http://www.w3.org/2005/05/xmlmime" id="42">
<!-- generated -->
<m:note>fragile &amp; heavy</m:note>
<m:scan xmime:contentType="image/png">aGVsbG8gd29ybGQ=</m:scan>
<m:raw><![CDATA[<not-xml>]]></m:raw>
</m:order>`

func parseSample(t *testing.T, opts ...TreeOption) *TreeReader {
	t.Helper()
	r, err := ParseTree(strings.NewReader(sampleDoc), opts...)
	require.NoError(t, err)
	return r
}

func nextStart(t *testing.T, r Reader, local string) {
	t.Helper()
	for {
		kind, err := r.Next()
		require.NoError(t, err)
		if kind == KindStartElement {
			name, err := r.Name()
			require.NoError(t, err)
			if name.Local == local {
				return
			}
		}
	}
}

func TestTreeReader_Events(t *testing.T) {
	r := parseSample(t)

	kind, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, KindProcInst, kind)
	name, err := r.Name()
	require.NoError(t, err)
	assert.Equal(t, "xml", name.Local)

	kind, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, KindStartElement, kind)

	name, err = r.Name()
	require.NoError(t, err)
	assert.Equal(t, Name{Space: "urn:example:order", Local: "order", Prefix: "m"}, name)

	attrs, err := r.Attrs()
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, "id", attrs[0].Name.Local)
	assert.Equal(t, "42", attrs[0].Value)

	decls, err := r.Namespaces()
	require.NoError(t, err)
	assert.Len(t, decls, 2)

	_, err = r.Text()
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestTreeReader_KindsAndEOF(t *testing.T) {
	r := parseSample(t)
	events, err := Collect(r)
	require.NoError(t, err)

	var kinds []Kind
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Contains(t, kinds, KindComment)
	assert.Contains(t, kinds, KindCDATA)
	assert.Contains(t, kinds, KindSpace)
	assert.Equal(t, KindEndElement, kinds[len(kinds)-1])

	kind, err := r.Next()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, KindNone, kind)
}

func TestTreeReader_BinaryDetection(t *testing.T) {
	r := parseSample(t)
	nextStart(t, r, "scan")

	kind, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, KindCharData, kind)

	bin, ok := r.Binary()
	require.True(t, ok)
	assert.True(t, bin.Optimized)
	assert.True(t, bin.Deferred())
	assert.Empty(t, bin.ContentID)
	assert.False(t, attachment.Loaded(bin.Object))

	data, err := attachment.Load(bin.Object)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), data)

	text, err := r.Text()
	require.NoError(t, err)
	assert.Equal(t, "aGVsbG8gd29ybGQ=", text)
}

func TestTreeReader_NoBinaryForPlainText(t *testing.T) {
	r := parseSample(t)
	nextStart(t, r, "note")

	_, err := r.Next()
	require.NoError(t, err)
	_, ok := r.Binary()
	assert.False(t, ok)

	text, err := r.Text()
	require.NoError(t, err)
	assert.Equal(t, "fragile & heavy", text)
}

func TestTreeReader_DetectionDisabled(t *testing.T) {
	r := parseSample(t, WithBinaryDetector(nil))
	nextStart(t, r, "scan")
	_, err := r.Next()
	require.NoError(t, err)
	_, ok := r.Binary()
	assert.False(t, ok)
}

func TestTreeReader_ElementText(t *testing.T) {
	r := parseSample(t)
	nextStart(t, r, "note")

	text, err := r.ElementText()
	require.NoError(t, err)
	assert.Equal(t, "fragile & heavy", text)
	assert.Equal(t, KindEndElement, r.Kind())

	name, err := r.Name()
	require.NoError(t, err)
	assert.Equal(t, "note", name.Local)
}

func TestTreeReader_ElementTextRejectsChildren(t *testing.T) {
	r, err := ParseTree(strings.NewReader(`<a>x<b/></a>`))
	require.NoError(t, err)
	nextStart(t, r, "a")

	_, err = r.ElementText()
	assert.ErrorIs(t, err, ErrUnexpectedEvent)
}

func TestTreeReader_NamespaceScope(t *testing.T) {
	r, err := ParseTree(strings.NewReader(`<a xmlns="urn:a"><b xmlns:p="urn:p"><p:c/></b><d/></a>`))
	require.NoError(t, err)

	nextStart(t, r, "c")
	name, err := r.Name()
	require.NoError(t, err)
	assert.Equal(t, "urn:p", name.Space)

	uri, ok := r.NamespaceContext().LookupURI("")
	assert.True(t, ok)
	assert.Equal(t, "urn:a", uri)

	nextStart(t, r, "d")
	_, ok = r.NamespaceContext().LookupURI("p")
	assert.False(t, ok)

	name, err = r.Name()
	require.NoError(t, err)
	assert.Equal(t, "urn:a", name.Space)
}

func TestNewElementReader(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(`<root><child>text</child></root>`))

	events, err := Collect(NewElementReader(doc.Root().SelectElement("child")))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, KindStartElement, events[0].Kind)
	assert.Equal(t, "text", events[1].Text)
	assert.Equal(t, KindEndElement, events[2].Kind)
}

func TestTreeWriter_Build(t *testing.T) {
	w := NewTreeWriter()
	require.NoError(t, w.WriteStartDocument())
	require.NoError(t, w.WriteStartElement(Name{Space: "urn:a", Local: "root", Prefix: "a"}))
	require.NoError(t, w.WriteNamespace("a", "urn:a"))
	require.NoError(t, w.WriteAttribute(Name{Local: "id"}, "1"))
	require.NoError(t, w.WriteCharacters("x < y"))
	require.NoError(t, w.WriteComment("note"))
	require.NoError(t, w.WriteCData("<raw>"))
	require.NoError(t, w.WriteEndElement())
	require.NoError(t, w.WriteEndDocument())
	require.NoError(t, w.Close())

	out, err := w.Bytes()
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, s, `<a:root xmlns:a="urn:a" id="1">`)
	assert.Contains(t, s, `x &lt; y`)
	assert.Contains(t, s, `<!--note-->`)
	assert.Contains(t, s, `<![CDATA[<raw>]]>`)
}

func TestTreeWriter_DeclaresMissingNamespaces(t *testing.T) {
	w := NewTreeWriter()
	require.NoError(t, w.WriteStartElement(Name{Space: "urn:a", Local: "root", Prefix: "a"}))
	require.NoError(t, w.WriteAttribute(Name{Space: "urn:b", Local: "flag", Prefix: "b"}, "on"))
	require.NoError(t, w.WriteEndElement())

	out, err := w.Bytes()
	require.NoError(t, err)
	assert.Contains(t, string(out), `xmlns:a="urn:a"`)
	assert.Contains(t, string(out), `xmlns:b="urn:b"`)
}

func TestTreeWriter_NamespaceContext(t *testing.T) {
	w := NewTreeWriter()
	require.NoError(t, w.WriteStartElement(Name{Local: "root"}))
	require.NoError(t, w.WriteNamespace("p", "urn:p"))
	require.NoError(t, w.WriteStartElement(Name{Local: "child"}))

	prefix, ok := w.NamespaceContext().LookupPrefix("urn:p")
	assert.True(t, ok)
	assert.Equal(t, "p", prefix)

	require.NoError(t, w.WriteEndElement())
	require.NoError(t, w.WriteEndElement())
	_, ok = w.NamespaceContext().LookupPrefix("urn:p")
	assert.False(t, ok)
}

func TestTreeWriter_Errors(t *testing.T) {
	w := NewTreeWriter()
	assert.ErrorIs(t, w.WriteEndElement(), ErrInvalidState)
	assert.ErrorIs(t, w.WriteAttribute(Name{Local: "a"}, "b"), ErrInvalidState)
	assert.Error(t, w.WriteStartElement(Name{}))

	require.NoError(t, w.WriteStartElement(Name{Local: "root"}))
	require.NoError(t, w.WriteCharacters("text"))
	assert.ErrorIs(t, w.WriteNamespace("p", "urn:p"), ErrInvalidState)
	assert.ErrorIs(t, w.Close(), ErrInvalidState)

	require.NoError(t, w.WriteEndElement())
	assert.ErrorIs(t, w.WriteStartElement(Name{Local: "second"}), ErrInvalidState)
}

func TestCopy_RoundTrip(t *testing.T) {
	r := parseSample(t)
	w := NewTreeWriter()

	n, err := Copy(w, r)
	require.NoError(t, err)
	assert.Greater(t, n, 10)

	var buf bytes.Buffer
	_, err = w.WriteTo(&buf)
	require.NoError(t, err)

	again, err := ParseTree(&buf)
	require.NoError(t, err)
	first, err := Collect(parseSample(t, WithBinaryDetector(nil)))
	require.NoError(t, err)
	second, err := Collect(again)
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second))
}
