package xmlstream

import (
	"errors"
	"fmt"
	"io"
)

// Copy writes every remaining event of r to w and returns the number of
// events copied. Binary character events go through WriteBinary when w is a
// BinaryWriter and r a BinaryReader; otherwise their text is written.
func Copy(w Writer, r Reader) (int, error) {
	br, _ := r.(BinaryReader)
	bw, _ := w.(BinaryWriter)

	n := 0
	for {
		kind, err := r.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if err := copyEvent(w, r, kind, br, bw); err != nil {
			return n, fmt.Errorf("failed to copy %s event: %w", kind, err)
		}
		n++
	}
}

func copyEvent(w Writer, r Reader, kind Kind, br BinaryReader, bw BinaryWriter) error {
	switch kind {
	case KindStartElement:
		name, err := r.Name()
		if err != nil {
			return err
		}
		if err := w.WriteStartElement(name); err != nil {
			return err
		}
		decls, err := r.Namespaces()
		if err != nil {
			return err
		}
		for _, d := range decls {
			if err := w.WriteNamespace(d.Prefix, d.URI); err != nil {
				return err
			}
		}
		attrs, err := r.Attrs()
		if err != nil {
			return err
		}
		for _, a := range attrs {
			if err := w.WriteAttribute(a.Name, a.Value); err != nil {
				return err
			}
		}
		return nil

	case KindEndElement:
		return w.WriteEndElement()

	case KindCharData:
		if br != nil && bw != nil {
			if bin, ok := br.Binary(); ok {
				return bw.WriteBinary(bin.Object, bin.ContentID, bin.Optimized)
			}
		}
		text, err := r.Text()
		if err != nil {
			return err
		}
		return w.WriteCharacters(text)

	case KindSpace, KindEntityRef:
		text, err := r.Text()
		if err != nil {
			return err
		}
		return w.WriteCharacters(text)

	case KindCDATA:
		text, err := r.Text()
		if err != nil {
			return err
		}
		return w.WriteCData(text)

	case KindComment:
		text, err := r.Text()
		if err != nil {
			return err
		}
		return w.WriteComment(text)

	case KindProcInst:
		name, err := r.Name()
		if err != nil {
			return err
		}
		text, err := r.Text()
		if err != nil {
			return err
		}
		return w.WriteProcInst(name.Local, text)

	default:
		return fmt.Errorf("%w: %s", ErrUnexpectedEvent, kind)
	}
}
