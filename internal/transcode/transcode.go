// Package transcode converts whole documents between their plain XML form and
// XOP packages.
//
// Encoding parses an XML document, replaces base64 content of elements marked
// with xmime:contentType by xop:Include references, and writes either a
// multipart/related package or, when a part store is configured, the bare XOP
// infoset with the parts saved to the store.
//
// Decoding reverses this. A package is recognized by its MIME headers; input
// that starts with markup is treated as a bare infoset whose parts live in the
// store.
package transcode

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"

	"github.com/sirosfoundation/go-xop/internal/config"
	"github.com/sirosfoundation/go-xop/internal/partstore"
	"github.com/sirosfoundation/go-xop/pkg/attachment"
	"github.com/sirosfoundation/go-xop/pkg/mime"
	"github.com/sirosfoundation/go-xop/pkg/xmlstream"
	"github.com/sirosfoundation/go-xop/pkg/xop"
)

// ErrNoParts is returned when a bare infoset references parts but no store
// is configured
var ErrNoParts = errors.New("no part store configured")

// Transcoder encodes and decodes documents
type Transcoder struct {
	encoding config.EncodingConfig
	pkg      config.PackageConfig
	store    partstore.Store
	logger   *slog.Logger
}

// Result describes an encoded document
type Result struct {
	// ContentIDs lists the parts in the order they are referenced
	ContentIDs []string
	// ContentType is the Content-Type of the package, or "" for bare XML
	ContentType string
}

// New creates a transcoder. store may be nil, in which case parts travel in
// the MIME package.
func New(cfg *config.Config, store partstore.Store, logger *slog.Logger) *Transcoder {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcoder{
		encoding: cfg.Encoding,
		pkg:      cfg.Package,
		store:    store,
		logger:   logger,
	}
}

func (t *Transcoder) xopOptions() []xop.Option {
	return t.encoding.Options(t.logger)
}

// encoded is the outcome of running an encoder over a document
type encoded struct {
	root  []byte
	parts mime.PartSource
}

// Encode reads an XML document from in and writes its XOP form to out
func (t *Transcoder) Encode(ctx context.Context, in io.Reader, out io.Writer) (*Result, error) {
	src, err := xmlstream.ParseTree(in, xmlstream.WithBinaryDetector(xmlstream.XMIMEDetector))
	if err != nil {
		return nil, err
	}
	defer src.Close()

	var enc *encoded
	switch t.encoding.Mode {
	case config.ModeWriter:
		enc, err = t.encodeWithWriter(src)
	default:
		enc, err = t.encodeWithReader(src)
	}
	if err != nil {
		return nil, err
	}

	if t.store != nil {
		ids, err := partstore.Save(ctx, t.store, enc.parts, mime.ContentTypeOctetStream)
		if err != nil {
			return nil, err
		}
		if _, err := out.Write(enc.root); err != nil {
			return nil, fmt.Errorf("writing XOP infoset: %w", err)
		}
		t.logger.Info("encoded document",
			slog.Int("parts", len(ids)),
			slog.Bool("stored", true))
		return &Result{ContentIDs: ids}, nil
	}

	msg, err := mime.FromRegistry(enc.root, t.pkg.RootType, enc.parts)
	if err != nil {
		return nil, err
	}
	if t.pkg.Compress {
		if err := msg.CompressParts(&mime.Compressor{MinSize: t.pkg.CompressMinSize}); err != nil {
			return nil, err
		}
	}
	body, contentType, err := msg.Serialize()
	if err != nil {
		return nil, err
	}
	if err := writePackage(out, contentType, body); err != nil {
		return nil, err
	}

	t.logger.Info("encoded document",
		slog.Int("parts", len(msg.Parts)),
		slog.String("start", msg.StartID),
		slog.Bool("compressed", t.pkg.Compress))
	return &Result{ContentIDs: msg.ContentIDs(), ContentType: contentType}, nil
}

func (t *Transcoder) encodeWithReader(src xmlstream.Reader) (*encoded, error) {
	er, err := xop.NewEncodingReader(src, t.xopOptions()...)
	if err != nil {
		return nil, err
	}
	tw := xmlstream.NewTreeWriter()
	if _, err := xmlstream.Copy(tw, er); err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	root, err := tw.Bytes()
	if err != nil {
		return nil, fmt.Errorf("serializing XOP infoset: %w", err)
	}
	return &encoded{root: root, parts: er}, nil
}

func (t *Transcoder) encodeWithWriter(src xmlstream.Reader) (*encoded, error) {
	tw := xmlstream.NewTreeWriter()
	ew := xop.NewEncodingWriter(tw, t.xopOptions()...)
	if _, err := xmlstream.Copy(ew, src); err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	root, err := tw.Bytes()
	if err != nil {
		return nil, fmt.Errorf("serializing XOP infoset: %w", err)
	}
	return &encoded{root: root, parts: ew}, nil
}

// writePackage writes a MIME entity with the headers needed to parse it back
func writePackage(out io.Writer, contentType string, body []byte) error {
	w := bufio.NewWriter(out)
	fmt.Fprintf(w, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(w, "Content-Type: %s\r\n\r\n", contentType)
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("writing package: %w", err)
	}
	return w.Flush()
}

// Decode reads an XOP package or bare infoset from in and writes the plain
// XML document to out
func (t *Transcoder) Decode(ctx context.Context, in io.Reader, out io.Writer) error {
	root, parts, err := t.open(ctx, in)
	if err != nil {
		return err
	}

	src, err := xmlstream.ParseTree(bytes.NewReader(root))
	if err != nil {
		return err
	}
	dec := xop.NewDecoder(src, parts, xop.WithLogger(t.logger))
	defer dec.Close()

	tw := xmlstream.NewTreeWriter()
	n, err := xmlstream.Copy(tw, dec)
	if err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}
	if _, err := tw.WriteTo(out); err != nil {
		return fmt.Errorf("writing document: %w", err)
	}

	t.logger.Info("decoded document", slog.Int("events", n))
	return nil
}

// open splits the input into the root infoset and a provider for its parts
func (t *Transcoder) open(ctx context.Context, in io.Reader) ([]byte, attachment.Provider, error) {
	br := bufio.NewReader(in)
	if isMarkup(br) {
		root, err := io.ReadAll(br)
		if err != nil {
			return nil, nil, fmt.Errorf("reading XOP infoset: %w", err)
		}
		if t.store == nil {
			return root, noParts{}, nil
		}
		return root, partstore.NewProvider(ctx, t.store), nil
	}

	entity, err := mail.ReadMessage(br)
	if err != nil {
		return nil, nil, fmt.Errorf("reading package headers: %w", err)
	}
	msg, err := mime.Parse(entity.Body, entity.Header.Get("Content-Type"))
	if err != nil {
		return nil, nil, err
	}
	t.logger.Debug("parsed package",
		slog.String("start", msg.StartID),
		slog.String("start_info", msg.StartInfo),
		slog.Int("parts", len(msg.Parts)))
	return msg.Root, msg.ProviderWithCompressor(&mime.Compressor{MaxSize: t.pkg.MaxPartSize}), nil
}

// isMarkup reports whether the next non-space byte opens XML markup. A
// leading byte order mark is dropped.
func isMarkup(br *bufio.Reader) bool {
	if bom, _ := br.Peek(3); bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	for i := 1; ; i++ {
		peek, _ := br.Peek(i)
		if len(peek) < i {
			return false
		}
		switch peek[i-1] {
		case ' ', '\t', '\r', '\n':
			continue
		case '<':
			return true
		default:
			return false
		}
	}
}

// noParts resolves nothing. Every lookup fails with ErrNoParts as well as
// attachment.ErrNotFound.
type noParts struct{}

func (noParts) IsLoaded(string) bool { return false }

func (noParts) Get(contentID string) ([]byte, error) {
	return nil, fmt.Errorf("%w: %w: %s", ErrNoParts, attachment.ErrNotFound, contentID)
}
