package xop

import (
	"fmt"
	"log/slog"

	"github.com/sirosfoundation/go-xop/pkg/attachment"
	"github.com/sirosfoundation/go-xop/pkg/xmlstream"
)

// EncodingWriter wraps a writer and turns optimized WriteBinary calls into
// xop:Include elements. All other writes go to the wrapped writer unchanged.
//
// EncodingWriter implements xmlstream.BinaryWriter and attachment.Provider.
type EncodingWriter struct {
	xmlstream.Writer

	registry *Registry
	policy   OptimizationPolicy
	inline   InlineEncoder
	logger   *slog.Logger
}

// NewEncodingWriter wraps w
func NewEncodingWriter(w xmlstream.Writer, opts ...Option) *EncodingWriter {
	o := buildOptions(opts)
	return &EncodingWriter{
		Writer:   w,
		registry: NewRegistry(o.generator),
		policy:   o.policy,
		inline:   o.inline,
		logger:   o.logger,
	}
}

// WriteBinary writes obj either as an xop:Include referencing a new part or
// inline through the configured inline encoder
func (w *EncodingWriter) WriteBinary(obj attachment.Object, contentID string, optimize bool) error {
	if obj == nil {
		return fmt.Errorf("%w: nil binary object", ErrInvalidArgument)
	}
	ok, err := w.policy.ShouldOptimize(obj, optimize)
	if err != nil {
		return fmt.Errorf("optimization policy failed for %q: %w", contentID, err)
	}
	if !ok {
		return w.inline(w.Writer, obj)
	}

	id, err := w.registry.Register(obj, contentID)
	if err != nil {
		return err
	}

	prefix, bound := "", false
	if ns := w.Writer.NamespaceContext(); ns != nil {
		prefix, bound = ns.LookupPrefix(NamespaceURI)
	}
	if !bound {
		prefix = DefaultPrefix
	}

	if err := w.Writer.WriteStartElement(xmlstream.Name{Space: NamespaceURI, Local: IncludeElement, Prefix: prefix}); err != nil {
		return err
	}
	if !bound {
		if err := w.Writer.WriteNamespace(prefix, NamespaceURI); err != nil {
			return err
		}
	}
	if err := w.Writer.WriteAttribute(xmlstream.Name{Local: HrefAttr}, HrefForContentID(id)); err != nil {
		return err
	}
	if err := w.Writer.WriteEndElement(); err != nil {
		return err
	}
	w.logger.Debug("wrote xop:Include",
		slog.String("content_id", id),
		slog.String("prefix", prefix),
		slog.Bool("declared", !bound))
	return nil
}

// Registry returns the parts registered so far
func (w *EncodingWriter) Registry() *Registry {
	return w.registry
}

// ContentIDs returns the registered Content-IDs in write order
func (w *EncodingWriter) ContentIDs() []string {
	return w.registry.ContentIDs()
}

// IsLoaded reports whether a registered part is in memory
func (w *EncodingWriter) IsLoaded(contentID string) bool {
	return w.registry.IsLoaded(contentID)
}

// Get returns the bytes of a registered part
func (w *EncodingWriter) Get(contentID string) ([]byte, error) {
	return w.registry.Get(contentID)
}
