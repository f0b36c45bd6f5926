package xop

import (
	"log/slog"

	"github.com/sirosfoundation/go-xop/pkg/attachment"
	"github.com/sirosfoundation/go-xop/pkg/xmlstream"
)

// InlineEncoder writes binary content that is not optimized
type InlineEncoder func(w xmlstream.Writer, obj attachment.Object) error

// Option configures encoders and decoders
type Option func(*options)

type options struct {
	generator ContentIDGenerator
	policy    OptimizationPolicy
	inline    InlineEncoder
	logger    *slog.Logger
}

func buildOptions(opts []Option) options {
	o := options{
		generator: UUIDGenerator{},
		policy:    PolicyDefault,
		inline:    xmlstream.WriteBase64,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// WithGenerator sets the Content-ID generator used by encoders
func WithGenerator(g ContentIDGenerator) Option {
	return func(o *options) {
		if g != nil {
			o.generator = g
		}
	}
}

// WithPolicy sets the optimization policy used by encoders
func WithPolicy(p OptimizationPolicy) Option {
	return func(o *options) {
		if p != nil {
			o.policy = p
		}
	}
}

// WithInlineEncoder sets how EncodingWriter writes content it does not optimize
func WithInlineEncoder(enc InlineEncoder) Option {
	return func(o *options) {
		if enc != nil {
			o.inline = enc
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
