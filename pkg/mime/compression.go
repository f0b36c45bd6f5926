package mime

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"mime"
)

// ErrPartTooLarge is returned when a gzip part inflates beyond the
// compressor's MaxSize
var ErrPartTooLarge = errors.New("decompressed part exceeds size limit")

// precompressed lists media types that gain nothing from gzip
var precompressed = map[string]bool{
	"application/gzip":   true,
	"application/x-gzip": true,
	"application/zip":    true,
	"application/zstd":   true,
	"image/jpeg":         true,
	"image/png":          true,
	"image/gif":          true,
	"image/webp":         true,
	"audio/mpeg":         true,
	"audio/mp3":          true,
	"video/mp4":          true,
}

// Compressor gzips part bodies
type Compressor struct {
	// Level is a compress/gzip level. Zero selects gzip.DefaultCompression.
	Level int
	// MinSize leaves smaller parts uncompressed
	MinSize int
	// MaxSize bounds decompressed output. Zero means no limit.
	MaxSize int64
}

// NewCompressor creates a compressor with the default gzip level
func NewCompressor() *Compressor {
	return &Compressor{Level: gzip.DefaultCompression}
}

// NewCompressorWithLevel creates a compressor with the given gzip level
func NewCompressorWithLevel(level int) *Compressor {
	return &Compressor{Level: level}
}

// Compress gzips data
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	level := c.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()
		return nil, fmt.Errorf("failed to compress part: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress inflates a gzip part body
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip part: %w", err)
	}
	defer zr.Close()

	var src io.Reader = zr
	if c.MaxSize > 0 {
		src = io.LimitReader(zr, c.MaxSize+1)
	}
	out, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to inflate gzip part: %w", err)
	}
	if c.MaxSize > 0 && int64(len(out)) > c.MaxSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrPartTooLarge, c.MaxSize)
	}
	return out, nil
}

// shouldCompress reports whether a part is worth compressing
func (c *Compressor) shouldCompress(p *Part) bool {
	return p.ContentEncoding == "" && len(p.Data) >= c.MinSize && ShouldCompress(p.ContentType)
}

// ShouldCompress reports whether content of the given type is not already
// compressed
func ShouldCompress(contentType string) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}
	return !precompressed[contentType]
}

// CompressParts gzips every part the compressor accepts and marks it with
// Content-Encoding: gzip. The root part is never compressed.
func (m *Message) CompressParts(c *Compressor) error {
	if c == nil {
		c = NewCompressor()
	}
	for i := range m.Parts {
		part := &m.Parts[i]
		if !c.shouldCompress(part) {
			continue
		}
		compressed, err := c.Compress(part.Data)
		if err != nil {
			return fmt.Errorf("failed to compress part %q: %w", part.ContentID, err)
		}
		part.Data = compressed
		part.ContentEncoding = ContentEncodingGzip
	}
	return nil
}
