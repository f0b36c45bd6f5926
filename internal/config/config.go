// Package config handles configuration loading for the XOP transcoder.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax). This allows values like
// database credentials to be injected at runtime.
//
// # Configuration Sections
//
//   - encoding: encoder kind, optimization policy and Content-ID generation
//   - package: MIME packaging of the XOP infoset and its parts
//   - storage: optional MongoDB GridFS store for binary parts
//   - logging: log level and format
//
// # Example Configuration
//
//	encoding:
//	  mode: reader
//	  policy: threshold
//	  threshold: 1024
//	  ids: uuid
//	  domain: example.org
//
//	package:
//	  rootType: application/soap+xml
//	  compress: true
//	  compressMinSize: 256
//	  maxPartSize: 67108864
//
//	storage:
//	  mongodb:
//	    uri: ${MONGODB_URI}
//	    database: xop
//
//	logging:
//	  level: debug
//	  format: json
//
// See [Load] for loading configuration from a file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Encoder modes
const (
	// ModeReader pulls events through an xop.EncodingReader
	ModeReader = "reader"
	// ModeWriter pushes events into an xop.EncodingWriter
	ModeWriter = "writer"
)

// Optimization policies
const (
	PolicyDefault   = "default"
	PolicyAll       = "all"
	PolicyThreshold = "threshold"
)

// Content-ID generators
const (
	IDsUUID    = "uuid"
	IDsCounter = "counter"
	IDsContent = "content"
)

// Config is the root configuration structure
type Config struct {
	Encoding EncodingConfig `yaml:"encoding"`
	Package  PackageConfig  `yaml:"package"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// EncodingConfig holds XOP encoder settings
type EncodingConfig struct {
	// Mode selects the encoder: "reader" or "writer"
	Mode string `yaml:"mode"`
	// Policy is "default", "all" or "threshold"
	Policy string `yaml:"policy"`
	// Threshold is the minimum part size in bytes for the threshold policy
	Threshold int `yaml:"threshold"`
	// IDs selects the Content-ID generator: "uuid", "counter" or "content"
	IDs string `yaml:"ids"`
	// Domain is the right-hand side of generated Content-IDs
	Domain string `yaml:"domain"`
}

// PackageConfig holds MIME packaging settings
type PackageConfig struct {
	// RootType is the media type of the XML carried in the root part
	RootType string `yaml:"rootType"`
	// Compress gzips parts whose content type allows it
	Compress bool `yaml:"compress"`
	// CompressMinSize leaves parts below this many bytes uncompressed
	CompressMinSize int `yaml:"compressMinSize"`
	// MaxPartSize bounds the decompressed size of a gzip part when
	// decoding. Zero means no limit.
	MaxPartSize int64 `yaml:"maxPartSize"`
}

// StorageConfig holds part storage settings
type StorageConfig struct {
	MongoDB MongoDBConfig `yaml:"mongodb"`
}

// MongoDBConfig holds MongoDB connection settings
type MongoDBConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
	GridFS   struct {
		BucketName     string `yaml:"bucketName"`
		ChunkSizeBytes int    `yaml:"chunkSizeBytes"`
	} `yaml:"gridfs"`
	Timeout time.Duration `yaml:"timeout"`
}

// Enabled reports whether parts go to MongoDB instead of the MIME package
func (c MongoDBConfig) Enabled() bool {
	return c.URI != ""
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error"
	Level string `yaml:"level"`
	// Format is "text" or "json"
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse reads configuration from YAML data
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Encoding.Mode == "" {
		c.Encoding.Mode = ModeReader
	}
	if c.Encoding.Policy == "" {
		c.Encoding.Policy = PolicyDefault
	}
	if c.Encoding.IDs == "" {
		c.Encoding.IDs = IDsUUID
	}
	if c.Package.RootType == "" {
		c.Package.RootType = "text/xml"
	}
	if c.Storage.MongoDB.Database == "" {
		c.Storage.MongoDB.Database = "xop"
	}
	if c.Storage.MongoDB.GridFS.BucketName == "" {
		c.Storage.MongoDB.GridFS.BucketName = "parts"
	}
	if c.Storage.MongoDB.GridFS.ChunkSizeBytes == 0 {
		c.Storage.MongoDB.GridFS.ChunkSizeBytes = 261120 // 255KB
	}
	if c.Storage.MongoDB.Timeout == 0 {
		c.Storage.MongoDB.Timeout = 30 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks option values
func (c *Config) Validate() error {
	switch c.Encoding.Mode {
	case ModeReader, ModeWriter:
	default:
		return fmt.Errorf("encoding.mode must be 'reader' or 'writer', got '%s'", c.Encoding.Mode)
	}

	switch c.Encoding.Policy {
	case PolicyDefault, PolicyAll:
	case PolicyThreshold:
		if c.Encoding.Threshold <= 0 {
			return fmt.Errorf("encoding.threshold must be positive when policy is 'threshold'")
		}
	default:
		return fmt.Errorf("encoding.policy must be 'default', 'all' or 'threshold', got '%s'", c.Encoding.Policy)
	}

	switch c.Encoding.IDs {
	case IDsUUID, IDsCounter, IDsContent:
	default:
		return fmt.Errorf("encoding.ids must be 'uuid', 'counter' or 'content', got '%s'", c.Encoding.IDs)
	}

	if c.Package.CompressMinSize < 0 {
		return fmt.Errorf("package.compressMinSize must not be negative")
	}
	if c.Package.MaxPartSize < 0 {
		return fmt.Errorf("package.maxPartSize must not be negative")
	}

	if c.Storage.MongoDB.GridFS.ChunkSizeBytes < 0 {
		return fmt.Errorf("storage.mongodb.gridfs.chunkSizeBytes must not be negative")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be 'text' or 'json', got '%s'", c.Logging.Format)
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}

	return nil
}
