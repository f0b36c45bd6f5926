// Package mongodb implements partstore.Store using MongoDB GridFS
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sirosfoundation/go-xop/internal/partstore"
	"github.com/sirosfoundation/go-xop/pkg/attachment"
)

// Store implements partstore.Store using a GridFS bucket. Each part is a
// GridFS file named by its Content-ID.
type Store struct {
	client *mongo.Client
	gridfs *gridfs.Bucket
	files  *mongo.Collection

	// guards the bucket deadlines
	mu sync.Mutex
}

// Config holds MongoDB connection settings
type Config struct {
	URI            string
	Database       string
	GridFSBucket   string
	ChunkSizeBytes int32
}

// NewStore connects to MongoDB and opens the parts bucket
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	s, err := newStore(client, cfg)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	if err := s.createIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("creating indexes: %w", err)
	}
	return s, nil
}

func newStore(client *mongo.Client, cfg *Config) (*Store, error) {
	db := client.Database(cfg.Database)

	bucketName := cfg.GridFSBucket
	if bucketName == "" {
		bucketName = "parts"
	}
	chunkSize := cfg.ChunkSizeBytes
	if chunkSize == 0 {
		chunkSize = 261120 // 255KB
	}
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().
		SetName(bucketName).
		SetChunkSizeBytes(chunkSize))
	if err != nil {
		return nil, fmt.Errorf("creating GridFS bucket: %w", err)
	}

	return &Store{
		client: client,
		gridfs: bucket,
		files:  bucket.GetFilesCollection(),
	}, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.files.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "metadata.content_id", Value: 1}},
	})
	return err
}

// setDeadlines applies the context deadline to bucket operations, which do
// not take a context. Callers hold s.mu.
func (s *Store) setDeadlines(ctx context.Context) error {
	deadline, _ := ctx.Deadline()
	if err := s.gridfs.SetReadDeadline(deadline); err != nil {
		return err
	}
	return s.gridfs.SetWriteDeadline(deadline)
}

// Put uploads a part. Earlier revisions with the same Content-ID are removed
// once the upload succeeds.
func (s *Store) Put(ctx context.Context, part *partstore.PartData) error {
	if part.Checksum == "" {
		part.Checksum = partstore.Checksum(part.Data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.setDeadlines(ctx); err != nil {
		return err
	}

	uploadOpts := options.GridFSUpload().SetMetadata(bson.M{
		"content_id": part.ContentID,
		"mime_type":  part.MimeType,
		"checksum":   part.Checksum,
	})

	uploadStream, err := s.gridfs.OpenUploadStream(part.ContentID, uploadOpts)
	if err != nil {
		return fmt.Errorf("opening upload stream: %w", err)
	}
	if _, err := uploadStream.Write(part.Data); err != nil {
		_ = uploadStream.Abort()
		return fmt.Errorf("writing part: %w", err)
	}
	if err := uploadStream.Close(); err != nil {
		return fmt.Errorf("closing upload stream: %w", err)
	}

	ids, err := s.fileIDs(ctx, part.ContentID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == uploadStream.FileID {
			continue
		}
		if err := s.gridfs.Delete(id); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("removing previous revision of %q: %w", part.ContentID, err)
		}
	}
	return nil
}

// Get downloads the latest revision of a part
func (s *Store) Get(ctx context.Context, contentID string) (*partstore.PartData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.setDeadlines(ctx); err != nil {
		return nil, err
	}

	downloadStream, err := s.gridfs.OpenDownloadStreamByName(contentID)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, fmt.Errorf("%w: %s", attachment.ErrNotFound, contentID)
	}
	if err != nil {
		return nil, fmt.Errorf("opening download stream: %w", err)
	}
	defer downloadStream.Close()

	data, err := io.ReadAll(downloadStream)
	if err != nil {
		return nil, fmt.Errorf("reading part: %w", err)
	}

	part := partFromMetadata(downloadStream.GetFile().Metadata)
	if part.ContentID == "" {
		part.ContentID = contentID
	}
	part.Data = data
	return part, nil
}

// partFromMetadata reads the fields Put records on each file
func partFromMetadata(metadata bson.Raw) *partstore.PartData {
	part := &partstore.PartData{}
	if metadata == nil {
		return part
	}
	part.ContentID, _ = metadata.Lookup("content_id").StringValueOK()
	part.MimeType, _ = metadata.Lookup("mime_type").StringValueOK()
	part.Checksum, _ = metadata.Lookup("checksum").StringValueOK()
	return part
}

// Exists reports whether any revision of a part is stored
func (s *Store) Exists(ctx context.Context, contentID string) (bool, error) {
	n, err := s.files.CountDocuments(ctx, bson.M{"filename": contentID})
	if err != nil {
		return false, fmt.Errorf("counting parts: %w", err)
	}
	return n > 0, nil
}

// Delete removes every revision of a part
func (s *Store) Delete(ctx context.Context, contentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.setDeadlines(ctx); err != nil {
		return err
	}

	ids, err := s.fileIDs(ctx, contentID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: %s", attachment.ErrNotFound, contentID)
	}
	for _, id := range ids {
		if err := s.gridfs.Delete(id); err != nil {
			return fmt.Errorf("deleting part %q: %w", contentID, err)
		}
	}
	return nil
}

func (s *Store) fileIDs(ctx context.Context, contentID string) ([]interface{}, error) {
	cursor, err := s.files.Find(ctx, bson.M{"filename": contentID},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("finding part %q: %w", contentID, err)
	}
	var docs []struct {
		ID interface{} `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("reading part %q: %w", contentID, err)
	}
	ids := make([]interface{}, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.client.Ping(ctx, nil)
}

// Close closes the MongoDB connection
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
