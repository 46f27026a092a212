package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSStore keeps blobs in a MongoDB GridFS bucket. References are the
// hex file ids.
type GridFSStore struct {
	bucket  *gridfs.Bucket
	baseURL string
}

// NewGridFSStore opens bucket in db.
func NewGridFSStore(db *mongo.Database, bucket, publicBaseURL string) (*GridFSStore, error) {
	b, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucket))
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket: %w", err)
	}
	return &GridFSStore{bucket: b, baseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

func (s *GridFSStore) Put(_ context.Context, img Image, meta Meta) (string, error) {
	purpose := meta.Purpose
	if purpose == "" {
		purpose = "evidence"
	}
	name := fmt.Sprintf("%s-%s%s", purpose, uuid.NewString(), img.Extension)
	opts := options.GridFSUpload().SetMetadata(bson.D{
		{Key: "contentType", Value: img.ContentType},
		{Key: "originalName", Value: meta.Filename},
	})

	id, err := s.bucket.UploadFromStream(name, bytes.NewReader(img.Data), opts)
	if err != nil {
		return "", fmt.Errorf("upload blob: %w", err)
	}
	return id.Hex(), nil
}

func (s *GridFSStore) Open(_ context.Context, ref string) (io.ReadCloser, string, error) {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return nil, "", ErrInvalidRef
	}
	stream, err := s.bucket.OpenDownloadStream(id)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("open blob: %w", err)
	}

	contentType := "application/octet-stream"
	if file := stream.GetFile(); file != nil && file.Metadata != nil {
		if v, ok := file.Metadata.Lookup("contentType").StringValueOK(); ok {
			contentType = v
		}
	}
	return stream, contentType, nil
}

func (s *GridFSStore) Delete(ctx context.Context, ref string) error {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return ErrInvalidRef
	}
	err = s.bucket.DeleteContext(ctx, id)
	if err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

func (s *GridFSStore) URL(ref string) string {
	return s.baseURL + "/uploads/" + ref
}
