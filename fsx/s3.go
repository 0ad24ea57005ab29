package fsx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the part of *s3.Client used by S3.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3 stores files as objects of one bucket; paths are object keys.
type S3 struct {
	client S3API
	bucket string
}

func NewS3(client S3API, bucket string) *S3 {
	return &S3{client: client, bucket: bucket}
}

// NewS3FromEnv builds a client from the default AWS configuration chain.
func NewS3FromEnv(ctx context.Context, bucket string) (*S3, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, ErrorRegistry.NewWithCause(ErrConfigFailed, err)
	}
	return NewS3(s3.NewFromConfig(cfg), bucket), nil
}

func (s *S3) ReadFile(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, ErrorRegistry.NewWithCause(ErrNotFound, err).WithDetail("key", key)
		}
		return nil, ErrorRegistry.NewWithCause(ErrReadFailed, err).WithDetail("key", key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, ErrorRegistry.NewWithCause(ErrReadFailed, err).WithDetail("key", key)
	}
	return data, nil
}

func (s *S3) WriteFile(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType(key)),
	})
	if err != nil {
		return ErrorRegistry.NewWithCause(ErrWriteFailed, err).
			WithDetail("bucket", s.bucket).
			WithDetail("key", key)
	}
	return nil
}

func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var missing *types.NotFound
	if errors.As(err, &missing) {
		return false, nil
	}
	return false, ErrorRegistry.NewWithCause(ErrReadFailed, err).WithDetail("key", key)
}

func contentType(key string) string {
	if strings.HasSuffix(key, ".json") {
		return "application/json"
	}
	return "text/plain; charset=utf-8"
}
