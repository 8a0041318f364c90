package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Config struct {
	Region    string
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Prefix    string
	PathStyle bool
}

// S3Store keeps blobs in an S3-compatible bucket (AWS, MinIO).
type S3Store struct {
	client         objectAPI
	bucket         string
	prefix         string
	maxUploadBytes int64
}

func NewS3Store(ctx context.Context, cfg S3Config, maxUploadBytes int64) (*S3Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if maxUploadBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be > 0")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return newS3Store(client, cfg.Bucket, cfg.Prefix, maxUploadBytes), nil
}

func newS3Store(client objectAPI, bucket, prefix string, maxUploadBytes int64) *S3Store {
	return &S3Store{
		client:         client,
		bucket:         bucket,
		prefix:         strings.Trim(prefix, "/"),
		maxUploadBytes: maxUploadBytes,
	}
}

func (s *S3Store) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// Save buffers the upload in memory; PutObject needs a known length and
// uploads are capped at MaxUploadBytes.
func (s *S3Store) Save(ctx context.Context, kind Kind, originalName string, src io.Reader) (*StoredBlob, error) {
	mimeType, full, err := sniffUpload(kind, src)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(full, s.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading blob data: %w", err)
	}
	if int64(len(data)) > s.maxUploadBytes {
		return nil, ErrFileTooLarge
	}

	blobID, err := newBlobID()
	if err != nil {
		return nil, err
	}
	relPath := blobRelativePath(kind, blobID)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(relPath)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(mimeType),
	})
	if err != nil {
		return nil, fmt.Errorf("uploading blob: %w", err)
	}

	return &StoredBlob{
		ID:           blobID,
		Kind:         kind,
		StoragePath:  relPath,
		MimeType:     mimeType,
		SizeBytes:    int64(len(data)),
		OriginalName: sanitizeOriginalName(originalName),
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func (s *S3Store) Open(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	clean, err := cleanStoragePath(storagePath)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(clean)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("downloading blob: %w", err)
	}
	return out.Body, nil
}

func (s *S3Store) Delete(ctx context.Context, storagePath string) error {
	clean, err := cleanStoragePath(storagePath)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(clean)),
	})
	if err != nil {
		return fmt.Errorf("deleting blob: %w", err)
	}
	return nil
}

func (s *S3Store) key(relPath string) string {
	if s.prefix == "" {
		return relPath
	}
	return s.prefix + "/" + relPath
}
