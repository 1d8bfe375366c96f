package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/dmitrijs2005/memberkeeper/internal/server/blobstore")

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// s3API is the part of *s3.Client the store uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config locates the bucket and the public URL objects are served from.
type S3Config struct {
	Bucket        string
	Region        string
	AccessKey     string
	SecretKey     string
	BaseEndpoint  string
	PublicBaseURL string
	UsePathStyle  bool
}

// S3Store keeps blobs in an S3-compatible bucket (AWS, MinIO).
type S3Store struct {
	client  s3API
	bucket  string
	baseURL string
	now     func() time.Time
	newID   func() string
}

// NewS3Store builds a client from cfg. Static credentials are used when an
// access key is given; otherwise the default AWS credential chain applies.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3Store(client, cfg), nil
}

func newS3Store(client s3API, cfg S3Config) *S3Store {
	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// objectKey lays keys out as <folder>/<yyyy>/<mm>/<id><ext>.
func (s *S3Store) objectKey(folder, contentType string) string {
	d := s.now().UTC()
	name := s.newID() + ExtensionFor(contentType)
	return path.Join(strings.Trim(folder, "/"), fmt.Sprintf("%04d", d.Year()), fmt.Sprintf("%02d", int(d.Month())), name)
}

// URLFor returns the public URL of key.
func (s *S3Store) URLFor(key string) string {
	return s.baseURL + "/" + s.bucket + "/" + key
}

func (s *S3Store) Upload(ctx context.Context, data []byte, folder, contentType string) (Object, error) {
	key := s.objectKey(folder, contentType)

	ctx, span := tracer.Start(ctx, "blobstore.Upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("blob.bucket", s.bucket),
		attribute.String("blob.key", key),
		attribute.Int("blob.size", len(data)),
	)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "put object")
		return Object{}, fmt.Errorf("put object %s: %w", key, err)
	}

	return Object{URL: s.URLFor(key), ExternalID: key}, nil
}

func (s *S3Store) Delete(ctx context.Context, externalID string) error {
	ctx, span := tracer.Start(ctx, "blobstore.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("blob.bucket", s.bucket), attribute.String("blob.key", externalID))

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(externalID),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete object")
		return fmt.Errorf("delete object %s: %w", externalID, err)
	}
	return nil
}
