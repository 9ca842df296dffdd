// Package storage keeps uploaded document bytes in S3-compatible object
// storage. Uploads go through presigned URLs so the same path works for
// MinIO and AWS.
package storage

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/netx"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

const presignExpiry = 15 * time.Minute

// BlobStore is what onboarding needs from object storage.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
	PresignGet(ctx context.Context, key string) (string, error)
}

type S3Config struct {
	Region   string
	User     string
	Password string
	Endpoint string
	Bucket   string
}

type S3Store struct {
	cfg    S3Config
	client *http.Client
}

// NewS3Store builds a store; client uploads the presigned PUTs and may be
// nil for http.DefaultClient.
func NewS3Store(cfg S3Config, client *http.Client) *S3Store {
	return &S3Store{cfg: cfg, client: client}
}

// NewKey returns a fresh object key under documents/YYYY/M/D/.
func NewKey(now time.Time) string {
	return fmt.Sprintf("documents/%d/%d/%d/%v", now.Year(), now.Month(), now.Day(), uuid.New())
}

func (s *S3Store) presignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.cfg.User, s.cfg.Password, "")))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3PresignClient(client), nil
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, body []byte) error {
	pc, err := s.presignClient(ctx)
	if err != nil {
		return fmt.Errorf("s3 config: %w", err)
	}

	bucket := s.cfg.Bucket
	req, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return fmt.Errorf("presign put %s: %w", key, err)
	}

	if err := netx.PutPresigned(ctx, s.client, req.URL, contentType, body); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) PresignGet(ctx context.Context, key string) (string, error) {
	pc, err := s.presignClient(ctx)
	if err != nil {
		return "", fmt.Errorf("s3 config: %w", err)
	}

	bucket := s.cfg.Bucket
	req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return req.URL, nil
}
