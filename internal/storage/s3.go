package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

var ErrUpload = errors.New("failed to upload artifact")

const DefaultPresignTTL = time.Hour

type S3Config struct {
	Bucket string
	// Prefix is prepended to every object key.
	Prefix string
	// Endpoint overrides the S3 endpoint, for S3-compatible stores. Path
	// style addressing is used when set.
	Endpoint   string
	Region     string
	PresignTTL time.Duration

	// AccessKeyID and SecretAccessKey, when both set, replace the default
	// credential chain.
	AccessKeyID     string
	SecretAccessKey string
}

// S3Store uploads generated videos to a bucket and hands back presigned GET
// URLs.
type S3Store struct {
	client     *s3.Client
	presign    *s3.PresignClient
	bucket     string
	prefix     string
	presignTTL time.Duration
	logger     zerolog.Logger
}

func NewS3Store(ctx context.Context, cfg S3Config, logger zerolog.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	return &S3Store{
		client:     client,
		presign:    s3.NewPresignClient(client),
		bucket:     cfg.Bucket,
		prefix:     cfg.Prefix,
		presignTTL: ttl,
		logger:     logger,
	}, nil
}

// Key returns the object key for a job's artifact.
func (s *S3Store) Key(jobID, filename string) string {
	return path.Join(s.prefix, jobID, path.Base(filename))
}

// Put uploads data and returns a presigned URL for it.
func (s *S3Store) Put(ctx context.Context, jobID, filename string, data []byte) (string, error) {
	key := s.Key(jobID, filename)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType(filename)),
	})
	if err != nil {
		return "", fmt.Errorf("%w: s3://%s/%s: %w", ErrUpload, s.bucket, key, err)
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign s3://%s/%s: %w", s.bucket, key, err)
	}
	s.logger.Info().Str("bucket", s.bucket).Str("key", key).Int("bytes", len(data)).Msg("artifact uploaded")
	return req.URL, nil
}

func contentType(filename string) string {
	switch path.Ext(filename) {
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
