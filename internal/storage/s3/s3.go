// Package s3 stores objects in Amazon S3 or an S3-compatible service.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/vetclinic/sitemedia/internal/storage"
)

// objectAPI is the subset of *s3.Client the store uses.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Config selects the bucket and, for S3-compatible services, the endpoint.
type Config struct {
	Region          string
	Bucket          string
	Endpoint        string
	PublicBaseURL   string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// Store implements storage.Storage using S3 conditional writes.
type Store struct {
	client        objectAPI
	bucket        string
	region        string
	endpoint      string
	publicBaseURL string
	pathStyle     bool
}

// New creates an S3-backed store. Static credentials are used when an
// access key is configured, otherwise the default AWS credential chain.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
	}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newStore(client, cfg), nil
}

func newStore(client objectAPI, cfg Config) *Store {
	return &Store{
		client:        client,
		bucket:        cfg.Bucket,
		region:        cfg.Region,
		endpoint:      strings.TrimRight(cfg.Endpoint, "/"),
		publicBaseURL: cfg.PublicBaseURL,
		pathStyle:     cfg.UsePathStyle,
	}
}

// Upload puts the object. Without Upsert the request carries
// If-None-Match: * so an existing key is never replaced.
func (s *Store) Upload(ctx context.Context, input *storage.UploadInput) error {
	put := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(input.Key),
		Body:          bytes.NewReader(input.Data),
		ContentLength: aws.Int64(int64(len(input.Data))),
		ContentType:   aws.String(input.ContentType),
	}
	if input.CacheControl != "" {
		put.CacheControl = aws.String("max-age=" + input.CacheControl)
	}
	if !input.Upsert {
		put.IfNoneMatch = aws.String("*")
	}

	if _, err := s.client.PutObject(ctx, put); err != nil {
		if isConditionalFailure(err) {
			return fmt.Errorf("%w: %s", storage.ErrObjectExists, input.Key)
		}
		return fmt.Errorf("s3 put object bucket=%s key=%s: %w", s.bucket, input.Key, err)
	}
	return nil
}

// PublicURL prefers the configured public base URL, then the custom
// endpoint, then the virtual-hosted AWS address.
func (s *Store) PublicURL(key string) string {
	switch {
	case s.publicBaseURL != "":
		return storage.JoinURL(s.publicBaseURL, key)
	case s.endpoint != "" && s.pathStyle:
		return storage.JoinURL(s.endpoint, s.bucket+"/"+key)
	case s.endpoint != "":
		return storage.JoinURL(s.endpoint, key)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, strings.TrimLeft(key, "/"))
	}
}

// Delete removes an object. S3 reports success for missing keys.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete object bucket=%s key=%s: %w", s.bucket, key, err)
	}
	return nil
}

// Ping checks bucket access with HeadBucket.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("s3 head bucket %s: %w", s.bucket, err)
	}
	return nil
}

func isConditionalFailure(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	default:
		return false
	}
}
