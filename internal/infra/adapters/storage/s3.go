package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"a2z-marketplace/internal/config"
	"a2z-marketplace/internal/domain"
	"a2z-marketplace/internal/domain/ports/adapter"
)

var _ adapter.ObjectStorage = (*S3Storage)(nil)

// deleteBatch is the S3 DeleteObjects key limit.
const deleteBatch = 1000

// S3Client is the subset of *s3.Client the storage needs.
type S3Client interface {
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Presigner is the subset of *s3.PresignClient the storage needs.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Storage keeps listing media in an S3-compatible bucket. Browsers upload
// straight to the bucket through presigned PUT URLs.
type S3Storage struct {
	client    S3Client
	presigner Presigner
	bucket    string
	publicURL string // always ends with "/"
}

// NewS3StorageWithClients is used by tests and callers that build their own clients.
func NewS3StorageWithClients(client S3Client, presigner Presigner, bucket, publicBaseURL string) *S3Storage {
	if !strings.HasSuffix(publicBaseURL, "/") {
		publicBaseURL += "/"
	}
	return &S3Storage{client: client, presigner: presigner, bucket: bucket, publicURL: publicBaseURL}
}

func NewS3Storage(ctx context.Context, cfg config.StorageConfig) (*S3Storage, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, fmt.Errorf("storage: bucket and region are required")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	base := cfg.PublicBaseURL
	if base == "" {
		if cfg.Endpoint != "" {
			base = fmt.Sprintf("%s/%s", strings.TrimSuffix(cfg.Endpoint, "/"), cfg.Bucket)
		} else {
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	return NewS3StorageWithClients(client, s3.NewPresignClient(client), cfg.Bucket, base), nil
}

func (s *S3Storage) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (*adapter.PresignedUpload, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" || strings.Contains(key, "..") {
		return nil, domain.Invalid("key", "invalid object key")
	}
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, classifyS3Error(err, "presign put")
	}
	return &adapter.PresignedUpload{
		UploadURL: req.URL,
		PublicURL: s.publicURL + key,
		Key:       key,
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

// Delete removes keys in batches. Missing objects are not an error.
func (s *S3Storage) Delete(ctx context.Context, keys ...string) error {
	objects := make([]types.ObjectIdentifier, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(k)})
	}
	for i := 0; i < len(objects); i += deleteBatch {
		end := min(i+deleteBatch, len(objects))
		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects[i:end], Quiet: aws.Bool(true)},
		})
		if err != nil {
			return classifyS3Error(err, "delete objects")
		}
		if out != nil {
			for _, e := range out.Errors {
				if aws.ToString(e.Code) == "NoSuchKey" {
					continue
				}
				return fmt.Errorf("%w: delete %s: %s", domain.ErrOperationFailed, aws.ToString(e.Key), aws.ToString(e.Message))
			}
		}
	}
	return nil
}

func (s *S3Storage) KeyFromURL(publicURL string) (string, bool) {
	if !strings.HasPrefix(publicURL, s.publicURL) {
		return "", false
	}
	key := strings.TrimPrefix(publicURL, s.publicURL)
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}

func classifyS3Error(err error, operation string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", operation, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %s (code: %s)", domain.ErrOperationFailed, operation, apiErr.ErrorCode())
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrOperationFailed, operation, err)
}
