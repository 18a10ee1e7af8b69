package assets

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/models"
)

// Folders (key prefixes) assets are stored in
const (
	FolderAvatars    = "avatars"
	FolderCovers     = "covers"
	FolderVideos     = "videos"
	FolderThumbnails = "thumbnails"
)

var loadDefaultAWSConfig = config.LoadDefaultConfig

type Config struct {
	// Custom endpoint, e.g. MinIO. Empty to use AWS
	Endpoint string
	Region   string
	Bucket   string

	AccessKey string
	SecretKey string

	// Base of URLs returned to clients
	// If not set it is built from endpoint and bucket
	PublicURL string
}

// Asset storage on top of S3 compatible object storage
type S3Storage struct {
	client    *s3.Client
	bucket    string
	publicURL string
	now       func() time.Time
}

func NewS3Storage(ctx context.Context, c Config) (*S3Storage, error) {
	if c.Bucket == "" {
		return nil, errors.New("bucket must not be empty")
	}
	if c.Region == "" {
		c.Region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(c.Region),
		config.WithRetryMaxAttempts(1),
	}
	if c.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, ""),
		))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error while loading aws config. Err: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})

	publicURL := c.PublicURL
	switch {
	case publicURL != "":
	case c.Endpoint != "":
		publicURL = strings.TrimRight(c.Endpoint, "/") + "/" + c.Bucket
	default:
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.Bucket, c.Region)
	}

	return &S3Storage{
		client:    client,
		bucket:    c.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}, nil
}

// Upload asset under random key in the folder and return its public URL
// Failures are reported as apperrors.ErrAssetUpload
func (s *S3Storage) Upload(ctx context.Context, folder string, asset models.Asset) (string, error) {
	key := s.key(folder, asset.Filename)

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   asset.Body,
	}
	if asset.ContentType != "" {
		input.ContentType = aws.String(asset.ContentType)
	}
	if asset.Size > 0 {
		input.ContentLength = aws.Int64(asset.Size)
	}

	_, err := s.client.PutObject(ctx, input)
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %w", apperrors.ErrAssetUpload, key, err)
	}

	return s.publicURL + "/" + key, nil
}

func (s *S3Storage) key(folder string, filename string) string {
	d := s.now().UTC()
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%s/%d/%02d/%02d/%s%s", folder, d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}
