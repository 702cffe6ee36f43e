package service

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	config "github.com/maheshrc27/postpulse/configs"
	"github.com/maheshrc27/postpulse/internal/apperr"
)

// maxImageBytes is the largest still image X accepts.
const maxImageBytes = 5 << 20

type MediaService interface {
	// FetchImage downloads an uploaded image and returns its bytes and MIME type.
	FetchImage(ctx context.Context, imageURL string) ([]byte, string, error)
}

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type mediaService struct {
	bucket string
	store  objectGetter
}

func NewMediaService(ctx context.Context, cfg config.R2) (MediaService, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("load r2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
	})
	return newMediaService(cfg.BucketName, client), nil
}

func newMediaService(bucket string, store objectGetter) *mediaService {
	return &mediaService{bucket: bucket, store: store}
}

func (s *mediaService) FetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	key, err := objectKey(imageURL)
	if err != nil {
		return nil, "", err
	}

	out, err := s.store.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", apperr.Dispatch("fetch image %s: %v", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", apperr.Dispatch("read image %s: %v", key, err)
	}
	if len(data) > maxImageBytes {
		return nil, "", apperr.Validation("image %s exceeds %d bytes", key, maxImageBytes)
	}

	kind, err := filetype.Match(data)
	if err != nil || !filetype.IsImage(data) {
		return nil, "", apperr.Validation("object %s is not a supported image", key)
	}
	return data, kind.MIME.Value, nil
}

// objectKey turns a stored image URL (absolute or bare key) into a bucket key.
func objectKey(imageURL string) (string, error) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return "", apperr.Validation("invalid image url %q", imageURL)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", apperr.Validation("image url %q has no object key", imageURL)
	}
	return key, nil
}
