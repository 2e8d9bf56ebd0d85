package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"avoitenko/liftlog/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// s3Store implements the FileStore interface on an S3-compatible bucket.
// The object ETag is the version token; writes use conditional requests
// (If-Match for updates, If-None-Match: * for creates) so a stale token is
// rejected by the bucket itself with 412.
type s3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store creates a FileStore backed by an S3 bucket.
func NewS3Store(cfg config.S3Config) (FileStore, error) {
	// Custom resolver for S3-compatible endpoints (like MinIO).
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if cfg.Endpoint != "" {
			return aws.Endpoint{
				PartitionID:   "aws",
				URL:           cfg.Endpoint,
				SigningRegion: cfg.Region,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsSDKConfig, err := awsCfg.LoadDefaultConfig(context.TODO(),
		awsCfg.WithRegion(cfg.Region),
		awsCfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		awsCfg.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		log.Printf("ERROR: Failed to load AWS SDK config for S3: %v", err)
		return nil, err
	}

	// Path-style addressing is required by most S3-compatible services.
	client := s3.NewFromConfig(awsSDKConfig, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	log.Printf("S3 store initialized for endpoint: %s, bucket: %s", cfg.Endpoint, cfg.BucketName)
	return &s3Store{client: client, bucket: cfg.BucketName}, nil
}

// GetFile reads an object; the returned version token is the object's ETag.
func (s *s3Store) GetFile(ctx context.Context, path string) (*File, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return nil, mapS3Error(err)
	}
	defer out.Body.Close()

	content, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	return &File{Content: content, Version: aws.ToString(out.ETag)}, nil
}

// PutFile writes an object conditionally. The commit message has no home in
// S3 and is ignored.
func (s *s3Store) PutFile(ctx context.Context, path string, content []byte, message, expectedVersion string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(path),
		Body:        bytes.NewReader(content),
		ContentType: aws.String("application/json"),
	}
	if expectedVersion != "" {
		input.IfMatch = aws.String(expectedVersion)
	} else {
		input.IfNoneMatch = aws.String("*")
	}

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return "", mapS3Error(err)
	}
	return aws.ToString(out.ETag), nil
}

// ListFiles lists objects directly under dir.
func (s *s3Store) ListFiles(ctx context.Context, dir string) ([]FileInfo, error) {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	if err != nil {
		return nil, mapS3Error(err)
	}

	infos := make([]FileInfo, 0, len(out.Contents))
	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		name := strings.TrimPrefix(key, prefix)
		if name == "" {
			continue
		}
		infos = append(infos, FileInfo{Name: name, Path: key})
	}
	return infos, nil
}

// mapS3Error translates SDK errors into the store taxonomy.
func mapS3Error(err error) error {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return ErrNotFound
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return ErrNotFound
		case "PreconditionFailed":
			return ErrConflict
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return ErrAuthFailed
		}
		return err
	}
	return &NetworkError{Err: err}
}
