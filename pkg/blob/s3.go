package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Client abstracts the S3 API operations used by [S3Store].
// The [s3.Client] type satisfies this interface.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store implements Store backed by Amazon S3 or any S3-compatible
// object store (MinIO, R2, etc.).
//
// The caller is responsible for configuring the [s3.Client] with
// appropriate credentials, region, and endpoint.
type S3Store struct {
	client S3Client
	bucket string
	prefix string

	// publicBaseURL, when set, is used to build returned URLs instead
	// of the default virtual-hosted S3 URL.
	publicBaseURL string
}

// NewS3 creates an S3-backed Store.
//
// Prefix is prepended to all object keys; pass "" for no prefix.
// publicBaseURL overrides the returned URL base (for CDN fronting or
// custom endpoints); pass "" for the default
// https://<bucket>.s3.amazonaws.com form.
func NewS3(client S3Client, bucket, prefix, publicBaseURL string) *S3Store {
	return &S3Store{
		client:        client,
		bucket:        bucket,
		prefix:        prefix,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}
}

func (s *S3Store) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

// Put uploads the blob via PutObject and returns its URL.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	full := s.key(key)
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(full),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		if code := apiErrorCode(err); code != "" {
			return "", fmt.Errorf("blob: put %s: %s: %w", key, code, err)
		}
		return "", fmt.Errorf("blob: put %s: %w", key, err)
	}
	return s.urlFor(full), nil
}

// apiErrorCode extracts the S3 API error code ("NoSuchBucket",
// "AccessDenied", ...) from err, or "" for transport-level failures.
func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func (s *S3Store) urlFor(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + strings.TrimPrefix(escaped, "/")
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, strings.TrimPrefix(escaped, "/"))
}

// Compile-time interface check.
var _ Store = (*S3Store)(nil)
