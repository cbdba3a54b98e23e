// Package attachment issues URLs for todo attachments stored in S3. Each
// attachment is stored under the todo's id as object key.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jaekwang-park/todo-dynamo/internal/awsclient"
)

// Presigner is the subset of the S3 presign client used by Issuer.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var _ Presigner = (*s3.PresignClient)(nil)

// NewPresigner builds an S3 presign client from cfg. A custom BaseEndpoint
// in cfg switches to path-style addressing.
func NewPresigner(cfg aws.Config) *s3.PresignClient {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.BaseEndpoint != nil
	})
	return s3.NewPresignClient(client)
}

type Issuer struct {
	presigner  Presigner
	bucket     string
	expiration time.Duration
	endpoint   string
}

// NewIssuer returns an Issuer for bucket. endpoint is the custom S3 endpoint
// in use, or "" for AWS.
func NewIssuer(presigner Presigner, bucket string, expiration time.Duration, endpoint string) (*Issuer, error) {
	if presigner == nil {
		return nil, errors.New("presigner cannot be nil")
	}
	if bucket == "" {
		return nil, errors.New("bucket cannot be empty")
	}
	if expiration <= 0 {
		return nil, fmt.Errorf("expiration must be greater than zero, got %s", expiration)
	}
	return &Issuer{
		presigner:  presigner,
		bucket:     bucket,
		expiration: expiration,
		endpoint:   strings.TrimSuffix(endpoint, "/"),
	}, nil
}

func (i *Issuer) Bucket() string {
	return i.bucket
}

func (i *Issuer) Expiration() time.Duration {
	return i.expiration
}

// ObjectURL returns the unsigned URL of the attachment for todoID.
func (i *Issuer) ObjectURL(todoID string) string {
	key := url.PathEscape(todoID)
	if i.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", i.endpoint, i.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", i.bucket, key)
}

// UploadURL returns a pre-signed PUT URL for the attachment of todoID.
func (i *Issuer) UploadURL(ctx context.Context, todoID string) (string, error) {
	if todoID == "" {
		return "", errors.New("todo ID cannot be empty")
	}

	req, err := i.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(i.bucket),
		Key:    aws.String(todoID),
	}, s3.WithPresignExpires(i.expiration))
	if err != nil {
		return "", fmt.Errorf("failed to presign upload for %s in bucket %s: %w", todoID, i.bucket, awsclient.MapError(err))
	}
	return req.URL, nil
}

// DownloadURL returns a pre-signed GET URL for the attachment of todoID.
func (i *Issuer) DownloadURL(ctx context.Context, todoID string) (string, error) {
	if todoID == "" {
		return "", errors.New("todo ID cannot be empty")
	}

	req, err := i.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(i.bucket),
		Key:    aws.String(todoID),
	}, s3.WithPresignExpires(i.expiration))
	if err != nil {
		return "", fmt.Errorf("failed to presign download for %s in bucket %s: %w", todoID, i.bucket, awsclient.MapError(err))
	}
	return req.URL, nil
}
