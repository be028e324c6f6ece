package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const (
	defaultUploadTimeout     = 30 * time.Second
	defaultDownloadURLExpiry = 15 * time.Minute
	maxDownloadURLExpiry     = time.Hour
)

var (
	errInvalidBucket = errors.New("storage: bucket name is required")
	errInvalidObject = errors.New("storage: object name is required")
	errNoSigner      = errors.New("storage: signer is required")
	errExpiryTooLong = errors.New("storage: expiry exceeds permitted maximum")
)

// Client uploads artifacts to a bucket and generates signed download URLs.
type Client struct {
	client *storage.Client
	bucket string
	signer Signer
	now    func() time.Time

	uploadTimeout time.Duration
}

// ClientOption customises client behaviour.
type ClientOption func(*Client)

// WithSigner enables signed download URL generation.
func WithSigner(signer Signer) ClientOption {
	return func(c *Client) {
		c.signer = signer
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.now = clock
		}
	}
}

// WithUploadTimeout bounds individual upload operations.
func WithUploadTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.uploadTimeout = d
		}
	}
}

// NewClient constructs a storage client bound to the given bucket.
func NewClient(ctx context.Context, bucket string, opts []ClientOption, clientOpts ...option.ClientOption) (*Client, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}

	gcs, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: create client: %w", err)
	}

	client := &Client{
		client:        gcs,
		bucket:        bucket,
		now:           time.Now,
		uploadTimeout: defaultUploadTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// UploadResult describes a completed artifact upload.
type UploadResult struct {
	Bucket    string
	Object    string
	URI       string
	Size      int64
	CreatedAt time.Time
}

// Upload writes the payload under the given object name, overwriting any previous version.
func (c *Client) Upload(ctx context.Context, object, contentType string, data []byte) (UploadResult, error) {
	if c == nil || c.client == nil {
		return UploadResult{}, errors.New("storage: client not initialised")
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return UploadResult{}, errInvalidObject
	}

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	w := c.client.Bucket(c.bucket).Object(object).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return UploadResult{}, fmt.Errorf("storage: write object %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("storage: finalise object %s: %w", object, err)
	}

	return UploadResult{
		Bucket:    c.bucket,
		Object:    object,
		URI:       fmt.Sprintf("gs://%s/%s", c.bucket, object),
		Size:      int64(len(data)),
		CreatedAt: c.now().UTC(),
	}, nil
}

// SignedDownloadURL generates a time-limited download URL for the object.
func (c *Client) SignedDownloadURL(ctx context.Context, object string, expiry time.Duration) (string, time.Time, error) {
	if c == nil {
		return "", time.Time{}, errors.New("storage: client not initialised")
	}
	if c.signer == nil || strings.TrimSpace(c.signer.Email()) == "" {
		return "", time.Time{}, errNoSigner
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return "", time.Time{}, errInvalidObject
	}

	if expiry <= 0 {
		expiry = defaultDownloadURLExpiry
	}
	if expiry > maxDownloadURLExpiry {
		return "", time.Time{}, errExpiryTooLong
	}

	expiresAt := c.now().Add(expiry)
	signedURL, err := storage.SignedURL(c.bucket, object, &storage.SignedURLOptions{
		GoogleAccessID: c.signer.Email(),
		Scheme:         storage.SigningSchemeV4,
		Method:         "GET",
		Expires:        expiresAt,
		SignBytes: func(payload []byte) ([]byte, error) {
			return c.signer.SignBytes(ctx, payload)
		},
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("storage: sign download url: %w", err)
	}
	return signedURL, expiresAt, nil
}

// Close releases the underlying storage client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
