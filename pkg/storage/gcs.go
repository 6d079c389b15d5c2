/**
 * @description
 * Google Cloud Storage uploader for FDR receipts and certificates.
 *
 * @dependencies
 * - cloud.google.com/go/storage: GCS client.
 * - google.golang.org/api/option: client options (endpoint overrides in tests).
 */
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const DefaultPublicBaseURL = "https://storage.googleapis.com"

// Uploader writes an object and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Close() error
}

// GCSClient uploads objects into a single bucket.
type GCSClient struct {
	Client        *storage.Client
	BucketName    string
	PublicBaseURL string
}

// NewGCSClient opens a storage client using application default credentials
// unless opts override them.
func NewGCSClient(ctx context.Context, bucketName, publicBaseURL string, opts ...option.ClientOption) (*GCSClient, error) {
	if strings.TrimSpace(bucketName) == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if strings.TrimSpace(publicBaseURL) == "" {
		publicBaseURL = DefaultPublicBaseURL
	}
	return &GCSClient{
		Client:        client,
		BucketName:    bucketName,
		PublicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}, nil
}

// Upload streams body to key. Existing objects are never overwritten.
func (g *GCSClient) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if g.Client == nil {
		return "", errors.New("gcs client not initialized")
	}
	object := g.Client.Bucket(g.BucketName).Object(key)
	writer := object.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, body); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("write object %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close object %s: %w", key, err)
	}
	return g.PublicURL(key), nil
}

// PublicURL returns the URL an object is served from.
func (g *GCSClient) PublicURL(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s/%s", g.PublicBaseURL, g.BucketName, strings.Join(segments, "/"))
}

func (g *GCSClient) Close() error {
	if g.Client == nil {
		return nil
	}
	return g.Client.Close()
}
