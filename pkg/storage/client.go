package storage

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/doculord/doculord/pkg/resilience"
)

// ErrObjectNotFound is returned when a requested object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ServedURLPrefix is the application route that proxies stored images.
const ServedURLPrefix = "/doculord/api/v1/images"

const perImageUploadAttempts = 3

// Client wraps the GCS bucket used for source documents and images.
type Client struct {
	bucket     *gcs.BucketHandle
	bucketName string
	expiration time.Duration
	breaker    *resilience.CircuitBreaker
}

// NewClient creates the object store client for cfg.Bucket.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	gcsClient, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &Client{
		bucket:     gcsClient.Bucket(cfg.Bucket),
		bucketName: cfg.Bucket,
		expiration: cfg.SignedURLExpiration,
		breaker:    resilience.GetBreaker("storage"),
	}, nil
}

// UploadDocument stores a source document under documents.in/<user_id>/ and
// returns a signed URL valid for the configured expiration.
func (c *Client) UploadDocument(ctx context.Context, content []byte, filename, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	filename = strings.TrimSpace(filename)
	if userID == "" {
		return "", fmt.Errorf("user_id cannot be empty")
	}
	if filename == "" {
		return "", fmt.Errorf("filename cannot be empty")
	}

	objectName := path.Join("documents.in", userID, filename)
	if err := c.writeObject(ctx, objectName, content, ContentTypeFor(filename), ""); err != nil {
		return "", err
	}

	signedURL, err := c.bucket.SignedURL(objectName, &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(c.expiration),
	})
	if err != nil {
		// Fall back to the canonical object URL so the upload is not lost,
		// even though access will require bucket-level permissions.
		slog.Error("Failed to generate signed URL, falling back to canonical URL",
			"object", objectName, "error", err)
		return fmt.Sprintf("https://storage.googleapis.com/%s/%s", c.bucketName, objectName), nil
	}

	slog.Info("Uploaded document", "object", objectName, "bytes", len(content))
	return signedURL, nil
}

// UploadImage stores one extracted image under
// processed/<user_id>/<job_id>/images/ and returns the stable
// application-served URL that proxies it.
func (c *Client) UploadImage(ctx context.Context, content []byte, filename, userID, jobID string) (string, error) {
	objectName := path.Join("processed", userID, jobID, "images", filename)
	if err := c.writeObject(ctx, objectName, content, ContentTypeFor(filename), "public, max-age=31536000"); err != nil {
		return "", err
	}
	return ServedImageURL(userID, jobID, filename), nil
}

// ServedImageURL builds the application route for a stored image.
func ServedImageURL(userID, jobID, filename string) string {
	return fmt.Sprintf("%s/%s/%s/%s", ServedURLPrefix, userID, jobID, filename)
}

// UploadImagesFromZip uploads every image entry of the converter's ZIP
// bundle. The returned map carries each image under both its ZIP-relative
// path and its bare filename, so Markdown references in either form can be
// rewritten. A bundle without images returns an empty map without touching
// the object store.
func (c *Client) UploadImagesFromZip(ctx context.Context, zipPath, userID, jobID string) (map[string]string, error) {
	entries, err := imageEntries(zipPath)
	if err != nil {
		return nil, err
	}
	urlMap := make(map[string]string, len(entries)*2)
	if len(entries) == 0 {
		return urlMap, nil
	}

	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ZIP %s: %w", zipPath, err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if !isImageFile(file.Name) || file.FileInfo().IsDir() {
			continue
		}
		content, err := readZipEntry(file)
		if err != nil {
			slog.Warn("Skipping unreadable ZIP image entry", "entry", file.Name, "error", err)
			continue
		}

		filename := path.Base(file.Name)
		servedURL, err := c.uploadImageWithRetry(ctx, content, filename, userID, jobID)
		if err != nil {
			slog.Error("Failed to upload image after retries",
				"entry", file.Name, "job_id", jobID, "error", err)
			continue
		}
		urlMap[file.Name] = servedURL
		urlMap[filename] = servedURL
	}

	slog.Info("Uploaded images from ZIP",
		"zip", zipPath, "images", len(entries), "refs", len(urlMap))
	return urlMap, nil
}

func (c *Client) uploadImageWithRetry(ctx context.Context, content []byte, filename, userID, jobID string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= perImageUploadAttempts; attempt++ {
		servedURL, err := c.UploadImage(ctx, content, filename, userID, jobID)
		if err == nil {
			return servedURL, nil
		}
		lastErr = err
		slog.Warn("Image upload attempt failed",
			"filename", filename, "attempt", attempt, "error", err)
	}
	return "", lastErr
}

// GetImage fetches a stored image's bytes and content type.
func (c *Client) GetImage(ctx context.Context, userID, jobID, filename string) ([]byte, string, error) {
	if err := c.breaker.Check(); err != nil {
		return nil, "", err
	}
	objectName := path.Join("processed", userID, jobID, "images", filename)
	reader, err := c.bucket.Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, "", ErrObjectNotFound
		}
		err = resilience.Transient(fmt.Errorf("failed to read object %s: %w", objectName, err))
		c.breaker.Observe(err)
		return nil, "", err
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		err = resilience.Transient(fmt.Errorf("failed to read object %s: %w", objectName, err))
		c.breaker.Observe(err)
		return nil, "", err
	}
	c.breaker.RecordSuccess()
	return content, reader.Attrs.ContentType, nil
}

func (c *Client) writeObject(ctx context.Context, objectName string, content []byte, contentType, cacheControl string) error {
	if err := c.breaker.Check(); err != nil {
		return err
	}
	writer := c.bucket.Object(objectName).NewWriter(ctx)
	writer.ContentType = contentType
	if cacheControl != "" {
		writer.CacheControl = cacheControl
	}
	_, err := writer.Write(content)
	if closeErr := writer.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		err = resilience.Transient(fmt.Errorf("failed to write object %s: %w", objectName, err))
		c.breaker.Observe(err)
		return err
	}
	c.breaker.RecordSuccess()
	return nil
}

// imageEntries lists the image files inside a ZIP bundle.
func imageEntries(zipPath string) ([]string, error) {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ZIP %s: %w", zipPath, err)
	}
	defer reader.Close()

	var entries []string
	for _, file := range reader.File {
		if isImageFile(file.Name) && !file.FileInfo().IsDir() {
			entries = append(entries, file.Name)
		}
	}
	return entries, nil
}

func readZipEntry(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
