package firebase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

const publicURLPrefix = "https://storage.googleapis.com/"

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// sanitizeFilename removes special characters from filenames and limits length.
func sanitizeFilename(filename string) string {
	sanitized := unsafeFilenameChars.ReplaceAllString(filename, "_")

	if len(sanitized) > 100 {
		sanitized = sanitized[:100]
	}

	if sanitized == "" || sanitized == "." || sanitized == ".." {
		sanitized = "file"
	}

	return sanitized
}

var privateRanges = []*net.IPNet{
	parseCIDR("10.0.0.0/8"),
	parseCIDR("172.16.0.0/12"),
	parseCIDR("192.168.0.0/16"),
	parseCIDR("127.0.0.0/8"),
	parseCIDR("169.254.0.0/16"),
	parseCIDR("0.0.0.0/8"),
	parseCIDR("::1/128"),
	parseCIDR("fc00::/7"),
	parseCIDR("fe80::/10"),
}

// isPrivateIP checks whether an IP address is a private/reserved address.
func isPrivateIP(ip net.IP) bool {
	for _, network := range privateRanges {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func parseCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("invalid CIDR: %s", cidr))
	}
	return network
}

// validateExternalURL validates that a URL is safe to fetch (prevents SSRF).
func validateExternalURL(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL scheme '%s' is not allowed; only http and https are permitted", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("URL has no hostname")
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("requests to localhost are not allowed")
	}

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return fmt.Errorf("failed to resolve hostname '%s': %w", host, err)
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("URL resolves to private IP address %s, which is not allowed", ip.String())
		}
	}

	return nil
}

// Config selects the bucket and the service account used to reach it.
// Credentials is either inline JSON or a path to a key file; empty means
// application default credentials.
type Config struct {
	Bucket      string
	Credentials string
}

// Storage uploads product images to a Firebase Storage bucket and serves
// them through public GCS URLs.
type Storage struct {
	bucket     *storage.BucketHandle
	bucketName string
	http       *http.Client
	log        *slog.Logger
}

func NewStorage(ctx context.Context, cfg Config, log *slog.Logger) (*Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("firebase storage bucket not configured")
	}

	var opts []option.ClientOption
	switch {
	case strings.HasPrefix(cfg.Credentials, "{"):
		log.Info("using firebase credentials from environment variable")
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.Credentials)))
	case cfg.Credentials != "":
		log.Info("using firebase credentials from file", slog.String("path", cfg.Credentials))
		opts = append(opts, option.WithCredentialsFile(cfg.Credentials))
	default:
		log.Warn("GOOGLE_APPLICATION_CREDENTIALS not set, using default credentials")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{StorageBucket: cfg.Bucket}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase init: %w", err)
	}
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase storage client: %w", err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("firebase bucket %s: %w", cfg.Bucket, err)
	}

	log.Info("firebase storage initialized", slog.String("bucket", cfg.Bucket))
	return &Storage{
		bucket:     bucket,
		bucketName: cfg.Bucket,
		http:       &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}, nil
}

func productObjectPath(productID, filename string) string {
	return fmt.Sprintf("products/%s/%d_%s", sanitizeFilename(productID), time.Now().Unix(), sanitizeFilename(filename))
}

// publicURL is the inverse of ObjectPath.
func publicURL(bucketName, objectPath string) string {
	return publicURLPrefix + bucketName + "/" + objectPath
}

// ObjectPath extracts the object path from a public URL of this bucket.
func ObjectPath(bucketName, rawURL string) (string, bool) {
	prefix := publicURLPrefix + bucketName + "/"
	if !strings.HasPrefix(rawURL, prefix) || len(rawURL) == len(prefix) {
		return "", false
	}
	return strings.TrimPrefix(rawURL, prefix), true
}

func (s *Storage) write(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error) {
	obj := s.bucket.Object(objectPath)
	wc := obj.NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := io.Copy(wc, r); err != nil {
		wc.Close()
		return "", fmt.Errorf("upload %s: %w", objectPath, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload: %w", err)
	}

	// Make object publicly readable so the URL works without authentication
	if err := obj.ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		s.log.WarnContext(ctx, "failed to set public ACL", slog.String("object", objectPath), slog.Any("err", err))
	}

	return publicURL(s.bucketName, objectPath), nil
}

func (s *Storage) UploadProductImage(ctx context.Context, productID string, file io.Reader, filename, contentType string) (string, error) {
	return s.write(ctx, productObjectPath(productID, filename), contentType, file)
}

// ImportProductImage downloads an image from a public URL and stores it
// under the product.
func (s *Storage) ImportProductImage(ctx context.Context, productID, imageURL string) (string, error) {
	if err := validateExternalURL(ctx, imageURL); err != nil {
		return "", fmt.Errorf("URL validation failed for %s: %w", imageURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download image from %s: %w", imageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("URL %s returned non-image content-type: %q", imageURL, contentType)
	}

	name := uuid.NewString()[:8] + ".jpg"
	return s.write(ctx, productObjectPath(productID, name), contentType, resp.Body)
}

func (s *Storage) DeleteFile(ctx context.Context, objectPath string) error {
	if err := s.bucket.Object(objectPath).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", objectPath, err)
	}
	s.log.InfoContext(ctx, "deleted file", slog.String("object", objectPath), slog.String("bucket", s.bucketName))
	return nil
}

// Bucket is the configured bucket name.
func (s *Storage) Bucket() string { return s.bucketName }
