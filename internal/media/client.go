// Package media forwards admin image uploads to a third-party image host
// and issues signed deletion requests against it. The host is optional:
// without credentials, uploads fail with ErrNotConfigured and deletions
// degrade to a no-op so catalog mutations never depend on media housekeeping.
package media

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/argestone/marble-site/backend/internal/config"
)

// ErrNotConfigured signals that the image host credentials are absent.
var ErrNotConfigured = fmt.Errorf("media host not configured")

// HostError carries a human-readable translation of an upload rejection
// from the image host, alongside the raw host response for logging.
type HostError struct {
	Message string
	Detail  string
}

func (e *HostError) Error() string { return e.Message }

// Asset is the host's handle for a stored image.
type Asset struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
}

// Client talks to a Cloudinary-style image host.
type Client struct {
	cfg        config.MediaConfig
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a media Client. A nil logger falls back to slog.Default.
func NewClient(cfg config.MediaConfig, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    "https://api.cloudinary.com",
		logger:     log,
		now:        time.Now,
	}
}

// SetBaseURL overrides the host endpoint. Test hook.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = strings.TrimSuffix(url, "/")
}

// SetClock overrides the signing timestamp source. Test hook.
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}

// UploadConfigured reports whether unsigned uploads can be attempted.
func (c *Client) UploadConfigured() bool {
	return c.cfg.CloudName != "" && c.cfg.UploadPreset != ""
}

// deleteConfigured reports whether signed deletions can be attempted.
func (c *Client) deleteConfigured() bool {
	return c.cfg.CloudName != "" && c.cfg.APIKey != "" && c.cfg.APISecret != ""
}

// Upload forwards one image to the host's unsigned upload endpoint and
// returns the stored asset's URL and identifier.
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader) (Asset, error) {
	if !c.UploadConfigured() {
		return Asset{}, ErrNotConfigured
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("upload_preset", c.cfg.UploadPreset); err != nil {
		return Asset{}, fmt.Errorf("encoding upload form: %w", err)
	}
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return Asset{}, fmt.Errorf("encoding upload form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return Asset{}, fmt.Errorf("encoding upload form: %w", err)
	}
	if err := form.Close(); err != nil {
		return Asset{}, fmt.Errorf("encoding upload form: %w", err)
	}

	url := fmt.Sprintf("%s/v1_1/%s/image/upload", c.baseURL, c.cfg.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return Asset{}, fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Asset{}, fmt.Errorf("uploading to media host: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("media host rejected upload",
			"status", resp.StatusCode,
			"detail", string(detail))
		return Asset{}, &HostError{
			Message: translateUploadError(string(detail)),
			Detail:  string(detail),
		}
	}

	var asset Asset
	if err := json.NewDecoder(resp.Body).Decode(&asset); err != nil {
		return Asset{}, fmt.Errorf("decoding upload response: %w", err)
	}
	return asset, nil
}

type destroyRequest struct {
	PublicID  string `json:"public_id"`
	Signature string `json:"signature"`
	APIKey    string `json:"api_key"`
	Timestamp int64  `json:"timestamp"`
}

// Delete issues a signed destroy request for the given asset. When the host
// is not configured the call succeeds without any network traffic, so
// catalog deletes never fail on missing media credentials.
func (c *Client) Delete(ctx context.Context, publicID string) error {
	if !c.deleteConfigured() {
		c.logger.Info("media host not configured, skipping deletion",
			"public_id", publicID)
		return nil
	}

	ts := c.now().Unix()
	payload, err := json.Marshal(destroyRequest{
		PublicID:  publicID,
		Signature: signDestroy(publicID, ts, c.cfg.APISecret),
		APIKey:    c.cfg.APIKey,
		Timestamp: ts,
	})
	if err != nil {
		return fmt.Errorf("encoding destroy request: %w", err)
	}

	url := fmt.Sprintf("%s/v1_1/%s/image/destroy", c.baseURL, c.cfg.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building destroy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deleting from media host: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HostError{
			Message: "Failed to delete image from media host",
			Detail:  string(detail),
		}
	}

	var result struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding destroy response: %w", err)
	}
	// "not found" means the asset is already gone, which is the state the
	// caller asked for.
	if result.Result != "ok" && result.Result != "not found" {
		return &HostError{
			Message: "Failed to delete image from media host",
			Detail:  result.Result,
		}
	}

	c.logger.Info("deleted media asset", "public_id", publicID)
	return nil
}

// signDestroy computes the host's destroy-request signature:
// sha1 over the sorted parameter string followed by the API secret.
func signDestroy(publicID string, timestamp int64, secret string) string {
	payload := fmt.Sprintf("public_id=%s&timestamp=%d%s", publicID, timestamp, secret)
	sum := sha1.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// translateUploadError maps known host rejection messages to hints an admin
// can act on without reading the raw host response.
func translateUploadError(detail string) string {
	switch {
	case strings.Contains(detail, "whitelisted"):
		return "Upload preset not whitelisted. Enable unsigned uploads for the preset in the media host dashboard."
	case strings.Contains(detail, "Invalid upload preset"):
		return "Invalid upload preset. Check the upload preset name in the environment configuration."
	case strings.Contains(detail, "File size too large"):
		return "File size too large. Please upload a smaller image."
	case strings.Contains(detail, "Invalid file type"), strings.Contains(detail, "Invalid image file"):
		return "Invalid file type. Please upload a valid image file (JPG, PNG, WebP)."
	default:
		return "Failed to upload image to media host"
	}
}
