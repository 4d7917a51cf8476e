package cloudinary

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fluxbatch/internal/infra"
)

// ErrNotConfigured indicates the uploader was constructed without account
// credentials.
var ErrNotConfigured = errors.New("cloudinary: credentials are not configured")

// Options configures the Cloudinary upload client.
type Options struct {
	CloudName      string
	APIKey         string
	APISecret      string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
	// Now overrides the signature timestamp source; tests inject it.
	Now func() time.Time
}

// Uploader performs signed multipart uploads to the Cloudinary image API and
// returns stable, publicly fetchable URLs.
type Uploader struct {
	cloudName  string
	apiKey     string
	apiSecret  string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
	now        func() time.Time
}

// UploadResult is the subset of the Cloudinary response the pipeline uses.
type UploadResult struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Format    string `json:"format"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Bytes     int64  `json:"bytes"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewUploader constructs an uploader with sane defaults and injected
// dependencies.
func NewUploader(opts Options) *Uploader {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.cloudinary.com/v1_1"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Uploader{
		cloudName:  strings.TrimSpace(opts.CloudName),
		apiKey:     strings.TrimSpace(opts.APIKey),
		apiSecret:  strings.TrimSpace(opts.APISecret),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		now:        now,
	}
}

// Configured reports whether the uploader can perform remote calls.
func (u *Uploader) Configured() bool {
	return u.cloudName != "" && u.apiKey != "" && u.apiSecret != ""
}

// Upload sends the file bytes as a signed multipart request and returns the
// durable remote URL.
func (u *Uploader) Upload(ctx context.Context, data []byte, filename, mimeType string) (*UploadResult, error) {
	if !u.Configured() {
		return nil, ErrNotConfigured
	}
	if len(data) == 0 {
		return nil, errors.New("cloudinary: file data is empty")
	}

	timestamp := strconv.FormatInt(u.now().Unix(), 10)
	body := &strings.Builder{}
	writer := multipart.NewWriter(body)

	part, err := createFilePart(writer, filename, mimeType)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: build multipart: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("cloudinary: write file part: %w", err)
	}
	if err := writer.WriteField("timestamp", timestamp); err != nil {
		return nil, fmt.Errorf("cloudinary: write timestamp: %w", err)
	}
	if err := writer.WriteField("signature", u.sign(timestamp)); err != nil {
		return nil, fmt.Errorf("cloudinary: write signature: %w", err)
	}
	if err := writer.WriteField("api_key", u.apiKey); err != nil {
		return nil, fmt.Errorf("cloudinary: write api key: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("cloudinary: close multipart: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/image/upload", u.baseURL, u.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body.String()))
	if err != nil {
		return nil, fmt.Errorf("cloudinary: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Error.Message != "" {
			return nil, fmt.Errorf("cloudinary: %s (status %d)", detail.Error.Message, resp.StatusCode)
		}
		return nil, fmt.Errorf("cloudinary: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result UploadResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("cloudinary: decode response: %w", err)
	}
	if result.SecureURL == "" {
		return nil, errors.New("cloudinary: response missing secure_url")
	}
	u.logger.Debug().
		Str("public_id", result.PublicID).
		Int64("bytes", result.Bytes).
		Msg("cloudinary: asset uploaded")
	return &result, nil
}

// sign produces the SHA-1 hex digest Cloudinary expects over the signed
// upload parameters (here only the timestamp) plus the API secret.
func (u *Uploader) sign(timestamp string) string {
	sum := sha1.Sum([]byte("timestamp=" + timestamp + u.apiSecret))
	return hex.EncodeToString(sum[:])
}

func createFilePart(writer *multipart.Writer, filename, mimeType string) (io.Writer, error) {
	if mimeType == "" {
		return writer.CreateFormFile("file", filename)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", mimeType)
	return writer.CreatePart(header)
}
