package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fluxbatch/internal/infra"
)

// ErrMissingToken indicates a call was attempted without an API token.
var ErrMissingToken = errors.New("replicate: api token is required")

// Prediction lifecycle states as reported by the provider.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// Options configures the Replicate predictions client.
type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the Replicate predictions API. It holds
// no credential: callers pass the token per request so the pipeline decides
// where tokens come from and the client never persists them.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// Prediction is the provider's job record, normalized to the fields the
// pipeline consumes.
type Prediction struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	Output    OutputURLs `json:"output"`
	Error     string     `json:"error"`
	CreatedAt string     `json:"created_at"`
}

// Terminal reports whether the prediction reached a final state.
func (p *Prediction) Terminal() bool {
	switch p.Status {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// OutputURLs absorbs the two shapes Replicate models emit: a single URL
// string or an array of URL strings.
type OutputURLs []string

func (o *OutputURLs) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*o = nil
		return nil
	}
	if data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*o = OutputURLs{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*o = OutputURLs(many)
	return nil
}

type createRequest struct {
	Version string          `json:"version"`
	Input   json.RawMessage `json:"input"`
}

type errorDetail struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
	Title  string `json:"title"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com/v1"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// CreatePrediction submits a job for the pinned model version and returns the
// provider-assigned prediction handle.
func (c *Client) CreatePrediction(ctx context.Context, token, version string, input json.RawMessage) (*Prediction, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	body, err := json.Marshal(createRequest{Version: version, Input: input})
	if err != nil {
		return nil, fmt.Errorf("replicate: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predictions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("replicate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+token)

	prediction, err := c.do(req)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("prediction_id", prediction.ID).
		Str("status", prediction.Status).
		Msg("replicate: prediction created")
	return prediction, nil
}

// GetPrediction fetches the current state of a prediction by id.
func (c *Client) GetPrediction(ctx context.Context, token, id string) (*Prediction, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("replicate: prediction id is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/predictions/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("replicate: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+token)
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Prediction, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("replicate: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("replicate: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail errorDetail
		if err := json.Unmarshal(raw, &detail); err == nil {
			if msg := firstNonEmpty(detail.Detail, detail.Error, detail.Title); msg != "" {
				return nil, fmt.Errorf("replicate: %s (status %d)", msg, resp.StatusCode)
			}
		}
		return nil, fmt.Errorf("replicate: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var prediction Prediction
	if err := json.Unmarshal(raw, &prediction); err != nil {
		return nil, fmt.Errorf("replicate: decode response: %w", err)
	}
	return &prediction, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
