package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tendant/simple-study-pipeline/pkg/pipeline"
)

// ErrRunNotFound is returned by Status for an unknown run ID
var ErrRunNotFound = errors.New("run not found")

// ErrProcessingFailed is returned by Study when the pipeline produced a
// result that is marked unsuccessful. The result body is still returned.
var ErrProcessingFailed = errors.New("processing failed")

// Client is an HTTP client for triggering pipeline processing
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new pipeline client
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			// study runs are synchronous and may take minutes
			Timeout: 5 * time.Minute,
		},
	}
}

// NewWithHTTPClient creates a new pipeline client with a custom HTTP client
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// Process enqueues content processing on a worker
func (c *Client) Process(ctx context.Context, req pipeline.ProcessRequest) (*pipeline.ProcessResponse, error) {
	var processResp pipeline.ProcessResponse
	if err := c.postJSON(ctx, "/v1/process", req, http.StatusAccepted, &processResp); err != nil {
		return nil, err
	}
	return &processResp, nil
}

// Status returns the state of a queued run
func (c *Client) Status(ctx context.Context, runID string) (*pipeline.RunStatus, error) {
	u := fmt.Sprintf("%s/v1/runs/%s", c.baseURL, url.PathEscape(runID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, unexpectedStatus(resp)
	}

	var status pipeline.RunStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &status, nil
}

// Estimate asks the server how long a text of the given length would take
func (c *Client) Estimate(ctx context.Context, req pipeline.EstimateRequest) (*pipeline.EstimateResponse, error) {
	var est pipeline.EstimateResponse
	if err := c.postJSON(ctx, "/v1/estimate", req, http.StatusOK, &est); err != nil {
		return nil, err
	}
	return &est, nil
}

// Study uploads an image and waits for its study material. The returned
// JSON is the processing result.
func (c *Client) Study(ctx context.Context, fileName string, image io.Reader, opts *pipeline.StudyOptions) (json.RawMessage, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form: %w", err)
	}
	if _, err := io.Copy(fw, image); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	for k, v := range formFields(opts) {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to create form: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to create form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/study", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusUnprocessableEntity:
	default:
		return nil, unexpectedStatus(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusUnprocessableEntity {
		return body, ErrProcessingFailed
	}
	return body, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in interface{}, want int, out interface{}) error {
	// Marshal request
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	// Create HTTP request
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	// Execute request
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Check status code
	if resp.StatusCode != want {
		return unexpectedStatus(resp)
	}

	// Parse response
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func unexpectedStatus(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(bytes.TrimSpace(bodyBytes)))
}

// formFields maps study options to /v1/study form values
func formFields(opts *pipeline.StudyOptions) map[string]string {
	fields := map[string]string{}
	if opts == nil {
		return fields
	}
	setBool := func(name string, v *bool) {
		if v != nil {
			fields[name] = strconv.FormatBool(*v)
		}
	}
	setInt := func(name string, v int) {
		if v != 0 {
			fields[name] = strconv.Itoa(v)
		}
	}
	setBool("generate_summary", opts.GenerateSummary)
	setBool("generate_explanation", opts.GenerateExplanation)
	setBool("generate_quiz", opts.GenerateQuiz)
	setBool("enable_chunking", opts.EnableChunking)
	setInt("quiz_count", opts.QuizCount)
	setInt("chunk_size", opts.ChunkSize)
	setInt("max_concurrency", opts.MaxConcurrency)
	return fields
}
