package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const ocrTimeout = 30 * time.Second

// ocrResponse mirrors the OCR.space parse response. Only the parsed text and
// the error flags are interesting; the raw body is passed through to callers
// that expose the upstream contract.
type ocrResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool `json:"IsErroredOnProcessing"`
}

// OCRClient extracts text from images via the OCR.space parse API.
type OCRClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewOCRClient creates an OCRClient for the given endpoint.
func NewOCRClient(baseURL, apiKey string) *OCRClient {
	return &OCRClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: ocrTimeout,
		},
	}
}

// ParseImage submits a base64 data URL and returns the extracted text plus
// the raw upstream response body. An empty result set or a processing error
// flag is a failure; there is no retry.
func (c *OCRClient) ParseImage(ctx context.Context, base64Image string) (string, json.RawMessage, error) {
	form := url.Values{}
	form.Set("base64Image", base64Image)
	form.Set("language", "eng")
	form.Set("OCREngine", "2")
	form.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/parse/image", strings.NewReader(form.Encode()))
	if err != nil {
		return "", nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed ocrResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", nil, fmt.Errorf("could not interpret OCR response: %w", err)
	}
	if parsed.IsErroredOnProcessing || len(parsed.ParsedResults) == 0 {
		return "", nil, fmt.Errorf("could not interpret OCR response: no parsed results")
	}

	return parsed.ParsedResults[0].ParsedText, json.RawMessage(body), nil
}
