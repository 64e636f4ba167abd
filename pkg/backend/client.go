package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/travigo/fieldtrack/pkg/tracking"
)

const defaultTimeout = 15 * time.Second

// Client talks to the fieldtrack web API
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		UserAgent:  "fieldtrack",
	}
}

// StatusError is returned when the API answers with a non 2xx status
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s returned %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

func (c *Client) Researchers(ctx context.Context) ([]tracking.Researcher, error) {
	var researchers []tracking.Researcher
	if err := c.do(ctx, http.MethodGet, "/core/researchers", nil, &researchers); err != nil {
		return nil, err
	}

	return researchers, nil
}

func (c *Client) LocationsForDay(ctx context.Context, day civil.Date) ([]tracking.LocationSample, error) {
	query := url.Values{}
	query.Set("date", day.String())

	var samples []tracking.LocationSample
	if err := c.do(ctx, http.MethodGet, "/core/locations?"+query.Encode(), nil, &samples); err != nil {
		return nil, err
	}

	return samples, nil
}

// ReportLocation submits one sample. The API accepts it onto its ingest queue.
func (c *Client) ReportLocation(ctx context.Context, sample tracking.LocationSample) error {
	body, err := json.Marshal(sample)
	if err != nil {
		return err
	}

	return c.do(ctx, http.MethodPost, "/core/locations", body, nil)
}

func (c *Client) do(ctx context.Context, method string, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	responseBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiError struct {
			Error string `json:"error"`
		}
		json.Unmarshal(responseBytes, &apiError)

		return &StatusError{
			Method:     method,
			Path:       strings.SplitN(path, "?", 2)[0],
			StatusCode: resp.StatusCode,
			Message:    apiError.Error,
		}
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(responseBytes, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	return nil
}
