// Package directory implements the remote gym directory client. Every call
// is a single request: no caching and no retry happen at this layer.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"example.com/blocus/internal/domain"
)

const (
	gymsPath          = "/rest/v1/gyms"
	singleObjectMedia = "application/vnd.pgrst.object+json"
	// noRowsCode is returned by the service when a single-row query matches nothing.
	noRowsCode   = "PGRST116"
	maxErrorBody = 64 << 10
)

// RESTDirectory queries the gyms table through the data service's REST API.
type RESTDirectory struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewRESTDirectory constructs the client. apiKey may be empty.
func NewRESTDirectory(endpoint, apiKey string, timeout time.Duration) *RESTDirectory {
	return &RESTDirectory{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListGyms implements domain.Directory.
func (r *RESTDirectory) ListGyms(ctx context.Context) ([]domain.Gym, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("order", "name.asc")

	resp, err := r.get(ctx, query, "application/json")
	if err != nil {
		return nil, domain.NewDirectoryError("list", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, serviceError("list", resp)
	}

	var gyms []domain.Gym
	if err := json.NewDecoder(resp.Body).Decode(&gyms); err != nil {
		return nil, domain.NewDirectoryError("list", "", fmt.Errorf("decode gyms: %w", err))
	}
	if gyms == nil {
		gyms = []domain.Gym{}
	}
	return gyms, nil
}

// GetGymByID implements domain.Directory.
func (r *RESTDirectory) GetGymByID(ctx context.Context, id string) (domain.Gym, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("id", "eq."+id)

	resp, err := r.get(ctx, query, singleObjectMedia)
	if err != nil {
		return domain.Gym{}, domain.NewDirectoryError("get", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return domain.Gym{}, serviceError("get", resp)
	}

	var gym domain.Gym
	if err := json.NewDecoder(resp.Body).Decode(&gym); err != nil {
		return domain.Gym{}, domain.NewDirectoryError("get", "", fmt.Errorf("decode gym: %w", err))
	}
	return gym, nil
}

// Health performs the cheapest possible query against the table.
func (r *RESTDirectory) Health(ctx context.Context) error {
	query := url.Values{}
	query.Set("select", "id")
	query.Set("limit", "1")

	resp, err := r.get(ctx, query, "application/json")
	if err != nil {
		return domain.NewDirectoryError("health", "", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return domain.NewDirectoryError("health", resp.Status, nil)
	}
	return nil
}

func (r *RESTDirectory) get(ctx context.Context, query url.Values, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+gymsPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	if r.apiKey != "" {
		req.Header.Set("apikey", r.apiKey)
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
	return r.httpClient.Do(req)
}

// serviceError converts an error response into a DirectoryError carrying the
// service's own message.
func serviceError(op string, resp *http.Response) error {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = json.Unmarshal(raw, &body)

	message := body.Message
	if message == "" {
		message = fmt.Sprintf("directory %s failed: %s", op, resp.Status)
	}

	var cause error = &StatusError{Status: resp.StatusCode, Code: body.Code}
	if body.Code == noRowsCode {
		cause = domain.ErrGymNotFound
	}
	return domain.NewDirectoryError(op, message, cause)
}

// StatusError records a non-successful HTTP response.
type StatusError struct {
	Status int
	Code   string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("directory responded %d (%s)", e.Status, e.Code)
	}
	return fmt.Sprintf("directory responded %d %s", e.Status, http.StatusText(e.Status))
}
