package dedup

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
)

// DefaultVectorTimeout bounds each vector service call.
const DefaultVectorTimeout = 10 * time.Second

const documentsPath = "/vectors/documents"

// acceptedStatuses are the store replies that count as a successful write.
var acceptedStatuses = map[string]struct{}{
	"stored":  {},
	"queued":  {},
	"updated": {},
}

// VectorStore talks to the vector service HTTP API.
type VectorStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewVectorStore creates a vector service client.
func NewVectorStore(baseURL, apiKey string, timeout time.Duration) *VectorStore {
	if timeout <= 0 {
		timeout = DefaultVectorTimeout
	}

	return &VectorStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type storeResponse struct {
	Status string `json:"status"`
}

type clearResponse struct {
	Deleted int `json:"deleted"`
}

// Exists implements Store. 200 means present, 404 absent.
func (s *VectorStore) Exists(ctx context.Context, id string) (bool, error) {
	resp, err := s.do(ctx, http.MethodGet, documentsPath+"/"+url.PathEscape(id), nil)
	if err != nil {
		return false, err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("lookup %s: unexpected status %d", id, resp.StatusCode)
	}
}

// Store implements Store.
func (s *VectorStore) Store(ctx context.Context, doc Document) error {
	if doc.Metadata == nil {
		doc.Metadata = map[string]string{}
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	resp, err := s.do(ctx, http.MethodPost, documentsPath, payload)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("store %s: unexpected status %d", doc.ID, resp.StatusCode)
	}

	var out storeResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&out); decodeErr != nil {
		return fmt.Errorf("decode store response: %w", decodeErr)
	}
	if _, ok := acceptedStatuses[strings.ToLower(out.Status)]; !ok {
		return fmt.Errorf("%w: status %q", ErrStoreRejected, out.Status)
	}

	return nil
}

// Clear implements Store.
func (s *VectorStore) Clear(ctx context.Context) (int, error) {
	resp, err := s.do(ctx, http.MethodDelete, documentsPath, nil)
	if err != nil {
		return 0, err
	}
	defer drain(resp)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return 0, fmt.Errorf("clear: unexpected status %d", resp.StatusCode)
	}

	var out clearResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&out); decodeErr != nil {
		return 0, fmt.Errorf("decode clear response: %w", decodeErr)
	}

	return out.Deleted, nil
}

func (s *VectorStore) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
