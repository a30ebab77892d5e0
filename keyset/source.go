package keyset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Source supplies the raw JWKS document from its external location.
type Source interface {
	// Fetch returns the current document bytes.
	Fetch(ctx context.Context) ([]byte, error)
}

// FileSource reads the key document from a local file. This is the usual
// deployment shape: an operator-managed public key file rewritten on rotation.
type FileSource struct {
	path string
}

// NewFileSource creates a file-backed source.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Fetch reads the whole file.
func (s *FileSource) Fetch(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("keyset: read %s: %w", s.path, err)
	}
	return data, nil
}

// HTTPSource fetches the key document from a JWKS endpoint.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates an HTTP-backed source. If client is nil a default
// client with a 30s timeout is used.
func NewHTTPSource(url string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSource{url: url, client: client}
}

// Fetch performs a GET against the configured URL.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("keyset: create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("keyset: fetch %s: %w", s.url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("keyset: fetch %s: unexpected status %d", s.url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("keyset: read body: %w", err)
	}
	return data, nil
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]byte, error)

// Fetch calls the function.
func (f SourceFunc) Fetch(ctx context.Context) ([]byte, error) { return f(ctx) }

// Ensure implementations satisfy Source
var (
	_ Source = (*FileSource)(nil)
	_ Source = (*HTTPSource)(nil)
	_ Source = (SourceFunc)(nil)
)
