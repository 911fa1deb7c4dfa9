// Package shortener resolves long URLs through public shortening services.
package shortener

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Shortener turns a long URL into a short one.
type Shortener interface {
	Shorten(ctx context.Context, longURL string) (string, error)
}

// Provider names a supported shortening backend.
type Provider string

const (
	ProviderTinyURL Provider = "tinyurl"
	ProviderClckRu  Provider = "clckru"
)

const requestTimeout = 5 * time.Second

// New returns the shortener for the configured provider.
func New(provider Provider) (Shortener, error) {
	client := &http.Client{Timeout: requestTimeout}
	switch provider {
	case ProviderTinyURL:
		return &getShortener{client: client, endpoint: "https://tinyurl.com/api-create.php"}, nil
	case ProviderClckRu:
		return &getShortener{client: client, endpoint: "https://clck.ru/--"}, nil
	default:
		return nil, fmt.Errorf("unknown shortener provider: %s", provider)
	}
}

// getShortener covers the services that take the long URL as a query
// parameter and answer with the short URL as plain text.
type getShortener struct {
	client   *http.Client
	endpoint string
}

func (s *getShortener) Shorten(ctx context.Context, longURL string) (string, error) {
	reqURL := s.endpoint + "?url=" + url.QueryEscape(longURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build shortener request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call shortener: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("shortener returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("failed to read shortener response: %w", err)
	}

	short := strings.TrimSpace(string(body))
	if short == "" {
		return "", fmt.Errorf("shortener returned empty response")
	}
	return short, nil
}
