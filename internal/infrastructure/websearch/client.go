// Package websearch implements the external lookup providers queried by
// the lookup cascade: Wikipedia, Wikidata, DuckDuckGo, Google Custom
// Search and Finnhub symbol search.
package websearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/infrastructure/config"
)

// Provider names.
const (
	NameWikipedia  = "wikipedia"
	NameWikidata   = "wikidata"
	NameDuckDuckGo = "duckduckgo"
	NameGoogleCSE  = "google_cse"
	NameFinnhub    = "finnhub"
)

// maxResults caps the hits kept from any provider.
const maxResults = 10

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 4 << 20

// DefaultTimeout is used when no HTTP client is supplied.
const DefaultTimeout = 20 * time.Second

// base carries what every HTTP backed provider shares.
type base struct {
	name      string
	endpoint  string
	userAgent string
	client    *http.Client
	pacer     *Pacer
}

func newBase(name string, cfg config.ProviderConfig, client *http.Client) base {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return base{
		name:      name,
		endpoint:  cfg.Endpoint,
		userAgent: cfg.UserAgent,
		client:    client,
		pacer:     NewPacer(cfg.RPS),
	}
}

// Name returns the provider name.
func (b *base) Name() string {
	return b.name
}

// wait blocks until the provider's pacer allows another request. A wait
// that cannot finish before ctx ends sends nothing and reports
// entities.ErrProviderThrottled.
func (b *base) wait(ctx context.Context) error {
	if err := b.pacer.Wait(ctx); err != nil {
		return fmt.Errorf("provider %s: %w: %w", b.name, entities.ErrProviderThrottled, err)
	}
	return nil
}

// get performs a GET request and returns the body of a 2xx response.
// Other statuses become a *entities.ProviderError, with 429 marked as
// rate limited.
func (b *base) get(ctx context.Context, endpoint string, params url.Values, header http.Header) ([]byte, int, error) {
	u := endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, b.fail(0, fmt.Errorf("creating request: %w", err))
	}
	if b.userAgent != "" {
		req.Header.Set("User-Agent", b.userAgent)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := b.client.Do(req)
	if err != nil {
		// The URL may carry credentials, so it stays out of the message.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, 0, b.fail(0, fmt.Errorf("sending request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp.StatusCode, b.fail(resp.StatusCode, fmt.Errorf("reading response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, resp.StatusCode, b.fail(resp.StatusCode, fmt.Errorf("unexpected status: %s", resp.Status))
	}
	return body, resp.StatusCode, nil
}

// fail wraps err as a provider error.
func (b *base) fail(code int, err error) *entities.ProviderError {
	return &entities.ProviderError{
		Provider:    b.name,
		HTTPCode:    code,
		RateLimited: code == http.StatusTooManyRequests,
		Err:         err,
	}
}

// rateLimited marks err as rate limited when it is a provider error.
func rateLimited(err error) error {
	var perr *entities.ProviderError
	if errors.As(err, &perr) {
		perr.RateLimited = true
	}
	return err
}

// relevance scores a hit by rank, decaying by step down to a floor of 0.1.
func relevance(rank int, step float64) float64 {
	return max(0.1, 1-step*float64(rank))
}
