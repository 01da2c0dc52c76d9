// Package pricing provides USD quotes for catalogued tokens.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chainvault/internal/errs"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Source quotes a token in USD. Failures wrap errs.ErrUpstreamPriceUnavailable.
type Source interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
	Name() string
}

type Static struct {
	rates map[string]decimal.Decimal
}

func NewStatic(rates map[string]string) (*Static, error) {
	s := &Static{rates: make(map[string]decimal.Decimal, len(rates))}
	for sym, v := range rates {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("rate for %s: %w", sym, err)
		}
		s.rates[strings.ToUpper(sym)] = d
	}
	return s, nil
}

// DefaultStatic is the built-in rate table used when no price API is configured.
func DefaultStatic() *Static {
	s, _ := NewStatic(map[string]string{
		"BTC":   "29000",
		"ETH":   "1800",
		"USDT":  "1",
		"USDC":  "1",
		"BNB":   "240",
		"SOL":   "24",
		"MATIC": "0.7",
		"LINK":  "7.5",
	})
	return s
}

func (s *Static) Name() string { return "static" }

func (s *Static) Price(_ context.Context, symbol string) (decimal.Decimal, error) {
	p, ok := s.rates[strings.ToUpper(symbol)]
	if !ok || !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("no static rate for %s: %w", symbol, errs.ErrUpstreamPriceUnavailable)
	}
	return p, nil
}

// HTTPSource asks a JSON price API: GET <base>?symbol=ETH -> {"usd": 1800.12}.
type HTTPSource struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

type Option func(*HTTPSource)

func WithHTTPClient(c *http.Client) Option {
	return func(s *HTTPSource) { s.client = c }
}

func NewHTTPSource(baseURL string, rps float64, opts ...Option) *HTTPSource {
	if rps <= 0 {
		rps = 1
	}
	s := &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPSource) Name() string { return "http" }

func (s *HTTPSource) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("price %s: %v: %w", symbol, err, errs.ErrUpstreamPriceUnavailable)
	}

	u, err := url.Parse(s.baseURL)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price url: %v: %w", err, errs.ErrUpstreamPriceUnavailable)
	}
	q := u.Query()
	q.Set("symbol", strings.ToUpper(symbol))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price request: %v: %w", err, errs.ErrUpstreamPriceUnavailable)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price %s: %v: %w", symbol, err, errs.ErrUpstreamPriceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price %s: upstream status %d: %w", symbol, resp.StatusCode, errs.ErrUpstreamPriceUnavailable)
	}

	var body struct {
		USD json.Number `json:"usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode price %s: %v: %w", symbol, err, errs.ErrUpstreamPriceUnavailable)
	}
	p, err := decimal.NewFromString(body.USD.String())
	if err != nil || !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("price %s: invalid quote %q: %w", symbol, body.USD, errs.ErrUpstreamPriceUnavailable)
	}
	return p, nil
}
