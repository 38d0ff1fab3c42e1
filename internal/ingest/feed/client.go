// Package feed consome o feed delta versionado de odds (/events/list).
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultRateLimit = 2.0 // requisições por segundo
	defaultBurst     = 1

	maxBodyBytes = 64 << 20
)

// Client busca snapshots delta do feed
type Client struct {
	baseURL     string
	lang        string
	scopeMarket int

	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption configura o client
type ClientOption func(*Client)

// WithHTTPClient troca o http.Client (útil em testes)
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout define o timeout de cada fetch
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit define o token bucket aplicado antes de cada requisição
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithLang define o idioma dos nomes (default "ru")
func WithLang(lang string) ClientOption {
	return func(c *Client) { c.lang = lang }
}

// WithScopeMarket define o escopo de mercados (1600 = linha completa)
func WithScopeMarket(scope int) ClientOption {
	return func(c *Client) { c.scopeMarket = scope }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     baseURL,
		lang:        "ru",
		scopeMarket: 1600,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch pede o delta a partir do cursor version. O cursor só deve avançar
// quando o chamador terminar de processar o Packet retornado.
func (c *Client) Fetch(ctx context.Context, version int64) (Packet, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Packet{}, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("lang", c.lang)
	params.Set("version", strconv.FormatInt(version, 10))
	params.Set("scopeMarket", strconv.Itoa(c.scopeMarket))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events/list?"+params.Encode(), nil)
	if err != nil {
		return Packet{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Packet{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Packet{}, fmt.Errorf("feed error %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Packet{}, fmt.Errorf("read body: %w", err)
	}
	return Decode(body)
}
