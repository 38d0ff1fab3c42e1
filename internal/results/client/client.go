// Package client consome o feed de resultados por data (/results/v2/getByDate).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/radieske/sports-picks-engine/internal/shared/domain"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 64 << 20
)

// Results é o resultado de um dia já normalizado
// Statuses: id -> status normalizado (live, finished ou o código bruto)
// Scores: id -> "score1:score2", só para registros com os dois placares
type Results struct {
	Statuses map[string]string
	Scores   map[string]string
	Skipped  int
}

// Merge aplica other por cima de r (other vence em caso de conflito)
func (r *Results) Merge(other Results) {
	if r.Statuses == nil {
		r.Statuses = make(map[string]string, len(other.Statuses))
	}
	if r.Scores == nil {
		r.Scores = make(map[string]string, len(other.Scores))
	}
	for id, s := range other.Statuses {
		r.Statuses[id] = s
	}
	for id, s := range other.Scores {
		r.Scores[id] = s
	}
	r.Skipped += other.Skipped
}

type Client struct {
	baseURL       string
	lang          string
	packetVersion string
	scopeMarket   int

	httpClient *http.Client
	limiter    *rate.Limiter
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithPacketVersion define o parâmetro packetVersion exigido pelo endpoint
func WithPacketVersion(v string) ClientOption {
	return func(c *Client) { c.packetVersion = v }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:       baseURL,
		lang:          "ru",
		packetVersion: "0",
		scopeMarket:   1600,
		httpClient:    &http.Client{Timeout: defaultTimeout},
		limiter:       rate.NewLimiter(rate.Limit(1), 2),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchDate busca os resultados de um dia de calendário (YYYY-MM-DD no fuso de day)
func (c *Client) FetchDate(ctx context.Context, day time.Time) (Results, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Results{}, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("lang", c.lang)
	params.Set("packetVersion", c.packetVersion)
	params.Set("lineDate", day.Format("2006-01-02"))
	params.Set("scopeMarket", strconv.Itoa(c.scopeMarket))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/results/v2/getByDate?"+params.Encode(), nil)
	if err != nil {
		return Results{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Results{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Results{}, fmt.Errorf("results error %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Results{}, fmt.Errorf("read body: %w", err)
	}
	return Decode(body)
}

type rawResults struct {
	Events     []json.RawMessage `json:"events"`
	EventMiscs []json.RawMessage `json:"eventMiscs"`
}

type matchRecord struct {
	ID     flexString  `json:"id"`
	Status *flexString `json:"status"`
}

type scoreRecord struct {
	ID     flexString  `json:"id"`
	Score1 *flexString `json:"score1"`
	Score2 *flexString `json:"score2"`
}

// Decode monta os mapas de status e placar; registros malformados são pulados
func Decode(body []byte) (Results, error) {
	var raw rawResults
	if err := json.Unmarshal(body, &raw); err != nil {
		return Results{}, fmt.Errorf("decode results: %w", err)
	}

	res := Results{
		Statuses: make(map[string]string, len(raw.Events)),
		Scores:   make(map[string]string, len(raw.EventMiscs)),
	}

	for _, item := range raw.Events {
		var m matchRecord
		if err := json.Unmarshal(item, &m); err != nil || m.ID == "" {
			res.Skipped++
			continue
		}
		if m.Status == nil {
			continue
		}
		res.Statuses[string(m.ID)] = NormalizeStatus(string(*m.Status))
	}

	for _, item := range raw.EventMiscs {
		var s scoreRecord
		if err := json.Unmarshal(item, &s); err != nil || s.ID == "" {
			res.Skipped++
			continue
		}
		// placar só é reportável com os dois lados presentes
		if s.Score1 == nil || s.Score2 == nil {
			continue
		}
		a, err1 := strconv.Atoi(string(*s.Score1))
		b, err2 := strconv.Atoi(string(*s.Score2))
		if err1 != nil || err2 != nil {
			res.Skipped++
			continue
		}
		res.Scores[string(s.ID)] = domain.FormatScore(a, b)
	}

	return res, nil
}

// NormalizeStatus converte o código bruto: 1 -> live, 2 -> finished, demais passam direto
func NormalizeStatus(raw string) string {
	switch strings.TrimSpace(raw) {
	case "1":
		return domain.StatusLive
	case "2":
		return domain.StatusFinished
	default:
		return strings.TrimSpace(raw)
	}
}

// flexString aceita número ou string no JSON
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
