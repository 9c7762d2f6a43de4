package etherscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"SybilScan/internal/domain/models"
	drepo "SybilScan/internal/domain/repository"
	"SybilScan/internal/service/metrics"
	"SybilScan/internal/service/ratelimit"
	xhttp "SybilScan/pkg/http"
	applogger "SybilScan/pkg/logger"

	"github.com/shopspring/decimal"
)

const (
	ActionTxList  = "txlist"
	ActionTokenTx = "tokentx"

	noRecordsMessage = "No transactions found"
)

// Client fetches account history from an Etherscan-compatible API. All
// instances sharing a gate observe one process-wide request spacing.
type Client struct {
	baseURL          string
	http             *xhttp.Client
	gate             *ratelimit.IntervalGate
	keys             *ratelimit.KeyRing
	maxAttempts      int
	rateLimitBackoff time.Duration
	transportBackoff time.Duration
	pageSize         int
	l                *applogger.Logger
}

// Option configures Client.
type Option func(*Client)

// WithMaxAttempts sets the retry ceiling (attempts, not retries).
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoff sets the per-attempt linear backoff for rate-limit and transport failures.
func WithBackoff(rateLimited, transport time.Duration) Option {
	return func(c *Client) {
		c.rateLimitBackoff = rateLimited
		c.transportBackoff = transport
	}
}

// WithPageSize sets the number of records requested per stream.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = xhttp.NewClient(xhttp.WithTimeout(d))
		}
	}
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) { c.l = l }
}

// New creates a Client.
func New(baseURL string, keys *ratelimit.KeyRing, gate *ratelimit.IntervalGate, opts ...Option) *Client {
	c := &Client{
		baseURL:          baseURL,
		http:             xhttp.NewClient(xhttp.WithTimeout(15 * time.Second)),
		gate:             gate,
		keys:             keys,
		maxAttempts:      3,
		rateLimitBackoff: 1500 * time.Millisecond,
		transportBackoff: 500 * time.Millisecond,
		pageSize:         10000,
	}
	for _, opt := range opts {
		opt(c)
	}
	metrics.Register()
	return c
}

// FetchActivity returns the native-transaction and token-transfer histories of
// address, each sorted ascending by timestamp.
func (c *Client) FetchActivity(ctx context.Context, address string, chain models.Chain) (models.Activity, error) {
	addr, err := models.NormalizeAddress(address)
	if err != nil {
		return models.Activity{}, err
	}
	if !models.IsValidChain(chain) {
		return models.Activity{}, &models.ValidationError{Field: "chain", Value: string(chain), Reason: "unsupported chain"}
	}

	native, err := c.fetch(ctx, addr, chain, ActionTxList)
	if err != nil {
		return models.Activity{}, err
	}
	token, err := c.fetch(ctx, addr, chain, ActionTokenTx)
	if err != nil {
		return models.Activity{}, err
	}

	act := models.Activity{
		Address: addr,
		Chain:   chain,
		Native:  toRecords(native, models.KindNative),
		Token:   toRecords(token, models.KindToken),
	}
	models.SortByTime(act.Native)
	models.SortByTime(act.Token)
	return act, nil
}

// providerError is a non-retryable error reported by the API.
type providerError struct {
	status  int
	message string
}

func (e *providerError) Error() string {
	if e.status != 0 {
		return fmt.Sprintf("provider status %d: %s", e.status, e.message)
	}
	return "provider error: " + e.message
}

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type apiTx struct {
	TimeStamp       string `json:"timeStamp"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	ContractAddress string `json:"contractAddress"`
	TokenDecimal    string `json:"tokenDecimal"`
}

func (c *Client) fetch(ctx context.Context, addr string, chain models.Chain, action string) ([]apiTx, error) {
	var lastErr error
	attempt := 0
	for attempt < c.maxAttempts {
		attempt++
		txs, err := c.do(ctx, addr, chain, action)
		if err == nil {
			return txs, nil
		}
		lastErr = err

		var perr *providerError
		if errors.As(err, &perr) || ctx.Err() != nil {
			break
		}
		if attempt == c.maxAttempts {
			break
		}

		backoff := c.transportBackoff
		if errors.Is(err, models.ErrRateLimited) {
			backoff = c.rateLimitBackoff
		}
		backoff *= time.Duration(attempt)
		if c.l != nil {
			c.l.Warn("etherscan retry",
				applogger.String("action", action),
				applogger.String("address", addr),
				applogger.Int("attempt", attempt),
				applogger.Duration("backoff_ms", backoff),
				applogger.Error(err),
			)
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			lastErr = ctx.Err()
			return nil, &models.FetchError{Address: addr, Action: action, Attempts: attempt, Err: lastErr}
		}
	}
	return nil, &models.FetchError{Address: addr, Action: action, Attempts: attempt, Err: lastErr}
}

// do performs one gated request and classifies the response.
func (c *Client) do(ctx context.Context, addr string, chain models.Chain, action string) ([]apiTx, error) {
	waitStart := time.Now()
	if _, err := c.gate.Wait(ctx); err != nil {
		return nil, err
	}
	metrics.GateWait.Observe(time.Since(waitStart).Seconds())

	params := map[string][]string{
		"module":     {"account"},
		"action":     {action},
		"address":    {addr},
		"startblock": {"0"},
		"endblock":   {"99999999"},
		"sort":       {"asc"},
		"page":       {"1"},
		"offset":     {strconv.Itoa(c.pageSize)},
		"chainid":    {strconv.Itoa(chain.ID())},
	}
	if key, err := c.keys.Next(); err == nil {
		params["apikey"] = []string{key}
	}

	start := time.Now()
	txs, outcome, err := c.send(ctx, action, params)
	metrics.UpstreamLatency.WithLabelValues(action).Observe(time.Since(start).Seconds())
	metrics.UpstreamRequests.WithLabelValues(action, outcome).Inc()
	return txs, err
}

func (c *Client) send(ctx context.Context, action string, params map[string][]string) ([]apiTx, string, error) {
	resp, err := c.http.Do(ctx, &xhttp.RequestOptions{
		Method: http.MethodGet,
		URL:    c.baseURL,
		Query:  params,
	})
	if err != nil {
		return nil, "transport_error", err
	}

	switch {
	case resp.Status == http.StatusTooManyRequests:
		return nil, "rate_limited", fmt.Errorf("%w: http %d", models.ErrRateLimited, resp.Status)
	case resp.Status >= 500:
		return nil, "server_error", fmt.Errorf("unexpected status %d: %s", resp.Status, truncate(resp.Body))
	case resp.Status < 200 || resp.Status >= 300:
		return nil, "provider_error", &providerError{status: resp.Status, message: truncate(resp.Body)}
	}

	var ar apiResponse
	if err := json.Unmarshal(resp.Body, &ar); err != nil {
		return nil, "decode_error", fmt.Errorf("decode %s response: %w", action, err)
	}
	return classify(ar)
}

// classify maps the in-body status onto success, empty, rate limit or failure.
func classify(ar apiResponse) ([]apiTx, string, error) {
	var txs []apiTx
	listErr := json.Unmarshal(ar.Result, &txs)

	if ar.Status == "1" {
		if listErr != nil {
			return nil, "decode_error", fmt.Errorf("decode result: %w", listErr)
		}
		return txs, "ok", nil
	}

	if strings.EqualFold(ar.Message, noRecordsMessage) || (listErr == nil && len(txs) == 0) {
		return []apiTx{}, "empty", nil
	}

	var text string
	_ = json.Unmarshal(ar.Result, &text)
	if strings.Contains(strings.ToLower(text), "rate limit") || strings.Contains(strings.ToLower(ar.Message), "rate limit") {
		return nil, "rate_limited", fmt.Errorf("%w: %s", models.ErrRateLimited, text)
	}
	msg := ar.Message
	if text != "" {
		msg += ": " + text
	}
	return nil, "provider_error", &providerError{message: msg}
}

func toRecords(txs []apiTx, kind models.RecordKind) []models.RawActivityRecord {
	out := make([]models.RawActivityRecord, 0, len(txs))
	for _, t := range txs {
		ts, err := strconv.ParseInt(t.TimeStamp, 10, 64)
		if err != nil || ts <= 0 {
			continue
		}
		val, err := decimal.NewFromString(t.Value)
		if err != nil {
			val = decimal.Zero
		}
		r := models.RawActivityRecord{
			Timestamp: ts,
			From:      strings.ToLower(t.From),
			To:        strings.ToLower(t.To),
			Value:     val,
			Kind:      kind,
		}
		if kind == models.KindToken {
			r.Contract = strings.ToLower(t.ContractAddress)
			r.TokenDecimals = models.NativeDecimals
			if d, err := strconv.Atoi(t.TokenDecimal); err == nil && d >= 0 {
				r.TokenDecimals = int32(d)
			}
		}
		out = append(out, r)
	}
	return out
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

var _ drepo.ActivitySource = (*Client)(nil)
