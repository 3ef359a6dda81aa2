// Package mpesa talks to the Safaricom Daraja API: OAuth tokens and
// Lipa-na-M-Pesa STK push.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"chama-backend/internal/apperr"
	mpesaDomain "chama-backend/internal/domain/mpesa"
	"chama-backend/internal/infrastructure/metrics"

	"github.com/redis/go-redis/v9"
)

const (
	tokenPath = "/oauth/v1/generate?grant_type=client_credentials"
	stkPath   = "/mpesa/stkpush/v1/processrequest"

	transactionType = "CustomerPayBillOnline"

	// provider field limits
	maxAccountReference = 12
	maxDescription      = 13

	maxBody = 1 << 20
)

var _ mpesaDomain.Gateway = (*Client)(nil)

type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
	Timeout        time.Duration
}

// TokenSource yields a bearer token for the API.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// invalidator is implemented by caching sources so a rejected token is not
// served again.
type invalidator interface {
	Invalidate(ctx context.Context)
}

type Client struct {
	cfg     Config
	http    *http.Client
	tokens  TokenSource
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	cacheRDB redis.Cmdable
	cacheTTL time.Duration
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithTokenSource(ts TokenSource) Option { return func(c *Client) { c.tokens = ts } }

func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(c *Client) { c.metrics = m } }

func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

// WithTokenCache keeps the bearer token in Redis for up to ttl.
func WithTokenCache(rdb redis.Cmdable, ttl time.Duration) Option {
	return func(c *Client) { c.cacheRDB, c.cacheTTL = rdb, ttl }
}

// NewClient without WithTokenSource or WithTokenCache fetches a fresh token
// for every push.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     slog.Default(),
		metrics: metrics.Nop(),
		now:     time.Now,
	}
	c.cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	for _, o := range opts {
		o(c)
	}
	switch {
	case c.tokens != nil:
	case c.cacheRDB != nil && c.cacheTTL > 0:
		c.tokens = NewRedisTokenCache(c.cacheRDB, c.cacheTTL, c.AccessToken, c.log, c.metrics)
	default:
		c.tokens = directSource{c}
	}
	return c
}

type directSource struct{ c *Client }

func (d directSource) Token(ctx context.Context) (string, error) {
	tok, _, err := d.c.AccessToken(ctx)
	return tok, err
}

type tokenResponse struct {
	AccessToken  string          `json:"access_token"`
	ExpiresIn    json.RawMessage `json:"expires_in"`
	ErrorCode    string          `json:"errorCode"`
	ErrorMessage string          `json:"errorMessage"`
}

// AccessToken fetches a new OAuth token and its lifetime.
func (c *Client) AccessToken(ctx context.Context) (token string, ttl time.Duration, err error) {
	const op = "mpesa.AccessToken"
	started := time.Now()
	defer func() { c.metrics.ObserveGateway("token", started, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+tokenPath, nil)
	if err != nil {
		return "", 0, apperr.Integration(op, err, "build token request")
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	var out tokenResponse
	status, err := c.do(req, &out)
	if err != nil {
		return "", 0, apperr.Integration(op, err, "token request failed")
	}
	if status/100 != 2 || out.AccessToken == "" {
		return "", 0, apperr.Integration(op, nil, "token request rejected (HTTP %d): %s", status, firstNonEmpty(out.ErrorMessage, "no access token"))
	}

	secs, _ := strconv.Atoi(strings.Trim(string(out.ExpiresIn), `"`))
	return out.AccessToken, time.Duration(secs) * time.Second, nil
}

type stkRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	RequestID           string `json:"requestId"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

// Password is base64(shortcode + passkey + timestamp).
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

// STKPush sends the payment prompt. Any answer other than a well-formed
// ResponseCode "0" acknowledgement is an integration error.
func (c *Client) STKPush(ctx context.Context, in mpesaDomain.PushRequest) (ack *mpesaDomain.PushAck, err error) {
	const op = "mpesa.STKPush"
	phone, err := mpesaDomain.NormalizePhone(in.PhoneNumber)
	if err != nil {
		return nil, apperr.Validation(op, "%v", err)
	}
	if in.Amount < 1 {
		return nil, apperr.Validation(op, "amount must be at least 1")
	}

	ack, err = c.push(ctx, phone, in)
	var rejected *unauthorizedError
	if errors.As(err, &rejected) {
		if inv, ok := c.tokens.(invalidator); ok {
			c.log.WarnContext(ctx, "mpesa: bearer token rejected, refreshing")
			inv.Invalidate(ctx)
			ack, err = c.push(ctx, phone, in)
		}
	}
	if errors.As(err, &rejected) {
		return nil, apperr.Integration(op, err, "provider rejected credentials")
	}
	return ack, err
}

type unauthorizedError struct{ body string }

func (e *unauthorizedError) Error() string { return "unauthorized: " + e.body }

func (c *Client) push(ctx context.Context, phone string, in mpesaDomain.PushRequest) (ack *mpesaDomain.PushAck, err error) {
	const op = "mpesa.STKPush"
	started := time.Now()
	defer func() { c.metrics.ObserveGateway("stk_push", started, err) }()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, apperr.Integration(op, err, "could not obtain access token")
	}

	ts := c.now().In(mpesaDomain.Nairobi).Format(mpesaDomain.TimestampLayout)
	body, err := json.Marshal(stkRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.Passkey, ts),
		Timestamp:         ts,
		TransactionType:   transactionType,
		Amount:            in.Amount,
		PartyA:            phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  truncate(in.AccountReference, maxAccountReference),
		TransactionDesc:   truncate(firstNonEmpty(in.Description, in.AccountReference), maxDescription),
	})
	if err != nil {
		return nil, apperr.Integration(op, err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+stkPath, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Integration(op, err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	var out stkResponse
	status, err := c.do(req, &out)
	switch {
	case status == http.StatusUnauthorized:
		return nil, &unauthorizedError{body: out.ErrorMessage}
	case err != nil:
		return nil, apperr.Integration(op, err, "provider unreachable")
	case status/100 != 2:
		return nil, apperr.Integration(op, nil, "provider error (HTTP %d): %s", status, firstNonEmpty(out.ErrorMessage, out.ResponseDescription, "no detail"))
	}

	ack = &mpesaDomain.PushAck{
		MerchantRequestID:   out.MerchantRequestID,
		CheckoutRequestID:   out.CheckoutRequestID,
		ResponseCode:        out.ResponseCode,
		ResponseDescription: out.ResponseDescription,
		CustomerMessage:     out.CustomerMessage,
	}
	if !ack.Accepted() {
		return nil, apperr.Integration(op, nil, "request not accepted (code %q): %s", out.ResponseCode, firstNonEmpty(out.ResponseDescription, out.ErrorMessage, "empty acknowledgement"))
	}
	return ack, nil
}

// do sends req and decodes a JSON body into out. It returns the status code
// even when the body is unusable; an empty body is reported as an error.
func (c *Client) do(req *http.Request, out any) (int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp.StatusCode, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return resp.StatusCode, errors.New("empty response body")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
