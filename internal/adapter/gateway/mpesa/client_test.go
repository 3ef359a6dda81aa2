package mpesa

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"chama-backend/internal/apperr"
	mpesaDomain "chama-backend/internal/domain/mpesa"
	"chama-backend/internal/infrastructure/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const (
	testShortCode = "174379"
	testPasskey   = "bfb279f9aa9bdbcf158e97dd71a467cd2e0c893059b10f78e6b72ada1ed2c919"
)

// 10:00 UTC is 13:00 in Nairobi
var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestClient(t *testing.T, baseURL string, opts ...Option) (*Client, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	base := []Option{WithLogger(quietLog()), WithMetrics(m), WithClock(func() time.Time { return fixedNow })}
	c := NewClient(Config{
		BaseURL:        baseURL + "/",
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      testShortCode,
		Passkey:        testPasskey,
		CallbackURL:    "https://chama.example/api/mpesa/callback",
		Timeout:        2 * time.Second,
	}, append(base, opts...)...)
	return c, m
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func tokenHandler(t *testing.T, token string, calls *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			t.Errorf("token request basic auth = %q/%q (%v)", user, pass, ok)
		}
		if r.URL.Query().Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q", r.URL.Query().Get("grant_type"))
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "expires_in": "3599"})
	}
}

func acceptedAck(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{
		"MerchantRequestID":   "29115-34620561-1",
		"CheckoutRequestID":   "ws_CO_191220191020363925",
		"ResponseCode":        "0",
		"ResponseDescription": "Success. Request accepted for processing",
		"CustomerMessage":     "Success. Request accepted for processing",
	})
}

func TestAccessToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", tokenHandler(t, "tok-1", nil))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, m := newTestClient(t, srv.URL)
	tok, ttl, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-1", tok)
	require.Equal(t, 3599*time.Second, ttl)
	require.Equal(t, 1.0, testutil.ToFloat64(m.GatewayRequests.WithLabelValues("token", "ok")))
}

func TestAccessToken_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"errorCode": "400.008.01", "errorMessage": "Invalid Authentication passed",
		})
	}))
	defer srv.Close()

	c, m := newTestClient(t, srv.URL)
	_, _, err := c.AccessToken(context.Background())
	require.True(t, apperr.Is(err, apperr.KindIntegration), "got %v", err)
	require.Contains(t, err.Error(), "Invalid Authentication passed")
	require.Equal(t, 1.0, testutil.ToFloat64(m.GatewayRequests.WithLabelValues("token", "error")))
}

func TestSTKPush_BuildsProviderRequest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", tokenHandler(t, "tok-1", nil))
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		var got stkRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		require.Equal(t, testShortCode, got.BusinessShortCode)
		require.Equal(t, "20240315130000", got.Timestamp)
		require.Equal(t, Password(testShortCode, testPasskey, "20240315130000"), got.Password)
		require.Equal(t, "CustomerPayBillOnline", got.TransactionType)
		require.EqualValues(t, 1500, got.Amount)
		require.Equal(t, "254712345678", got.PartyA)
		require.Equal(t, "254712345678", got.PhoneNumber)
		require.Equal(t, testShortCode, got.PartyB)
		require.Equal(t, "https://chama.example/api/mpesa/callback", got.CallBackURL)
		require.Equal(t, "LN-20240315-", got.AccountReference)
		require.Equal(t, "Loan repaymen", got.TransactionDesc)
		acceptedAck(w)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, m := newTestClient(t, srv.URL)
	ack, err := c.STKPush(context.Background(), mpesaDomain.PushRequest{
		PhoneNumber:      "0712 345 678",
		Amount:           1500,
		AccountReference: "LN-20240315-0001",
		Description:      "Loan repayment March",
	})
	require.NoError(t, err)
	require.Equal(t, "ws_CO_191220191020363925", ack.CheckoutRequestID)
	require.Equal(t, "29115-34620561-1", ack.MerchantRequestID)
	require.Equal(t, "0", ack.ResponseCode)
	require.Equal(t, 1.0, testutil.ToFloat64(m.GatewayRequests.WithLabelValues("stk_push", "ok")))
}

func TestTruncate_KeepsWholeCharacters(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"Loan repayment", 13, "Loan repaymen"},
		{"short", 13, "short"},
		{"Malipo ya mkopo ✓✓✓", 18, "Malipo ya mkopo ✓✓"},
		{"Ada ya €€€€€", 8, "Ada ya €"},
		{"", 12, ""},
	}
	for _, tc := range tests {
		got := truncate(tc.in, tc.n)
		require.Equal(t, tc.want, got)
		require.True(t, utf8.ValidString(got), "%q split a character", got)
	}
}

func TestPassword(t *testing.T) {
	// base64("174379" + passkey + "20160216165627"), the provider's documented example
	want := "MTc0Mzc5YmZiMjc5ZjlhYTliZGJjZjE1OGU5N2RkNzFhNDY3Y2QyZTBjODkzMDU5YjEwZjc4ZTZiNzJhZGExZWQyYzkxOTIwMTYwMjE2MTY1NjI3"
	require.Equal(t, want, Password(testShortCode, testPasskey, "20160216165627"))
}

func TestSTKPush_Failures(t *testing.T) {
	tests := []struct {
		name string
		stk  http.HandlerFunc
	}{
		{"non-zero response code", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{
				"MerchantRequestID": "m", "CheckoutRequestID": "ws_CO_x",
				"ResponseCode": "1", "ResponseDescription": "Rejected",
			})
		}},
		{"provider error body", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"requestId": "r", "errorCode": "500.001.1001", "errorMessage": "Unable to lock subscriber",
			})
		}},
		{"empty body", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>gateway timeout</html>"))
		}},
		{"accepted without checkout id", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"ResponseCode": "0"})
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/oauth/v1/generate", tokenHandler(t, "tok", nil))
			mux.HandleFunc("/mpesa/stkpush/v1/processrequest", tc.stk)
			srv := httptest.NewServer(mux)
			defer srv.Close()

			c, m := newTestClient(t, srv.URL)
			ack, err := c.STKPush(context.Background(), mpesaDomain.PushRequest{PhoneNumber: "0712345678", Amount: 10, AccountReference: "M-001"})
			require.Nil(t, ack)
			require.True(t, apperr.Is(err, apperr.KindIntegration), "got %v", err)
			require.Equal(t, 1.0, testutil.ToFloat64(m.GatewayRequests.WithLabelValues("stk_push", "error")))
		})
	}
}

func TestSTKPush_TokenFailureIsIntegration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	_, err := c.STKPush(context.Background(), mpesaDomain.PushRequest{PhoneNumber: "0712345678", Amount: 10})
	require.True(t, apperr.Is(err, apperr.KindIntegration), "got %v", err)
}

func TestSTKPush_TimesOut(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", tokenHandler(t, "tok", nil))
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	defer close(release)

	c, _ := newTestClient(t, srv.URL, WithHTTPClient(&http.Client{Timeout: 100 * time.Millisecond}))
	started := time.Now()
	_, err := c.STKPush(context.Background(), mpesaDomain.PushRequest{PhoneNumber: "0712345678", Amount: 10})
	require.True(t, apperr.Is(err, apperr.KindIntegration), "got %v", err)
	require.Less(t, time.Since(started), 2*time.Second)
}

func TestSTKPush_ValidatesBeforeCallingProvider(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	_, err := c.STKPush(context.Background(), mpesaDomain.PushRequest{PhoneNumber: "12345", Amount: 10})
	require.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
	_, err = c.STKPush(context.Background(), mpesaDomain.PushRequest{PhoneNumber: "0712345678", Amount: 0})
	require.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
	require.Zero(t, atomic.LoadInt32(&hits))
}

func TestSTKPush_FreshTokenPerCallWithoutCache(t *testing.T) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", tokenHandler(t, "tok", &tokenCalls))
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) { acceptedAck(w) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	for i := 0; i < 3; i++ {
		_, err := c.STKPush(context.Background(), mpesaDomain.PushRequest{PhoneNumber: "0712345678", Amount: 10})
		require.NoError(t, err)
	}
	require.EqualValues(t, 3, atomic.LoadInt32(&tokenCalls))
}

func TestSTKPush_CachedTokenReusedAndRefreshedOnReject(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, s.Set(defaultTokenKey, "stale"))

	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", tokenHandler(t, "fresh", &tokenCalls))
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"errorCode": "404.001.03", "errorMessage": "Invalid Access Token"})
			return
		}
		acceptedAck(w)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, WithTokenCache(rdb, 50*time.Minute))
	for i := 0; i < 3; i++ {
		_, err := c.STKPush(context.Background(), mpesaDomain.PushRequest{PhoneNumber: "0712345678", Amount: 10})
		require.NoError(t, err, "push %d", i)
	}
	require.EqualValues(t, 1, atomic.LoadInt32(&tokenCalls))

	cached, err := s.Get(defaultTokenKey)
	require.NoError(t, err)
	require.Equal(t, "fresh", cached)
}
