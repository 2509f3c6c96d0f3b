package venue

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZIMkaRU/bfx-report/pkg/config"
	"github.com/ZIMkaRU/bfx-report/pkg/models"
)

func newTestClient(url string) *Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewClient(&config.VenueConfig{
		APIURL:         url,
		RequestTimeout: 5 * time.Second,
		RateLimit:      1000,
		RateBurst:      1000,
	}, logger)
}

func decodeBody(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestRequest_Page(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/report", r.URL.Path)

		body := decodeBody(t, r)
		assert.Equal(t, "trades", body["method"])
		auth := body["auth"].(map[string]interface{})
		assert.Equal(t, "key", auth["apiKey"])
		assert.Equal(t, "secret", auth["apiSecret"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"res":      []interface{}{[]interface{}{1, 100}, []interface{}{2, 90}},
			"nextPage": 89,
		})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Request(context.Background(), "trades", Args{
		Auth: &models.AccountCredential{APIKey: "key", APISecret: "secret"},
		End:  1000,
	}, false)
	require.NoError(t, err)

	assert.Len(t, res.Rows, 2)
	require.NotNil(t, res.NextPage)
	assert.Equal(t, int64(89), *res.NextPage)
}

func TestRequest_ProbeOverridesParams(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		params := body["params"].(map[string]interface{})
		assert.Equal(t, float64(1), params["limit"])
		assert.Equal(t, true, params["notCheckNextPage"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"res": []interface{}{[]interface{}{1, 100}},
		})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Request(context.Background(), "trades", Args{Limit: 500}, true)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
	assert.Nil(t, res.NextPage)
}

func TestRequest_NullResult(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"res": nil})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Request(context.Background(), "trades", Args{}, false)
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

func TestRequest_RateLimitClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		payload map[string]interface{}
	}{
		{
			name:   "http 429",
			status: http.StatusTooManyRequests,
		},
		{
			name:   "venue error code",
			status: http.StatusOK,
			payload: map[string]interface{}{
				"error": map[string]interface{}{"code": 11010, "message": "ratelimit"},
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				if tt.payload != nil {
					json.NewEncoder(w).Encode(tt.payload)
				}
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Request(context.Background(), "trades", Args{}, false)
			assert.ErrorIs(t, err, ErrRateLimited)
		})
	}
}

func TestRequest_NonceClassification(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"code": 10100, "message": "auth: invalid nonce: small"},
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Request(context.Background(), "trades", Args{}, false)
	assert.ErrorIs(t, err, ErrNonceSmall)
}

func TestRequest_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"code": 10000, "message": "broken"},
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Request(context.Background(), "trades", Args{}, false)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 10000, apiErr.Code)
	assert.Equal(t, "broken", apiErr.Message)
}

func TestRequest_UnknownMethod(t *testing.T) {
	t.Parallel()

	_, err := newTestClient("http://localhost:0").Request(context.Background(), "bogus", Args{}, false)
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestHasMethod(t *testing.T) {
	t.Parallel()

	c := newTestClient("http://localhost:0")
	assert.True(t, c.HasMethod("trades"))
	assert.True(t, c.HasMethod("publicTrades"))
	assert.False(t, c.HasMethod("wallets"))
}
