package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ZIMkaRU/bfx-report/pkg/config"
	"github.com/ZIMkaRU/bfx-report/pkg/models"
)

// Venue error code for a request rejected by the rate limiter.
const codeRateLimit = 11010

// Args is the argument bundle for one venue call. End trails backward as
// pagination proceeds; pages come back newest-first within [Start, End].
type Args struct {
	Auth   *models.AccountCredential
	Symbol string
	Start  int64
	End    int64
	Limit  int
	// NotThrowError asks the venue to answer with an empty result instead
	// of an error for unsupported symbols. Used by probe fetches.
	NotThrowError bool
	// NotCheckNextPage suppresses next-page computation on the venue side.
	// Used by probe fetches.
	NotCheckNextPage bool
}

// PageResult is one page of raw venue rows plus the optional cursor for the
// page after it.
type PageResult struct {
	Rows     []interface{}
	NextPage *int64
}

// Client talks to the venue's report endpoint. All calls share one token
// bucket because the venue enforces a single rate budget per client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *logrus.Entry
	methods    map[string]struct{}
}

// Methods the report endpoint exposes.
var supportedMethods = []string{
	"trades",
	"ledgers",
	"orders",
	"movements",
	"positionsHistory",
	"fundingOfferHistory",
	"fundingLoanHistory",
	"fundingCreditHistory",
	"publicTrades",
	"tickersHistory",
	"symbols",
	"currencies",
}

// NewClient creates a new venue API client
func NewClient(cfg *config.VenueConfig, logger *logrus.Logger) *Client {
	methods := make(map[string]struct{}, len(supportedMethods))
	for _, m := range supportedMethods {
		methods[m] = struct{}{}
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		logger:  logger.WithField("component", "venue-client"),
		methods: methods,
	}
}

// HasMethod reports whether the venue exposes the named method.
func (c *Client) HasMethod(name string) bool {
	_, ok := c.methods[name]
	return ok
}

type requestBody struct {
	Method string        `json:"method"`
	Auth   *authPayload  `json:"auth,omitempty"`
	Params requestParams `json:"params"`
}

type authPayload struct {
	APIKey    string `json:"apiKey"`
	APISecret string `json:"apiSecret"`
}

type requestParams struct {
	Symbol           string `json:"symbol,omitempty"`
	Start            int64  `json:"start,omitempty"`
	End              int64  `json:"end,omitempty"`
	Limit            int    `json:"limit,omitempty"`
	NotThrowError    bool   `json:"notThrowError,omitempty"`
	NotCheckNextPage bool   `json:"notCheckNextPage,omitempty"`
}

type responseEnvelope struct {
	Res      interface{} `json:"res"`
	NextPage *int64      `json:"nextPage"`
	Error    *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Request executes one venue call. Probe requests pull a single record with
// pagination checks suppressed; the delta detector uses them to decide
// whether a bulk fetch is worth attempting.
func (c *Client) Request(ctx context.Context, method string, args Args, probe bool) (*PageResult, error) {
	if !c.HasMethod(method) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	body := requestBody{
		Method: method,
		Params: requestParams{
			Symbol:           args.Symbol,
			Start:            args.Start,
			End:              args.End,
			Limit:            args.Limit,
			NotThrowError:    args.NotThrowError,
			NotCheckNextPage: args.NotCheckNextPage,
		},
	}
	if probe {
		body.Params.Limit = 1
		body.Params.NotCheckNextPage = true
	}
	if args.Auth != nil {
		body.Auth = &authPayload{
			APIKey:    args.Auth.APIKey,
			APISecret: args.Auth.APISecret,
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/report", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"method":   method,
		"symbol":   args.Symbol,
		"probe":    probe,
		"status":   resp.StatusCode,
		"duration": time.Since(start).Milliseconds(),
	}).Debug("Venue request")

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}

	var env responseEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{Status: resp.StatusCode, Message: string(raw)}
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if env.Error != nil {
		return nil, classifyAPIError(resp.StatusCode, env.Error.Code, env.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Message: string(raw)}
	}

	return &PageResult{
		Rows:     normalizeRows(env.Res),
		NextPage: env.NextPage,
	}, nil
}

// classifyAPIError maps venue error payloads onto the sentinel errors the
// retry policy understands.
func classifyAPIError(status, code int, message string) error {
	switch {
	case code == codeRateLimit || status == http.StatusTooManyRequests:
		return ErrRateLimited
	case strings.Contains(message, "nonce: small"):
		return ErrNonceSmall
	default:
		return &APIError{Status: status, Code: code, Message: message}
	}
}

// normalizeRows flattens the venue's record-or-list result shape: a list is
// returned as-is, a single record becomes a one-element slice, null becomes
// nil.
func normalizeRows(res interface{}) []interface{} {
	switch v := res.(type) {
	case nil:
		return nil
	case []interface{}:
		return v
	default:
		return []interface{}{v}
	}
}
