package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"raidrecord/internal/constants"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

// TokenStore caches the OAuth access token across restarts. An empty token
// with a nil error means no usable cached token exists.
type TokenStore interface {
	Token(ctx context.Context) (token string, expiry time.Time, err error)
	SaveToken(ctx context.Context, token string, expiry time.Time) error
}

// Client is the FFLogs GraphQL transport: client-credentials OAuth, one
// POST per batch query, and the shared budget tracker fed from returned
// rate-limit snapshots.
type Client struct {
	httpc   *fasthttp.Client
	limiter *rate.Limiter
	budget  *BudgetTracker
	tokens  TokenStore
	logger  zerolog.Logger

	mu           sync.Mutex
	clientID     string
	clientSecret string
	accessToken  string
	tokenExpiry  time.Time
}

func NewClient(budget *BudgetTracker, tokens TokenStore, logger zerolog.Logger) *Client {
	return &Client{
		httpc: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: time.Minute,
		},
		limiter: rate.NewLimiter(rate.Every(constants.QueryInterval), 1),
		budget:  budget,
		tokens:  tokens,
		logger:  logger,
	}
}

func (c *Client) Budget() *BudgetTracker {
	return c.budget
}

// SetCredentials installs new API credentials and drops any cached token.
func (c *Client) SetCredentials(clientID, clientSecret string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientID = clientID
	c.clientSecret = clientSecret
	c.accessToken = ""
	c.tokenExpiry = time.Time{}
}

func (c *Client) HasCredentials() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID != "" && c.clientSecret != ""
}

func (c *Client) accessTokenLocked() (string, bool) {
	if c.accessToken != "" && time.Until(c.tokenExpiry) > constants.TokenRefreshThreshold {
		return c.accessToken, true
	}
	return "", false
}

func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if token, ok := c.accessTokenLocked(); ok {
		c.mu.Unlock()
		return token, nil
	}
	clientID, clientSecret := c.clientID, c.clientSecret
	c.mu.Unlock()

	if clientID == "" || clientSecret == "" {
		return "", fmt.Errorf("no API credentials configured")
	}

	if c.tokens != nil {
		token, expiry, err := c.tokens.Token(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("failed to read cached token")
		} else if token != "" && time.Until(expiry) > constants.TokenRefreshThreshold {
			c.mu.Lock()
			c.accessToken, c.tokenExpiry = token, expiry
			c.mu.Unlock()
			return token, nil
		}
	}

	conf := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     constants.TokenURL,
	}
	tok, err := conf.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to obtain access token: %w", err)
	}

	c.mu.Lock()
	c.accessToken, c.tokenExpiry = tok.AccessToken, tok.Expiry
	c.mu.Unlock()

	if c.tokens != nil {
		if err := c.tokens.SaveToken(ctx, tok.AccessToken, tok.Expiry); err != nil {
			c.logger.Warn().Err(err).Msg("failed to cache token")
		}
	}

	c.logger.Info().Time("expiry", tok.Expiry).Msg("access token obtained")
	return tok.AccessToken, nil
}

// injectRateLimit adds the rate-limit selection to a query that does not
// already request it, as a sibling of the top-level selection.
func injectRateLimit(query string) string {
	if strings.Contains(query, "rateLimitData") {
		return query
	}
	idx := strings.LastIndex(query, "}")
	if idx < 0 {
		return query
	}
	return query[:idx] + rateLimitSelection + query[idx:]
}

// ExecuteQuery runs one GraphQL document. When wantRateLimit is set the
// rate-limit selection is requested and any returned snapshot replaces the
// budget tracker's state whether or not the caller still wants the result.
// Fails on non-success HTTP status or on GraphQL errors with no data;
// partial data with errors passes through.
func (c *Client) ExecuteQuery(ctx context.Context, query string, variables map[string]any, wantRateLimit bool) (*DataEnvelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	token, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	if wantRateLimit {
		query = injectRateLimit(query)
	}

	body, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(constants.APIURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.SetBody(body)

	if deadline, ok := ctx.Deadline(); ok {
		err = c.httpc.DoDeadline(req, resp, deadline)
	} else {
		err = c.httpc.Do(req, resp)
	}
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Error().Int("status", resp.StatusCode()).Msg("query failed")
		return nil, &TransportError{StatusCode: resp.StatusCode()}
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		if len(envelope.Errors) > 0 {
			messages := make([]string, len(envelope.Errors))
			for i, e := range envelope.Errors {
				messages[i] = e.Message
			}
			return nil, &TransportError{Messages: messages}
		}
		return nil, &TransportError{Err: fmt.Errorf("empty response data")}
	}

	if len(envelope.Errors) > 0 {
		c.logger.Warn().Int("error_count", len(envelope.Errors)).Msg("query returned partial data with errors")
	}

	var data DataEnvelope
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to decode data: %w", err)}
	}

	if data.RateLimitData != nil {
		c.budget.UpdateSnapshot(*data.RateLimitData)
		c.logger.Debug().
			Float64("points_spent", data.RateLimitData.PointsSpentThisHour).
			Int("limit_per_hour", data.RateLimitData.LimitPerHour).
			Int("reset_in", data.RateLimitData.PointsResetIn).
			Msg("rate limit snapshot updated")
	}

	return &data, nil
}
