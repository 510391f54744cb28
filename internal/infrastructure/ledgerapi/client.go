package ledgerapi

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

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/storefront/ledgersync/internal/domain/ledger"
	"github.com/storefront/ledgersync/internal/infrastructure/telemetry"
)

// maxResponseSize limits the response body size to prevent memory exhaustion
const maxResponseSize = 10 * 1024 * 1024

// Client implements ledger.Gateway over the ledger's HTTP JSON API
type Client struct {
	config     *Config
	httpClient *http.Client
	tokens     *TokenCache
	caller     *RetryingCaller
	logger     *zap.Logger
}

// NewClient creates a new ledger API client with its own token cache
func NewClient(config *Config, logger *zap.Logger, opts ...TokenCacheOption) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout(),
		},
		logger: logger.Named("ledgerapi"),
	}
	c.tokens = NewTokenCache(c, config.TokenLifetime, config.TokenSafetyMargin, logger, opts...)
	c.caller = NewRetryingCaller(c.tokens, config.MaxAttempts, logger)
	return c, nil
}

var (
	_ ledger.Gateway = (*Client)(nil)
	_ TokenFetcher   = (*Client)(nil)
)

// Tokens returns the client's token cache
func (c *Client) Tokens() *TokenCache {
	return c.tokens
}

// FetchToken exchanges the API key for a bearer credential
func (c *Client) FetchToken(ctx context.Context) (string, time.Duration, error) {
	var resp tokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/access_token", "", tokenRequest{APIKey: c.config.APIKey}, &resp); err != nil {
		return "", 0, err
	}
	if resp.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: empty access token", ledger.ErrInvalidResponse)
	}
	return resp.AccessToken, time.Duration(resp.ExpiresIn) * time.Second, nil
}

// ---------------------------------------------------------------------------
// Associates
// ---------------------------------------------------------------------------

// CreateCustomer creates a remote associate
func (c *Client) CreateCustomer(ctx context.Context, draft ledger.CustomerDraft) (*ledger.RemoteCustomer, error) {
	return Invoke(ctx, c.caller, func(ctx context.Context, token string, _ int) (*ledger.RemoteCustomer, error) {
		var resp itemEnvelope[associateResponse]
		if err := c.doJSON(ctx, http.MethodPost, "/associates", token, toAssociateRequest(draft), &resp); err != nil {
			return nil, err
		}
		customer := resp.Data.toDomain()
		if customer.ID == "" {
			return nil, fmt.Errorf("%w: associate without id", ledger.ErrInvalidResponse)
		}
		return &customer, nil
	})
}

// ListCustomers returns every remote associate, following pagination
func (c *Client) ListCustomers(ctx context.Context) ([]ledger.RemoteCustomer, error) {
	return listAll(ctx, c, "/associates", associateResponse.toDomain)
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

// CreateProduct creates a remote good
func (c *Client) CreateProduct(ctx context.Context, draft ledger.ProductDraft) (*ledger.RemoteProduct, error) {
	return Invoke(ctx, c.caller, func(ctx context.Context, token string, _ int) (*ledger.RemoteProduct, error) {
		var resp itemEnvelope[productResponse]
		if err := c.doJSON(ctx, http.MethodPost, "/products", token, toProductRequest(draft), &resp); err != nil {
			return nil, err
		}
		product := resp.Data.toDomain()
		if product.ID == "" {
			return nil, fmt.Errorf("%w: product without id", ledger.ErrInvalidResponse)
		}
		return &product, nil
	})
}

// ListProducts returns every remote good, following pagination
func (c *Client) ListProducts(ctx context.Context) ([]ledger.RemoteProduct, error) {
	return listAll(ctx, c, "/products", productResponse.toDomain)
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// CreateOrder submits an order to the remote ledger
func (c *Client) CreateOrder(ctx context.Context, draft ledger.OrderDraft) (*ledger.RemoteOrder, error) {
	if draft.ChannelID == "" {
		draft.ChannelID = c.config.ChannelID
	}
	return Invoke(ctx, c.caller, func(ctx context.Context, token string, _ int) (*ledger.RemoteOrder, error) {
		var resp itemEnvelope[orderResponse]
		if err := c.doJSON(ctx, http.MethodPost, "/orders", token, toOrderRequest(draft), &resp); err != nil {
			return nil, err
		}
		order := resp.Data.toDomain()
		if order.ID == "" {
			return nil, fmt.Errorf("%w: order without id", ledger.ErrInvalidResponse)
		}
		return &order, nil
	})
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// listAll walks a paginated collection. Each page is fetched through the retrying caller.
func listAll[W any, T any](ctx context.Context, c *Client, path string, convert func(W) T) ([]T, error) {
	var all []T
	for page := 1; page <= c.config.PageLimit; page++ {
		query := url.Values{"page": []string{strconv.Itoa(page)}}
		resp, err := Invoke(ctx, c.caller, func(ctx context.Context, token string, _ int) (*pageEnvelope[W], error) {
			var resp pageEnvelope[W]
			if err := c.doJSON(ctx, http.MethodGet, path+"?"+query.Encode(), token, nil, &resp); err != nil {
				return nil, err
			}
			return &resp, nil
		})
		if err != nil {
			return nil, err
		}

		for _, item := range resp.Data {
			all = append(all, convert(item))
		}
		if len(resp.Data) == 0 || resp.Meta.LastPage == 0 || page >= resp.Meta.LastPage {
			return all, nil
		}
	}
	c.logger.Warn("Stopped listing at page limit", zap.String("path", path), zap.Int("page_limit", c.config.PageLimit))
	return all, nil
}

// doJSON performs an HTTP request to the ledger API and decodes the JSON response into out
func (c *Client) doJSON(ctx context.Context, method, path, token string, in, out any) error {
	ctx, span := telemetry.StartSpan(ctx, "ledgerapi "+method+" "+routeOf(path),
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute("http.method", method),
	)
	defer span.End()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("ledgerapi: failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.config.BaseURL, "/")+path, body)
	if err != nil {
		return fmt.Errorf("ledgerapi: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("%w: %v", ledger.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("ledgerapi: failed to read response: %w", err)
	}
	telemetry.SetAttribute(span, "http.status_code", resp.StatusCode)

	if resp.StatusCode >= 400 {
		apiErr := newAPIError(resp.StatusCode, respBody)
		telemetry.RecordError(span, apiErr)
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			telemetry.RecordError(span, err)
			return fmt.Errorf("%w: %v", ledger.ErrInvalidResponse, err)
		}
	}
	telemetry.SetOK(span)
	return nil
}

// routeOf strips the query string so span names stay low-cardinality
func routeOf(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
