package gamma

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/freakspace/polymarket-latency/pkg/types"
)

const (
	defaultMarketPath = "/markets/slug/"
	userAgent         = "polylatency/0.1.0"
)

// ErrMarketNotFound is returned when the API has no market for a slug.
var ErrMarketNotFound = errors.New("market not found")

// Config holds the static configuration for a Gamma client.
type Config struct {
	BaseURL string
}

// Dependencies allow test overrides for HTTP client and logging.
type Dependencies struct {
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client resolves market slugs into the token identifiers the stream
// subscribes to.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *log.Logger
}

// Resolution is a market document together with its decoded token ids.
type Resolution struct {
	Market   types.Market
	TokenIDs []string
}

// NewClient builds a Gamma client from configuration and dependencies.
func NewClient(cfg Config, deps Dependencies) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gamma base URL is required")
	}
	httpClient := deps.HTTPClient
	if httpClient == nil {
		return nil, fmt.Errorf("HTTP client is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logger:     logger,
	}, nil
}

// ResolveMarket fetches the market for slug and decodes its token ids.
func (c *Client) ResolveMarket(ctx context.Context, slug string) (Resolution, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Resolution{}, fmt.Errorf("market slug is required")
	}
	endpoint := c.baseURL + defaultMarketPath + url.PathEscape(slug)
	c.logger.Printf("fetching market data: %s", endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Resolution{}, fmt.Errorf("build market request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Resolution{}, fmt.Errorf("fetch market: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Resolution{}, fmt.Errorf("read market response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return Resolution{}, fmt.Errorf("%w: %s", ErrMarketNotFound, slug)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Resolution{}, fmt.Errorf("market fetch failed: status %s", resp.Status)
	}

	var market types.Market
	if err := json.Unmarshal(body, &market); err != nil {
		return Resolution{}, fmt.Errorf("decode market: %w", err)
	}
	ids, err := ParseTokenIDs(market.ClobTokenIDs)
	if err != nil {
		return Resolution{}, err
	}

	c.logger.Printf("market: %s", orUnknown(market.Question))
	c.logger.Printf("condition id: %s", orUnknown(market.ConditionID))
	c.logger.Printf("token ids: %d", len(ids))
	return Resolution{Market: market, TokenIDs: ids}, nil
}

// ParseTokenIDs accepts the clobTokenIds field as a JSON array, a string
// holding an encoded JSON array, or a comma-separated string. Blank entries
// are dropped; an empty result is not an error.
func ParseTokenIDs(raw json.RawMessage) ([]string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var list []string
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode clobTokenIds array: %w", err)
		}
		return compact(list), nil
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("decode clobTokenIds: %w", err)
	}
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "[") {
		if err := json.Unmarshal([]byte(encoded), &list); err == nil {
			return compact(list), nil
		}
	}
	return compact(strings.Split(encoded, ",")), nil
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
