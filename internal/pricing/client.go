package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/logging"
)

// Client calls a CoinGecko-compatible simple/price endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchUSD returns USD prices for the given assets. Assets the API leaves out
// are missing from the result.
func (c *Client) FetchUSD(ctx context.Context, assets []domain.Asset) (map[domain.Asset]decimal.Decimal, error) {
	log := logging.FromContext(ctx)

	idSet := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		if id, ok := coinIDs[a]; ok {
			idSet[id] = struct{}{}
		}
	}
	if len(idSet) == 0 {
		return map[domain.Asset]decimal.Decimal{}, nil
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("FetchUSD: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-pro-api-key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("FetchUSD: send: %w", err)
	}
	defer resp.Body.Close()

	log.Debug("price api response received",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("FetchUSD: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var payload map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("FetchUSD: decode: %w", err)
	}

	out := make(map[domain.Asset]decimal.Decimal, len(assets))
	for _, a := range assets {
		entry, ok := payload[coinIDs[a]]
		if !ok {
			continue
		}
		if p, ok := entry["usd"]; ok && p.IsPositive() {
			out[a] = p
		}
	}
	return out, nil
}
