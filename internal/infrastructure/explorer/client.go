package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"txsync/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	// Etherscan-family APIs refuse page*offset beyond this window.
	resultWindow = 10000
)

var actions = map[domain.Category]string{
	domain.CategoryNormal:   "txlist",
	domain.CategoryToken:    "tokentx",
	domain.CategoryInternal: "txlistinternal",
}

// ErrUpstream marks a response the explorer answered with a failure status.
var ErrUpstream = errors.New("explorer returned an error")

type Config struct {
	// APIKeys holds one credential per explorer family (etherscan, polygonscan, ...).
	APIKeys    map[string]string
	Timeout    time.Duration
	PageSize   int
	HTTPClient *http.Client
}

type Client struct {
	apiKeys    map[string]string
	pageSize   int
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.PageSize < 0 {
		return nil, errors.New("page size must not be negative")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	keys := make(map[string]string, len(cfg.APIKeys))
	for explorer, key := range cfg.APIKeys {
		keys[strings.ToLower(explorer)] = key
	}
	pageSize := cfg.PageSize
	if pageSize > resultWindow {
		pageSize = resultWindow
	}
	return &Client{apiKeys: keys, pageSize: pageSize, httpClient: httpClient}, nil
}

type response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (c *Client) FetchRecords(ctx context.Context, network domain.Network, address string, category domain.Category) ([]domain.RawRecord, error) {
	action, ok := actions[category]
	if !ok {
		return nil, fmt.Errorf("unsupported category %q", category)
	}
	if c.pageSize == 0 {
		return c.fetchPage(ctx, network, address, action, 0)
	}

	var records []domain.RawRecord
	for page := 1; ; page++ {
		batch, err := c.fetchPage(ctx, network, address, action, page)
		if err != nil {
			return nil, err
		}
		records = append(records, batch...)
		if len(batch) < c.pageSize {
			return records, nil
		}
		if (page+1)*c.pageSize > resultWindow {
			slog.Warn("explorer result window reached, remaining records not fetched",
				"network", network.Key,
				"category", category,
				"address", address,
				"count", len(records),
			)
			return records, nil
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, network domain.Network, address, action string, page int) ([]domain.RawRecord, error) {
	endpoint, err := c.requestURL(network, address, action, page)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("explorer status %d", resp.StatusCode)
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode explorer response: %w", err)
	}
	return decodeResult(decoded)
}

func (c *Client) requestURL(network domain.Network, address, action string, page int) (string, error) {
	base, err := url.Parse(network.APIURL)
	if err != nil {
		return "", fmt.Errorf("parse api url for %s: %w", network.Key, err)
	}
	query := base.Query()
	query.Set("module", "account")
	query.Set("action", action)
	query.Set("address", address)
	query.Set("startblock", "0")
	query.Set("endblock", "99999999")
	query.Set("sort", "asc")
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
		query.Set("offset", strconv.Itoa(c.pageSize))
	}
	if key := c.apiKeys[strings.ToLower(network.Explorer)]; key != "" {
		query.Set("apikey", key)
	}
	base.RawQuery = query.Encode()
	return base.String(), nil
}

func decodeResult(resp response) ([]domain.RawRecord, error) {
	if resp.Status != "1" {
		if isEmptyResult(resp) {
			return []domain.RawRecord{}, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUpstream, describe(resp))
	}
	var records []domain.RawRecord
	if err := json.Unmarshal(resp.Result, &records); err != nil {
		return nil, fmt.Errorf("decode explorer result: %w", err)
	}
	if records == nil {
		records = []domain.RawRecord{}
	}
	return records, nil
}

// isEmptyResult recognises the "No transactions found" family of answers,
// which explorers report with status "0" and an empty array.
func isEmptyResult(resp response) bool {
	if !strings.HasPrefix(strings.ToLower(resp.Message), "no ") {
		return false
	}
	var records []json.RawMessage
	if err := json.Unmarshal(resp.Result, &records); err != nil {
		return false
	}
	return len(records) == 0
}

func describe(resp response) string {
	message := resp.Message
	if message == "" {
		message = "status " + resp.Status
	}
	var detail string
	if err := json.Unmarshal(resp.Result, &detail); err == nil && detail != "" {
		return message + ": " + detail
	}
	return message
}
