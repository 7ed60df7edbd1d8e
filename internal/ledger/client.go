// Package ledger implements the accounting-ledger collaborator: report
// pulls, single-purchase fetch and writeback, and bearer-token refresh.
// Raw report payloads are converted to validated model types here, at the
// boundary; nothing downstream sees untyped ledger JSON.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/harborlight/grantflow/internal/common"
	"github.com/harborlight/grantflow/internal/model"
	"github.com/harborlight/grantflow/internal/service"
)

// tokenEarlyExpiry refreshes the bearer token when it is within this
// window of expiring, so a token never goes stale mid-request.
const tokenEarlyExpiry = 60 * time.Second

// tokenSource yields bearer tokens under the caller's context, so a hung
// refresh request honors cancellation.
type tokenSource interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// refreshingTokenSource caches the last access token and refreshes it
// through the OAuth2 endpoint when it is within tokenEarlyExpiry of
// expiring.
type refreshingTokenSource struct {
	cfg *oauth2.Config

	mu  sync.Mutex
	tok *oauth2.Token
}

func (s *refreshingTokenSource) Token(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tok.Valid() && (s.tok.Expiry.IsZero() || time.Until(s.tok.Expiry) > tokenEarlyExpiry) {
		return s.tok, nil
	}

	tok, err := s.cfg.TokenSource(ctx, s.tok).Token()
	if err != nil {
		return nil, err
	}
	s.tok = tok
	return tok, nil
}

// Config holds the ledger API connection settings.
type Config struct {
	BaseURL      string
	CompanyID    string
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string
}

// Client talks to the ledger's REST API. It implements service.Ledger.
type Client struct {
	baseURL    string
	tokens     tokenSource
	httpClient *http.Client
	logger     *slog.Logger
}

var _ service.Ledger = (*Client)(nil)

// NewClient builds a ledger client from OAuth2 refresh-token credentials.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.RefreshToken == "" || cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: ledger client id and refresh token are required", common.ErrLedgerNotConnected)
	}
	if cfg.BaseURL == "" || cfg.CompanyID == "" {
		return nil, fmt.Errorf("%w: ledger base URL and company id are required", common.ErrMissingConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
	}

	return &Client{
		baseURL: fmt.Sprintf("%s/v3/company/%s", cfg.BaseURL, cfg.CompanyID),
		tokens: &refreshingTokenSource{
			cfg: oauthCfg,
			tok: &oauth2.Token{RefreshToken: cfg.RefreshToken},
		},
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}, nil
}

// CheckConnection verifies the credentials by forcing a token fetch.
func (c *Client) CheckConnection(ctx context.Context) error {
	if _, err := c.tokens.Token(ctx); err != nil {
		return fmt.Errorf("%w: %v", common.ErrLedgerNotConnected, err)
	}
	return nil
}

// reportPaths maps each cached report type to its API path.
var reportPaths = map[model.ReportType]string{
	model.ReportBudgets:      "/budgets",
	model.ReportTransactions: "/purchases",
	model.ReportClasses:      "/classes",
}

// FetchReport pulls the full report of the given type and returns the raw
// body for caching. Parsing happens later, against the cached blob.
func (c *Client) FetchReport(ctx context.Context, reportType model.ReportType) ([]byte, error) {
	path, ok := reportPaths[reportType]
	if !ok {
		return nil, fmt.Errorf("unknown report type %q", reportType)
	}

	c.logger.Debug("fetching ledger report", "report_type", reportType)
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s report: %w", reportType, err)
	}
	return body, nil
}

// GetPurchase re-fetches the live purchase by id. Callers rely on the
// returned sync token being current, never one from a cached report.
func (c *Client) GetPurchase(ctx context.Context, id string) (*model.Purchase, error) {
	body, err := c.do(ctx, http.MethodGet, "/purchases/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch purchase %s: %w", id, err)
	}

	var envelope purchaseEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode purchase %s: %w", id, err)
	}

	date, err := time.Parse(dateLayout, envelope.Purchase.TxnDate)
	if err != nil {
		return nil, fmt.Errorf("purchase %s has malformed date %q: %w", id, envelope.Purchase.TxnDate, err)
	}
	return envelope.Purchase.toModel(date), nil
}

// UpdatePurchase posts the full updated purchase back to the ledger. The
// purchase must carry the sync token from an immediately preceding fetch or
// the ledger rejects the write.
func (c *Client) UpdatePurchase(ctx context.Context, purchase *model.Purchase) error {
	payload, err := json.Marshal(purchaseEnvelope{Purchase: fromModelPurchase(purchase)})
	if err != nil {
		return fmt.Errorf("failed to encode purchase %s: %w", purchase.ID, err)
	}

	c.logger.Debug("updating ledger purchase",
		"purchase_id", purchase.ID,
		"sync_token", purchase.SyncToken)
	if _, err := c.do(ctx, http.MethodPost, "/purchases/"+purchase.ID, payload); err != nil {
		return fmt.Errorf("failed to update purchase %s: %w", purchase.ID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrLedgerNotConnected, err)
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ledger API error: status %d - %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
