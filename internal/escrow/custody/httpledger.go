package custody

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tdhoang/escrow-be/internal/escrow/domain"
)

// HTTPLedger reaches an external ledger service over its REST surface. The
// same surface serves the native treasury and individual token ledgers, so
// it implements both capability interfaces.
type HTTPLedger struct {
	client *resty.Client
}

// NewHTTPLedger creates a ledger client for the given base URL.
func NewHTTPLedger(baseURL string, timeout time.Duration) *HTTPLedger {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &HTTPLedger{client: client}
}

type transferRequest struct {
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type transferResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type balanceResponse struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

func (l *HTTPLedger) Transfer(ctx context.Context, to domain.Identity, amount uint64) (bool, error) {
	return l.post(ctx, "/v1/transfer", transferRequest{
		To:     string(to),
		Amount: amount,
	})
}

func (l *HTTPLedger) TransferFrom(ctx context.Context, from, to domain.Identity, amount uint64) (bool, error) {
	return l.post(ctx, "/v1/transfer-from", transferRequest{
		From:   string(from),
		To:     string(to),
		Amount: amount,
	})
}

func (l *HTTPLedger) BalanceOf(ctx context.Context, account domain.Identity) (uint64, error) {
	var out balanceResponse
	resp, err := l.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v1/balances/" + string(account))
	if err != nil {
		return 0, fmt.Errorf("ledger balance request failed: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("ledger balance request failed: status %d", resp.StatusCode())
	}
	return out.Amount, nil
}

func (l *HTTPLedger) post(ctx context.Context, path string, body transferRequest) (bool, error) {
	var out transferResponse
	resp, err := l.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post(path)
	if err != nil {
		return false, fmt.Errorf("ledger transfer request failed: %w", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("ledger transfer request failed: status %d", resp.StatusCode())
	}
	return out.Success, nil
}

// NativeHTTPLedger adapts HTTPLedger to the native-ledger capability, where
// the ledger's own success reporting is an error rather than a boolean.
type NativeHTTPLedger struct {
	ledger *HTTPLedger
}

// NewNativeHTTPLedger wraps an HTTPLedger as a NativeLedger.
func NewNativeHTTPLedger(ledger *HTTPLedger) *NativeHTTPLedger {
	return &NativeHTTPLedger{ledger: ledger}
}

func (n *NativeHTTPLedger) Transfer(ctx context.Context, to domain.Identity, amount uint64) error {
	ok, err := n.ledger.Transfer(ctx, to, amount)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("native transfer rejected by recipient")
	}
	return nil
}

func (n *NativeHTTPLedger) TransferFrom(ctx context.Context, from, to domain.Identity, amount uint64) error {
	ok, err := n.ledger.TransferFrom(ctx, from, to, amount)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("native transferFrom rejected")
	}
	return nil
}
