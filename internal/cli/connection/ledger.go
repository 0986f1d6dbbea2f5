package connection

import (
	"context"

	"github.com/yndnr/dogpay-go/internal/core/domain"
)

const (
	pathBalance  = "/payments/balance"
	pathHistory  = "/payments/history"
	pathTransfer = "/payments/transfer"
)

// LedgerClient talks to the ledger service.
type LedgerClient struct {
	http *HTTPClient
}

// NewLedgerClient wraps c.
func NewLedgerClient(c *HTTPClient) *LedgerClient {
	return &LedgerClient{http: c}
}

// GetBalance returns the current balance.
func (c *LedgerClient) GetBalance(ctx context.Context) (*domain.Balance, error) {
	resp, err := c.http.Get(ctx, pathBalance)
	if err != nil {
		return nil, err
	}
	var out domain.Balance
	if err := ParseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetHistory returns transactions newest first.
func (c *LedgerClient) GetHistory(ctx context.Context) ([]domain.Transaction, error) {
	resp, err := c.http.Get(ctx, pathHistory)
	if err != nil {
		return nil, err
	}
	var out domain.History
	if err := ParseResponse(resp, &out); err != nil {
		return nil, err
	}
	if out.Transactions == nil {
		out.Transactions = []domain.Transaction{}
	}
	return out.Transactions, nil
}

// Transfer submits a transfer. The receipt is returned once the ledger has
// accepted it; settlement is asynchronous.
func (c *LedgerClient) Transfer(ctx context.Context, in domain.TransferRequest) (*domain.TransferReceipt, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	resp, err := c.http.Post(ctx, pathTransfer, in)
	if err != nil {
		return nil, err
	}
	var out domain.TransferReceipt
	if err := ParseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
