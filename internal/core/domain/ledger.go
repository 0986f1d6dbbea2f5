package domain

import (
	"strings"
	"time"
)

// Transaction statuses reported by the ledger service.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Balance is the current account balance.
type Balance struct {
	Balance   float64 `json:"balance"`
	AccountID string  `json:"account_id"`
}

// Transaction is one ledger entry. FromAccountID is nil for deposits.
type Transaction struct {
	ID            string    `json:"id"`
	FromAccountID *string   `json:"from_account_id"`
	ToAccountID   string    `json:"to_account_id"`
	Amount        float64   `json:"amount"`
	Status        string    `json:"status"`
	Description   *string   `json:"description"`
	ErrorMessage  *string   `json:"error_message,omitempty" table:"wide"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at,omitempty" table:"wide"`
}

// Terminal reports whether the transaction will not change status again.
func (t Transaction) Terminal() bool {
	return IsTerminalStatus(t.Status)
}

// IsTerminalStatus reports whether status is completed or failed.
func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// History is the ledger history response.
type History struct {
	Transactions []Transaction `json:"transactions"`
}

// TransferRequest moves funds to the account owned by ToEmail.
type TransferRequest struct {
	ToEmail     string  `json:"to_email"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
}

// Validate rejects an empty recipient or a non-positive amount.
func (r TransferRequest) Validate() error {
	if strings.TrimSpace(r.ToEmail) == "" {
		return ErrMissingField.WithDetails("to_email")
	}
	if !(r.Amount > 0) {
		return ErrInvalidAmount
	}
	return nil
}

// TransferReceipt is returned once a transfer has been accepted.
type TransferReceipt struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
}
