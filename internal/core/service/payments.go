package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/dogpay-go/internal/core/domain"
	"github.com/yndnr/dogpay-go/internal/telemetry/logger"
	"github.com/yndnr/dogpay-go/pkg/cmap"
)

// LedgerAPI is the ledger service as seen by Payments.
type LedgerAPI interface {
	GetBalance(ctx context.Context) (*domain.Balance, error)
	GetHistory(ctx context.Context) ([]domain.Transaction, error)
	Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferReceipt, error)
}

// PaymentsConfig holds cache lifetimes and confirmation polling settings.
type PaymentsConfig struct {
	BalanceTTL      time.Duration
	HistoryTTL      time.Duration
	ConfirmInterval time.Duration
	ConfirmTimeout  time.Duration
}

// DefaultPaymentsConfig mirrors the refetch intervals of the web client.
func DefaultPaymentsConfig() PaymentsConfig {
	return PaymentsConfig{
		BalanceTTL:      10 * time.Second,
		HistoryTTL:      5 * time.Second,
		ConfirmInterval: 1500 * time.Millisecond,
		ConfirmTimeout:  30 * time.Second,
	}
}

// QueryOptions controls cache use for a single query.
type QueryOptions struct {
	// Fresh bypasses the cache.
	Fresh bool
}

// PendingTransfer is a transfer accepted by the ledger whose final status
// has not been observed yet.
type PendingTransfer struct {
	TransactionID string    `json:"transaction_id"`
	ToEmail       string    `json:"to_email"`
	Amount        float64   `json:"amount"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// Payments serves balance and history through the derived cache and
// tracks transfers until the ledger settles them.
type Payments struct {
	ledger  LedgerAPI
	cache   *DerivedCache
	cfg     PaymentsConfig
	pending *cmap.Map[string, PendingTransfer]
	logger  logger.Logger
}

// NewPayments creates a Payments service.
func NewPayments(ledger LedgerAPI, cache *DerivedCache, cfg PaymentsConfig, log logger.Logger) *Payments {
	def := DefaultPaymentsConfig()
	if cfg.BalanceTTL <= 0 {
		cfg.BalanceTTL = def.BalanceTTL
	}
	if cfg.HistoryTTL <= 0 {
		cfg.HistoryTTL = def.HistoryTTL
	}
	if cfg.ConfirmInterval <= 0 {
		cfg.ConfirmInterval = def.ConfirmInterval
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = def.ConfirmTimeout
	}
	if log == nil {
		log = logger.Default()
	}
	p := &Payments{
		ledger:  ledger,
		cache:   cache,
		cfg:     cfg,
		pending: cmap.NewWithShards[string, PendingTransfer](4),
		logger:  log.With("component", "payments"),
	}
	// Pending transfers belong to the session, like the cached queries.
	cache.OnClear(p.pending.Clear)
	return p
}

// Balance returns the account balance.
func (p *Payments) Balance(ctx context.Context, opts QueryOptions) (*domain.Balance, error) {
	return cachedQuery(p.cache, QueryBalance, p.cfg.BalanceTTL, opts.Fresh, func() (*domain.Balance, error) {
		return p.ledger.GetBalance(ctx)
	})
}

// History returns transactions in the order the ledger reports them.
func (p *Payments) History(ctx context.Context, opts QueryOptions) ([]domain.Transaction, error) {
	return cachedQuery(p.cache, QueryHistory, p.cfg.HistoryTTL, opts.Fresh, func() ([]domain.Transaction, error) {
		return p.ledger.GetHistory(ctx)
	})
}

// Transfer submits a transfer. Balance and history are invalidated as
// soon as the ledger accepts it, and the transaction is tracked until
// AwaitConfirmation observes a final status.
func (p *Payments) Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferReceipt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	receipt, err := p.ledger.Transfer(ctx, req)
	if err != nil {
		return nil, err
	}
	p.cache.InvalidatePrefix(QueryPaymentsPrefix)

	if receipt.TransactionID != "" && !domain.IsTerminalStatus(receipt.Status) {
		p.pending.Set(receipt.TransactionID, PendingTransfer{
			TransactionID: receipt.TransactionID,
			ToEmail:       req.ToEmail,
			Amount:        req.Amount,
			SubmittedAt:   time.Now(),
		})
	}
	p.logger.Info("transfer accepted", "transaction_id", receipt.TransactionID, "status", receipt.Status)
	return receipt, nil
}

// AwaitConfirmation polls history until txID reaches a final status.
// It returns domain.ErrConfirmationTimeout when the confirmation window
// elapses first, and the context error if ctx is cancelled.
func (p *Payments) AwaitConfirmation(ctx context.Context, txID string) (*domain.Transaction, error) {
	if txID == "" {
		return nil, domain.ErrMissingField.WithDetails("transaction_id")
	}

	pollCtx, cancel := context.WithTimeout(ctx, p.cfg.ConfirmTimeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(p.cfg.ConfirmInterval), 1)
	for {
		if err := limiter.Wait(pollCtx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, domain.ErrConfirmationTimeout.WithDetails(txID)
		}

		p.cache.Invalidate(QueryHistory)
		txs, err := p.History(pollCtx, QueryOptions{Fresh: true})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(pollCtx.Err(), context.DeadlineExceeded) {
				return nil, domain.ErrConfirmationTimeout.WithDetails(txID).WithCause(err)
			}
			return nil, err
		}

		for i := range txs {
			if txs[i].ID != txID || !txs[i].Terminal() {
				continue
			}
			p.cache.Invalidate(QueryBalance)
			log := p.logger.With("transaction_id", txID, "status", txs[i].Status)
			if pt, ok := p.pending.Pop(txID); ok {
				log = log.With("waited", time.Since(pt.SubmittedAt).Round(time.Millisecond))
			}
			log.Info("transfer settled")
			tx := txs[i]
			return &tx, nil
		}
	}
}

// Pending lists transfers still awaiting a final status.
func (p *Payments) Pending() []PendingTransfer {
	return p.pending.Values()
}
