// Package lifecycle owns the identity and validity of the current payout
// order per session: when to reuse a live deposit address, when to replace
// it, and how to report its status to the swap flow.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"NairaOfframp/internal/models"
	"NairaOfframp/internal/notify"
	"NairaOfframp/internal/paycrest"
	"NairaOfframp/internal/store"
	"NairaOfframp/internal/wallet"
)

// Session state keys, kept compatible with the persisted keys the
// frontends already read.
const (
	StateBankAccount    = "linkedBankAccount"
	StateOrderID        = "paycrestOrderId"
	StateReceiveAddress = "paycrestReceiveAddress"
	StateValidUntil     = "paycrestValidUntil"
	StateReference      = "paycrestReference"
	StateLastOrderAt    = "lastOrderTimestamp"
	StateLastError      = "lastOrderError"
	StatePollAttempts   = "statusPollAttempts"
)

var (
	ErrNoBankAccount = errors.New("no linked bank account")
	ErrNoWallet      = errors.New("no connected wallet")
	// ErrOrderNotInitiated means the processor reported anything other
	// than initiated on the immediate post-creation check.
	ErrOrderNotInitiated = errors.New("order not initiated after creation")
)

// Store is the persistence contract the manager depends on.
type Store interface {
	SaveOrder(ctx context.Context, order *models.Order) error
	GetCurrentOrder(ctx context.Context, sessionID string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error
	SaveBankAccount(ctx context.Context, acct *models.BankAccount) error
	GetBankAccount(ctx context.Context, sessionID string) (*models.BankAccount, error)
	SaveWallet(ctx context.Context, w *models.WalletBinding) error
	GetWallet(ctx context.Context, sessionID string) (*models.WalletBinding, error)
	AppendTransaction(ctx context.Context, rec *models.TransactionRecord) error
	ListTransactions(ctx context.Context, sessionID string) ([]models.TransactionRecord, error)
	GetState(ctx context.Context, sessionID, key string) (string, error)
	SetState(ctx context.Context, sessionID, key, value string) error
}

// Processor is the payment-processor contract the manager depends on.
type Processor interface {
	VerifyAccount(ctx context.Context, institution, accountIdentifier string) (string, error)
	GetRate(ctx context.Context, token string, amount decimal.Decimal, fiat string) (decimal.Decimal, error)
	CreateOrder(ctx context.Context, req paycrest.CreateOrderRequest) (*paycrest.CreatedOrder, error)
	GetOrderStatus(ctx context.Context, id string) (models.OrderStatus, error)
}

type Notifier interface {
	Publish(ev notify.Event)
}

type Config struct {
	Amount                decimal.Decimal
	Token                 string
	Network               string
	Fiat                  string
	RefreshWindow         time.Duration
	MaxCreateAttempts     int
	FallbackReturnAddress string
}

type Manager struct {
	store     Store
	processor Processor
	notifier  Notifier
	log       *zap.SugaredLogger
	clock     clock.Clock
	cfg       Config

	mu       sync.Mutex
	sessions map[string]*sync.Mutex
}

func NewManager(st Store, proc Processor, n Notifier, log *zap.SugaredLogger, cfg Config) *Manager {
	if cfg.MaxCreateAttempts <= 0 {
		cfg.MaxCreateAttempts = 2
	}
	if cfg.RefreshWindow <= 0 {
		cfg.RefreshWindow = 30 * time.Minute
	}
	return &Manager{
		store:     st,
		processor: proc,
		notifier:  n,
		log:       log,
		clock:     clock.New(),
		cfg:       cfg,
	}
}

// SetClock replaces the wall clock, for tests.
func (m *Manager) SetClock(c clock.Clock) { m.clock = c }

func (m *Manager) RefreshWindow() time.Duration { return m.cfg.RefreshWindow }

// sessionLock serializes order mutations per session. Concurrent triggers
// (watchdog tick, bank change, quote guard) queue up here and each
// re-checks the reuse condition once it holds the lock, so overlapping
// non-forced calls collapse into a single creation.
func (m *Manager) sessionLock(sessionID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions == nil {
		m.sessions = make(map[string]*sync.Mutex)
	}
	l, ok := m.sessions[sessionID]
	if !ok {
		l = &sync.Mutex{}
		m.sessions[sessionID] = l
	}
	return l
}

// EnsureActiveOrder guarantees a valid, non-expired order exists for the
// session's linked bank account and returns its receive address. With
// force unset, a live order created inside the refresh window is reused
// unchanged; otherwise the stored order is replaced wholesale.
func (m *Manager) EnsureActiveOrder(ctx context.Context, sessionID string, force bool) (string, error) {
	l := m.sessionLock(sessionID)
	l.Lock()
	defer l.Unlock()

	now := m.clock.Now().UTC()

	current, err := m.store.GetCurrentOrder(ctx, sessionID)
	if err != nil && !errors.Is(err, store.ErrNoOrder) {
		return "", m.fail(ctx, sessionID, fmt.Errorf("load current order: %w", err))
	}
	if !force && m.reusable(current, now) {
		return current.ReceiveAddress, nil
	}

	acct, err := m.store.GetBankAccount(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNoBankAccount) {
			return "", m.fail(ctx, sessionID, ErrNoBankAccount)
		}
		return "", m.fail(ctx, sessionID, err)
	}
	wal, err := m.store.GetWallet(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNoWallet) {
			return "", m.fail(ctx, sessionID, ErrNoWallet)
		}
		return "", m.fail(ctx, sessionID, err)
	}
	returnAddr, err := wallet.ResolveReturnAddress(wal, m.cfg.FallbackReturnAddress)
	if err != nil {
		return "", m.fail(ctx, sessionID, fmt.Errorf("resolve return address: %w", err))
	}

	// Account re-verification and rate lookup are independent; run them
	// concurrently and join before creating the order.
	var accountName string
	var rate decimal.Decimal
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		name, err := m.processor.VerifyAccount(gctx, acct.Institution, acct.AccountIdentifier)
		if err != nil {
			return fmt.Errorf("verify account: %w", err)
		}
		accountName = name
		return nil
	})
	g.Go(func() error {
		r, err := m.processor.GetRate(gctx, m.cfg.Token, m.cfg.Amount, m.cfg.Fiat)
		if err != nil {
			return fmt.Errorf("get rate: %w", err)
		}
		rate = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", m.fail(ctx, sessionID, err)
	}

	req := paycrest.CreateOrderRequest{
		Amount:        m.cfg.Amount.InexactFloat64(),
		Token:         m.cfg.Token,
		Network:       m.cfg.Network,
		ReturnAddress: returnAddr,
		Reference:     uuid.NewString(),
		Recipient: paycrest.Recipient{
			Institution:       acct.Institution,
			AccountIdentifier: acct.AccountIdentifier,
			AccountName:       accountName,
			Memo:              acct.Memo,
		},
	}

	// A creation whose immediate status check does not come back as
	// initiated is discarded and retried, bounded by MaxCreateAttempts.
	// Network failures during creation are not retried here; the next
	// trigger picks them up.
	var created *paycrest.CreatedOrder
	backoff := retry.WithMaxRetries(uint64(m.cfg.MaxCreateAttempts-1), retry.NewConstant(time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, err := m.processor.CreateOrder(ctx, req)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		st, err := m.processor.GetOrderStatus(ctx, c.ID)
		if err != nil || st != models.OrderInitiated {
			m.log.Warnw("fresh order not initiated, retrying",
				"session", sessionID, "order", c.ID, "status", st, "error", err)
			return retry.RetryableError(ErrOrderNotInitiated)
		}
		created = c
		return nil
	})
	if err != nil {
		return "", m.fail(ctx, sessionID, err)
	}

	order := &models.Order{
		ID:             created.ID,
		SessionID:      sessionID,
		ReceiveAddress: created.ReceiveAddress,
		Status:         models.OrderInitiated,
		ValidUntil:     created.ValidUntil,
		Reference:      created.Reference,
		Token:          m.cfg.Token,
		Network:        m.cfg.Network,
		Amount:         m.cfg.Amount,
		Rate:           rate,
		ReturnAddress:  returnAddr,
		CreatedAt:      now,
		LastUpdated:    now,
	}
	if err := m.store.SaveOrder(ctx, order); err != nil {
		return "", m.fail(ctx, sessionID, fmt.Errorf("persist order: %w", err))
	}
	m.persistOrderState(ctx, sessionID, order, now)
	m.publish(notify.Event{
		Type:      notify.EventOrderReplaced,
		SessionID: sessionID,
		Key:       StateReceiveAddress,
		Value:     order.ReceiveAddress,
	})
	m.log.Infow("order replaced",
		"session", sessionID, "order", order.ID,
		"receive_address", order.ReceiveAddress, "valid_until", order.ValidUntil)

	return order.ReceiveAddress, nil
}

func (m *Manager) reusable(o *models.Order, now time.Time) bool {
	return o.Active(now) && now.Sub(o.CreatedAt) < m.cfg.RefreshWindow
}

func (m *Manager) persistOrderState(ctx context.Context, sessionID string, order *models.Order, now time.Time) {
	entries := map[string]string{
		StateOrderID:        order.ID,
		StateReceiveAddress: order.ReceiveAddress,
		StateValidUntil:     order.ValidUntil.UTC().Format(time.RFC3339),
		StateReference:      order.Reference,
		StateLastOrderAt:    now.Format(time.RFC3339),
		StateLastError:      "",
		StatePollAttempts:   "0",
	}
	for k, v := range entries {
		if err := m.store.SetState(ctx, sessionID, k, v); err != nil {
			m.log.Warnw("persist session state failed", "session", sessionID, "key", k, "error", err)
		}
	}
}

// fail records the error for the session and returns it. Prior order state
// is left untouched apart from the error flag.
func (m *Manager) fail(ctx context.Context, sessionID string, err error) error {
	m.log.Errorw("order lifecycle error", "session", sessionID, "error", err)
	if serr := m.store.SetState(ctx, sessionID, StateLastError, err.Error()); serr != nil {
		m.log.Warnw("persist error flag failed", "session", sessionID, "error", serr)
	}
	m.publish(notify.Event{
		Type:      notify.EventError,
		SessionID: sessionID,
		Key:       StateLastError,
		Value:     err.Error(),
	})
	return err
}

// CheckStatus queries the live status of an order. Any failure maps to
// expired, never to initiated: an unknown status must not be treated as a
// usable deposit address. A successful result updates the stored order
// only when the id still matches the tracked one.
func (m *Manager) CheckStatus(ctx context.Context, sessionID, orderID string) models.OrderStatus {
	st, err := m.processor.GetOrderStatus(ctx, orderID)
	if err != nil {
		m.log.Warnw("status check failed, treating as expired",
			"session", sessionID, "order", orderID, "error", err)
		return models.OrderExpired
	}

	current, cerr := m.store.GetCurrentOrder(ctx, sessionID)
	if cerr == nil && current.ID == orderID && current.Status != st {
		if uerr := m.store.UpdateOrderStatus(ctx, orderID, st); uerr != nil {
			m.log.Warnw("persist status failed", "order", orderID, "error", uerr)
		} else {
			m.publish(notify.Event{
				Type:      notify.EventOrderStatus,
				SessionID: sessionID,
				Key:       StateOrderID,
				Value:     string(st),
			})
		}
	}
	return st
}

// VerifyReceiveAddress guards quote requests: true only when the session
// tracks an order, the address is that order's receive address and the
// live status is still initiated. A superseded address can never pass.
func (m *Manager) VerifyReceiveAddress(ctx context.Context, sessionID, addr string) bool {
	current, err := m.store.GetCurrentOrder(ctx, sessionID)
	if err != nil || current.ID == "" {
		return false
	}
	if !strings.EqualFold(current.ReceiveAddress, addr) {
		return false
	}
	return m.CheckStatus(ctx, sessionID, current.ID) == models.OrderInitiated
}

// LinkBankAccount verifies the recipient with the processor, persists the
// account and forces exactly one order replacement. A replacement failure
// leaves the account linked; the watchdog retries later.
func (m *Manager) LinkBankAccount(ctx context.Context, sessionID, institution, accountIdentifier, memo string) (*models.BankAccount, error) {
	name, err := m.processor.VerifyAccount(ctx, institution, accountIdentifier)
	if err != nil {
		return nil, m.fail(ctx, sessionID, fmt.Errorf("verify account: %w", err))
	}

	acct := &models.BankAccount{
		SessionID:         sessionID,
		Institution:       institution,
		AccountIdentifier: accountIdentifier,
		AccountName:       name,
		Memo:              memo,
		LinkedAt:          m.clock.Now().UTC(),
	}
	if err := m.store.SaveBankAccount(ctx, acct); err != nil {
		return nil, m.fail(ctx, sessionID, fmt.Errorf("persist bank account: %w", err))
	}
	if err := m.store.SetState(ctx, sessionID, StateBankAccount,
		fmt.Sprintf(`{"institution":%q,"accountIdentifier":%q,"accountName":%q}`,
			institution, accountIdentifier, name)); err != nil {
		m.log.Warnw("persist bank state failed", "session", sessionID, "error", err)
	}
	m.publish(notify.Event{
		Type:      notify.EventBankAccount,
		SessionID: sessionID,
		Key:       StateBankAccount,
		Value:     accountIdentifier,
	})

	// The previous receive address belongs to the old recipient; replace
	// the order before the next swap attempt.
	if _, err := m.EnsureActiveOrder(ctx, sessionID, true); err != nil {
		m.log.Warnw("order replacement after bank change failed",
			"session", sessionID, "error", err)
	}
	return acct, nil
}

// BindWallet validates and persists the session's wallet binding.
func (m *Manager) BindWallet(ctx context.Context, sessionID, address string, kind models.WalletKind) (*models.WalletBinding, error) {
	normalized, err := wallet.Validate(address, kind)
	if err != nil {
		return nil, err
	}
	w := &models.WalletBinding{
		SessionID:   sessionID,
		Address:     normalized,
		Kind:        kind,
		ConnectedAt: m.clock.Now().UTC(),
	}
	if err := m.store.SaveWallet(ctx, w); err != nil {
		return nil, fmt.Errorf("persist wallet: %w", err)
	}
	m.publish(notify.Event{
		Type:      notify.EventWallet,
		SessionID: sessionID,
		Value:     normalized,
	})
	return w, nil
}

func (m *Manager) publish(ev notify.Event) {
	if m.notifier != nil {
		m.notifier.Publish(ev)
	}
}
