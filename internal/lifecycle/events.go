package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"NairaOfframp/internal/models"
	"NairaOfframp/internal/store"
)

// Widget event names, matching the swap widget's callback contract.
const (
	EventQuoteRequested       = "QUOTE_REQUESTED"
	EventSwapSuccess          = "SWAP_SUCCESS"
	EventWalletSelectorSelect = "WALLET_SELECTOR_SELECT"
)

var ErrUnknownEvent = errors.New("unknown widget event")

type WidgetEvent struct {
	Name    string            `json:"event"`
	Token   string            `json:"token,omitempty"`
	Amount  decimal.Decimal   `json:"amount,omitempty"`
	Address string            `json:"address,omitempty"`
	Kind    models.WalletKind `json:"kind,omitempty"`
}

type EventResult struct {
	ReceiveAddress string `json:"receiveAddress,omitempty"`
	OrderID        string `json:"orderId,omitempty"`
	Replaced       bool   `json:"replaced,omitempty"`
}

// HandleWidgetEvent reacts to swap-widget lifecycle events. Processor
// failures are contained here; the widget's event path never sees a panic.
func (m *Manager) HandleWidgetEvent(ctx context.Context, sessionID string, ev WidgetEvent) (*EventResult, error) {
	switch ev.Name {
	case EventQuoteRequested:
		return m.onQuoteRequested(ctx, sessionID)
	case EventSwapSuccess:
		return m.onSwapSuccess(ctx, sessionID, ev)
	case EventWalletSelectorSelect:
		if _, err := m.BindWallet(ctx, sessionID, ev.Address, ev.Kind); err != nil {
			return nil, err
		}
		return &EventResult{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Name)
}

// onQuoteRequested verifies the tracked address right before a quote is
// built and forces a replacement when the processor no longer honors it.
func (m *Manager) onQuoteRequested(ctx context.Context, sessionID string) (*EventResult, error) {
	current, err := m.store.GetCurrentOrder(ctx, sessionID)
	if err == nil && m.VerifyReceiveAddress(ctx, sessionID, current.ReceiveAddress) {
		return &EventResult{ReceiveAddress: current.ReceiveAddress, OrderID: current.ID}, nil
	}
	if err != nil && !errors.Is(err, store.ErrNoOrder) {
		return nil, err
	}

	addr, err := m.EnsureActiveOrder(ctx, sessionID, true)
	if err != nil {
		return nil, err
	}
	replaced, err := m.store.GetCurrentOrder(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &EventResult{ReceiveAddress: addr, OrderID: replaced.ID, Replaced: true}, nil
}

// onSwapSuccess appends a display-only transaction record for the order
// whose address was just used, then retires that address: a settled swap
// must never reuse its deposit address.
func (m *Manager) onSwapSuccess(ctx context.Context, sessionID string, ev WidgetEvent) (*EventResult, error) {
	current, err := m.store.GetCurrentOrder(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	token := ev.Token
	if token == "" {
		token = current.Token
	}
	amount := ev.Amount
	if amount.IsZero() {
		amount = current.Amount
	}

	rec := &models.TransactionRecord{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		OrderID:       current.ID,
		Token:         token,
		Amount:        amount,
		FiatAmount:    amount.Mul(current.Rate),
		Rate:          current.Rate,
		BankReference: current.Reference,
		Status:        current.Status,
		CreatedAt:     m.clock.Now().UTC(),
	}
	if err := m.store.AppendTransaction(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicateRecord) {
			m.log.Warnw("duplicate swap-success event ignored",
				"session", sessionID, "order", current.ID)
		} else {
			m.log.Errorw("append transaction failed",
				"session", sessionID, "order", current.ID, "error", err)
		}
	}

	addr, err := m.EnsureActiveOrder(ctx, sessionID, true)
	if err != nil {
		// The record is kept; the next trigger replaces the order.
		return nil, err
	}
	replaced, err := m.store.GetCurrentOrder(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &EventResult{ReceiveAddress: addr, OrderID: replaced.ID, Replaced: true}, nil
}
