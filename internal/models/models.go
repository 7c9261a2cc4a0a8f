package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderInitiated OrderStatus = "initiated"
	OrderSettled   OrderStatus = "settled"
	OrderRefunded  OrderStatus = "refunded"
	OrderExpired   OrderStatus = "expired"
)

func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderSettled, OrderRefunded, OrderExpired:
		return true
	}
	return false
}

// Order is one processor-tracked intent to convert a token deposit into a
// fiat payout. At most one order per session is active at a time.
type Order struct {
	ID             string
	SessionID      string
	ReceiveAddress string
	Status         OrderStatus
	ValidUntil     time.Time
	Reference      string
	Token          string
	Network        string
	Amount         decimal.Decimal
	Rate           decimal.Decimal
	ReturnAddress  string
	CreatedAt      time.Time
	LastUpdated    time.Time
}

// Active reports whether the order may still be used as a swap destination.
func (o *Order) Active(now time.Time) bool {
	return o != nil && o.Status == OrderInitiated && now.Before(o.ValidUntil)
}

type WalletKind string

const (
	WalletEVM    WalletKind = "evm"
	WalletSolana WalletKind = "solana"
)

type WalletBinding struct {
	SessionID   string
	Address     string
	Kind        WalletKind
	ConnectedAt time.Time
}

// BankAccount is the payout destination linked to a session. The account
// name is resolved through the processor's verification endpoint, never
// supplied by the user.
type BankAccount struct {
	SessionID         string
	Institution       string
	AccountIdentifier string
	AccountName       string
	Memo              string
	LinkedAt          time.Time
}

// TransactionRecord is a display-only history entry, appended after a
// successful swap. Not authoritative.
type TransactionRecord struct {
	ID            string
	SessionID     string
	OrderID       string
	Token         string
	Amount        decimal.Decimal
	FiatAmount    decimal.Decimal
	Rate          decimal.Decimal
	BankReference string
	Status        OrderStatus
	CreatedAt     time.Time
}
