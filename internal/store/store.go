package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"NairaOfframp/internal/models"
)

var (
	ErrNoOrder       = errors.New("no order for session")
	ErrNoBankAccount = errors.New("no bank account for session")
	ErrNoWallet      = errors.New("no wallet for session")
	// ErrDuplicateRecord is returned when a transaction record for the
	// same order was already appended.
	ErrDuplicateRecord = errors.New("transaction record already exists")
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func (s *Store) SaveOrder(ctx context.Context, order *models.Order) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO orders (
			order_id, session_id, receive_address, status, valid_until,
			reference, token, network, amount, rate, return_address,
			created_at, last_updated
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		order.ID,
		order.SessionID,
		order.ReceiveAddress,
		order.Status,
		order.ValidUntil,
		order.Reference,
		order.Token,
		order.Network,
		order.Amount.String(),
		order.Rate.String(),
		order.ReturnAddress,
		order.CreatedAt,
		order.LastUpdated,
	)
	return err
}

// GetCurrentOrder returns the most recently created order of a session.
// Older rows stay as history; a replacement supersedes them wholesale.
func (s *Store) GetCurrentOrder(ctx context.Context, sessionID string) (*models.Order, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT order_id, session_id, receive_address, status, valid_until,
			reference, token, network, amount, rate, return_address,
			created_at, last_updated
		FROM orders
		WHERE session_id=$1
		ORDER BY created_at DESC
		LIMIT 1
	`, sessionID)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoOrder
		}
		return nil, err
	}
	return order, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE orders
		SET status=$2, last_updated=now()
		WHERE order_id=$1
	`, orderID, status)
	return err
}

// ListTrackedOrders returns current non-terminal orders for status polling,
// one per session.
func (s *Store) ListTrackedOrders(ctx context.Context, limit int) ([]*models.Order, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT DISTINCT ON (session_id)
			order_id, session_id, receive_address, status, valid_until,
			reference, token, network, amount, rate, return_address,
			created_at, last_updated
		FROM orders
		ORDER BY session_id, created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		if order.Status.Terminal() {
			continue
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var order models.Order
	var amount, rate string
	err := row.Scan(
		&order.ID,
		&order.SessionID,
		&order.ReceiveAddress,
		&order.Status,
		&order.ValidUntil,
		&order.Reference,
		&order.Token,
		&order.Network,
		&amount,
		&rate,
		&order.ReturnAddress,
		&order.CreatedAt,
		&order.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	if order.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	if order.Rate, err = decimal.NewFromString(rate); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) SaveBankAccount(ctx context.Context, acct *models.BankAccount) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO bank_accounts (
			session_id, institution, account_identifier, account_name, memo, linked_at
		) VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (session_id) DO UPDATE SET
			institution=EXCLUDED.institution,
			account_identifier=EXCLUDED.account_identifier,
			account_name=EXCLUDED.account_name,
			memo=EXCLUDED.memo,
			linked_at=EXCLUDED.linked_at
	`,
		acct.SessionID,
		acct.Institution,
		acct.AccountIdentifier,
		acct.AccountName,
		acct.Memo,
		acct.LinkedAt,
	)
	return err
}

func (s *Store) GetBankAccount(ctx context.Context, sessionID string) (*models.BankAccount, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT session_id, institution, account_identifier, account_name, memo, linked_at
		FROM bank_accounts WHERE session_id=$1
	`, sessionID)

	var acct models.BankAccount
	err := row.Scan(
		&acct.SessionID,
		&acct.Institution,
		&acct.AccountIdentifier,
		&acct.AccountName,
		&acct.Memo,
		&acct.LinkedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoBankAccount
		}
		return nil, err
	}
	return &acct, nil
}

func (s *Store) SaveWallet(ctx context.Context, w *models.WalletBinding) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO wallets (session_id, address, kind, connected_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (session_id) DO UPDATE SET
			address=EXCLUDED.address,
			kind=EXCLUDED.kind,
			connected_at=EXCLUDED.connected_at
	`, w.SessionID, w.Address, w.Kind, w.ConnectedAt)
	return err
}

func (s *Store) GetWallet(ctx context.Context, sessionID string) (*models.WalletBinding, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT session_id, address, kind, connected_at
		FROM wallets WHERE session_id=$1
	`, sessionID)

	var w models.WalletBinding
	if err := row.Scan(&w.SessionID, &w.Address, &w.Kind, &w.ConnectedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoWallet
		}
		return nil, err
	}
	return &w, nil
}

func (s *Store) AppendTransaction(ctx context.Context, rec *models.TransactionRecord) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO transactions (
			id, session_id, order_id, token, amount, fiat_amount, rate,
			bank_reference, status, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		rec.ID,
		rec.SessionID,
		rec.OrderID,
		rec.Token,
		rec.Amount.String(),
		rec.FiatAmount.String(),
		rec.Rate.String(),
		rec.BankReference,
		rec.Status,
		rec.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateRecord
		}
		return err
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, sessionID string) ([]models.TransactionRecord, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, session_id, order_id, token, amount, fiat_amount, rate,
			bank_reference, status, created_at
		FROM transactions
		WHERE session_id=$1
		ORDER BY created_at DESC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []models.TransactionRecord
	for rows.Next() {
		var rec models.TransactionRecord
		var amount, fiat, rate string
		if err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.OrderID,
			&rec.Token,
			&amount,
			&fiat,
			&rate,
			&rec.BankReference,
			&rec.Status,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if rec.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		if rec.FiatAmount, err = decimal.NewFromString(fiat); err != nil {
			return nil, err
		}
		if rec.Rate, err = decimal.NewFromString(rate); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// GetState reads one session kv entry. Missing keys return "".
func (s *Store) GetState(ctx context.Context, sessionID, key string) (string, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT value FROM session_state WHERE session_id=$1 AND key=$2`,
		sessionID, key)
	var v string
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return v, nil
}

func (s *Store) SetState(ctx context.Context, sessionID, key, value string) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO session_state (session_id, key, value, updated_at)
		VALUES ($1,$2,$3,now())
		ON CONFLICT (session_id, key) DO UPDATE SET
			value=EXCLUDED.value, updated_at=now()
	`, sessionID, key, value)
	return err
}

// ListStaleSessions returns sessions with a linked bank account whose last
// order replacement is missing or older than the cutoff. Timestamps are
// stored as RFC3339 UTC strings, so lexical comparison is chronological.
func (s *Store) ListStaleSessions(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT ba.session_id
		FROM bank_accounts ba
		LEFT JOIN session_state ss
			ON ss.session_id = ba.session_id AND ss.key = 'lastOrderTimestamp'
		WHERE ss.value IS NULL OR ss.value < $1
		LIMIT $2
	`, cutoff.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		sessions = append(sessions, id)
	}
	return sessions, rows.Err()
}
