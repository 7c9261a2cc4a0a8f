package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"NairaOfframp/internal/models"
	"NairaOfframp/internal/paycrest"
	"NairaOfframp/internal/store"
)

type memStore struct {
	mu      sync.Mutex
	orders  map[string][]models.Order
	banks   map[string]models.BankAccount
	wallets map[string]models.WalletBinding
	txs     map[string]models.TransactionRecord
	state   map[string]map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		orders:  make(map[string][]models.Order),
		banks:   make(map[string]models.BankAccount),
		wallets: make(map[string]models.WalletBinding),
		txs:     make(map[string]models.TransactionRecord),
		state:   make(map[string]map[string]string),
	}
}

func (s *memStore) SaveOrder(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.SessionID] = append(s.orders[order.SessionID], *order)
	return nil
}

func (s *memStore) GetCurrentOrder(_ context.Context, sessionID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.orders[sessionID]
	if len(list) == 0 {
		return nil, store.ErrNoOrder
	}
	order := list[len(list)-1]
	return &order, nil
}

func (s *memStore) UpdateOrderStatus(_ context.Context, orderID string, status models.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for session, list := range s.orders {
		for i := range list {
			if list[i].ID == orderID {
				s.orders[session][i].Status = status
				return nil
			}
		}
	}
	return nil
}

func (s *memStore) SaveBankAccount(_ context.Context, acct *models.BankAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banks[acct.SessionID] = *acct
	return nil
}

func (s *memStore) GetBankAccount(_ context.Context, sessionID string) (*models.BankAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.banks[sessionID]
	if !ok {
		return nil, store.ErrNoBankAccount
	}
	return &acct, nil
}

func (s *memStore) SaveWallet(_ context.Context, w *models.WalletBinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[w.SessionID] = *w
	return nil
}

func (s *memStore) GetWallet(_ context.Context, sessionID string) (*models.WalletBinding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[sessionID]
	if !ok {
		return nil, store.ErrNoWallet
	}
	return &w, nil
}

func (s *memStore) AppendTransaction(_ context.Context, rec *models.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[rec.OrderID]; ok {
		return store.ErrDuplicateRecord
	}
	s.txs[rec.OrderID] = *rec
	return nil
}

func (s *memStore) ListTransactions(_ context.Context, sessionID string) ([]models.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TransactionRecord
	for _, rec := range s.txs {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memStore) GetState(_ context.Context, sessionID, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state[sessionID][key], nil
}

func (s *memStore) SetState(_ context.Context, sessionID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state[sessionID] == nil {
		s.state[sessionID] = make(map[string]string)
	}
	s.state[sessionID][key] = value
	return nil
}

func (s *memStore) ListStaleSessions(_ context.Context, cutoff time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for session := range s.banks {
		v := s.state[session][StateLastOrderAt]
		if v == "" {
			out = append(out, session)
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil || ts.Before(cutoff) {
			out = append(out, session)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) ListTrackedOrders(_ context.Context, limit int) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Order
	for _, list := range s.orders {
		if len(list) == 0 {
			continue
		}
		order := list[len(list)-1]
		if order.Status.Terminal() {
			continue
		}
		out = append(out, &order)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) transactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txs)
}

type stubProcessor struct {
	mu sync.Mutex

	accountName string
	verifyErr   error
	verifyCalls int

	rate      decimal.Decimal
	rateErr   error
	rateCalls int

	validUntil  time.Time
	createErr   error
	createCalls int
	lastCreate  paycrest.CreateOrderRequest

	statusErr     error
	statusDefault models.OrderStatus
	statusQueue   []models.OrderStatus
	statusCalls   int
}

func (p *stubProcessor) VerifyAccount(_ context.Context, _, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verifyCalls++
	if p.verifyErr != nil {
		return "", p.verifyErr
	}
	return p.accountName, nil
}

func (p *stubProcessor) GetRate(_ context.Context, _ string, _ decimal.Decimal, _ string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rateCalls++
	if p.rateErr != nil {
		return decimal.Zero, p.rateErr
	}
	return p.rate, nil
}

func (p *stubProcessor) CreateOrder(_ context.Context, req paycrest.CreateOrderRequest) (*paycrest.CreatedOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.createCalls++
	p.lastCreate = req
	return &paycrest.CreatedOrder{
		ID:             fmt.Sprintf("ord_%d", p.createCalls),
		ReceiveAddress: fmt.Sprintf("0xabc%03d", p.createCalls),
		ValidUntil:     p.validUntil,
		Reference:      fmt.Sprintf("ref_%d", p.createCalls),
	}, nil
}

func (p *stubProcessor) GetOrderStatus(_ context.Context, _ string) (models.OrderStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusCalls++
	if p.statusErr != nil {
		return "", p.statusErr
	}
	if len(p.statusQueue) > 0 {
		st := p.statusQueue[0]
		p.statusQueue = p.statusQueue[1:]
		return st, nil
	}
	if p.statusDefault != "" {
		return p.statusDefault, nil
	}
	return models.OrderInitiated, nil
}

func (p *stubProcessor) counts() (create, status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.createCalls, p.statusCalls
}
