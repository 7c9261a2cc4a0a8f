package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"NairaOfframp/internal/lifecycle"
	"NairaOfframp/internal/models"
	"NairaOfframp/internal/store"
	"NairaOfframp/internal/wallet"
)

const sessionHeader = "X-Session-Id"

type Handler struct {
	Manager *lifecycle.Manager
	Store   lifecycle.WatchdogStore
	Log     *zap.SugaredLogger
}

func NewHandler(manager *lifecycle.Manager, st lifecycle.WatchdogStore, log *zap.SugaredLogger) *Handler {
	return &Handler{Manager: manager, Store: st, Log: log}
}

func sessionID(r *http.Request) string {
	return r.Header.Get(sessionHeader)
}

type linkBankAccountRequest struct {
	Institution       string `json:"institution"`
	AccountIdentifier string `json:"accountIdentifier"`
	Memo              string `json:"memo"`
}

type bankAccountResponse struct {
	Institution       string `json:"institution"`
	AccountIdentifier string `json:"accountIdentifier"`
	AccountName       string `json:"accountName"`
	Memo              string `json:"memo,omitempty"`
	LinkedAt          string `json:"linkedAt"`
}

func (h *Handler) LinkBankAccount(w http.ResponseWriter, r *http.Request) {
	session := sessionID(r)
	if session == "" {
		writeError(w, http.StatusUnauthorized, "missing session id")
		return
	}

	var req linkBankAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Institution == "" || req.AccountIdentifier == "" {
		writeError(w, http.StatusBadRequest, "institution and accountIdentifier are required")
		return
	}

	acct, err := h.Manager.LinkBankAccount(r.Context(), session, req.Institution, req.AccountIdentifier, req.Memo)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "account verification failed")
		return
	}
	writeJSON(w, http.StatusOK, toBankAccountResponse(acct))
}

func (h *Handler) GetBankAccount(w http.ResponseWriter, r *http.Request) {
	session := sessionID(r)
	if session == "" {
		writeError(w, http.StatusUnauthorized, "missing session id")
		return
	}

	acct, err := h.Store.GetBankAccount(r.Context(), session)
	if err != nil {
		if errors.Is(err, store.ErrNoBankAccount) {
			writeError(w, http.StatusNotFound, "no bank account linked")
			return
		}
		writeError(w, http.StatusInternalServerError, "get bank account failed")
		return
	}
	writeJSON(w, http.StatusOK, toBankAccountResponse(acct))
}

func toBankAccountResponse(acct *models.BankAccount) bankAccountResponse {
	return bankAccountResponse{
		Institution:       acct.Institution,
		AccountIdentifier: acct.AccountIdentifier,
		AccountName:       acct.AccountName,
		Memo:              acct.Memo,
		LinkedAt:          acct.LinkedAt.Format(time.RFC3339),
	}
}

type bindWalletRequest struct {
	Address string            `json:"address"`
	Kind    models.WalletKind `json:"kind"`
}

type walletResponse struct {
	Address     string            `json:"address"`
	Kind        models.WalletKind `json:"kind"`
	ConnectedAt string            `json:"connectedAt"`
}

func (h *Handler) BindWallet(w http.ResponseWriter, r *http.Request) {
	session := sessionID(r)
	if session == "" {
		writeError(w, http.StatusUnauthorized, "missing session id")
		return
	}

	var req bindWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	binding, err := h.Manager.BindWallet(r.Context(), session, req.Address, req.Kind)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrInvalidEVMAddress),
			errors.Is(err, wallet.ErrChecksumMismatch),
			errors.Is(err, wallet.ErrInvalidSolanaAddress),
			errors.Is(err, wallet.ErrUnknownWalletKind):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "bind wallet failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, walletResponse{
		Address:     binding.Address,
		Kind:        binding.Kind,
		ConnectedAt: binding.ConnectedAt.Format(time.RFC3339),
	})
}

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	session := sessionID(r)
	if session == "" {
		writeError(w, http.StatusUnauthorized, "missing session id")
		return
	}

	binding, err := h.Store.GetWallet(r.Context(), session)
	if err != nil {
		if errors.Is(err, store.ErrNoWallet) {
			writeError(w, http.StatusNotFound, "no wallet connected")
			return
		}
		writeError(w, http.StatusInternalServerError, "get wallet failed")
		return
	}
	writeJSON(w, http.StatusOK, walletResponse{
		Address:     binding.Address,
		Kind:        binding.Kind,
		ConnectedAt: binding.ConnectedAt.Format(time.RFC3339),
	})
}

type ensureOrderRequest struct {
	Force bool `json:"force"`
}

type orderResponse struct {
	OrderID        string `json:"orderId"`
	ReceiveAddress string `json:"receiveAddress"`
	Status         string `json:"status"`
	ValidUntil     string `json:"validUntil"`
	Reference      string `json:"reference,omitempty"`
	Token          string `json:"token"`
	Network        string `json:"network"`
}

func (h *Handler) EnsureOrder(w http.ResponseWriter, r *http.Request) {
	session := sessionID(r)
	if session == "" {
		writeError(w, http.StatusUnauthorized, "missing session id")
		return
	}

	var req ensureOrderRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
	}

	if _, err := h.Manager.EnsureActiveOrder(r.Context(), session, req.Force); err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrNoBankAccount):
			writeError(w, http.StatusPreconditionFailed, "no bank account linked")
		case errors.Is(err, lifecycle.ErrNoWallet):
			writeError(w, http.StatusPreconditionFailed, "no wallet connected")
		default:
			writeError(w, http.StatusBadGateway, "order creation failed")
		}
		return
	}

	order, err := h.Store.GetCurrentOrder(r.Context(), session)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load order failed")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) CurrentOrder(w http.ResponseWriter, r *http.Request) {
	session := sessionID(r)
	if session == "" {
		writeError(w, http.StatusUnauthorized, "missing session id")
		return
	}

	order, err := h.Store.GetCurrentOrder(r.Context(), session)
	if err != nil {
		if errors.Is(err, store.ErrNoOrder) {
			writeError(w, http.StatusNotFound, "no order")
			return
		}
		writeError(w, http.StatusInternalServerError, "load order failed")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func toOrderResponse(order *models.Order) orderResponse {
	return orderResponse{
		OrderID:        order.ID,
		ReceiveAddress: order.ReceiveAddress,
		Status:         string(order.Status),
		ValidUntil:     order.ValidUntil.Format(time.RFC3339),
		Reference:      order.Reference,
		Token:          order.Token,
		Network:        order.Network,
	}
}

func (h *Handler) OrderStatus(w http.ResponseWriter, r *http.Request) {
	session := sessionID(r)
	if session == "" {
		writeError(w, http.StatusUnauthorized, "missing session id")
		return
	}
	orderID := chi.URLParam(r, "orderId")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	st := h.Manager.CheckStatus(r.Context(), session, orderID)
	writeJSON(w, http.StatusOK, map[string]string{"status": string(st)})
}

type verifyAddressRequest struct {
	Address string `json:"address"`
}

func (h *Handler) VerifyAddress(w http.ResponseWriter, r *http.Request) {
	session := sessionID(r)
	if session == "" {
		writeError(w, http.StatusUnauthorized, "missing session id")
		return
	}

	var req verifyAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	valid := h.Manager.VerifyReceiveAddress(r.Context(), session, req.Address)
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

func (h *Handler) WidgetEvent(w http.ResponseWriter, r *http.Request) {
	session := sessionID(r)
	if session == "" {
		writeError(w, http.StatusUnauthorized, "missing session id")
		return
	}

	var ev lifecycle.WidgetEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	res, err := h.Manager.HandleWidgetEvent(r.Context(), session, ev)
	if err != nil {
		if errors.Is(err, lifecycle.ErrUnknownEvent) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "event handling failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type transactionResponse struct {
	ID            string `json:"id"`
	OrderID       string `json:"orderId"`
	Token         string `json:"token"`
	Amount        string `json:"amount"`
	FiatAmount    string `json:"fiatAmount"`
	Rate          string `json:"rate"`
	BankReference string `json:"bankReference,omitempty"`
	Status        string `json:"status"`
	CreatedAt     string `json:"createdAt"`
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	session := sessionID(r)
	if session == "" {
		writeError(w, http.StatusUnauthorized, "missing session id")
		return
	}

	recs, err := h.Store.ListTransactions(r.Context(), session)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list transactions failed")
		return
	}

	out := make([]transactionResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, transactionResponse{
			ID:            rec.ID,
			OrderID:       rec.OrderID,
			Token:         rec.Token,
			Amount:        rec.Amount.String(),
			FiatAmount:    rec.FiatAmount.String(),
			Rate:          rec.Rate.String(),
			BankReference: rec.BankReference,
			Status:        string(rec.Status),
			CreatedAt:     rec.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
