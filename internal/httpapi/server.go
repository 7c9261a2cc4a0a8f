package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	Router *chi.Mux
}

func NewServer(handler *Handler, ws *WSHandler, proxy *ProcessorProxy) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/bank-accounts", handler.LinkBankAccount)
		r.Get("/bank-accounts", handler.GetBankAccount)
		r.Put("/wallet", handler.BindWallet)
		r.Get("/wallet", handler.GetWallet)
		r.Post("/orders/ensure", handler.EnsureOrder)
		r.Get("/orders/current", handler.CurrentOrder)
		r.Get("/orders/{orderId}/status", handler.OrderStatus)
		r.Post("/orders/verify-address", handler.VerifyAddress)
		r.Post("/events", handler.WidgetEvent)
		r.Get("/transactions", handler.Transactions)
	})

	if ws != nil {
		r.Get("/ws", ws.Serve)
	}
	if proxy != nil {
		r.Handle("/proxy/paycrest/*", proxy)
	}

	return &Server{Router: r}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Session-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
