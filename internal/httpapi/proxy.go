package httpapi

import (
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ProcessorProxy forwards same-origin processor calls to the payment
// processor, injecting the API key. Status codes and JSON bodies pass
// through unchanged.
type ProcessorProxy struct {
	BaseURL string
	APIKey  string
	Log     *zap.SugaredLogger

	client *http.Client
}

func NewProcessorProxy(baseURL, apiKey string, timeout time.Duration, log *zap.SugaredLogger) *ProcessorProxy {
	return &ProcessorProxy{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Log:     log,
		client:  &http.Client{Timeout: timeout},
	}
}

const proxyPrefix = "/proxy/paycrest"

func (p *ProcessorProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, proxyPrefix)
	if path == "" {
		path = "/"
	}

	target := p.BaseURL + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid proxy request")
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	req.Header.Set("API-Key", p.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		p.Log.Warnw("proxy request failed", "target", target, "error", err)
		writeError(w, http.StatusBadGateway, "processor unreachable")
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}
