package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alex-user-go/soltour/internal/ajax"
)

var errBackendUnavailable = errors.New("backend unavailable")

// hotelContent is the descriptive content served for a hotel code.
type hotelContent struct {
	Description string   `json:"description"`
	Facilities  []string `json:"facilities"`
}

var catalog = map[string]hotelContent{
	"H001": {
		Description: "Resort em frente à praia de Bávaro com acesso direto ao mar.",
		Facilities:  []string{"Piscina exterior", "Spa", "Wi-Fi gratuito", "Clube infantil"},
	},
	"H002": {
		Description: "Hotel boutique no centro histórico, a poucos passos do porto.",
		Facilities:  []string{"Restaurante", "Bar no terraço", "Wi-Fi gratuito"},
	},
}

// Mock stands in for the WordPress admin-ajax endpoint, answering the package
// details and package selection actions with random latency and failures.
type Mock struct {
	nonce       string
	failureRate float64
	logger      *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMock creates a new Mock. An empty nonce accepts every request.
func NewMock(nonce string, failureRate float64, logger *slog.Logger) *Mock {
	return &Mock{
		nonce:       nonce,
		failureRate: failureRate,
		logger:      logger,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

type messageData struct {
	Message string `json:"message"`
}

// ServeHTTP handles admin-ajax POST requests.
func (m *Mock) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	// WordPress answers unknown actions with a bare 0 and status 400
	action := r.PostForm.Get("action")
	if action != ajax.ActionPackageDetails && action != ajax.ActionSelectPackage {
		http.Error(w, "0", http.StatusBadRequest)
		return
	}

	if m.nonce != "" && r.PostForm.Get("nonce") != m.nonce {
		m.write(w, envelope{Data: messageData{Message: "Sessão expirada. Atualize a página."}})
		return
	}

	if err := m.simulate(r.Context()); err != nil {
		m.logger.Warn("simulated failure", "action", action, "error", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	switch action {
	case ajax.ActionPackageDetails:
		m.details(w, r)
	case ajax.ActionSelectPackage:
		m.selectPackage(w, r)
	}
}

func (m *Mock) details(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.PostForm.Get("hotel_code"))
	content, ok := catalog[code]
	if !ok {
		m.write(w, envelope{Data: messageData{Message: "Hotel não encontrado."}})
		return
	}
	m.write(w, envelope{Success: true, Data: map[string]hotelContent{"hotelDetails": content}})
}

func (m *Mock) selectPackage(w http.ResponseWriter, r *http.Request) {
	budgetID := strings.TrimSpace(r.PostForm.Get("budget_id"))
	if budgetID == "" {
		m.write(w, envelope{Data: messageData{Message: "Orçamento inválido."}})
		return
	}
	m.logger.Info("package selected",
		"budget_id", budgetID,
		"hotel_code", r.PostForm.Get("hotel_code"),
		"provider_code", r.PostForm.Get("provider_code"),
	)
	m.write(w, envelope{Success: true, Data: messageData{Message: "Pacote selecionado."}})
}

// simulate waits a random latency (50ms to 200ms) and fails at the configured rate.
func (m *Mock) simulate(ctx context.Context) error {
	m.mu.Lock()
	latency := time.Duration(50+m.rng.Intn(150)) * time.Millisecond
	fail := m.rng.Float64() < m.failureRate
	m.mu.Unlock()

	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return context.Cause(ctx)
	}

	if fail {
		return errBackendUnavailable
	}
	return nil
}

func (m *Mock) write(w http.ResponseWriter, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		m.logger.Error("failed to encode response", "error", err)
	}
}
