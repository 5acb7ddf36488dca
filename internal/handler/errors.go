package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alex-user-go/soltour/internal/ajax"
	"github.com/alex-user-go/soltour/internal/details"
	"github.com/alex-user-go/soltour/internal/handoff"
	"github.com/alex-user-go/soltour/internal/middleware"
	"github.com/alex-user-go/soltour/internal/snapshot"
	"github.com/alex-user-go/soltour/internal/storage"
)

// notice is the user-facing text shown for a failure.
type notice struct {
	title   string
	message string
	back    bool
}

var (
	noticeNotFound = notice{
		title:   "Pacote não encontrado",
		message: "Por favor, volte à página de resultados e selecione um pacote novamente.",
		back:    true,
	}
	noticeCorrupted = notice{
		title:   "Erro ao carregar os dados",
		message: "Os dados do pacote estão corrompidos. Volte aos resultados e tente novamente.",
		back:    true,
	}
	noticeIncomplete = notice{
		title:   "Dados incompletos",
		message: "Por favor, volte aos resultados e selecione o pacote novamente.",
		back:    true,
	}
	noticeQuoteUnavailable = notice{
		title:   "Cotação indisponível",
		message: "Não foi possível iniciar o pedido de cotação. Tente novamente mais tarde.",
	}
	noticeInFlight = notice{
		title:   "Pedido em curso",
		message: "O pedido de cotação deste pacote já está a ser processado.",
	}
	noticeRejected = notice{
		title:   "Cotação recusada",
		message: "O pacote selecionado já não está disponível.",
		back:    true,
	}
	noticeRateLimited = notice{
		title:   "Demasiados pedidos",
		message: "Aguarde alguns instantes antes de tentar novamente.",
	}
	noticeInvalid = notice{
		title:   "Pedido inválido",
		message: "O pedido não é válido.",
	}
	noticeInternal = notice{
		title:   "Erro inesperado",
		message: "Ocorreu um erro inesperado. Tente novamente mais tarde.",
	}
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Title string `json:"title"`
	Back  bool   `json:"back"`
}

// classify maps an error onto its status code and notice.
func classify(err error) (int, notice) {
	var rejected *ajax.RejectedError
	switch {
	case errors.Is(err, storage.ErrInvalidTab),
		errors.Is(err, storage.ErrUnknownKey),
		errors.Is(err, storage.ErrEmptyValue):
		return http.StatusBadRequest, noticeInvalid
	case errors.Is(err, details.ErrPackageNotFound),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, noticeNotFound
	case errors.Is(err, details.ErrCorrupted):
		return http.StatusUnprocessableEntity, noticeCorrupted
	case errors.Is(err, details.ErrIncomplete),
		errors.Is(err, snapshot.ErrNotRenderable),
		errors.Is(err, handoff.ErrMissingBudgetID):
		return http.StatusUnprocessableEntity, noticeIncomplete
	case errors.Is(err, handoff.ErrInFlight):
		return http.StatusConflict, noticeInFlight
	case errors.Is(err, handoff.ErrQuoteUnavailable):
		return http.StatusServiceUnavailable, noticeQuoteUnavailable
	case errors.As(err, &rejected):
		n := noticeRejected
		if rejected.Reason != "" {
			n.message = rejected.Reason
		}
		return http.StatusBadGateway, n
	default:
		return http.StatusInternalServerError, noticeInternal
	}
}

// writeFailure logs err and writes the matching error response.
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, n := classify(err)

	attrs := []any{
		"request_id", middleware.RequestID(r.Context()),
		"path", r.URL.Path,
		"status", status,
		"error", err,
	}
	switch {
	case status >= http.StatusInternalServerError:
		h.logger.Error("request failed", attrs...)
	case status == http.StatusNotFound || status == http.StatusBadRequest:
		h.logger.Debug("request failed", attrs...)
	default:
		h.logger.Warn("request failed", attrs...)
	}

	writeError(w, status, n, "")
}

// writeError writes a JSON error response. A non-empty detail replaces the
// notice message.
func writeError(w http.ResponseWriter, status int, n notice, detail string) {
	msg := n.message
	if detail != "" {
		msg = detail
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg, Title: n.title, Back: n.back})
}
