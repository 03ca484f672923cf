package handler

import (
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mstgnz/sanalpos"
	"github.com/mstgnz/sanalpos/infra/opensearch"
	"github.com/mstgnz/sanalpos/infra/response"
)

// LogsHandler serves payment audit logs from OpenSearch.
type LogsHandler struct {
	logger *opensearch.Logger
}

// NewLogsHandler creates a logs handler. logger may be nil when
// OpenSearch is disabled; the endpoints then answer 503.
func NewLogsHandler(logger *opensearch.Logger) *LogsHandler {
	return &LogsHandler{logger: logger}
}

// Routes mounts the log endpoints.
func (h *LogsHandler) Routes(r chi.Router) {
	r.Get("/logs/{provider}", h.Logs)
	r.Get("/stats/{provider}", h.Stats)
}

func (h *LogsHandler) checkProvider(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.logger == nil {
		response.Error(w, http.StatusServiceUnavailable, "Log servisi yapılandırılmamış", nil)
		return "", false
	}

	providerName := chi.URLParam(r, "provider")
	if !slices.Contains(sanalpos.Providers(), providerName) {
		response.Error(w, http.StatusBadRequest, "Bilinmeyen sağlayıcı: "+providerName, nil)
		return "", false
	}

	return providerName, true
}

func hoursParam(r *http.Request) time.Duration {
	hours, err := strconv.Atoi(r.URL.Query().Get("hours"))
	if err != nil || hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// Logs returns the audit logs of a provider. With an orderId query it
// returns the logs of that order, otherwise the recent error logs
// within the hours window (default 24).
func (h *LogsHandler) Logs(w http.ResponseWriter, r *http.Request) {
	providerName, ok := h.checkProvider(w, r)
	if !ok {
		return
	}

	var (
		logs []opensearch.PaymentLog
		err  error
	)
	if orderID := r.URL.Query().Get("orderId"); orderID != "" {
		logs, err = h.logger.GetPaymentLogs(r.Context(), providerName, orderID)
	} else {
		logs, err = h.logger.GetRecentErrorLogs(r.Context(), providerName, hoursParam(r))
	}
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Loglar okunamadı", err)
		return
	}

	response.Success(w, http.StatusOK, "Loglar listelendi", logs)
}

// Stats returns operation counts grouped by status for a provider
// within the hours window (default 24).
func (h *LogsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	providerName, ok := h.checkProvider(w, r)
	if !ok {
		return
	}

	stats, err := h.logger.GetProviderStats(r.Context(), providerName, hoursParam(r))
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "İstatistikler okunamadı", err)
		return
	}

	response.Success(w, http.StatusOK, "İstatistikler listelendi", stats)
}
