package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mstgnz/sanalpos"
	"github.com/mstgnz/sanalpos/infra/config"
	"github.com/mstgnz/sanalpos/infra/logger"
	"github.com/mstgnz/sanalpos/infra/middle"
	"github.com/mstgnz/sanalpos/infra/opensearch"
	"github.com/mstgnz/sanalpos/infra/response"
	"github.com/mstgnz/sanalpos/provider"
)

// PaymentHandler handles payment related HTTP requests
type PaymentHandler struct {
	cfg       *config.VirtualPos
	validate  *validator.Validate
	payLogger *opensearch.Logger
}

// NewPaymentHandler creates a new payment handler. payLogger may be nil
// when audit logging is disabled.
func NewPaymentHandler(cfg *config.VirtualPos, validate *validator.Validate, payLogger *opensearch.Logger) *PaymentHandler {
	return &PaymentHandler{
		cfg:       cfg,
		validate:  validate,
		payLogger: payLogger,
	}
}

// Routes mounts the payment endpoints.
func (h *PaymentHandler) Routes(r chi.Router) {
	r.Post("/pay", h.Pay)
	r.Post("/pay3d", h.Pay3D)
	r.Get("/status/{orderId}", h.Status)
	r.Post("/cancel", h.Cancel)
	r.Post("/refund", h.Refund)
	r.HandleFunc("/callback/{provider}", h.Callback)
	r.Get("/installments", h.Installments)
}

// service resolves the provider adapter for a request. The provider and
// account query parameters override the configured defaults.
func (h *PaymentHandler) service(r *http.Request) (*sanalpos.Service, error) {
	providerName := r.URL.Query().Get("provider")
	accountID := r.URL.Query().Get("account")

	if providerName == "" {
		providerName = h.cfg.Provider
	}

	return sanalpos.NewProvider(h.cfg, providerName, accountID)
}

// Pay handles direct (non-3D) payment requests
func (h *PaymentHandler) Pay(w http.ResponseWriter, r *http.Request) {
	h.pay(w, r, false)
}

// Pay3D initiates a 3D Secure payment
func (h *PaymentHandler) Pay3D(w http.ResponseWriter, r *http.Request) {
	h.pay(w, r, true)
}

func (h *PaymentHandler) pay(w http.ResponseWriter, r *http.Request, threeD bool) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req provider.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Geçersiz istek formatı", err)
		return
	}
	if req.ClientIP == "" {
		req.ClientIP = middle.GetClientIP(r)
	}

	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Doğrulama hatası", err)
		return
	}

	svc, err := h.service(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Sağlayıcı oluşturulamadı", err)
		return
	}

	operation := "pay"
	start := time.Now()
	var resp *provider.PaymentResponse
	if threeD {
		operation = "pay3d"
		resp, err = svc.Pay3D(ctx, req)
	} else {
		resp, err = svc.Pay(ctx, req)
	}
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Ödeme isteği geçersiz", err)
		return
	}

	h.audit(svc.Provider(), operation, middle.GetClientIP(r), r, start, resp)
	response.Success(w, http.StatusOK, "Ödeme isteği işlendi", resp)
}

// Status queries the state of an order
func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	orderID := chi.URLParam(r, "orderId")
	if orderID == "" {
		response.Error(w, http.StatusBadRequest, "orderId zorunlu", nil)
		return
	}

	svc, err := h.service(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Sağlayıcı oluşturulamadı", err)
		return
	}

	start := time.Now()
	resp, err := svc.Status(ctx, orderID)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Durum sorgusu geçersiz", err)
		return
	}

	h.audit(svc.Provider(), "status", middle.GetClientIP(r), r, start, resp)
	response.Success(w, http.StatusOK, "Durum sorgulandı", resp)
}

type cancelRequest struct {
	OrderID string  `json:"orderId" validate:"required"`
	Amount  float64 `json:"amount" validate:"gte=0"`
}

// Cancel voids an authorization
func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Geçersiz istek formatı", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Doğrulama hatası", err)
		return
	}

	svc, err := h.service(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Sağlayıcı oluşturulamadı", err)
		return
	}

	start := time.Now()
	resp, err := svc.Cancel(ctx, req.OrderID, req.Amount)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "İptal isteği geçersiz", err)
		return
	}

	h.audit(svc.Provider(), "cancel", middle.GetClientIP(r), r, start, resp)
	response.Success(w, http.StatusOK, "İptal isteği işlendi", resp)
}

type refundRequest struct {
	OrderID       string  `json:"orderId" validate:"required"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	TransactionID string  `json:"transactionId"`
}

// Refund reverses a captured payment
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Geçersiz istek formatı", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Doğrulama hatası", err)
		return
	}

	svc, err := h.service(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Sağlayıcı oluşturulamadı", err)
		return
	}

	start := time.Now()
	resp, err := svc.Refund(ctx, req.OrderID, req.Amount, req.TransactionID)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "İade isteği geçersiz", err)
		return
	}

	h.audit(svc.Provider(), "refund", middle.GetClientIP(r), r, start, resp)
	response.Success(w, http.StatusOK, "İade isteği işlendi", resp)
}

// Callback receives the bank's redirect-back or webhook post. Banks send
// either form-urlencoded or JSON bodies.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	providerName := chi.URLParam(r, "provider")
	accountID := r.URL.Query().Get("account")

	svc, err := sanalpos.NewProvider(h.cfg, providerName, accountID)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Sağlayıcı oluşturulamadı", err)
		return
	}

	data, err := parseCallbackData(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Geçersiz istek formatı", err)
		return
	}

	start := time.Now()
	resp, err := svc.HandleCallback(ctx, data)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Callback işlenemedi", err)
		return
	}

	h.audit(svc.Provider(), "callback", middle.GetClientIP(r), r, start, resp)

	logger.WithOrder(svc.Provider(), resp.OrderID).Info("Callback işlendi: " + string(resp.Status))

	response.Success(w, http.StatusOK, "Callback işlendi", resp)
}

// Installments lists installment options for an amount
func (h *PaymentHandler) Installments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	amount, err := strconv.ParseFloat(r.URL.Query().Get("amount"), 64)
	if err != nil || amount <= 0 {
		response.Error(w, http.StatusBadRequest, "Geçerli bir amount parametresi zorunlu", nil)
		return
	}

	svc, err := h.service(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Sağlayıcı oluşturulamadı", err)
		return
	}

	options, err := svc.GetInstallments(ctx, amount)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Taksit sorgusu geçersiz", err)
		return
	}

	response.Success(w, http.StatusOK, "Taksit seçenekleri listelendi", options)
}

// parseCallbackData flattens a form-urlencoded or JSON body into the
// string map the providers verify.
func parseCallbackData(r *http.Request) (map[string]string, error) {
	data := make(map[string]string)

	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, err
		}
		for key, value := range body {
			switch v := value.(type) {
			case string:
				data[key] = v
			case float64:
				data[key] = strconv.FormatFloat(v, 'f', -1, 64)
			case bool:
				data[key] = strconv.FormatBool(v)
			}
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		for key, values := range r.Form {
			if len(values) > 0 {
				data[key] = values[0]
			}
		}
	}

	return data, nil
}

// audit writes a payment audit record asynchronously.
func (h *PaymentHandler) audit(providerName, operation, clientIP string, r *http.Request, start time.Time, resp *provider.PaymentResponse) {
	if h.payLogger == nil || resp == nil {
		return
	}

	entry := opensearch.PaymentLog{
		Timestamp:     start,
		Provider:      providerName,
		Operation:     operation,
		OrderID:       resp.OrderID,
		TransactionID: resp.TransactionID,
		RequestID:     r.Header.Get("X-Request-Id"),
		ClientIP:      clientIP,
		Amount:        resp.Amount,
		Currency:      resp.Currency,
		Status:        string(resp.Status),
		CardMask:      resp.CardMask,
		DurationMs:    time.Since(start).Milliseconds(),
	}
	if resp.ErrorCode != "" || resp.ErrorMessage != "" {
		entry.Error = &opensearch.ErrorInfo{
			Code:    resp.ErrorCode,
			Message: resp.ErrorMessage,
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.payLogger.LogPayment(ctx, entry); err != nil {
			logger.Warn("Ödeme logu yazılamadı: " + err.Error())
		}
	}()
}
