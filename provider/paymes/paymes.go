package paymes

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mstgnz/sanalpos/infra/config"
	"github.com/mstgnz/sanalpos/provider"
)

const (
	endpointPay    = "/api/payment/create"
	endpointPay3D  = "/api/payment/3d/create"
	endpointStatus = "/api/payment/status"
	endpointCancel = "/api/payment/cancel"
	endpointRefund = "/api/payment/refund"
)

// Paymes integrates the Paymes REST API. Requests authenticate with HTTP
// Basic credentials, the webhook with a SHA-256 hash over the order fields.
type Paymes struct {
	account   config.PaymesAccount
	callbacks config.CallbackURLs
	client    *provider.HTTPClient
	currency  string
}

// New creates a Paymes provider for the given account.
func New(cfg *config.VirtualPos, accountID string) (provider.VirtualPos, error) {
	account, err := cfg.Paymes.Account(accountID)
	if err != nil {
		return nil, provider.NewConfigurationError("%v", err)
	}
	if err := provider.RequireConfig("Paymes", map[string]string{
		"apiKey":     account.APIKey,
		"secretKey":  account.SecretKey,
		"merchantId": account.MerchantID,
	}); err != nil {
		return nil, err
	}

	return &Paymes{
		account:   account,
		callbacks: cfg.CallbackURLs,
		client:    provider.NewHTTPClient(provider.NewHTTPClientConfig(account.BaseURL, !cfg.TestMode, cfg.Timeout)),
		currency:  cfg.Currency,
	}, nil
}

// Pay performs a direct, non-3D authorization.
func (p *Paymes) Pay(ctx context.Context, request provider.PaymentRequest) (*provider.PaymentResponse, error) {
	if err := validatePayment(request); err != nil {
		return nil, err
	}

	result, err := p.send(ctx, endpointPay, p.paymentPayload(request))
	if err != nil {
		return provider.NewFailedResponse(err.Error(), "", request.OrderID, nil), nil
	}

	if result["status"] == "success" {
		return provider.NewSuccessResponse(stringOr(result, "transaction_id", request.OrderID), request.OrderID, "", result), nil
	}
	return provider.NewFailedResponse(stringOr(result, "message", "Ödeme başarısız"), asString(result["error_code"]), request.OrderID, result), nil
}

// Pay3D starts the 3D Secure flow; the response carries the bank redirect
// URL, the challenge HTML or both.
func (p *Paymes) Pay3D(ctx context.Context, request provider.PaymentRequest) (*provider.PaymentResponse, error) {
	if err := validatePayment(request); err != nil {
		return nil, err
	}

	result, err := p.send(ctx, endpointPay3D, p.paymentPayload(request))
	if err != nil {
		return provider.NewFailedResponse(err.Error(), "", request.OrderID, nil), nil
	}

	if result["status"] == "success" {
		response := provider.NewPendingResponse(request.OrderID, asString(result["redirect_url"]), asString(result["html_content"]), result)
		response.Amount = request.Amount
		response.Currency = p.currencyOr(request.Currency)
		return response, nil
	}
	return provider.NewFailedResponse(stringOr(result, "message", "3D Secure başlatılamadı"), asString(result["error_code"]), request.OrderID, result), nil
}

// Status queries the payment state of an order.
func (p *Paymes) Status(ctx context.Context, orderID string) (*provider.PaymentResponse, error) {
	if orderID == "" {
		return nil, fmt.Errorf("orderId zorunlu")
	}

	result, err := p.send(ctx, endpointStatus, map[string]any{
		"merchant_id": p.account.MerchantID,
		"order_id":    orderID,
	})
	if err != nil {
		return provider.NewFailedResponse(err.Error(), "", orderID, nil), nil
	}

	if result["status"] == "success" && paymentApproved(asString(result["payment_status"])) {
		return provider.NewSuccessResponse(stringOr(result, "transaction_id", orderID), orderID, "", result), nil
	}
	return provider.NewFailedResponse(stringOr(result, "message", "Ödeme bulunamadı"), asString(result["error_code"]), orderID, result), nil
}

// Cancel voids a payment, partially when amount is positive.
func (p *Paymes) Cancel(ctx context.Context, orderID string, amount float64) (*provider.PaymentResponse, error) {
	if orderID == "" {
		return nil, fmt.Errorf("orderId zorunlu")
	}

	payload := map[string]any{
		"merchant_id": p.account.MerchantID,
		"order_id":    orderID,
	}
	if amount > 0 {
		payload["amount"] = provider.FormatAmount(amount)
	}

	result, err := p.send(ctx, endpointCancel, payload)
	if err != nil {
		return provider.NewFailedResponse(err.Error(), "", orderID, nil), nil
	}

	if result["status"] == "success" {
		return provider.NewSuccessResponse(stringOr(result, "transaction_id", orderID), orderID, "İptal işlemi başarılı", result), nil
	}
	return provider.NewFailedResponse(stringOr(result, "message", "İptal işlemi başarısız"), asString(result["error_code"]), orderID, result), nil
}

// Refund reverses a captured payment.
func (p *Paymes) Refund(ctx context.Context, orderID string, amount float64, transactionID string) (*provider.PaymentResponse, error) {
	if orderID == "" {
		return nil, fmt.Errorf("orderId zorunlu")
	}
	if amount <= 0 {
		return nil, fmt.Errorf("amount pozitif olmalı")
	}

	payload := map[string]any{
		"merchant_id": p.account.MerchantID,
		"order_id":    orderID,
		"amount":      provider.FormatAmount(amount),
	}
	if transactionID != "" {
		payload["transaction_id"] = transactionID
	}

	result, err := p.send(ctx, endpointRefund, payload)
	if err != nil {
		return provider.NewFailedResponse(err.Error(), "", orderID, nil), nil
	}

	if result["status"] == "success" {
		return provider.NewSuccessResponse(stringOr(result, "transaction_id", orderID), orderID, "İade işlemi başarılı", result), nil
	}
	return provider.NewFailedResponse(stringOr(result, "message", "İade işlemi başarısız"), asString(result["error_code"]), orderID, result), nil
}

// HandleCallback verifies the webhook hash and normalizes the outcome.
func (p *Paymes) HandleCallback(_ context.Context, data map[string]string) (*provider.PaymentResponse, error) {
	orderID := data["order_id"]

	expected := p.callbackHash(orderID, data["amount"])
	if !hmac.Equal([]byte(expected), []byte(data["hash"])) {
		return provider.NewFailedResponse("Hash doğrulama başarısız", "", orderID, data), nil
	}

	if paymentApproved(data["status"]) {
		transactionID := data["transaction_id"]
		if transactionID == "" {
			transactionID = orderID
		}
		return provider.NewSuccessResponse(transactionID, orderID, "", data), nil
	}

	message := data["message"]
	if message == "" {
		message = "Ödeme başarısız"
	}
	return provider.NewFailedResponse(message, data["error_code"], orderID, data), nil
}

// GetInstallments returns an empty list; Paymes exposes no installment
// query endpoint.
func (p *Paymes) GetInstallments(_ context.Context, _ float64) ([]provider.InstallmentOption, error) {
	return []provider.InstallmentOption{}, nil
}

func validatePayment(request provider.PaymentRequest) error {
	if request.OrderID == "" {
		return fmt.Errorf("orderId zorunlu")
	}
	if request.Amount <= 0 {
		return fmt.Errorf("amount pozitif olmalı")
	}
	return nil
}

func paymentApproved(status string) bool {
	return status == "success" || status == "approved"
}

func (p *Paymes) paymentPayload(request provider.PaymentRequest) map[string]any {
	installment := request.Installment
	if installment < 1 {
		installment = 1
	}
	expireYear := request.Card.ExpireYear
	if len(expireYear) == 2 {
		expireYear = "20" + expireYear
	}

	payload := map[string]any{
		"merchant_id":       p.account.MerchantID,
		"order_id":          request.OrderID,
		"amount":            provider.FormatAmount(request.Amount),
		"currency":          p.currencyOr(request.Currency),
		"installment":       installment,
		"card_number":       provider.CleanCardNumber(request.Card.Number),
		"card_holder_name":  request.Card.HolderName,
		"card_expiry_month": request.Card.ExpireMonth,
		"card_expiry_year":  expireYear,
		"card_cvv":          request.Card.CVV,
		"customer_name":     request.Customer.Name,
		"customer_email":    request.Customer.Email,
		"customer_phone":    request.Customer.Phone,
		"customer_ip":       request.ClientIP,
		"billing_country":   "TR",
		"success_url":       p.callbacks.Success,
		"fail_url":          p.callbacks.Fail,
		"callback_url":      p.callbacks.Callback,
	}
	if request.BillingAddress != nil {
		payload["billing_address"] = request.BillingAddress.Address
		payload["billing_city"] = request.BillingAddress.City
		if request.BillingAddress.Country != "" {
			payload["billing_country"] = request.BillingAddress.Country
		}
		payload["billing_zip_code"] = request.BillingAddress.ZipCode
	}
	return payload
}

// callbackHash is the hex SHA-256 over merchant id, order id, amount and
// the secret key.
func (p *Paymes) callbackHash(orderID, amount string) string {
	digest := sha256.Sum256([]byte(p.account.MerchantID + orderID + amount + p.account.SecretKey))
	return hex.EncodeToString(digest[:])
}

func (p *Paymes) send(ctx context.Context, endpoint string, payload map[string]any) (map[string]any, error) {
	auth := base64.StdEncoding.EncodeToString([]byte(p.account.APIKey + ":" + p.account.SecretKey))
	httpResp, err := p.client.SendJSON(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: endpoint,
		Body:     payload,
		Headers:  map[string]string{"Authorization": "Basic " + auth},
	})
	if err != nil && httpResp == nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(httpResp.Body, &result); err != nil {
		return nil, fmt.Errorf("geçersiz API yanıtı: %w", err)
	}
	return result, nil
}

func (p *Paymes) currencyOr(currency string) string {
	if currency != "" {
		return currency
	}
	if p.currency != "" {
		return p.currency
	}
	return "TRY"
}

func asString(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}

func stringOr(result map[string]any, key, fallback string) string {
	if value := asString(result[key]); value != "" {
		return value
	}
	return fallback
}
