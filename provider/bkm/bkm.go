package bkm

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mstgnz/sanalpos/infra/config"
	"github.com/mstgnz/sanalpos/provider"
)

const (
	endpointCreate = "/api/payment/create"
	endpointStatus = "/api/payment/status"
	endpointCancel = "/api/payment/cancel"
	endpointRefund = "/api/payment/refund"
)

// BKM integrates BKM Express. Requests are JSON posts signed with an HMAC
// over the sorted query-string form of the body plus a timestamp, carried in
// the X-Signature and X-Timestamp headers.
type BKM struct {
	account   config.BKMAccount
	callbacks config.CallbackURLs
	client    *provider.HTTPClient
	currency  string
	now       func() time.Time
}

// New creates a BKM Express provider for the given account.
func New(cfg *config.VirtualPos, accountID string) (provider.VirtualPos, error) {
	account, err := cfg.BKM.Account(accountID)
	if err != nil {
		return nil, provider.NewConfigurationError("%v", err)
	}
	if err := provider.RequireConfig("BKM Express", map[string]string{
		"merchantId": account.MerchantID,
		"apiKey":     account.APIKey,
		"secretKey":  account.SecretKey,
	}); err != nil {
		return nil, err
	}

	return &BKM{
		account:   account,
		callbacks: cfg.CallbackURLs,
		client:    provider.NewHTTPClient(provider.NewHTTPClientConfig(account.BaseURL, !cfg.TestMode, cfg.Timeout)),
		currency:  cfg.Currency,
		now:       time.Now,
	}, nil
}

// Pay delegates to Pay3D. BKM Express is wallet-based, the cardholder
// always authenticates on the BKM side.
func (p *BKM) Pay(ctx context.Context, request provider.PaymentRequest) (*provider.PaymentResponse, error) {
	return p.Pay3D(ctx, request)
}

// Pay3D starts a wallet payment; the response carries the BKM redirect URL
// or an embeddable HTML snippet.
func (p *BKM) Pay3D(ctx context.Context, request provider.PaymentRequest) (*provider.PaymentResponse, error) {
	if request.OrderID == "" {
		return nil, fmt.Errorf("orderId zorunlu")
	}
	if request.Amount <= 0 {
		return nil, fmt.Errorf("amount pozitif olmalı")
	}

	result, err := p.send(ctx, endpointCreate, map[string]string{
		"merchant_id":    p.account.MerchantID,
		"order_id":       request.OrderID,
		"amount":         provider.FormatAmount(request.Amount),
		"currency":       p.currencyOr(request.Currency),
		"customer_name":  request.Customer.Name,
		"customer_email": request.Customer.Email,
		"customer_phone": request.Customer.Phone,
		"success_url":    p.callbacks.Success,
		"fail_url":       p.callbacks.Fail,
		"callback_url":   p.callbacks.Callback,
	})
	if err != nil {
		return provider.NewFailedResponse(err.Error(), "", request.OrderID, nil), nil
	}

	if result["status"] == "success" {
		response := provider.NewPendingResponse(request.OrderID, result["redirect_url"], result["html_content"], result)
		response.Amount = request.Amount
		response.Currency = p.currencyOr(request.Currency)
		return response, nil
	}
	return provider.NewFailedResponse(messageOr(result, "Ödeme başlatılamadı"), result["error_code"], request.OrderID, result), nil
}

// Status queries the payment state of an order.
func (p *BKM) Status(ctx context.Context, orderID string) (*provider.PaymentResponse, error) {
	if orderID == "" {
		return nil, fmt.Errorf("orderId zorunlu")
	}

	result, err := p.send(ctx, endpointStatus, map[string]string{
		"merchant_id": p.account.MerchantID,
		"order_id":    orderID,
	})
	if err != nil {
		return provider.NewFailedResponse(err.Error(), "", orderID, nil), nil
	}

	if result["status"] == "success" && paymentApproved(result["payment_status"]) {
		return provider.NewSuccessResponse(transactionOr(result, orderID), orderID, "", result), nil
	}
	return provider.NewFailedResponse(messageOr(result, "Ödeme bulunamadı"), result["error_code"], orderID, result), nil
}

// Cancel voids a payment, partially when amount is positive.
func (p *BKM) Cancel(ctx context.Context, orderID string, amount float64) (*provider.PaymentResponse, error) {
	if orderID == "" {
		return nil, fmt.Errorf("orderId zorunlu")
	}

	payload := map[string]string{
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
		return provider.NewSuccessResponse(transactionOr(result, orderID), orderID, "İptal işlemi başarılı", result), nil
	}
	return provider.NewFailedResponse(messageOr(result, "İptal işlemi başarısız"), result["error_code"], orderID, result), nil
}

// Refund reverses a captured payment.
func (p *BKM) Refund(ctx context.Context, orderID string, amount float64, transactionID string) (*provider.PaymentResponse, error) {
	if orderID == "" {
		return nil, fmt.Errorf("orderId zorunlu")
	}
	if amount <= 0 {
		return nil, fmt.Errorf("amount pozitif olmalı")
	}

	payload := map[string]string{
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
		return provider.NewSuccessResponse(transactionOr(result, orderID), orderID, "İade işlemi başarılı", result), nil
	}
	return provider.NewFailedResponse(messageOr(result, "İade işlemi başarısız"), result["error_code"], orderID, result), nil
}

// HandleCallback verifies the webhook hash and normalizes the outcome.
func (p *BKM) HandleCallback(_ context.Context, data map[string]string) (*provider.PaymentResponse, error) {
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

// GetInstallments returns an empty list; BKM Express shows the installment
// options inside the wallet.
func (p *BKM) GetInstallments(_ context.Context, _ float64) ([]provider.InstallmentOption, error) {
	return []provider.InstallmentOption{}, nil
}

func paymentApproved(status string) bool {
	return status == "success" || status == "approved"
}

// signature is the hex HMAC-SHA256 over the request fields as a sorted
// query string, the unix timestamp and the secret key, keyed with the
// secret key.
func (p *BKM) signature(payload map[string]string, timestamp int64) string {
	values := url.Values{}
	for key, value := range payload {
		values.Set(key, value)
	}
	signatureString := values.Encode() + strconv.FormatInt(timestamp, 10) + p.account.SecretKey

	mac := hmac.New(sha256.New, []byte(p.account.SecretKey))
	mac.Write([]byte(signatureString))
	return hex.EncodeToString(mac.Sum(nil))
}

// callbackHash is the hex SHA-256 over merchant id, order id, amount and
// the secret key.
func (p *BKM) callbackHash(orderID, amount string) string {
	digest := sha256.Sum256([]byte(p.account.MerchantID + orderID + amount + p.account.SecretKey))
	return hex.EncodeToString(digest[:])
}

func (p *BKM) send(ctx context.Context, endpoint string, payload map[string]string) (map[string]string, error) {
	timestamp := p.now().Unix()
	httpResp, err := p.client.SendJSON(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: endpoint,
		Body:     payload,
		Headers: map[string]string{
			"X-Merchant-Id": p.account.MerchantID,
			"X-Api-Key":     p.account.APIKey,
			"X-Timestamp":   strconv.FormatInt(timestamp, 10),
			"X-Signature":   p.signature(payload, timestamp),
		},
	})
	if err != nil && httpResp == nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(httpResp.Body, &raw); err != nil {
		return nil, fmt.Errorf("geçersiz API yanıtı: %w", err)
	}
	result := make(map[string]string, len(raw))
	for key, value := range raw {
		result[key] = fmt.Sprintf("%v", value)
	}
	return result, nil
}

func (p *BKM) currencyOr(currency string) string {
	if currency != "" {
		return currency
	}
	if p.currency != "" {
		return p.currency
	}
	return "TRY"
}

func messageOr(result map[string]string, fallback string) string {
	if result["message"] != "" {
		return result["message"]
	}
	return fallback
}

func transactionOr(result map[string]string, orderID string) string {
	if result["transaction_id"] != "" {
		return result["transaction_id"]
	}
	return orderID
}
