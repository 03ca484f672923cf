package paytr

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mstgnz/sanalpos/infra/config"
	"github.com/mstgnz/sanalpos/provider"
)

const (
	iframeBaseURL = "https://www.paytr.com/odeme/guvenli/"
	refundURL     = "https://www.paytr.com/odeme/iade"

	timeoutLimit = "30"
)

// PayTR integrates the PayTR iframe API. The token request is a form post
// signed with an HMAC over the concatenated order fields; the cardholder
// pays inside a PayTR-hosted iframe and the outcome arrives on the webhook.
type PayTR struct {
	account   config.PayTRAccount
	callbacks config.CallbackURLs
	client    *provider.HTTPClient
	currency  string
	testMode  bool
}

// New creates a PayTR provider for the given account.
func New(cfg *config.VirtualPos, accountID string) (provider.VirtualPos, error) {
	account, err := cfg.PayTR.Account(accountID)
	if err != nil {
		return nil, provider.NewConfigurationError("%v", err)
	}
	if err := provider.RequireConfig("PayTR", map[string]string{
		"merchantId":   account.MerchantID,
		"merchantKey":  account.MerchantKey,
		"merchantSalt": account.MerchantSalt,
	}); err != nil {
		return nil, err
	}

	return &PayTR{
		account:   account,
		callbacks: cfg.CallbackURLs,
		client:    provider.NewHTTPClient(provider.NewHTTPClientConfig("", !cfg.TestMode, cfg.Timeout)),
		currency:  cfg.Currency,
		testMode:  cfg.TestMode,
	}, nil
}

// Pay delegates to Pay3D. PayTR has no direct card channel, every payment
// runs through the hosted iframe.
func (p *PayTR) Pay(ctx context.Context, request provider.PaymentRequest) (*provider.PaymentResponse, error) {
	return p.Pay3D(ctx, request)
}

// Pay3D requests an iframe token and returns the hosted payment page.
func (p *PayTR) Pay3D(ctx context.Context, request provider.PaymentRequest) (*provider.PaymentResponse, error) {
	if request.OrderID == "" {
		return nil, fmt.Errorf("orderId zorunlu")
	}
	if request.Amount <= 0 {
		return nil, fmt.Errorf("amount pozitif olmalı")
	}

	amountMinor := provider.AmountToMinorUnits(request.Amount)
	basket := basketB64(request)
	installment := 0
	if request.Installment > 0 {
		installment = request.Installment
	}
	currency := p.currencyOr(request.Currency)

	noInstallment := "1"
	maxInstallment := "0"
	if installment > 0 {
		noInstallment = "0"
		maxInstallment = strconv.Itoa(installment)
	}
	debugOn := "0"
	if p.testMode {
		debugOn = "1"
	}

	formData := map[string]string{
		"merchant_id":       p.account.MerchantID,
		"user_ip":           request.ClientIP,
		"merchant_oid":      request.OrderID,
		"email":             request.Customer.Email,
		"payment_amount":    strconv.FormatInt(amountMinor, 10),
		"paytr_token":       p.token(request.ClientIP, request.OrderID, request.Customer.Email, amountMinor, basket, installment, currency),
		"user_basket":       basket,
		"debug_on":          debugOn,
		"no_installment":    noInstallment,
		"max_installment":   maxInstallment,
		"user_name":         request.Customer.Name,
		"user_address":      billingAddress(request),
		"user_phone":        request.Customer.Phone,
		"merchant_ok_url":   p.callbacks.Success,
		"merchant_fail_url": p.callbacks.Fail,
		"timeout_limit":     timeoutLimit,
		"currency":          currency,
	}

	httpResp, err := p.client.SendForm(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: p.tokenURL(),
		FormData: formData,
	})
	if err != nil {
		return provider.NewFailedResponse(err.Error(), "", request.OrderID, nil), nil
	}

	result := provider.ParseFlexibleResponse(httpResp.Body)
	if result["status"] == "success" {
		iframeURL := iframeBaseURL + result["token"]
		response := provider.NewPendingResponse(request.OrderID, iframeURL, provider.RenderIframe(iframeURL), result)
		response.Amount = request.Amount
		response.Currency = currency
		return response, nil
	}

	message := result["reason"]
	if message == "" {
		message = "Ödeme başlatılamadı"
	}
	return provider.NewFailedResponse(message, "", request.OrderID, result), nil
}

// Status is not part of the PayTR merchant API.
func (p *PayTR) Status(_ context.Context, orderID string) (*provider.PaymentResponse, error) {
	if orderID == "" {
		return nil, fmt.Errorf("orderId zorunlu")
	}
	return provider.NewFailedResponse("Durum sorgulama bu sağlayıcıda desteklenmiyor", "unsupported", orderID, nil), nil
}

// Cancel is not part of the PayTR merchant API; use Refund instead.
func (p *PayTR) Cancel(_ context.Context, orderID string, _ float64) (*provider.PaymentResponse, error) {
	if orderID == "" {
		return nil, fmt.Errorf("orderId zorunlu")
	}
	return provider.NewFailedResponse("İptal işlemi bu sağlayıcıda desteklenmiyor", "unsupported", orderID, nil), nil
}

// Refund posts a signed refund request for the order.
func (p *PayTR) Refund(ctx context.Context, orderID string, amount float64, _ string) (*provider.PaymentResponse, error) {
	if orderID == "" {
		return nil, fmt.Errorf("orderId zorunlu")
	}
	if amount <= 0 {
		return nil, fmt.Errorf("amount pozitif olmalı")
	}

	returnAmount := provider.AmountToMinorUnits(amount)
	hashStr := p.account.MerchantID + orderID + strconv.FormatInt(returnAmount, 10) + p.account.MerchantSalt

	httpResp, err := p.client.SendForm(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: refundURL,
		FormData: map[string]string{
			"merchant_id":   p.account.MerchantID,
			"merchant_oid":  orderID,
			"return_amount": strconv.FormatInt(returnAmount, 10),
			"hash":          p.sign(hashStr),
		},
	})
	if err != nil {
		return provider.NewFailedResponse(err.Error(), "", orderID, nil), nil
	}

	result := provider.ParseFlexibleResponse(httpResp.Body)
	if result["status"] == "success" {
		transactionID := result["merchant_oid"]
		if transactionID == "" {
			transactionID = orderID
		}
		return provider.NewSuccessResponse(transactionID, orderID, "İade işlemi başarılı", result), nil
	}

	message := result["reason"]
	if message == "" {
		message = "İade işlemi başarısız"
	}
	return provider.NewFailedResponse(message, "", orderID, result), nil
}

// HandleCallback verifies the webhook HMAC and normalizes the outcome.
func (p *PayTR) HandleCallback(_ context.Context, data map[string]string) (*provider.PaymentResponse, error) {
	merchantOid := data["merchant_oid"]
	status := data["status"]
	totalAmount := data["total_amount"]
	receivedHash := data["hash"]

	expected := p.sign(merchantOid + p.account.MerchantSalt + status + totalAmount)
	if !hmac.Equal([]byte(expected), []byte(receivedHash)) {
		return provider.NewFailedResponse("Hash doğrulama başarısız", "", merchantOid, data), nil
	}

	if status == "success" {
		transactionID := data["payment_id"]
		if transactionID == "" {
			transactionID = merchantOid
		}
		response := provider.NewSuccessResponse(transactionID, merchantOid, "", data)
		if amountMinor, err := strconv.ParseInt(totalAmount, 10, 64); err == nil {
			response.Amount = float64(amountMinor) / 100
		}
		return response, nil
	}

	message := data["failed_reason_msg"]
	if message == "" {
		message = "Ödeme başarısız"
	}
	return provider.NewFailedResponse(message, data["failed_reason_code"], merchantOid, data), nil
}

// GetInstallments returns an empty list; PayTR shows the installment table
// inside the iframe.
func (p *PayTR) GetInstallments(_ context.Context, _ float64) ([]provider.InstallmentOption, error) {
	return []provider.InstallmentOption{}, nil
}

// token signs the iframe token request: the order fields concatenated in
// protocol order, the salt appended, HMAC-SHA256 under the merchant key.
func (p *PayTR) token(userIP, orderID, email string, amountMinor int64, basket string, installment int, currency string) string {
	hashStr := p.account.MerchantID + userIP + orderID + email +
		strconv.FormatInt(amountMinor, 10) + basket + strconv.Itoa(installment) +
		currency + p.account.MerchantSalt
	return p.sign(hashStr)
}

func (p *PayTR) sign(hashStr string) string {
	mac := hmac.New(sha256.New, []byte(p.account.MerchantKey))
	mac.Write([]byte(hashStr))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// basketB64 encodes the basket as PayTR expects: a JSON array of
// [name, lineTotal, quantity] triples, base64 wrapped. An empty basket
// becomes a single line covering the full amount.
func basketB64(request provider.PaymentRequest) string {
	var basket [][]any
	if len(request.Items) > 0 {
		for _, item := range request.Items {
			quantity := item.Quantity
			if quantity < 1 {
				quantity = 1
			}
			basket = append(basket, []any{
				item.Name,
				provider.FormatAmount(item.Price * float64(quantity)),
				quantity,
			})
		}
	} else {
		name := request.Description
		if name == "" {
			name = "Ödeme"
		}
		basket = [][]any{{name, provider.FormatAmount(request.Amount), 1}}
	}

	encoded, _ := json.Marshal(basket)
	return base64.StdEncoding.EncodeToString(encoded)
}

func billingAddress(request provider.PaymentRequest) string {
	if request.BillingAddress == nil {
		return ""
	}
	return request.BillingAddress.Address
}

func (p *PayTR) tokenURL() string {
	if p.testMode {
		return p.account.TestURL
	}
	return p.account.ProductionURL
}

// currencyOr maps the configured currency to PayTR's representation; PayTR
// calls the lira TL, not TRY.
func (p *PayTR) currencyOr(currency string) string {
	if currency == "" {
		currency = p.currency
	}
	if currency == "" || currency == "TRY" {
		return "TL"
	}
	return currency
}
