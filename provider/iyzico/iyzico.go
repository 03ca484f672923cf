package iyzico

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mstgnz/sanalpos/infra/config"
	"github.com/mstgnz/sanalpos/provider"
)

const (
	endpointPay          = "/payment/auth"
	endpointInit3D       = "/payment/3dsecure/initialize"
	endpointComplete3D   = "/payment/3dsecure/auth"
	endpointDetail       = "/payment/detail"
	endpointCancel       = "/payment/cancel"
	endpointRefund       = "/payment/refund"
	endpointInstallments = "/payment/installment"

	statusOK             = "success"
	paymentStatusSuccess = "SUCCESS"

	clientVersion = "sanalpos-1.0"

	// Bin the installment table is queried with when no card is at hand.
	defaultInstallmentBin = "540667"
)

// Iyzico integrates the İyzico REST API. Every call is a JSON post signed
// with the IYZWS authorization scheme over the exact request body.
type Iyzico struct {
	account   config.IyzicoAccount
	callbacks config.CallbackURLs
	client    *provider.HTTPClient
	currency  string
	language  string
}

// New creates an İyzico provider for the given account.
func New(cfg *config.VirtualPos, accountID string) (provider.VirtualPos, error) {
	account, err := cfg.Iyzico.Account(accountID)
	if err != nil {
		return nil, provider.NewConfigurationError("%v", err)
	}
	if err := provider.RequireConfig("İyzico", map[string]string{
		"apiKey":    account.APIKey,
		"secretKey": account.SecretKey,
	}); err != nil {
		return nil, err
	}

	return &Iyzico{
		account:   account,
		callbacks: cfg.CallbackURLs,
		client:    provider.NewHTTPClient(provider.NewHTTPClientConfig(account.BaseURL, !cfg.TestMode, cfg.Timeout)),
		currency:  cfg.Currency,
		language:  cfg.Language,
	}, nil
}

// Pay performs a direct, non-3D authorization.
func (p *Iyzico) Pay(ctx context.Context, request provider.PaymentRequest) (*provider.PaymentResponse, error) {
	if err := validatePayment(request); err != nil {
		return nil, err
	}

	payload := p.paymentPayload(request)
	result, err := p.send(ctx, endpointPay, payload)
	if err != nil {
		return provider.NewFailedResponse(err.Error(), "", request.OrderID, nil), nil
	}
	return p.paymentResult(result, request.OrderID), nil
}

// Pay3D initializes the 3D Secure flow. The bank's challenge page comes back
// as an HTML document the merchant renders to the cardholder.
func (p *Iyzico) Pay3D(ctx context.Context, request provider.PaymentRequest) (*provider.PaymentResponse, error) {
	if err := validatePayment(request); err != nil {
		return nil, err
	}

	payload := p.paymentPayload(request)
	payload["callbackUrl"] = p.callbacks.Callback
	result, err := p.send(ctx, endpointInit3D, payload)
	if err != nil {
		return provider.NewFailedResponse(err.Error(), "", request.OrderID, nil), nil
	}

	if result.Status != statusOK {
		return provider.NewFailedResponse(result.errorText("3D Secure başlatılamadı"), result.ErrorCode, request.OrderID, result), nil
	}

	response := provider.NewPendingResponse(request.OrderID, "", decodeChallengeHTML(result.ThreeDSHTMLContent), result)
	response.Amount = request.Amount
	response.Currency = p.currencyOr(request.Currency)
	return response, nil
}

// HandleCallback completes the 3D flow by exchanging the paymentId posted
// back by İyzico for the final authorization result. İyzico callbacks carry
// no merchant-verifiable signature; the completion call is the verification.
func (p *Iyzico) HandleCallback(ctx context.Context, data map[string]string) (*provider.PaymentResponse, error) {
	paymentID := data["paymentId"]
	if paymentID == "" {
		return provider.NewFailedResponse("Geçersiz callback verisi", "", data["conversationId"], data), nil
	}

	payload := map[string]any{
		"locale":    p.locale(""),
		"paymentId": paymentID,
	}
	if conversationData := data["conversationData"]; conversationData != "" {
		payload["conversationData"] = conversationData
	}

	result, err := p.send(ctx, endpointComplete3D, payload)
	if err != nil {
		return provider.NewFailedResponse(err.Error(), "", data["conversationId"], nil), nil
	}
	return p.paymentResult(result, data["conversationId"]), nil
}

// Status queries a payment by conversation id.
func (p *Iyzico) Status(ctx context.Context, orderID string) (*provider.PaymentResponse, error) {
	if orderID == "" {
		return nil, fmt.Errorf("orderId zorunlu")
	}

	result, err := p.send(ctx, endpointDetail, map[string]any{
		"locale":         p.locale(""),
		"conversationId": orderID,
	})
	if err != nil {
		return provider.NewFailedResponse(err.Error(), "", orderID, nil), nil
	}

	if result.Status == statusOK && result.PaymentStatus == paymentStatusSuccess {
		return provider.NewSuccessResponse(result.PaymentID, orderID, "Ödeme tamamlandı", result), nil
	}
	return provider.NewFailedResponse(result.errorText("Ödeme tamamlanmadı"), result.ErrorCode, orderID, result), nil
}

// Cancel voids a same-day payment by payment id.
func (p *Iyzico) Cancel(ctx context.Context, orderID string, amount float64) (*provider.PaymentResponse, error) {
	if orderID == "" {
		return nil, fmt.Errorf("orderId zorunlu")
	}

	payload := map[string]any{
		"locale":    p.locale(""),
		"paymentId": orderID,
		"ip":        "",
	}
	if amount > 0 {
		payload["price"] = provider.FormatAmount(amount)
	}

	result, err := p.send(ctx, endpointCancel, payload)
	if err != nil {
		return provider.NewFailedResponse(err.Error(), "", orderID, nil), nil
	}
	if result.Status == statusOK {
		return provider.NewSuccessResponse(result.PaymentID, orderID, "İptal başarılı", result), nil
	}
	return provider.NewFailedResponse(result.errorText("İptal başarısız"), result.ErrorCode, orderID, result), nil
}

// Refund reverses a payment transaction.
func (p *Iyzico) Refund(ctx context.Context, orderID string, amount float64, transactionID string) (*provider.PaymentResponse, error) {
	if orderID == "" && transactionID == "" {
		return nil, fmt.Errorf("orderId veya transactionId zorunlu")
	}
	if amount <= 0 {
		return nil, fmt.Errorf("amount pozitif olmalı")
	}

	paymentTransactionID := transactionID
	if paymentTransactionID == "" {
		paymentTransactionID = orderID
	}

	result, err := p.send(ctx, endpointRefund, map[string]any{
		"locale":               p.locale(""),
		"paymentTransactionId": paymentTransactionID,
		"price":                provider.FormatAmount(amount),
		"ip":                   "",
	})
	if err != nil {
		return provider.NewFailedResponse(err.Error(), "", orderID, nil), nil
	}
	if result.Status == statusOK {
		return provider.NewSuccessResponse(result.PaymentID, orderID, "İade başarılı", result), nil
	}
	return provider.NewFailedResponse(result.errorText("İade başarısız"), result.ErrorCode, orderID, result), nil
}

// GetInstallments queries the installment table for the given amount.
func (p *Iyzico) GetInstallments(ctx context.Context, amount float64) ([]provider.InstallmentOption, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount pozitif olmalı")
	}

	result, err := p.send(ctx, endpointInstallments, map[string]any{
		"locale":    p.locale(""),
		"binNumber": defaultInstallmentBin,
		"price":     provider.FormatAmount(amount),
	})
	if err != nil {
		return nil, err
	}
	if result.Status != statusOK {
		return nil, fmt.Errorf("taksit sorgusu başarısız: %s", result.errorText(""))
	}

	var options []provider.InstallmentOption
	for _, detail := range result.InstallmentDetails {
		for _, price := range detail.InstallmentPrices {
			options = append(options, provider.InstallmentOption{
				Count:      price.InstallmentNumber,
				Monthly:    price.InstallmentPrice,
				Total:      price.TotalPrice,
				CardFamily: detail.CardFamilyName,
			})
		}
	}
	return options, nil
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

// paymentPayload builds the İyzico payment document shared by the direct and
// 3D flows.
func (p *Iyzico) paymentPayload(request provider.PaymentRequest) map[string]any {
	installment := request.Installment
	if installment < 1 {
		installment = 1
	}
	price := provider.FormatAmount(request.Amount)

	payload := map[string]any{
		"locale":         p.locale(request.Language),
		"conversationId": request.OrderID,
		"price":          price,
		"paidPrice":      price,
		"currency":       p.currencyOr(request.Currency),
		"installment":    installment,
		"basketId":       request.OrderID,
		"paymentChannel": "WEB",
		"paymentGroup":   "PRODUCT",
		"paymentCard":    p.cardPayload(request.Card),
		"buyer":          p.buyerPayload(request),
		"basketItems":    p.basketPayload(request),
	}

	if request.BillingAddress != nil {
		payload["billingAddress"] = addressPayload(request.Customer.Name, request.BillingAddress)
	}
	if request.ShippingAddress != nil {
		payload["shippingAddress"] = addressPayload(request.Customer.Name, request.ShippingAddress)
	}
	return payload
}

func (p *Iyzico) cardPayload(card provider.CardInfo) map[string]any {
	expireYear := card.ExpireYear
	if len(expireYear) == 2 {
		expireYear = "20" + expireYear
	}
	return map[string]any{
		"cardHolderName": card.HolderName,
		"cardNumber":     provider.CleanCardNumber(card.Number),
		"expireMonth":    card.ExpireMonth,
		"expireYear":     expireYear,
		"cvc":            card.CVV,
	}
}

func (p *Iyzico) buyerPayload(request provider.PaymentRequest) map[string]any {
	name, surname := splitName(request.Customer.Name)
	address := "Adres belirtilmedi"
	city := "İstanbul"
	country := "Türkiye"
	if request.BillingAddress != nil {
		address = request.BillingAddress.Address
		city = request.BillingAddress.City
		country = request.BillingAddress.Country
	}
	return map[string]any{
		"id":                  request.OrderID,
		"name":                name,
		"surname":             surname,
		"gsmNumber":           request.Customer.Phone,
		"email":               request.Customer.Email,
		"identityNumber":      "",
		"registrationAddress": address,
		"ip":                  request.ClientIP,
		"city":                city,
		"country":             country,
	}
}

// basketPayload maps the order items. An empty basket becomes a single line
// covering the full amount so the API's basket total check always holds.
func (p *Iyzico) basketPayload(request provider.PaymentRequest) []map[string]any {
	if len(request.Items) == 0 {
		name := request.Description
		if name == "" {
			name = "Ödeme"
		}
		return []map[string]any{{
			"id":        request.OrderID,
			"name":      name,
			"category1": "Genel",
			"itemType":  "PHYSICAL",
			"price":     provider.FormatAmount(request.Amount),
		}}
	}

	items := make([]map[string]any, 0, len(request.Items))
	for i, item := range request.Items {
		id := item.Code
		if id == "" {
			id = fmt.Sprintf("%s-%d", request.OrderID, i+1)
		}
		quantity := item.Quantity
		if quantity < 1 {
			quantity = 1
		}
		items = append(items, map[string]any{
			"id":        id,
			"name":      item.Name,
			"category1": "Genel",
			"itemType":  "PHYSICAL",
			"price":     provider.FormatAmount(item.Price * float64(quantity)),
		})
	}
	return items
}

// splitName separates a full name into first name(s) and surname on the last
// space; a single-word name is used for both since the API rejects an empty
// surname.
func splitName(fullName string) (string, string) {
	parts := strings.Fields(fullName)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}

func addressPayload(contactName string, address *provider.Address) map[string]any {
	return map[string]any{
		"contactName": contactName,
		"address":     address.Address,
		"city":        address.City,
		"country":     address.Country,
		"zipCode":     address.ZipCode,
	}
}

func (p *Iyzico) paymentResult(result *apiResponse, orderID string) *provider.PaymentResponse {
	if result.Status == statusOK {
		response := provider.NewSuccessResponse(result.PaymentID, orderID, "", result)
		if result.CardMask != "" {
			response.CardMask = result.CardMask
		}
		return response
	}
	return provider.NewFailedResponse(result.errorText("Ödeme başarısız"), result.ErrorCode, orderID, result)
}

// send posts a signed JSON document and decodes the response envelope.
func (p *Iyzico) send(ctx context.Context, endpoint string, payload map[string]any) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	randomString := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	httpResp, err := p.client.SendRaw(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: endpoint,
		Body:     body,
		Headers: map[string]string{
			"Content-Type":          "application/json",
			"Authorization":         p.authorization(randomString, body),
			"x-iyzi-rnd":            randomString,
			"x-iyzi-client-version": clientVersion,
		},
	})
	if err != nil && httpResp == nil {
		return nil, err
	}

	var result apiResponse
	if err := json.Unmarshal(httpResp.Body, &result); err != nil {
		return nil, fmt.Errorf("geçersiz API yanıtı: %w", err)
	}
	return &result, nil
}

// authorization builds the IYZWS header: the api key and the base64 of a
// SHA-1 over random string, secret key and the exact request body.
func (p *Iyzico) authorization(randomString string, body []byte) string {
	digest := sha1.Sum([]byte(randomString + p.account.SecretKey + string(body)))
	return fmt.Sprintf("IYZWS %s:%s", p.account.APIKey, base64.StdEncoding.EncodeToString(digest[:]))
}

func (p *Iyzico) locale(language string) string {
	if language != "" {
		return language
	}
	if p.language != "" {
		return p.language
	}
	return "tr"
}

func (p *Iyzico) currencyOr(currency string) string {
	if currency != "" {
		return currency
	}
	if p.currency != "" {
		return p.currency
	}
	return "TRY"
}

// decodeChallengeHTML unwraps the base64 the API wraps the ACS page in,
// falling back to the raw value for already-decoded content.
func decodeChallengeHTML(content string) string {
	decoded, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return content
	}
	return string(decoded)
}

type apiResponse struct {
	Status             string              `json:"status"`
	PaymentID          string              `json:"paymentId"`
	PaymentStatus      string              `json:"paymentStatus"`
	ConversationID     string              `json:"conversationId"`
	ErrorCode          string              `json:"errorCode"`
	ErrorMessage       string              `json:"errorMessage"`
	ThreeDSHTMLContent string              `json:"threeDSHtmlContent"`
	CardMask           string              `json:"binNumber"`
	InstallmentDetails []installmentDetail `json:"installmentDetails"`
}

func (r *apiResponse) errorText(fallback string) string {
	if r.ErrorMessage != "" {
		return r.ErrorMessage
	}
	return fallback
}

type installmentDetail struct {
	CardFamilyName    string             `json:"cardFamilyName"`
	InstallmentPrices []installmentPrice `json:"installmentPrices"`
}

type installmentPrice struct {
	InstallmentNumber int     `json:"installmentNumber"`
	InstallmentPrice  float64 `json:"installmentPrice"`
	TotalPrice        float64 `json:"totalPrice"`
}
