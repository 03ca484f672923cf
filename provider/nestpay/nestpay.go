package nestpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha512"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mstgnz/sanalpos/infra/config"
	"github.com/mstgnz/sanalpos/provider"
)

const (
	// fim/api handles the server-to-server operations (status, void, refund),
	// est3Dgate the hosted payment page.
	apiTestURL       = "https://entegrasyon.asseco-see.com.tr/fim/api"
	apiProductionURL = "https://www.muze.com.tr/fim/api"

	defaultStoreType = "3D_PAY_HOSTING"

	transactionTypeAuth   = "Auth"
	transactionTypeVoid   = "Void"
	transactionTypeRefund = "Credit"

	responseApproved   = "Approved"
	procReturnApproved = "00"
)

// NestPay integrates the Asseco EST virtual POS used by İş Bankası, Akbank
// and the other EST banks. Payments run through the hosted 3D_PAY_HOSTING
// page signed with the ver3 hash; status, void and refund go through the
// CC5 fim/api endpoint.
type NestPay struct {
	account   config.NestPayAccount
	callbacks config.CallbackURLs
	client    *provider.HTTPClient
	currency  string
	language  string
	testMode  bool
}

// New creates a NestPay provider for the given account.
func New(cfg *config.VirtualPos, accountID string) (provider.VirtualPos, error) {
	account, err := cfg.NestPay.Account(accountID)
	if err != nil {
		return nil, provider.NewConfigurationError("%v", err)
	}
	if err := provider.RequireConfig("NestPay", map[string]string{
		"clientId": account.ClientID,
		"storeKey": account.StoreKey,
	}); err != nil {
		return nil, err
	}
	if account.StoreType == "" {
		account.StoreType = defaultStoreType
	}

	return &NestPay{
		account:   account,
		callbacks: cfg.CallbackURLs,
		client:    provider.NewHTTPClient(provider.NewHTTPClientConfig(account.TestURL, !cfg.TestMode, cfg.Timeout)),
		currency:  cfg.Currency,
		language:  cfg.Language,
		testMode:  cfg.TestMode,
	}, nil
}

// Pay delegates to Pay3D. NestPay hosted accounts have no direct
// authorization channel, every payment goes through the 3D page.
func (p *NestPay) Pay(ctx context.Context, request provider.PaymentRequest) (*provider.PaymentResponse, error) {
	return p.Pay3D(ctx, request)
}

// Pay3D builds the signed form for the hosted payment page and returns it as
// a self-submitting HTML document.
func (p *NestPay) Pay3D(_ context.Context, request provider.PaymentRequest) (*provider.PaymentResponse, error) {
	if request.OrderID == "" {
		return nil, fmt.Errorf("orderId zorunlu")
	}
	if request.Amount <= 0 {
		return nil, fmt.Errorf("amount pozitif olmalı")
	}

	installment := ""
	if request.Installment > 1 {
		installment = strconv.Itoa(request.Installment)
	}

	fields := map[string]string{
		"clientid":      p.account.ClientID,
		"storetype":     p.account.StoreType,
		"amount":        provider.FormatRawAmount(request.Amount),
		"oid":           request.OrderID,
		"okUrl":         p.callbacks.Success,
		"failUrl":       p.callbacks.Fail,
		"islemtipi":     transactionTypeAuth,
		"taksit":        installment,
		"callbackUrl":   p.callbacks.Callback,
		"currency":      provider.CurrencyNumericCode(p.currencyOr(request.Currency)),
		"rnd":           uuid.NewString(),
		"lang":          p.languageOr(request.Language),
		"hashalgorithm": "ver3",
		"refreshtime":   "5",
	}
	fields["hash"] = hashVer3(fields, p.account.StoreKey)

	html, err := provider.RenderRedirectForm("nestpay-form", p.gatewayURL(), fields)
	if err != nil {
		return nil, err
	}

	response := provider.NewPendingResponse(request.OrderID, p.gatewayURL(), html, fields)
	response.Amount = request.Amount
	response.Currency = p.currencyOr(request.Currency)
	response.Installment = request.Installment
	return response, nil
}

// HandleCallback verifies the bank's redirect-back payload and normalizes
// the outcome. No field is read before the hash check passes.
func (p *NestPay) HandleCallback(_ context.Context, data map[string]string) (*provider.PaymentResponse, error) {
	hashParams := data["HASHPARAMS"]
	hashParamsVal := data["HASHPARAMSVAL"]
	receivedHash := data["HASH"]
	if hashParams == "" || hashParamsVal == "" || receivedHash == "" {
		return provider.NewFailedResponse("Geçersiz callback verisi", "", data["oid"], data), nil
	}

	digest := sha1.Sum([]byte(hashParamsVal + p.account.StoreKey))
	expected := base64.StdEncoding.EncodeToString(digest[:])
	if !hmac.Equal([]byte(expected), []byte(receivedHash)) {
		return provider.NewFailedResponse("Hash doğrulama başarısız", "", data["oid"], data), nil
	}

	orderID := data["oid"]
	mdStatus := data["mdStatus"]
	switch mdStatus {
	case "1", "2", "3", "4":
	default:
		return provider.NewFailedResponse("3D Secure doğrulama başarısız", mdStatus, orderID, data), nil
	}

	if data["Response"] == responseApproved && data["ProcReturnCode"] == procReturnApproved {
		response := provider.NewSuccessResponse(data["TransId"], orderID, "", data)
		if amount, err := strconv.ParseFloat(data["amount"], 64); err == nil {
			response.Amount = amount
		}
		return response, nil
	}

	message := data["ErrMsg"]
	if message == "" {
		message = "Ödeme başarısız"
	}
	return provider.NewFailedResponse(message, data["ProcReturnCode"], orderID, data), nil
}

// Status queries an order over the CC5 XML API.
func (p *NestPay) Status(ctx context.Context, orderID string) (*provider.PaymentResponse, error) {
	if orderID == "" {
		return nil, fmt.Errorf("orderId zorunlu")
	}

	request := cc5Request{
		Name:     p.apiUser(),
		Password: p.account.StoreKey,
		ClientID: p.account.ClientID,
		OrderID:  orderID,
		Mode:     "P",
		Extra:    &cc5Extra{OrderStatus: "SOR"},
	}
	response, err := p.sendCC5(ctx, request)
	if err != nil {
		return provider.NewFailedResponse(err.Error(), "", orderID, nil), nil
	}

	if response.Response == responseApproved && response.ProcReturnCode == procReturnApproved {
		return provider.NewSuccessResponse(response.TransID, orderID, "Sipariş sorgulandı", response), nil
	}
	return provider.NewFailedResponse(p.errorMessage(response, "Sipariş sorgulanamadı"), response.ProcReturnCode, orderID, response), nil
}

// Cancel voids an authorization over fim/api.
func (p *NestPay) Cancel(ctx context.Context, orderID string, _ float64) (*provider.PaymentResponse, error) {
	if orderID == "" {
		return nil, fmt.Errorf("orderId zorunlu")
	}
	return p.sendOperation(ctx, orderID, transactionTypeVoid, 0, "İptal başarılı", "İptal başarısız")
}

// Refund reverses a captured payment, partially when amount is positive.
func (p *NestPay) Refund(ctx context.Context, orderID string, amount float64, _ string) (*provider.PaymentResponse, error) {
	if orderID == "" {
		return nil, fmt.Errorf("orderId zorunlu")
	}
	return p.sendOperation(ctx, orderID, transactionTypeRefund, amount, "İade başarılı", "İade başarısız")
}

// GetInstallments returns an empty list. Installment options for hosted
// accounts are configured on the bank panel, not queried over the API.
func (p *NestPay) GetInstallments(_ context.Context, _ float64) ([]provider.InstallmentOption, error) {
	return []provider.InstallmentOption{}, nil
}

func (p *NestPay) sendOperation(ctx context.Context, orderID, transactionType string, amount float64, okMessage, failMessage string) (*provider.PaymentResponse, error) {
	formData := map[string]string{
		"Name":     p.apiUser(),
		"Password": p.account.StoreKey,
		"ClientId": p.account.ClientID,
		"OrderId":  orderID,
		"Type":     transactionType,
	}
	if amount > 0 {
		formData["Total"] = provider.FormatAmount(amount)
	}

	httpResp, err := p.client.SendForm(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: p.apiURL(),
		FormData: formData,
	})
	if err != nil {
		return provider.NewFailedResponse(err.Error(), "", orderID, nil), nil
	}

	result := provider.ParseFlexibleResponse(httpResp.Body)
	if result["Response"] == responseApproved {
		return provider.NewSuccessResponse(result["TransId"], orderID, okMessage, result), nil
	}
	message := result["ErrMsg"]
	if message == "" {
		message = failMessage
	}
	return provider.NewFailedResponse(message, result["ProcReturnCode"], orderID, result), nil
}

func (p *NestPay) sendCC5(ctx context.Context, request cc5Request) (*cc5Response, error) {
	payload, err := xml.Marshal(request)
	if err != nil {
		return nil, err
	}

	httpResp, err := p.client.SendForm(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: p.apiURL(),
		FormData: map[string]string{"DATA": string(payload)},
	})
	if err != nil {
		return nil, err
	}

	var response cc5Response
	if err := xml.Unmarshal(httpResp.Body, &response); err != nil {
		return nil, fmt.Errorf("geçersiz API yanıtı: %w", err)
	}
	return &response, nil
}

func (p *NestPay) errorMessage(response *cc5Response, fallback string) string {
	if response.ErrMsg != "" {
		return response.ErrMsg
	}
	return fallback
}

// apiUser is the fim/api login. Accounts without a separate API user
// authenticate with the client id.
func (p *NestPay) apiUser() string {
	if p.account.ClientName != "" {
		return p.account.ClientName
	}
	return p.account.ClientID
}

func (p *NestPay) gatewayURL() string {
	if p.testMode {
		return p.account.TestURL
	}
	return p.account.ProductionURL
}

func (p *NestPay) apiURL() string {
	if p.testMode {
		return apiTestURL
	}
	return apiProductionURL
}

func (p *NestPay) currencyOr(currency string) string {
	if currency != "" {
		return currency
	}
	return p.currency
}

func (p *NestPay) languageOr(language string) string {
	if language != "" {
		return language
	}
	return p.language
}

type cc5Request struct {
	XMLName  xml.Name  `xml:"CC5Request"`
	Name     string    `xml:"Name"`
	Password string    `xml:"Password"`
	ClientID string    `xml:"ClientId"`
	OrderID  string    `xml:"OrderId"`
	Mode     string    `xml:"Mode"`
	Extra    *cc5Extra `xml:"Extra,omitempty"`
}

type cc5Extra struct {
	OrderStatus string `xml:"ORDERSTATUS,omitempty"`
}

type cc5Response struct {
	XMLName        xml.Name `xml:"CC5Response"`
	Response       string   `xml:"Response"`
	ProcReturnCode string   `xml:"ProcReturnCode"`
	TransID        string   `xml:"TransId"`
	ErrMsg         string   `xml:"ErrMsg"`
	OrderID        string   `xml:"OrderId"`
}

// hashVer3 computes the EST ver3 signature: the form values sorted by field
// name in case-insensitive natural order, each value escaped and joined with
// a pipe, the store key appended last, SHA-512 over the whole string and the
// raw digest base64 encoded. The hash, encoding and countdown fields stay
// out of the plaintext.
func hashVer3(fields map[string]string, storeKey string) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		switch strings.ToLower(key) {
		case "hash", "encoding", "countdown":
			continue
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return natCompare(strings.ToLower(keys[i]), strings.ToLower(keys[j])) < 0
	})

	var plain strings.Builder
	for _, key := range keys {
		plain.WriteString(escapeHashValue(fields[key]))
		plain.WriteByte('|')
	}
	plain.WriteString(escapeHashValue(storeKey))

	digest := sha512.Sum512([]byte(plain.String()))
	return base64.StdEncoding.EncodeToString(digest[:])
}

// escapeHashValue protects the pipe separator inside field values.
func escapeHashValue(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, "|", `\|`)
}

// natCompare orders strings the way the gateway sorts form fields: digit
// runs compare as numbers, everything else byte by byte.
func natCompare(a, b string) int {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if isDigit(a[i]) && isDigit(b[j]) {
			si, sj := i, j
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			na := strings.TrimLeft(a[si:i], "0")
			nb := strings.TrimLeft(b[sj:j], "0")
			if len(na) != len(nb) {
				return len(na) - len(nb)
			}
			if na != nb {
				return strings.Compare(na, nb)
			}
			continue
		}
		if a[i] != b[j] {
			return int(a[i]) - int(b[j])
		}
		i++
		j++
	}
	return (len(a) - i) - (len(b) - j)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
