package get724

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mstgnz/sanalpos/infra/config"
	"github.com/mstgnz/sanalpos/provider"
)

const (
	gatewayTestURL       = "https://test.get724.com.tr/nestpay/est3Dgate"
	gatewayProductionURL = "https://www.get724.com.tr/nestpay/est3Dgate"
	apiTestURL           = "https://test.get724.com.tr/nestpay/api"
	apiProductionURL     = "https://www.get724.com.tr/nestpay/api"

	vakifGatewayTestURL       = "https://test.get724.com.tr/vakifbank/3dgate"
	vakifGatewayProductionURL = "https://www.get724.com.tr/vakifbank/3dgate"
	vakifAPITestURL           = "https://test.get724.com.tr/vakifbank/api"
	vakifAPIProductionURL     = "https://www.get724.com.tr/vakifbank/api"

	bankVakifbank = "vakifbank"

	defaultStoreType   = "3d"
	vakifbankStoreType = "3d_pay_hosting"

	responseApproved   = "Approved"
	procReturnApproved = "00"
)

// Get724 integrates the Get724 multi-bank gateway. The EST banks and
// Vakıfbank share the protocol but answer on different endpoints; the
// configured bank picks the pair. The redirect form carries the legacy
// fixed-order SHA-1 signature, callbacks verify the same way the EST
// gateways do.
type Get724 struct {
	account   config.Get724Account
	callbacks config.CallbackURLs
	client    *provider.HTTPClient
	currency  string
	testMode  bool
	now       func() time.Time
}

// New creates a Get724 provider for the given account.
func New(cfg *config.VirtualPos, accountID string) (provider.VirtualPos, error) {
	account, err := cfg.Get724.Account(accountID)
	if err != nil {
		return nil, provider.NewConfigurationError("%v", err)
	}
	if err := provider.RequireConfig("Get724", map[string]string{
		"clientId": account.ClientID,
		"storeKey": account.StoreKey,
		"bank":     account.Bank,
	}); err != nil {
		return nil, err
	}
	if account.StoreType == "" {
		account.StoreType = defaultStoreType
	}

	return &Get724{
		account:   account,
		callbacks: cfg.CallbackURLs,
		client:    provider.NewHTTPClient(provider.NewHTTPClientConfig("", !cfg.TestMode, cfg.Timeout)),
		currency:  cfg.Currency,
		testMode:  cfg.TestMode,
		now:       time.Now,
	}, nil
}

// Pay delegates to Pay3D; Get724 is a redirect-only gateway.
func (p *Get724) Pay(ctx context.Context, request provider.PaymentRequest) (*provider.PaymentResponse, error) {
	return p.Pay3D(ctx, request)
}

// Pay3D builds the signed redirect form for the bank's 3D gate.
func (p *Get724) Pay3D(_ context.Context, request provider.PaymentRequest) (*provider.PaymentResponse, error) {
	if request.OrderID == "" {
		return nil, fmt.Errorf("orderId zorunlu")
	}
	if request.Amount <= 0 {
		return nil, fmt.Errorf("amount pozitif olmalı")
	}

	amount := provider.FormatRawAmount(request.Amount)
	rnd := strconv.FormatInt(p.now().Unix(), 10)
	currency := provider.CurrencyNumericCode(p.currencyOr(request.Currency))
	installment := ""
	if request.Installment > 0 {
		installment = strconv.Itoa(request.Installment)
	}

	fields := map[string]string{
		"clientid":      p.account.ClientID,
		"storetype":     p.account.StoreType,
		"amount":        amount,
		"oid":           request.OrderID,
		"okUrl":         p.callbacks.Success,
		"failUrl":       p.callbacks.Fail,
		"rnd":           rnd,
		"currency":      currency,
		"taksit":        installment,
		"islemtipi":     "Auth",
		"hashAlgorithm": "ver3",
	}
	fields["hash"] = p.hash(request.OrderID, amount, installment, rnd, currency)

	if request.Customer.Name != "" {
		fields["fname"] = request.Customer.Name
	}
	if request.Customer.Email != "" {
		fields["email"] = request.Customer.Email
	}
	if request.Customer.Phone != "" {
		fields["tel"] = request.Customer.Phone
	}
	if request.BillingAddress != nil {
		fields["BillToStreet1"] = request.BillingAddress.Address
		fields["BillToCity"] = request.BillingAddress.City
		country := request.BillingAddress.Country
		if country == "" {
			country = "TR"
		}
		fields["BillToCountry"] = country
		fields["BillToPostalCode"] = request.BillingAddress.ZipCode
	}

	// Vakıfbank's gate only accepts its hosted store type. The signature is
	// not affected, storetype stays outside the fixed hash order.
	if p.account.Bank == bankVakifbank {
		fields["storetype"] = vakifbankStoreType
	}

	html, err := provider.RenderRedirectForm("get724-form", p.gatewayURL(), fields)
	if err != nil {
		return nil, err
	}

	response := provider.NewPendingResponse(request.OrderID, p.gatewayURL(), html, fields)
	response.Amount = request.Amount
	response.Currency = p.currencyOr(request.Currency)
	response.Installment = request.Installment
	return response, nil
}

// HandleCallback verifies the bank's redirect-back payload, gate included:
// an mdStatus outside 1..4 fails before the authorization fields are read.
func (p *Get724) HandleCallback(_ context.Context, data map[string]string) (*provider.PaymentResponse, error) {
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
	switch data["mdStatus"] {
	case "1", "2", "3", "4":
	default:
		return provider.NewFailedResponse("3D Secure doğrulama başarısız", data["mdStatus"], orderID, data), nil
	}

	if data["Response"] == responseApproved && data["ProcReturnCode"] == procReturnApproved {
		return provider.NewSuccessResponse(data["TransId"], orderID, "", data), nil
	}

	message := data["ErrMsg"]
	if message == "" {
		message = "Ödeme başarısız"
	}
	return provider.NewFailedResponse(message, data["ProcReturnCode"], orderID, data), nil
}

// Status queries an order over the CC5 XML API.
func (p *Get724) Status(ctx context.Context, orderID string) (*provider.PaymentResponse, error) {
	if orderID == "" {
		return nil, fmt.Errorf("orderId zorunlu")
	}

	payload, err := xml.Marshal(cc5Request{
		Name:     p.account.ClientID,
		Password: p.account.StoreKey,
		ClientID: p.account.ClientID,
		OrderID:  orderID,
		Mode:     "P",
		Extra:    &cc5Extra{OrderStatus: "SOR"},
	})
	if err != nil {
		return nil, err
	}

	httpResp, err := p.client.SendForm(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: p.apiURL(),
		FormData: map[string]string{"DATA": string(payload)},
	})
	if err != nil {
		return provider.NewFailedResponse(err.Error(), "", orderID, nil), nil
	}

	var response cc5Response
	if err := xml.Unmarshal(httpResp.Body, &response); err != nil {
		return provider.NewFailedResponse(fmt.Sprintf("geçersiz API yanıtı: %v", err), "", orderID, nil), nil
	}

	if response.Response == responseApproved && response.ProcReturnCode == procReturnApproved {
		transactionID := response.TransID
		if transactionID == "" {
			transactionID = orderID
		}
		return provider.NewSuccessResponse(transactionID, orderID, "Sipariş sorgulandı", response), nil
	}

	message := response.ErrMsg
	if message == "" {
		message = "Ödeme bulunamadı"
	}
	return provider.NewFailedResponse(message, response.ProcReturnCode, orderID, response), nil
}

// Cancel voids an authorization.
func (p *Get724) Cancel(ctx context.Context, orderID string, _ float64) (*provider.PaymentResponse, error) {
	if orderID == "" {
		return nil, fmt.Errorf("orderId zorunlu")
	}
	return p.sendOperation(ctx, orderID, "Void", 0, "", "İptal işlemi başarılı", "İptal işlemi başarısız")
}

// Refund reverses a captured payment.
func (p *Get724) Refund(ctx context.Context, orderID string, amount float64, transactionID string) (*provider.PaymentResponse, error) {
	if orderID == "" {
		return nil, fmt.Errorf("orderId zorunlu")
	}
	if amount <= 0 {
		return nil, fmt.Errorf("amount pozitif olmalı")
	}
	return p.sendOperation(ctx, orderID, "Credit", amount, transactionID, "İade işlemi başarılı", "İade işlemi başarısız")
}

// GetInstallments returns an empty list; each bank manages its own
// installment table on the gateway side.
func (p *Get724) GetInstallments(_ context.Context, _ float64) ([]provider.InstallmentOption, error) {
	return []provider.InstallmentOption{}, nil
}

func (p *Get724) sendOperation(ctx context.Context, orderID, operationType string, amount float64, transactionID, okMessage, failMessage string) (*provider.PaymentResponse, error) {
	formData := map[string]string{
		"Name":     p.account.ClientID,
		"Password": p.account.StoreKey,
		"ClientId": p.account.ClientID,
		"OrderId":  orderID,
		"Type":     operationType,
	}
	if amount > 0 {
		formData["Total"] = provider.FormatRawAmount(amount)
	}
	if transactionID != "" {
		formData["TransId"] = transactionID
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
		transID := result["TransId"]
		if transID == "" {
			transID = orderID
		}
		return provider.NewSuccessResponse(transID, orderID, okMessage, result), nil
	}

	message := result["ErrMsg"]
	if message == "" {
		message = failMessage
	}
	return provider.NewFailedResponse(message, result["ProcReturnCode"], orderID, result), nil
}

// hash is the legacy fixed-order signature: store key, client id, order id,
// amount, the callback URLs, the transaction type, installment, nonce and
// currency through SHA-1, the raw digest base64 encoded.
func (p *Get724) hash(orderID, amount, installment, rnd, currency string) string {
	plain := p.account.StoreKey + p.account.ClientID + orderID + amount +
		p.callbacks.Success + p.callbacks.Fail + "Auth" + installment + rnd + currency
	digest := sha1.Sum([]byte(plain))
	return base64.StdEncoding.EncodeToString(digest[:])
}

func (p *Get724) gatewayURL() string {
	if p.account.Bank == bankVakifbank {
		if p.testMode {
			return vakifGatewayTestURL
		}
		return vakifGatewayProductionURL
	}
	if p.testMode {
		return gatewayTestURL
	}
	return gatewayProductionURL
}

func (p *Get724) apiURL() string {
	if p.account.Bank == bankVakifbank {
		if p.testMode {
			return vakifAPITestURL
		}
		return vakifAPIProductionURL
	}
	if p.testMode {
		return apiTestURL
	}
	return apiProductionURL
}

func (p *Get724) currencyOr(currency string) string {
	if currency != "" {
		return currency
	}
	return p.currency
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
