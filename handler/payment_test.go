package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mstgnz/sanalpos/infra/config"
	"github.com/mstgnz/sanalpos/infra/response"
)

func testConfig() *config.VirtualPos {
	return &config.VirtualPos{
		Provider: "nestpay",
		TestMode: true,
		Currency: "TRY",
		Language: "tr",
		Timeout:  10 * time.Second,
		CallbackURLs: config.CallbackURLs{
			Success:  "https://merchant.example/ok",
			Fail:     "https://merchant.example/fail",
			Callback: "https://merchant.example/callback",
		},
		NestPay: config.NestPayConfig{
			DefaultAccount: "default",
			Accounts: map[string]config.NestPayAccount{
				"default": {
					ClientID:      "100100000",
					ClientName:    "apiuser",
					StoreKey:      "TEST1234",
					StoreType:     "3D_PAY_HOSTING",
					Bank:          "isbank",
					TestURL:       "https://entegrasyon.asseco-see.com.tr/fim/est3Dgate",
					ProductionURL: "https://www.muze.com.tr/fim/est3Dgate",
				},
			},
		},
		PayTR: config.PayTRConfig{
			DefaultAccount: "default",
			Accounts: map[string]config.PayTRAccount{
				"default": {
					MerchantID:   "MID1",
					MerchantKey:  "test-key",
					MerchantSalt: "test-salt",
				},
			},
		},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	h := NewPaymentHandler(testConfig(), validator.New(), nil)

	r := chi.NewRouter()
	r.Route("/v1", h.Routes)
	return r
}

func decodeEnvelope(t *testing.T, body []byte) response.Response {
	t.Helper()

	var resp response.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	return resp
}

func TestPay3DEndpoint(t *testing.T) {
	router := newTestRouter(t)

	body := `{
		"orderId": "ORD-1",
		"amount": 100.50,
		"card": {
			"number": "4111 1111 1111 1111",
			"holderName": "Ali Veli",
			"expireMonth": "12",
			"expireYear": "30",
			"cvv": "123"
		},
		"customer": {"name": "Ali Veli", "email": "ali@example.com"}
	}`

	req := httptest.NewRequest(http.MethodPost, "/v1/pay3d", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	resp := decodeEnvelope(t, w.Body.Bytes())
	if !resp.Success {
		t.Fatalf("envelope success = false: %s", w.Body.String())
	}

	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("data is not an object: %T", resp.Data)
	}
	if data["status"] != "pending" {
		t.Errorf("status = %v, want pending", data["status"])
	}
	if data["orderId"] != "ORD-1" {
		t.Errorf("orderId = %v", data["orderId"])
	}
	if html, _ := data["html"].(string); !strings.Contains(html, "<form") {
		t.Error("pending response should carry a redirect form")
	}
}

func TestPayValidationError(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/pay", strings.NewReader(`{"amount": 10}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	resp := decodeEnvelope(t, w.Body.Bytes())
	if resp.Success {
		t.Error("envelope success should be false")
	}
	if resp.Message != "Doğrulama hatası" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestPayUnknownProvider(t *testing.T) {
	router := newTestRouter(t)

	body := `{"orderId": "ORD-1", "amount": 10, "card": {}, "customer": {}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/pay?provider=stripe", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "bilinmeyen provider") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestCallbackFormEncoded(t *testing.T) {
	router := newTestRouter(t)

	form := url.Values{}
	form.Set("merchant_oid", "X1")
	form.Set("status", "success")
	form.Set("total_amount", "150")
	form.Set("hash", "VIvBVMVTysK2jmAEYiLChn+aMXmkxQV60clMq/wsRBo=")

	req := httptest.NewRequest(http.MethodPost, "/v1/callback/paytr", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	resp := decodeEnvelope(t, w.Body.Bytes())
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("data is not an object: %T", resp.Data)
	}
	if data["status"] != "success" {
		t.Errorf("status = %v, want success", data["status"])
	}
	if data["transactionId"] != "X1" {
		t.Errorf("transactionId = %v, want X1", data["transactionId"])
	}
}

func TestCallbackUnknownProvider(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/callback/stripe", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestInstallmentsRequiresAmount(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/installments", nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestInstallments(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/installments?amount=100.50", nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	resp := decodeEnvelope(t, w.Body.Bytes())
	if !resp.Success {
		t.Errorf("envelope success = false: %s", w.Body.String())
	}
}

func TestParseCallbackDataJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/callback/paymes",
		strings.NewReader(`{"orderId": "ORD1", "amount": 100.5, "approved": true}`))
	req.Header.Set("Content-Type", "application/json")

	data, err := parseCallbackData(req)
	if err != nil {
		t.Fatalf("parseCallbackData() error = %v", err)
	}
	if data["orderId"] != "ORD1" {
		t.Errorf("orderId = %q", data["orderId"])
	}
	if data["amount"] != "100.5" {
		t.Errorf("amount = %q", data["amount"])
	}
	if data["approved"] != "true" {
		t.Errorf("approved = %q", data["approved"])
	}
}
