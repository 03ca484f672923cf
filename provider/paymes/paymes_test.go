package paymes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mstgnz/sanalpos/infra/config"
	"github.com/mstgnz/sanalpos/provider"
)

func testConfig(baseURL string) *config.VirtualPos {
	return &config.VirtualPos{
		Provider: "paymes",
		TestMode: true,
		Currency: "TRY",
		Timeout:  10 * time.Second,
		CallbackURLs: config.CallbackURLs{
			Success:  "https://merchant.example/ok",
			Fail:     "https://merchant.example/fail",
			Callback: "https://merchant.example/callback",
		},
		Paymes: config.PaymesConfig{
			DefaultAccount: "default",
			Accounts: map[string]config.PaymesAccount{
				"default": {
					APIKey:     "test-api-key",
					SecretKey:  "test-secret",
					MerchantID: "MID1",
					BaseURL:    baseURL,
				},
			},
		},
	}
}

func newTestProvider(t *testing.T, baseURL string) provider.VirtualPos {
	t.Helper()
	p, err := New(testConfig(baseURL), "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestNewMissingCredentials(t *testing.T) {
	cfg := testConfig("https://api.paymes.com")
	account := cfg.Paymes.Accounts["default"]
	account.MerchantID = ""
	cfg.Paymes.Accounts["default"] = account

	_, err := New(cfg, "")
	if err == nil {
		t.Fatal("New() expected error for missing merchant id")
	}
	if !strings.Contains(err.Error(), "merchantId") {
		t.Errorf("New() error = %v", err)
	}
}

func TestPay(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/api/payment/create") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); !strings.HasPrefix(got, "Basic ") {
			t.Errorf("Authorization header = %s", got)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured)
		w.Write([]byte(`{"status":"success","transaction_id":"TX-1"}`))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	response, err := p.Pay(context.Background(), provider.PaymentRequest{
		OrderID: "ORD1",
		Amount:  100.5,
		Card: provider.CardInfo{
			Number:      "4111 1111 1111 1111",
			HolderName:  "Ad Soyad",
			ExpireMonth: "12",
			ExpireYear:  "28",
			CVV:         "000",
		},
	})
	if err != nil {
		t.Fatalf("Pay() error = %v", err)
	}
	if !response.Success || response.TransactionID != "TX-1" {
		t.Errorf("Pay() = %+v", response)
	}

	if captured["amount"] != "100.50" {
		t.Errorf("amount = %v, want 100.50", captured["amount"])
	}
	if captured["card_number"] != "4111111111111111" {
		t.Errorf("card_number = %v", captured["card_number"])
	}
	if captured["card_expiry_year"] != "2028" {
		t.Errorf("card_expiry_year = %v, want 2028", captured["card_expiry_year"])
	}
	if captured["installment"] != float64(1) {
		t.Errorf("installment = %v, want 1", captured["installment"])
	}
}

func TestPay3D(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/api/payment/3d/create") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":"success","redirect_url":"https://3d.paymes.com/x"}`))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	response, err := p.Pay3D(context.Background(), provider.PaymentRequest{OrderID: "ORD1", Amount: 50})
	if err != nil {
		t.Fatalf("Pay3D() error = %v", err)
	}
	if response.Status != provider.StatusPending || response.RedirectURL != "https://3d.paymes.com/x" {
		t.Errorf("Pay3D() = %+v", response)
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantSuccess bool
	}{
		{"approved", `{"status":"success","payment_status":"approved","transaction_id":"TX-2"}`, true},
		{"still waiting", `{"status":"success","payment_status":"pending"}`, false},
		{"not found", `{"status":"error","message":"Ödeme bulunamadı"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p := newTestProvider(t, server.URL)
			response, err := p.Status(context.Background(), "ORD1")
			if err != nil {
				t.Fatalf("Status() error = %v", err)
			}
			if response.Success != tt.wantSuccess {
				t.Errorf("Status() success = %v, want %v", response.Success, tt.wantSuccess)
			}
		})
	}
}

func TestHandleCallback(t *testing.T) {
	validHash := "1aa65ee9d2ee4f508e00c359438298f5cf0e21857a76412c8d1b49c85a464756" // sha256(MID1+ORD1+100.50+test-secret)

	tests := []struct {
		name        string
		data        map[string]string
		wantStatus  provider.PaymentStatus
		wantTransID string
		wantMessage string
	}{
		{
			name: "approved",
			data: map[string]string{
				"hash":           validHash,
				"order_id":       "ORD1",
				"amount":         "100.50",
				"status":         "approved",
				"transaction_id": "TX-3",
			},
			wantStatus:  provider.StatusSuccess,
			wantTransID: "TX-3",
		},
		{
			name: "tampered amount",
			data: map[string]string{
				"hash":     validHash,
				"order_id": "ORD1",
				"amount":   "1.00",
				"status":   "success",
			},
			wantStatus:  provider.StatusFailed,
			wantMessage: "Hash doğrulama başarısız",
		},
		{
			name: "declined",
			data: map[string]string{
				"hash":     validHash,
				"order_id": "ORD1",
				"amount":   "100.50",
				"status":   "failed",
				"message":  "Yetersiz bakiye",
			},
			wantStatus:  provider.StatusFailed,
			wantMessage: "Yetersiz bakiye",
		},
	}

	p := newTestProvider(t, "https://api.paymes.com")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response, err := p.HandleCallback(context.Background(), tt.data)
			if err != nil {
				t.Fatalf("HandleCallback() error = %v", err)
			}
			if response.Status != tt.wantStatus {
				t.Errorf("HandleCallback() status = %s, want %s", response.Status, tt.wantStatus)
			}
			if tt.wantTransID != "" && response.TransactionID != tt.wantTransID {
				t.Errorf("HandleCallback() transactionId = %s, want %s", response.TransactionID, tt.wantTransID)
			}
			if tt.wantMessage != "" && response.Message != tt.wantMessage {
				t.Errorf("HandleCallback() message = %s, want %s", response.Message, tt.wantMessage)
			}
		})
	}
}

func TestRefundInvalidAmount(t *testing.T) {
	p := newTestProvider(t, "https://api.paymes.com")
	if _, err := p.Refund(context.Background(), "ORD1", 0, ""); err == nil {
		t.Error("Refund() expected error for zero amount")
	}
}
