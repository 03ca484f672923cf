package paytr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mstgnz/sanalpos/infra/config"
	"github.com/mstgnz/sanalpos/provider"
)

func testConfig(tokenURL string) *config.VirtualPos {
	return &config.VirtualPos{
		Provider: "paytr",
		TestMode: true,
		Currency: "TRY",
		Language: "tr",
		Timeout:  10 * time.Second,
		CallbackURLs: config.CallbackURLs{
			Success:  "https://merchant.example/ok",
			Fail:     "https://merchant.example/fail",
			Callback: "https://merchant.example/callback",
		},
		PayTR: config.PayTRConfig{
			DefaultAccount: "default",
			Accounts: map[string]config.PayTRAccount{
				"default": {
					MerchantID:    "MID1",
					MerchantKey:   "test-key",
					MerchantSalt:  "test-salt",
					TestURL:       tokenURL,
					ProductionURL: tokenURL,
				},
			},
		},
	}
}

func newTestProvider(t *testing.T, tokenURL string) provider.VirtualPos {
	t.Helper()
	p, err := New(testConfig(tokenURL), "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestNewMissingCredentials(t *testing.T) {
	cfg := testConfig("https://www.paytr.com/odeme")
	account := cfg.PayTR.Accounts["default"]
	account.MerchantSalt = ""
	cfg.PayTR.Accounts["default"] = account

	_, err := New(cfg, "")
	if err == nil {
		t.Fatal("New() expected error for missing merchant salt")
	}
	if !strings.Contains(err.Error(), "merchantSalt") {
		t.Errorf("New() error = %v", err)
	}
}

func TestBasketB64(t *testing.T) {
	got := basketB64(provider.PaymentRequest{OrderID: "ORD1", Amount: 100.50})
	want := "W1siw5ZkZW1lIiwiMTAwLjUwIiwxXV0=" // [["Ödeme","100.50",1]]
	if got != want {
		t.Errorf("basketB64() = %s, want %s", got, want)
	}
}

func TestPay3D(t *testing.T) {
	var form map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm() error = %v", err)
		}
		form = map[string]string{}
		for key := range r.PostForm {
			form[key] = r.PostForm.Get(key)
		}
		w.Write([]byte("status=success&token=tok123"))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	response, err := p.Pay3D(context.Background(), provider.PaymentRequest{
		OrderID:  "ORD1",
		Amount:   100.50,
		ClientIP: "10.0.0.1",
		Customer: provider.Customer{Name: "Ad Soyad", Email: "ad@example.com"},
	})
	if err != nil {
		t.Fatalf("Pay3D() error = %v", err)
	}
	if response.Status != provider.StatusPending {
		t.Errorf("Pay3D() status = %s, want pending", response.Status)
	}
	if response.RedirectURL != "https://www.paytr.com/odeme/guvenli/tok123" {
		t.Errorf("Pay3D() redirect = %s", response.RedirectURL)
	}
	if !strings.Contains(response.HTML, `<iframe src="https://www.paytr.com/odeme/guvenli/tok123"`) {
		t.Errorf("Pay3D() html = %s", response.HTML)
	}

	if form["payment_amount"] != "10050" {
		t.Errorf("payment_amount = %s, want 10050", form["payment_amount"])
	}
	if form["currency"] != "TL" {
		t.Errorf("currency = %s, want TL", form["currency"])
	}
	if form["no_installment"] != "1" || form["max_installment"] != "0" {
		t.Errorf("installment fields = %s/%s", form["no_installment"], form["max_installment"])
	}

	pt := &PayTR{account: testConfig(server.URL).PayTR.Accounts["default"]}
	wantToken := pt.token("10.0.0.1", "ORD1", "ad@example.com", 10050, form["user_basket"], 0, "TL")
	if form["paytr_token"] != wantToken {
		t.Errorf("paytr_token = %s, want %s", form["paytr_token"], wantToken)
	}
}

func TestPay3DRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"failed","reason":"Kimlik doğrulanamadı"}`))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	response, err := p.Pay3D(context.Background(), provider.PaymentRequest{OrderID: "ORD1", Amount: 50})
	if err != nil {
		t.Fatalf("Pay3D() error = %v", err)
	}
	if response.Status != provider.StatusFailed || response.Message != "Kimlik doğrulanamadı" {
		t.Errorf("Pay3D() = %+v", response)
	}
}

func TestHandleCallback(t *testing.T) {
	tests := []struct {
		name        string
		data        map[string]string
		wantStatus  provider.PaymentStatus
		wantTransID string
		wantMessage string
		wantCode    string
	}{
		{
			name: "success with payment id",
			data: map[string]string{
				"merchant_oid": "X1",
				"status":       "success",
				"total_amount": "150",
				"hash":         "VIvBVMVTysK2jmAEYiLChn+aMXmkxQV60clMq/wsRBo=",
				"payment_id":   "P-9",
			},
			wantStatus:  provider.StatusSuccess,
			wantTransID: "P-9",
		},
		{
			name: "success falls back to merchant oid",
			data: map[string]string{
				"merchant_oid": "X1",
				"status":       "success",
				"total_amount": "150",
				"hash":         "VIvBVMVTysK2jmAEYiLChn+aMXmkxQV60clMq/wsRBo=",
			},
			wantStatus:  provider.StatusSuccess,
			wantTransID: "X1",
		},
		{
			name: "tampered hash",
			data: map[string]string{
				"merchant_oid": "X1",
				"status":       "success",
				"total_amount": "151",
				"hash":         "VIvBVMVTysK2jmAEYiLChn+aMXmkxQV60clMq/wsRBo=",
			},
			wantStatus:  provider.StatusFailed,
			wantMessage: "Hash doğrulama başarısız",
		},
		{
			name: "failed payment",
			data: map[string]string{
				"merchant_oid":       "X1",
				"status":             "failed",
				"total_amount":       "150",
				"hash":               "HVp+pd/i5ePinKUksCa6ft8NK/+qxjMUz58m4LHzvZQ=",
				"failed_reason_code": "6",
				"failed_reason_msg":  "Kart reddedildi",
			},
			wantStatus:  provider.StatusFailed,
			wantMessage: "Kart reddedildi",
			wantCode:    "6",
		},
	}

	p := newTestProvider(t, "https://www.paytr.com/odeme")
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
			if tt.wantCode != "" && response.ErrorCode != tt.wantCode {
				t.Errorf("HandleCallback() code = %s, want %s", response.ErrorCode, tt.wantCode)
			}
		})
	}
}

func TestRefundHash(t *testing.T) {
	p := &PayTR{account: config.PayTRAccount{
		MerchantID:   "MID1",
		MerchantKey:  "test-key",
		MerchantSalt: "test-salt",
	}}

	// merchantId + merchant_oid + return_amount + salt, HMAC under the key.
	got := p.sign("MID1" + "ORD1" + strconv.FormatInt(provider.AmountToMinorUnits(50), 10) + "test-salt")
	want := "JLvcZv72XV7TRZx+o3XCfzNFeLkUAjYX2v1i08JuIRQ="
	if got != want {
		t.Errorf("sign() = %s, want %s", got, want)
	}
}

func TestStatusUnsupported(t *testing.T) {
	p := newTestProvider(t, "https://www.paytr.com/odeme")
	response, err := p.Status(context.Background(), "ORD1")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if response.Status != provider.StatusFailed || response.ErrorCode != "unsupported" {
		t.Errorf("Status() = %+v", response)
	}
}

func TestCancelUnsupported(t *testing.T) {
	p := newTestProvider(t, "https://www.paytr.com/odeme")
	response, err := p.Cancel(context.Background(), "ORD1", 0)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if response.Status != provider.StatusFailed || response.ErrorCode != "unsupported" {
		t.Errorf("Cancel() = %+v", response)
	}
}
