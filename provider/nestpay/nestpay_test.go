package nestpay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mstgnz/sanalpos/infra/config"
	"github.com/mstgnz/sanalpos/provider"
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
	}
}

func newTestProvider(t *testing.T) provider.VirtualPos {
	t.Helper()
	p, err := New(testConfig(), "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestNewMissingCredentials(t *testing.T) {
	cfg := testConfig()
	account := cfg.NestPay.Accounts["default"]
	account.StoreKey = ""
	cfg.NestPay.Accounts["default"] = account

	_, err := New(cfg, "")
	if err == nil {
		t.Fatal("New() expected error for missing store key")
	}
	if !strings.Contains(err.Error(), "storeKey") {
		t.Errorf("New() error = %v, want storeKey mentioned", err)
	}
	var confErr *provider.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Errorf("New() error type = %T, want *provider.ConfigurationError", err)
	}
}

func TestNewUnknownAccount(t *testing.T) {
	if _, err := New(testConfig(), "yok"); err == nil {
		t.Fatal("New() expected error for unknown account")
	}
}

func TestHashVer3(t *testing.T) {
	fields := map[string]string{
		"clientid":      "100100000",
		"storetype":     "3D_PAY_HOSTING",
		"amount":        "100.5",
		"oid":           "ORD1",
		"okUrl":         "https://merchant.example/ok",
		"failUrl":       "https://merchant.example/fail",
		"islemtipi":     "Auth",
		"taksit":        "",
		"callbackUrl":   "https://merchant.example/callback",
		"currency":      "949",
		"rnd":           "rnd-123",
		"lang":          "tr",
		"hashalgorithm": "ver3",
		"refreshtime":   "5",
	}

	got := hashVer3(fields, "TEST1234")
	want := "h2Cf5mgVyBEQ38a27TMx5cq75cADYXG6jzW4+9GV6H+rz7Nj/zhqFR1FlkP8nEE6Lvgr0WdGpx3h2igd10uNWQ=="
	if got != want {
		t.Errorf("hashVer3() = %s, want %s", got, want)
	}

	// The hash field itself never enters the plaintext.
	fields["hash"] = got
	if again := hashVer3(fields, "TEST1234"); again != want {
		t.Errorf("hashVer3() with hash field = %s, want %s", again, want)
	}
}

func TestHashVer3Escaping(t *testing.T) {
	fields := map[string]string{
		"a": "x|y",
		"b": `back\slash`,
	}
	got := hashVer3(fields, "key|1")
	want := "UVI+/yRBvEHgxOFeaBBOveRJYx9Gct+Uev+8m9ORkY6xc92XFMl5BxrJqAZ3Pbl1GS1Im2bqAQdapXPFvDiCeA=="
	if got != want {
		t.Errorf("hashVer3() = %s, want %s", got, want)
	}
}

func TestNatCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"amount", "amount", 0},
		{"amount", "clientid", -1},
		{"item2", "item10", -1},
		{"item10", "item2", 1},
		{"item02", "item2", 0},
		{"okurl", "oid", 1},
	}
	for _, tt := range tests {
		got := natCompare(tt.a, tt.b)
		switch {
		case tt.want == 0 && got != 0,
			tt.want < 0 && got >= 0,
			tt.want > 0 && got <= 0:
			t.Errorf("natCompare(%q, %q) = %d, want sign %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestPay3D(t *testing.T) {
	p := newTestProvider(t)

	response, err := p.Pay3D(context.Background(), provider.PaymentRequest{
		OrderID: "ORD1",
		Amount:  100.50,
	})
	if err != nil {
		t.Fatalf("Pay3D() error = %v", err)
	}
	if response.Status != provider.StatusPending {
		t.Errorf("Pay3D() status = %s, want pending", response.Status)
	}
	if response.Success {
		t.Error("Pay3D() success = true, want false for pending")
	}
	if response.HTML == "" {
		t.Fatal("Pay3D() returned no HTML form")
	}
	for _, want := range []string{`name="hash"`, `name="oid"`, `name="islemtipi"`, "100.5", "3D_PAY_HOSTING"} {
		if !strings.Contains(response.HTML, want) {
			t.Errorf("Pay3D() HTML missing %s", want)
		}
	}

	fields, ok := response.RawData.(map[string]string)
	if !ok {
		t.Fatalf("Pay3D() raw data type = %T, want map[string]string", response.RawData)
	}
	if fields["amount"] != "100.5" {
		t.Errorf("Pay3D() amount field = %s, want 100.5", fields["amount"])
	}
	if fields["currency"] != "949" {
		t.Errorf("Pay3D() currency field = %s, want 949", fields["currency"])
	}
	if fields["hash"] == "" {
		t.Fatal("Pay3D() hash field empty")
	}
	if recomputed := hashVer3(fields, "TEST1234"); recomputed != fields["hash"] {
		t.Errorf("Pay3D() hash = %s, recomputed %s", fields["hash"], recomputed)
	}
}

func TestPay3DInvalidInput(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	if _, err := p.Pay3D(ctx, provider.PaymentRequest{Amount: 10}); err == nil {
		t.Error("Pay3D() expected error for empty order id")
	}
	if _, err := p.Pay3D(ctx, provider.PaymentRequest{OrderID: "ORD1"}); err == nil {
		t.Error("Pay3D() expected error for zero amount")
	}
}

func TestHandleCallback(t *testing.T) {
	validHash := "Al4ku4boO98TWFoFNdEVC3v2W+c=" // sha1("ORD1|00|Approved|1" + "TEST1234")

	tests := []struct {
		name        string
		data        map[string]string
		wantStatus  provider.PaymentStatus
		wantMessage string
		wantCode    string
		wantTransID string
	}{
		{
			name: "approved",
			data: map[string]string{
				"HASHPARAMS":     "oid:ProcReturnCode:Response:mdStatus",
				"HASHPARAMSVAL":  "ORD1|00|Approved|1",
				"HASH":           validHash,
				"oid":            "ORD1",
				"mdStatus":       "1",
				"Response":       "Approved",
				"ProcReturnCode": "00",
				"TransId":        "TX-42",
				"amount":         "100.5",
			},
			wantStatus:  provider.StatusSuccess,
			wantTransID: "TX-42",
		},
		{
			name: "missing hash fields",
			data: map[string]string{
				"oid": "ORD1",
			},
			wantStatus:  provider.StatusFailed,
			wantMessage: "Geçersiz callback verisi",
		},
		{
			name: "tampered hash",
			data: map[string]string{
				"HASHPARAMS":    "oid:ProcReturnCode:Response:mdStatus",
				"HASHPARAMSVAL": "ORD1|00|Approved|1",
				"HASH":          "bozuk-hash",
				"oid":           "ORD1",
			},
			wantStatus:  provider.StatusFailed,
			wantMessage: "Hash doğrulama başarısız",
		},
		{
			name: "3d verification failed",
			data: map[string]string{
				"HASHPARAMS":    "oid:ProcReturnCode:Response:mdStatus",
				"HASHPARAMSVAL": "ORD1|00|Approved|1",
				"HASH":          validHash,
				"oid":           "ORD1",
				"mdStatus":      "0",
			},
			wantStatus:  provider.StatusFailed,
			wantMessage: "3D Secure doğrulama başarısız",
			wantCode:    "0",
		},
		{
			name: "declined",
			data: map[string]string{
				"HASHPARAMS":     "oid:ProcReturnCode:Response:mdStatus",
				"HASHPARAMSVAL":  "ORD1|00|Approved|1",
				"HASH":           validHash,
				"oid":            "ORD1",
				"mdStatus":       "1",
				"Response":       "Declined",
				"ProcReturnCode": "99",
				"ErrMsg":         "Kart limiti yetersiz",
			},
			wantStatus:  provider.StatusFailed,
			wantMessage: "Kart limiti yetersiz",
			wantCode:    "99",
		},
	}

	p := newTestProvider(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response, err := p.HandleCallback(context.Background(), tt.data)
			if err != nil {
				t.Fatalf("HandleCallback() error = %v", err)
			}
			if response.Status != tt.wantStatus {
				t.Errorf("HandleCallback() status = %s, want %s", response.Status, tt.wantStatus)
			}
			if tt.wantMessage != "" && response.Message != tt.wantMessage {
				t.Errorf("HandleCallback() message = %s, want %s", response.Message, tt.wantMessage)
			}
			if tt.wantCode != "" && response.ErrorCode != tt.wantCode {
				t.Errorf("HandleCallback() code = %s, want %s", response.ErrorCode, tt.wantCode)
			}
			if tt.wantTransID != "" && response.TransactionID != tt.wantTransID {
				t.Errorf("HandleCallback() transactionId = %s, want %s", response.TransactionID, tt.wantTransID)
			}
		})
	}
}

func TestGetInstallments(t *testing.T) {
	p := newTestProvider(t)
	options, err := p.GetInstallments(context.Background(), 100)
	if err != nil {
		t.Fatalf("GetInstallments() error = %v", err)
	}
	if len(options) != 0 {
		t.Errorf("GetInstallments() = %d options, want 0", len(options))
	}
}
