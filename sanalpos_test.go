package sanalpos

import (
	"context"
	"errors"
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
					ClientID: "100100000",
					StoreKey: "TEST1234",
					TestURL:  "https://entegrasyon.asseco-see.com.tr/fim/est3Dgate",
				},
			},
		},
	}
}

func TestNew(t *testing.T) {
	service, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if service.Provider() != "nestpay" {
		t.Errorf("Provider() = %s, want nestpay", service.Provider())
	}

	response, err := service.Pay3D(context.Background(), provider.PaymentRequest{OrderID: "ORD1", Amount: 10})
	if err != nil {
		t.Fatalf("Pay3D() error = %v", err)
	}
	if response.Status != provider.StatusPending {
		t.Errorf("Pay3D() status = %s, want pending", response.Status)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Provider = "garanti-sanal"

	_, err := New(cfg)
	if err == nil {
		t.Fatal("New() expected error for unknown provider")
	}
	var confErr *provider.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Errorf("New() error type = %T, want *provider.ConfigurationError", err)
	}
}

func TestNewProviderOverride(t *testing.T) {
	cfg := testConfig()
	cfg.Get724 = config.Get724Config{
		DefaultAccount: "default",
		Accounts: map[string]config.Get724Account{
			"default": {ClientID: "7001", StoreKey: "KEY", Bank: "isbank"},
		},
	}

	service, err := NewProvider(cfg, "get724")
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if service.Provider() != "get724" {
		t.Errorf("Provider() = %s, want get724", service.Provider())
	}
}

func TestProviders(t *testing.T) {
	names := Providers()
	want := map[string]bool{"nestpay": false, "iyzico": false, "paytr": false, "paymes": false, "bkm": false, "get724": false}
	for _, name := range names {
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("Providers() missing %s", name)
		}
	}
}
