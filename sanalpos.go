package sanalpos

import (
	"context"

	"github.com/mstgnz/sanalpos/infra/config"
	"github.com/mstgnz/sanalpos/provider"

	_ "github.com/mstgnz/sanalpos/provider/bkm"
	_ "github.com/mstgnz/sanalpos/provider/get724"
	_ "github.com/mstgnz/sanalpos/provider/iyzico"
	_ "github.com/mstgnz/sanalpos/provider/nestpay"
	_ "github.com/mstgnz/sanalpos/provider/paymes"
	_ "github.com/mstgnz/sanalpos/provider/paytr"
)

// Service is the entry point for applications: a configured provider bound
// to one merchant account. Safe for concurrent use.
type Service struct {
	pos  provider.VirtualPos
	name string
}

// New creates a Service for the provider named in the configuration. An
// optional account id selects a non-default merchant account.
func New(cfg *config.VirtualPos, accountID ...string) (*Service, error) {
	return NewProvider(cfg, cfg.Provider, accountID...)
}

// NewProvider creates a Service for an explicitly named provider,
// overriding the configured one.
func NewProvider(cfg *config.VirtualPos, name string, accountID ...string) (*Service, error) {
	account := ""
	if len(accountID) > 0 {
		account = accountID[0]
	}

	pos, err := provider.Create(name, cfg, account)
	if err != nil {
		return nil, err
	}
	return &Service{pos: pos, name: name}, nil
}

// Provider returns the active provider name.
func (s *Service) Provider() string {
	return s.name
}

// Pay performs a direct (non-3D) payment.
func (s *Service) Pay(ctx context.Context, request provider.PaymentRequest) (*provider.PaymentResponse, error) {
	return s.pos.Pay(ctx, request)
}

// Pay3D starts a 3D Secure payment.
func (s *Service) Pay3D(ctx context.Context, request provider.PaymentRequest) (*provider.PaymentResponse, error) {
	return s.pos.Pay3D(ctx, request)
}

// Status queries the state of an order.
func (s *Service) Status(ctx context.Context, orderID string) (*provider.PaymentResponse, error) {
	return s.pos.Status(ctx, orderID)
}

// Cancel voids an authorization.
func (s *Service) Cancel(ctx context.Context, orderID string, amount float64) (*provider.PaymentResponse, error) {
	return s.pos.Cancel(ctx, orderID, amount)
}

// Refund reverses a captured payment.
func (s *Service) Refund(ctx context.Context, orderID string, amount float64, transactionID string) (*provider.PaymentResponse, error) {
	return s.pos.Refund(ctx, orderID, amount, transactionID)
}

// HandleCallback authenticates and normalizes a provider callback.
func (s *Service) HandleCallback(ctx context.Context, data map[string]string) (*provider.PaymentResponse, error) {
	return s.pos.HandleCallback(ctx, data)
}

// GetInstallments returns the installment options for the given amount.
func (s *Service) GetInstallments(ctx context.Context, amount float64) ([]provider.InstallmentOption, error) {
	return s.pos.GetInstallments(ctx, amount)
}

// Providers returns the names of all registered providers.
func Providers() []string {
	return provider.DefaultRegistry.Names()
}
