// Package sanalpos is a payment gateway abstraction for the Turkish virtual
// POS ecosystem. It puts six card-payment providers behind one standardized
// interface: direct payment, 3D Secure, status inquiry, cancel, refund,
// callback verification and installment inquiry all work the same way
// regardless of which bank or PSP sits behind them.
//
// # Supported Providers
//
// Currently supported payment providers:
//   - NestPay: the Asseco EST gateway used by İş Bankası, Garanti, Akbank and Yapı Kredi
//   - İyzico: JSON API with 3D secure, refund, cancellation and installment inquiry
//   - PayTR: iframe-based hosted payment with HMAC-signed tokens
//   - Paymes: JSON API with Basic authentication
//   - BKM Express: the interbank wallet with HMAC header signatures
//   - Get724: the multi-bank EST gateway (Vakıfbank and the NestPay banks)
//
// # Quick Start
//
// Basic usage example:
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//
//	    "github.com/mstgnz/sanalpos"
//	    "github.com/mstgnz/sanalpos/infra/config"
//	    "github.com/mstgnz/sanalpos/provider"
//	)
//
//	func main() {
//	    // Load configuration from environment variables
//	    cfg := config.Load()
//
//	    // Create the service for the configured provider
//	    svc, err := sanalpos.New(cfg)
//	    if err != nil {
//	        panic(err)
//	    }
//
//	    // Start a 3D Secure payment
//	    resp, err := svc.Pay3D(context.Background(), provider.PaymentRequest{
//	        OrderID: "ORD-2024-001",
//	        Amount:  100.50,
//	        Card: provider.CardInfo{
//	            Number:      "5406670000000009",
//	            HolderName:  "Ali Veli",
//	            ExpireMonth: "12",
//	            ExpireYear:  "30",
//	            CVV:         "123",
//	        },
//	        Customer: provider.Customer{
//	            Name:  "Ali Veli",
//	            Email: "ali@example.com",
//	        },
//	    })
//	    if err != nil {
//	        panic(err)
//	    }
//
//	    if resp.Status == provider.StatusPending {
//	        // Serve resp.HTML to the cardholder, or redirect to resp.RedirectURL
//	        fmt.Println(resp.RedirectURL)
//	    }
//	}
//
// # Provider Selection
//
// The active provider comes from the configuration; a different one can be
// requested by name without touching the rest of the call site:
//
//	svc, err := sanalpos.NewProvider(cfg, "paytr")
//
// Multiple merchant accounts per provider are supported. An account id
// selects a non-default account:
//
//	svc, err := sanalpos.New(cfg, "magaza2")
//
// # Configuration
//
// Configuration is bound from environment variables, one prefix per provider:
//
//	VIRTUALPOS_PROVIDER=nestpay
//	VIRTUALPOS_TEST_MODE=true
//	VIRTUALPOS_SUCCESS_URL=https://yourapp.com/ok
//	VIRTUALPOS_FAIL_URL=https://yourapp.com/fail
//	VIRTUALPOS_CALLBACK_URL=https://yourapp.com/callback
//
//	NESTPAY_CLIENT_ID=your-client-id
//	NESTPAY_STORE_KEY=your-store-key
//
//	IYZICO_API_KEY=your-api-key
//	IYZICO_SECRET_KEY=your-secret-key
//
// # HTTP API
//
// The cmd/ service exposes the same operations over REST:
//
//	POST /v1/pay
//	POST /v1/pay3d
//	GET  /v1/status/{orderId}
//	POST /v1/cancel
//	POST /v1/refund
//	POST /v1/callback/{provider}
//	GET  /v1/installments?amount=100.50
//	POST /v1/accounts/{provider}
//	GET  /v1/accounts/{provider}
//	DELETE /v1/accounts/{provider}/{accountId}
//	GET  /v1/logs/{provider}?orderId=ORD-1
//	GET  /v1/stats/{provider}?hours=24
//
// Callback endpoints accept both JSON and the form-urlencoded bodies banks
// post after a 3D Secure flow. Every callback is signature-verified before
// any field is trusted.
//
// # Error Handling
//
// Operations never surface transport failures as Go errors: a failed
// network exchange becomes a failed PaymentResponse carrying the underlying
// message. The error return is reserved for invalid caller input, and
// configuration defects are reported as *provider.ConfigurationError from
// the constructors.
//
// # Contributing
//
// To add a new payment provider:
//
//  1. Implement the provider.VirtualPos interface
//  2. Add the provider package under provider/{provider}/
//  3. Register the provider in provider/{provider}/register.go
//  4. Add comprehensive tests
//
// For more information, visit: https://github.com/mstgnz/sanalpos
package sanalpos
