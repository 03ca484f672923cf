package provider

import (
	"context"
	"strings"
	"time"
)

// PaymentStatus represents the normalized outcome of a payment operation.
type PaymentStatus string

const (
	StatusSuccess   PaymentStatus = "success"
	StatusFailed    PaymentStatus = "failed"
	StatusPending   PaymentStatus = "pending"
	StatusCancelled PaymentStatus = "cancelled"
)

// Address represents a billing or shipping address.
type Address struct {
	Address string `json:"address"`
	City    string `json:"city"`
	Country string `json:"country"`
	ZipCode string `json:"zipCode,omitempty"`
}

// Customer represents the buyer information.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone,omitempty"`
}

// CardInfo represents credit card information. It is transient: it exists
// only for the duration of one outbound call and must never be logged or
// echoed back in RawData.
type CardInfo struct {
	Number      string `json:"number"`
	HolderName  string `json:"holderName"`
	ExpireMonth string `json:"expireMonth"`
	ExpireYear  string `json:"expireYear"`
	CVV         string `json:"cvv"`
}

// Item represents one basket line.
type Item struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Code     string  `json:"code,omitempty"`
}

// InstallmentOption represents one split-payment option offered to the
// cardholder.
type InstallmentOption struct {
	Count      int     `json:"count"`
	Monthly    float64 `json:"monthly,omitempty"`
	Total      float64 `json:"total,omitempty"`
	CardFamily string  `json:"cardFamily,omitempty"`
}

// PaymentRequest contains all information required to start a payment. The
// order id must be unique per attempt; the caller owns uniqueness.
type PaymentRequest struct {
	OrderID         string            `json:"orderId" validate:"required"`
	Amount          float64           `json:"amount" validate:"required,gt=0"`
	Currency        string            `json:"currency,omitempty"`
	Language        string            `json:"language,omitempty"`
	Card            CardInfo          `json:"card"`
	Installment     int               `json:"installment,omitempty"`
	Customer        Customer          `json:"customer"`
	BillingAddress  *Address          `json:"billingAddress,omitempty"`
	ShippingAddress *Address          `json:"shippingAddress,omitempty"`
	Items           []Item            `json:"items,omitempty"`
	Description     string            `json:"description,omitempty"`
	ClientIP        string            `json:"clientIp,omitempty"`
	MetaData        map[string]string `json:"metaData,omitempty"`
}

// PaymentResponse contains the normalized result of a payment operation.
// Success is true if and only if Status is StatusSuccess; a pending response
// always carries a redirect URL, HTML content or both.
type PaymentResponse struct {
	Success       bool              `json:"success"`
	Status        PaymentStatus     `json:"status"`
	TransactionID string            `json:"transactionId,omitempty"`
	OrderID       string            `json:"orderId,omitempty"`
	Message       string            `json:"message,omitempty"`
	ErrorCode     string            `json:"errorCode,omitempty"`
	ErrorMessage  string            `json:"errorMessage,omitempty"`
	RedirectURL   string            `json:"redirectUrl,omitempty"`
	HTML          string            `json:"html,omitempty"`
	RawData       any               `json:"rawData,omitempty"`
	Amount        float64           `json:"amount,omitempty"`
	Currency      string            `json:"currency,omitempty"`
	CardMask      string            `json:"cardMask,omitempty"`
	Installment   int               `json:"installment,omitempty"`
	PaymentDate   *time.Time        `json:"paymentDate,omitempty"`
	MetaData      map[string]string `json:"metaData,omitempty"`
}

// NewSuccessResponse builds a successful payment response.
func NewSuccessResponse(transactionID, orderID, message string, rawData any) *PaymentResponse {
	if message == "" {
		message = "Ödeme başarılı"
	}
	now := time.Now()
	return &PaymentResponse{
		Success:       true,
		Status:        StatusSuccess,
		TransactionID: transactionID,
		OrderID:       orderID,
		Message:       message,
		RawData:       rawData,
		PaymentDate:   &now,
	}
}

// NewFailedResponse builds a failed payment response.
func NewFailedResponse(errorMessage, errorCode, orderID string, rawData any) *PaymentResponse {
	return &PaymentResponse{
		Success:      false,
		Status:       StatusFailed,
		OrderID:      orderID,
		Message:      errorMessage,
		ErrorMessage: errorMessage,
		ErrorCode:    errorCode,
		RawData:      rawData,
	}
}

// NewPendingResponse builds a pending response for redirect-based 3D Secure
// flows. At least one of redirectURL and html must be set by the caller.
func NewPendingResponse(orderID, redirectURL, html string, rawData any) *PaymentResponse {
	return &PaymentResponse{
		Success:     false,
		Status:      StatusPending,
		OrderID:     orderID,
		RedirectURL: redirectURL,
		HTML:        html,
		RawData:     rawData,
	}
}

// VirtualPos is the capability contract every payment provider implements.
//
// Operations never return transport failures as Go errors: a failed network
// exchange becomes a failed PaymentResponse carrying the underlying message.
// The error return is reserved for invalid caller input (empty order id,
// non-positive amount). Configuration defects surface earlier, from the
// provider constructor, as *ConfigurationError.
//
// A constructed provider holds no mutable state and is safe for concurrent
// use.
type VirtualPos interface {
	// Pay performs a direct (non-3D) authorization. Providers whose protocol
	// only supports redirect-based payment delegate to Pay3D.
	Pay(ctx context.Context, request PaymentRequest) (*PaymentResponse, error)

	// Pay3D initiates a 3D Secure flow. On acceptance the response is pending
	// and carries a redirect URL and/or a self-submitting HTML form.
	Pay3D(ctx context.Context, request PaymentRequest) (*PaymentResponse, error)

	// Status queries the current state of a previously submitted order.
	Status(ctx context.Context, orderID string) (*PaymentResponse, error)

	// Cancel voids an authorization. A zero amount voids the full amount.
	Cancel(ctx context.Context, orderID string, amount float64) (*PaymentResponse, error)

	// Refund reverses a captured payment.
	Refund(ctx context.Context, orderID string, amount float64, transactionID string) (*PaymentResponse, error)

	// HandleCallback authenticates and normalizes an inbound webhook or
	// redirect-back payload. The provider signature is verified before any
	// field is trusted; a mismatch always yields a failed response.
	HandleCallback(ctx context.Context, data map[string]string) (*PaymentResponse, error)

	// GetInstallments returns the installment options for the given amount.
	// Providers without an installment endpoint return an empty list.
	GetInstallments(ctx context.Context, amount float64) ([]InstallmentOption, error)
}

// CleanCardNumber strips whitespace from a card number.
func CleanCardNumber(cardNumber string) string {
	return strings.Join(strings.Fields(cardNumber), "")
}

// MaskCardNumber keeps the first six and last four digits of a PAN, the only
// form allowed in responses and logs.
func MaskCardNumber(cardNumber string) string {
	cardNumber = CleanCardNumber(cardNumber)
	if len(cardNumber) < 10 {
		return strings.Repeat("*", len(cardNumber))
	}
	return cardNumber[:6] + strings.Repeat("*", len(cardNumber)-10) + cardNumber[len(cardNumber)-4:]
}
