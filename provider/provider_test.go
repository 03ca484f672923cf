package provider

import (
	"testing"
)

func TestMaskCardNumber(t *testing.T) {
	tests := []struct {
		name string
		pan  string
		want string
	}{
		{"standard 16 digit", "4111111111111111", "411111******1111"},
		{"spaced input", "4111 1111 1111 1111", "411111******1111"},
		{"amex", "378282246310005", "378282*****0005"},
		{"too short", "41111", "*****"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskCardNumber(tt.pan); got != tt.want {
				t.Errorf("MaskCardNumber(%q) = %q, want %q", tt.pan, got, tt.want)
			}
		})
	}
}

func TestCleanCardNumber(t *testing.T) {
	if got := CleanCardNumber(" 4111 1111\t1111 1111 "); got != "4111111111111111" {
		t.Errorf("CleanCardNumber() = %q", got)
	}
}

func TestNewSuccessResponse(t *testing.T) {
	response := NewSuccessResponse("TX-1", "ORD1", "", nil)
	if !response.Success || response.Status != StatusSuccess {
		t.Errorf("NewSuccessResponse() = %+v", response)
	}
	if response.Message != "Ödeme başarılı" {
		t.Errorf("default message = %s", response.Message)
	}
	if response.PaymentDate == nil {
		t.Error("payment date not set")
	}
}

func TestNewFailedResponse(t *testing.T) {
	response := NewFailedResponse("Kart reddedildi", "05", "ORD1", nil)
	if response.Success || response.Status != StatusFailed {
		t.Errorf("NewFailedResponse() = %+v", response)
	}
	if response.Message != "Kart reddedildi" || response.ErrorMessage != "Kart reddedildi" || response.ErrorCode != "05" {
		t.Errorf("NewFailedResponse() fields = %+v", response)
	}
}

func TestNewPendingResponse(t *testing.T) {
	response := NewPendingResponse("ORD1", "https://3d.example/x", "", nil)
	if response.Success {
		t.Error("pending response must not be marked successful")
	}
	if response.Status != StatusPending || response.RedirectURL != "https://3d.example/x" {
		t.Errorf("NewPendingResponse() = %+v", response)
	}
}

func TestPaymentErrorFormat(t *testing.T) {
	err := &PaymentError{Message: "Kart reddedildi", Code: "05"}
	if got := err.Error(); got != "Kart reddedildi (code: 05)" {
		t.Errorf("Error() = %q", got)
	}

	err = &PaymentError{Message: "Sipariş bulunamadı"}
	if got := err.Error(); got != "Sipariş bulunamadı" {
		t.Errorf("Error() without code = %q", got)
	}
}

func TestConfigurationErrorFormat(t *testing.T) {
	err := NewConfigurationError("bilinmeyen provider: %s", "stripe")
	if got := err.Error(); got != "bilinmeyen provider: stripe" {
		t.Errorf("Error() = %q", got)
	}
}
