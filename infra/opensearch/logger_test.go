package opensearch

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		hidden  []string
		kept    []string
	}{
		{
			name:    "json card number",
			payload: `{"cardNumber":"4111111111111111","cardHolderName":"Ali Veli"}`,
			hidden:  []string{"4111111111111111"},
			kept:    []string{"Ali Veli"},
		},
		{
			name:    "json cvv and snake case",
			payload: `{"card_number":"5406670000000009","cvv":"123","amount":"100.50"}`,
			hidden:  []string{"5406670000000009", `"cvv":"123"`},
			kept:    []string{"100.50"},
		},
		{
			name:    "credentials",
			payload: `{"apiKey":"sk-test-abc","merchant_salt":"topsecret","orderId":"ORD1"}`,
			hidden:  []string{"sk-test-abc", "topsecret"},
			kept:    []string{"ORD1"},
		},
		{
			name:    "form encoded",
			payload: "cardNumber=4111111111111111&cvv=123&orderId=ORD1",
			hidden:  []string{"4111111111111111", "cvv=123"},
			kept:    []string{"orderId=ORD1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeForLog(tt.payload)
			for _, h := range tt.hidden {
				assert.NotContains(t, got, h)
			}
			for _, k := range tt.kept {
				assert.Contains(t, got, k)
			}
		})
	}
}

func TestMarshalSanitized(t *testing.T) {
	event := map[string]any{
		"message": "provider request",
		"fields": map[string]string{
			"cardNumber": "4111111111111111",
			"apiKey":     "sk-live-secret",
			"orderId":    "ORD42",
		},
	}

	got, err := marshalSanitized(event)
	assert.NoError(t, err)
	assert.NotContains(t, got, "4111111111111111")
	assert.NotContains(t, got, "sk-live-secret")
	assert.Contains(t, got, "ORD42")
}

func TestLogIndexName(t *testing.T) {
	c := &Client{}
	if got := c.LogIndexName("paytr"); got != "sanalpos-paytr-logs" {
		t.Errorf("LogIndexName = %q", got)
	}
	if !strings.HasPrefix(c.LogIndexName("nestpay"), "sanalpos-") {
		t.Error("index names should carry the sanalpos prefix")
	}
}

func TestLoggerDisabledIsNoop(t *testing.T) {
	l := NewLogger(&Client{enabled: false})

	err := l.LogPayment(context.Background(), PaymentLog{Provider: "nestpay", Operation: "pay"})
	assert.NoError(t, err)

	logs, err := l.GetPaymentLogs(context.Background(), "nestpay", "ORD1")
	assert.NoError(t, err)
	assert.Nil(t, logs)
}
