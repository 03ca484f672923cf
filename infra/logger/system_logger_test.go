package logger

import (
	"testing"
)

func TestShouldLog(t *testing.T) {
	tests := []struct {
		minLevel LogLevel
		level    LogLevel
		want     bool
	}{
		{LevelInfo, LevelDebug, false},
		{LevelInfo, LevelInfo, true},
		{LevelInfo, LevelError, true},
		{LevelError, LevelWarn, false},
		{LevelDebug, LevelDebug, true},
		{LevelWarn, LevelFatal, true},
	}

	for _, tt := range tests {
		sl := NewSystemLogger(nil, SystemLoggerConfig{MinLevel: tt.minLevel})
		if got := sl.shouldLog(tt.level); got != tt.want {
			t.Errorf("shouldLog(%s) with min %s = %v, want %v", tt.level, tt.minLevel, got, tt.want)
		}
	}
}

func TestExtractComponent(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"/home/dev/sanalpos/provider/iyzico/iyzico.go", "provider/iyzico"},
		{"/home/dev/sanalpos/handler/payment.go", "handler/payment.go"},
		{"/tmp/other/pkg/file.go", "pkg"},
		{"file.go", "unknown"},
	}

	for _, tt := range tests {
		if got := extractComponent(tt.file); got != tt.want {
			t.Errorf("extractComponent(%q) = %q, want %q", tt.file, got, tt.want)
		}
	}
}

func TestContextLoggerChaining(t *testing.T) {
	sl := NewSystemLogger(nil, SystemLoggerConfig{MinLevel: LevelInfo})

	cl := sl.WithContext(LogContext{Provider: "paytr"}).
		SetOrderID("ORD1").
		SetRequestID("req-123").
		AddField("amount", 100.50)

	if cl.context.Provider != "paytr" {
		t.Errorf("Provider = %q", cl.context.Provider)
	}
	if cl.context.OrderID != "ORD1" {
		t.Errorf("OrderID = %q", cl.context.OrderID)
	}
	if cl.context.RequestID != "req-123" {
		t.Errorf("RequestID = %q", cl.context.RequestID)
	}
	if cl.context.Fields["amount"] != 100.50 {
		t.Errorf("Fields[amount] = %v", cl.context.Fields["amount"])
	}
}
