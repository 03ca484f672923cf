package provider

import "fmt"

// ConfigurationError is a fatal setup defect: missing or empty credentials,
// an unknown provider or account name. It is raised at construction time and
// never retried.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// NewConfigurationError formats a new ConfigurationError.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// PaymentError carries a provider error code and the raw provider payload for
// failures that are expected business outcomes (declined card, unknown
// order).
type PaymentError struct {
	Message string
	Code    string
	RawData any
}

func (e *PaymentError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (code: %s)", e.Message, e.Code)
	}
	return e.Message
}
