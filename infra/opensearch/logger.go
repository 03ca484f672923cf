package opensearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// PaymentLog is the audit record written for every provider operation.
type PaymentLog struct {
	Timestamp     time.Time  `json:"timestamp"`
	Provider      string     `json:"provider"`
	Operation     string     `json:"operation"`
	OrderID       string     `json:"order_id,omitempty"`
	TransactionID string     `json:"transaction_id,omitempty"`
	RequestID     string     `json:"request_id,omitempty"`
	ClientIP      string     `json:"client_ip,omitempty"`
	Amount        float64    `json:"amount,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	Status        string     `json:"status,omitempty"`
	CardMask      string     `json:"card_mask,omitempty"`
	DurationMs    int64      `json:"duration_ms,omitempty"`
	Error         *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo carries provider error details inside a PaymentLog.
type ErrorInfo struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Logger writes payment audit logs to OpenSearch.
type Logger struct {
	client *Client
}

// NewLogger creates a payment logger backed by the given client.
func NewLogger(client *Client) *Logger {
	return &Logger{client: client}
}

// LogPayment indexes a payment log entry. It is a no-op when OpenSearch
// logging is disabled.
func (l *Logger) LogPayment(ctx context.Context, entry PaymentLog) error {
	if l == nil || !l.client.IsEnabled() {
		return nil
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	logData, err := marshalSanitized(entry)
	if err != nil {
		return fmt.Errorf("log kaydı serileştirilemedi: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index:      l.client.LogIndexName(entry.Provider),
		DocumentID: uuid.New().String(),
		Body:       strings.NewReader(logData),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("log kaydı gönderilemedi: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("log kaydı reddedildi: %s", res.String())
	}

	return nil
}

// GetPaymentLogs returns the logs for a single order, newest first.
func (l *Logger) GetPaymentLogs(ctx context.Context, provider, orderID string) ([]PaymentLog, error) {
	query := fmt.Sprintf(`{
		"query": {
			"term": {
				"order_id": %q
			}
		},
		"sort": [{"timestamp": {"order": "desc"}}],
		"size": 100
	}`, orderID)

	return l.search(ctx, provider, query)
}

// GetRecentErrorLogs returns failed operations for a provider within the
// given time window.
func (l *Logger) GetRecentErrorLogs(ctx context.Context, provider string, since time.Duration) ([]PaymentLog, error) {
	query := fmt.Sprintf(`{
		"query": {
			"bool": {
				"must": [
					{"exists": {"field": "error"}},
					{"range": {"timestamp": {"gte": "now-%ds"}}}
				]
			}
		},
		"sort": [{"timestamp": {"order": "desc"}}],
		"size": 100
	}`, int64(since.Seconds()))

	return l.search(ctx, provider, query)
}

// GetProviderStats returns operation counts grouped by status.
func (l *Logger) GetProviderStats(ctx context.Context, provider string, since time.Duration) (map[string]int64, error) {
	query := fmt.Sprintf(`{
		"size": 0,
		"query": {
			"range": {"timestamp": {"gte": "now-%ds"}}
		},
		"aggs": {
			"by_status": {
				"terms": {"field": "status"}
			}
		}
	}`, int64(since.Seconds()))

	req := opensearchapi.SearchRequest{
		Index: []string{l.client.LogIndexName(provider)},
		Body:  strings.NewReader(query),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return nil, fmt.Errorf("istatistik sorgusu başarısız: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("istatistik sorgusu reddedildi: %s", res.String())
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Aggregations struct {
			ByStatus struct {
				Buckets []struct {
					Key      string `json:"key"`
					DocCount int64  `json:"doc_count"`
				} `json:"buckets"`
			} `json:"by_status"`
		} `json:"aggregations"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}

	stats := make(map[string]int64)
	for _, bucket := range parsed.Aggregations.ByStatus.Buckets {
		stats[bucket.Key] = bucket.DocCount
	}
	return stats, nil
}

func (l *Logger) search(ctx context.Context, provider, query string) ([]PaymentLog, error) {
	if l == nil || !l.client.IsEnabled() {
		return nil, nil
	}

	req := opensearchapi.SearchRequest{
		Index: []string{l.client.LogIndexName(provider)},
		Body:  strings.NewReader(query),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return nil, fmt.Errorf("log sorgusu başarısız: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("log sorgusu reddedildi: %s", res.String())
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source PaymentLog `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}

	logs := make([]PaymentLog, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		logs = append(logs, hit.Source)
	}
	return logs, nil
}

// LogSystemEvent indexes an application log entry into the shared
// system log index.
func (l *Logger) LogSystemEvent(ctx context.Context, event any) error {
	if l == nil || !l.client.IsEnabled() {
		return nil
	}

	logData, err := marshalSanitized(event)
	if err != nil {
		return fmt.Errorf("sistem logu serileştirilemedi: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index: "sanalpos-system-logs",
		Body:  strings.NewReader(logData),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("sistem logu gönderilemedi: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("sistem logu reddedildi: %s", res.String())
	}

	return nil
}

// Patterns for fields that must never appear in logs.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)("(?:cardNumber|card_number|pan|number)"\s*:\s*")([^"]*)(")`),
	regexp.MustCompile(`(?i)("(?:cvv|cvc|cvv2|securityCode)"\s*:\s*")([^"]*)(")`),
	regexp.MustCompile(`(?i)("(?:apiKey|api_key|secretKey|secret_key|storeKey|merchantKey|merchant_salt|password)"\s*:\s*")([^"]*)(")`),
	regexp.MustCompile(`(?i)((?:cardNumber|card_number|pan|cvv|cvc)=)([^&\s]+)`),
}

// SanitizeForLog redacts card numbers and credentials from raw
// request/response payloads before they are logged.
func SanitizeForLog(payload string) string {
	sanitized := payload
	for _, pattern := range sensitivePatterns {
		sanitized = pattern.ReplaceAllString(sanitized, "${1}***${3}")
	}
	return sanitized
}

// marshalSanitized serializes a document and redacts any sensitive
// fields before it is handed to the index request.
func marshalSanitized(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return SanitizeForLog(string(data)), nil
}
