package opensearch

import (
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/mstgnz/sanalpos/infra/config"
)

// Config holds the OpenSearch connection settings.
type Config struct {
	URL      string
	Username string
	Password string
	Enabled  bool
}

// ConfigFromEnv reads the OpenSearch settings from the environment.
func ConfigFromEnv() Config {
	return Config{
		URL:      config.GetEnv("OPENSEARCH_URL", "http://localhost:9200"),
		Username: config.GetEnv("OPENSEARCH_USER", ""),
		Password: config.GetEnv("OPENSEARCH_PASS", ""),
		Enabled:  config.GetBoolEnv("OPENSEARCH_ENABLED", false),
	}
}

// Client wraps the OpenSearch client used for payment audit logs.
type Client struct {
	client  *opensearch.Client
	enabled bool
}

// NewClient connects to OpenSearch and makes sure the per-provider log
// indices exist.
func NewClient(cfg Config) (*Client, error) {
	opensearchConfig := opensearch.Config{
		Addresses: []string{cfg.URL},
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // For development/testing
			},
		},
		MaxRetries:    3,
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			return time.Duration(i) * 100 * time.Millisecond
		},
	}
	if cfg.Username != "" && cfg.Password != "" {
		opensearchConfig.Username = cfg.Username
		opensearchConfig.Password = cfg.Password
	}

	client, err := opensearch.NewClient(opensearchConfig)
	if err != nil {
		return nil, err
	}

	osClient := &Client{
		client:  client,
		enabled: cfg.Enabled,
	}

	if osClient.enabled {
		if err := osClient.setupIndices(); err != nil {
			log.Printf("Warning: Failed to setup OpenSearch indices: %v", err)
		}
	}

	return osClient, nil
}

// GetClient returns the underlying OpenSearch client.
func (c *Client) GetClient() *opensearch.Client {
	return c.client
}

// IsEnabled returns whether OpenSearch logging is enabled.
func (c *Client) IsEnabled() bool {
	return c != nil && c.enabled
}

// setupIndices creates the payment log index for every provider.
func (c *Client) setupIndices() error {
	providers := []string{"nestpay", "iyzico", "paytr", "paymes", "bkm", "get724"}

	for _, provider := range providers {
		indexName := c.LogIndexName(provider)

		exists, err := c.indexExists(indexName)
		if err != nil {
			log.Printf("Error checking index %s: %v", indexName, err)
			continue
		}

		if !exists {
			if err := c.createLogIndex(indexName); err != nil {
				log.Printf("Error creating index %s: %v", indexName, err)
				continue
			}
			log.Printf("Created OpenSearch index: %s", indexName)
		}
	}

	return nil
}

func (c *Client) indexExists(indexName string) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{
		Index: []string{indexName},
	}

	res, err := req.Do(nil, c.client)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	return res.StatusCode == 200, nil
}

// createLogIndex creates a payment log index with the field mapping the
// search and statistics queries rely on.
func (c *Client) createLogIndex(indexName string) error {
	mapping := `{
		"mappings": {
			"properties": {
				"timestamp": {
					"type": "date",
					"format": "strict_date_optional_time||epoch_millis"
				},
				"provider": {
					"type": "keyword"
				},
				"operation": {
					"type": "keyword"
				},
				"order_id": {
					"type": "keyword"
				},
				"transaction_id": {
					"type": "keyword"
				},
				"request_id": {
					"type": "keyword"
				},
				"client_ip": {
					"type": "ip"
				},
				"amount": {
					"type": "double"
				},
				"currency": {
					"type": "keyword"
				},
				"status": {
					"type": "keyword"
				},
				"card_mask": {
					"type": "keyword"
				},
				"duration_ms": {
					"type": "integer"
				},
				"error": {
					"type": "object",
					"properties": {
						"code": {
							"type": "keyword"
						},
						"message": {
							"type": "text"
						}
					}
				}
			}
		},
		"settings": {
			"number_of_shards": 1,
			"number_of_replicas": 0
		}
	}`

	req := opensearchapi.IndicesCreateRequest{
		Index: indexName,
		Body:  strings.NewReader(mapping),
	}

	res, err := req.Do(nil, c.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index creation error: %s", res.String())
	}

	return nil
}

// LogIndexName returns the index name for a provider's payment logs.
func (c *Client) LogIndexName(provider string) string {
	return "sanalpos-" + provider + "-logs"
}
