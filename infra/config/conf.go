package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CallbackURLs holds the three merchant-side URLs the banks redirect or post
// back to after a 3D Secure flow.
type CallbackURLs struct {
	Success  string `json:"success"`
	Fail     string `json:"fail"`
	Callback string `json:"callback"`
}

// URL returns the URL for the given callback type ("success", "fail",
// "callback"). An unknown type falls back to the callback URL.
func (c CallbackURLs) URL(typ string) string {
	switch typ {
	case "success":
		return c.Success
	case "fail":
		return c.Fail
	default:
		return c.Callback
	}
}

// NestPayAccount holds the credentials and endpoints for one NestPay merchant
// account (İş Bankası, Garanti, Akbank, Yapı Kredi).
type NestPayAccount struct {
	ClientID      string `json:"clientId"`
	ClientName    string `json:"clientName"`
	StoreKey      string `json:"storeKey"`
	StoreType     string `json:"storeType"`
	Bank          string `json:"bank"`
	TestURL       string `json:"testUrl"`
	ProductionURL string `json:"productionUrl"`
}

// IyzicoAccount holds the credentials for one İyzico merchant account.
type IyzicoAccount struct {
	APIKey    string `json:"apiKey"`
	SecretKey string `json:"secretKey"`
	BaseURL   string `json:"baseUrl"`
}

// PayTRAccount holds the credentials for one PayTR merchant account.
type PayTRAccount struct {
	MerchantID    string `json:"merchantId"`
	MerchantKey   string `json:"merchantKey"`
	MerchantSalt  string `json:"merchantSalt"`
	TestURL       string `json:"testUrl"`
	ProductionURL string `json:"productionUrl"`
}

// PaymesAccount holds the credentials for one Paymes merchant account.
type PaymesAccount struct {
	APIKey     string `json:"apiKey"`
	SecretKey  string `json:"secretKey"`
	MerchantID string `json:"merchantId"`
	BaseURL    string `json:"baseUrl"`
}

// BKMAccount holds the credentials for one BKM Express merchant account.
type BKMAccount struct {
	MerchantID string `json:"merchantId"`
	APIKey     string `json:"apiKey"`
	SecretKey  string `json:"secretKey"`
	BaseURL    string `json:"baseUrl"`
}

// Get724Account holds the credentials for one Get724 merchant account. Bank
// selects the gateway integration: the NestPay EST banks (isbank, akbank,
// finansbank, denizbank, kuveytturk, halkbank, anadolubank, ingbank, citibank,
// cardplus, ziraat) share one set of endpoints, vakifbank has its own.
type Get724Account struct {
	ClientID   string `json:"clientId"`
	ClientName string `json:"clientName"`
	StoreKey   string `json:"storeKey"`
	StoreType  string `json:"storeType"`
	Bank       string `json:"bank"`
}

// NestPayConfig groups the configured NestPay accounts.
type NestPayConfig struct {
	DefaultAccount string                    `json:"defaultAccount"`
	Accounts       map[string]NestPayAccount `json:"accounts"`
}

// IyzicoConfig groups the configured İyzico accounts.
type IyzicoConfig struct {
	DefaultAccount string                   `json:"defaultAccount"`
	Accounts       map[string]IyzicoAccount `json:"accounts"`
}

// PayTRConfig groups the configured PayTR accounts.
type PayTRConfig struct {
	DefaultAccount string                  `json:"defaultAccount"`
	Accounts       map[string]PayTRAccount `json:"accounts"`
}

// PaymesConfig groups the configured Paymes accounts.
type PaymesConfig struct {
	DefaultAccount string                   `json:"defaultAccount"`
	Accounts       map[string]PaymesAccount `json:"accounts"`
}

// BKMConfig groups the configured BKM Express accounts.
type BKMConfig struct {
	DefaultAccount string                `json:"defaultAccount"`
	Accounts       map[string]BKMAccount `json:"accounts"`
}

// Get724Config groups the configured Get724 accounts.
type Get724Config struct {
	DefaultAccount string                   `json:"defaultAccount"`
	Accounts       map[string]Get724Account `json:"accounts"`
}

// VirtualPos is the full gateway configuration: the active provider, the
// per-provider account sets and the settings shared by every adapter. It is
// loaded once and treated as immutable afterwards.
type VirtualPos struct {
	// Provider selects the active adapter: nestpay, iyzico, paytr, paymes,
	// bkm, get724.
	Provider string `json:"provider"`

	TestMode bool          `json:"testMode"`
	Currency string        `json:"currency"`
	Language string        `json:"language"`
	Timeout  time.Duration `json:"timeout"`

	CallbackURLs CallbackURLs `json:"callbackUrls"`

	NestPay NestPayConfig `json:"nestpay"`
	Iyzico  IyzicoConfig  `json:"iyzico"`
	PayTR   PayTRConfig   `json:"paytr"`
	Paymes  PaymesConfig  `json:"paymes"`
	BKM     BKMConfig     `json:"bkm"`
	Get724  Get724Config  `json:"get724"`
}

const defaultAccountID = "default"

func resolveAccountID(requested, configured string) string {
	if requested != "" {
		return requested
	}
	if configured != "" {
		return configured
	}
	return defaultAccountID
}

// Account returns the NestPay account for the given id, falling back to the
// configured default account when id is empty.
func (c NestPayConfig) Account(id string) (NestPayAccount, error) {
	accountID := resolveAccountID(id, c.DefaultAccount)
	account, ok := c.Accounts[accountID]
	if !ok {
		return NestPayAccount{}, fmt.Errorf("nestpay account '%s' not found", accountID)
	}
	return account, nil
}

// Account returns the İyzico account for the given id.
func (c IyzicoConfig) Account(id string) (IyzicoAccount, error) {
	accountID := resolveAccountID(id, c.DefaultAccount)
	account, ok := c.Accounts[accountID]
	if !ok {
		return IyzicoAccount{}, fmt.Errorf("iyzico account '%s' not found", accountID)
	}
	return account, nil
}

// Account returns the PayTR account for the given id.
func (c PayTRConfig) Account(id string) (PayTRAccount, error) {
	accountID := resolveAccountID(id, c.DefaultAccount)
	account, ok := c.Accounts[accountID]
	if !ok {
		return PayTRAccount{}, fmt.Errorf("paytr account '%s' not found", accountID)
	}
	return account, nil
}

// Account returns the Paymes account for the given id.
func (c PaymesConfig) Account(id string) (PaymesAccount, error) {
	accountID := resolveAccountID(id, c.DefaultAccount)
	account, ok := c.Accounts[accountID]
	if !ok {
		return PaymesAccount{}, fmt.Errorf("paymes account '%s' not found", accountID)
	}
	return account, nil
}

// Account returns the BKM Express account for the given id.
func (c BKMConfig) Account(id string) (BKMAccount, error) {
	accountID := resolveAccountID(id, c.DefaultAccount)
	account, ok := c.Accounts[accountID]
	if !ok {
		return BKMAccount{}, fmt.Errorf("bkm account '%s' not found", accountID)
	}
	return account, nil
}

// Account returns the Get724 account for the given id.
func (c Get724Config) Account(id string) (Get724Account, error) {
	accountID := resolveAccountID(id, c.DefaultAccount)
	account, ok := c.Accounts[accountID]
	if !ok {
		return Get724Account{}, fmt.Errorf("get724 account '%s' not found", accountID)
	}
	return account, nil
}

// Load builds the configuration from environment variables, binding the
// default account of every provider. Unset values keep their defaults.
func Load() *VirtualPos {
	return &VirtualPos{
		Provider: GetEnv("VIRTUALPOS_PROVIDER", "nestpay"),
		TestMode: GetBoolEnv("VIRTUALPOS_TEST_MODE", true),
		Currency: GetEnv("VIRTUALPOS_CURRENCY", "TRY"),
		Language: GetEnv("VIRTUALPOS_LANGUAGE", "tr"),
		Timeout:  time.Duration(GetIntEnv("VIRTUALPOS_TIMEOUT", 30)) * time.Second,
		CallbackURLs: CallbackURLs{
			Success:  GetEnv("VIRTUALPOS_SUCCESS_URL", ""),
			Fail:     GetEnv("VIRTUALPOS_FAIL_URL", ""),
			Callback: GetEnv("VIRTUALPOS_CALLBACK_URL", ""),
		},
		NestPay: NestPayConfig{
			DefaultAccount: defaultAccountID,
			Accounts: map[string]NestPayAccount{
				defaultAccountID: {
					ClientID:      GetEnv("NESTPAY_CLIENT_ID", ""),
					ClientName:    GetEnv("NESTPAY_CLIENT_NAME", ""),
					StoreKey:      GetEnv("NESTPAY_STORE_KEY", ""),
					StoreType:     GetEnv("NESTPAY_STORE_TYPE", "3D_PAY_HOSTING"),
					Bank:          GetEnv("NESTPAY_BANK", "isbank"),
					TestURL:       GetEnv("NESTPAY_TEST_URL", "https://entegrasyon.asseco-see.com.tr/fim/est3Dgate"),
					ProductionURL: GetEnv("NESTPAY_PRODUCTION_URL", "https://www.muze.com.tr/fim/est3Dgate"),
				},
			},
		},
		Iyzico: IyzicoConfig{
			DefaultAccount: defaultAccountID,
			Accounts: map[string]IyzicoAccount{
				defaultAccountID: {
					APIKey:    GetEnv("IYZICO_API_KEY", ""),
					SecretKey: GetEnv("IYZICO_SECRET_KEY", ""),
					BaseURL:   GetEnv("IYZICO_BASE_URL", "https://api.iyzipay.com"),
				},
			},
		},
		PayTR: PayTRConfig{
			DefaultAccount: defaultAccountID,
			Accounts: map[string]PayTRAccount{
				defaultAccountID: {
					MerchantID:    GetEnv("PAYTR_MERCHANT_ID", ""),
					MerchantKey:   GetEnv("PAYTR_MERCHANT_KEY", ""),
					MerchantSalt:  GetEnv("PAYTR_MERCHANT_SALT", ""),
					TestURL:       GetEnv("PAYTR_TEST_URL", "https://www.paytr.com/odeme"),
					ProductionURL: GetEnv("PAYTR_PRODUCTION_URL", "https://www.paytr.com/odeme"),
				},
			},
		},
		Paymes: PaymesConfig{
			DefaultAccount: defaultAccountID,
			Accounts: map[string]PaymesAccount{
				defaultAccountID: {
					APIKey:     GetEnv("PAYMES_API_KEY", ""),
					SecretKey:  GetEnv("PAYMES_SECRET_KEY", ""),
					MerchantID: GetEnv("PAYMES_MERCHANT_ID", ""),
					BaseURL:    GetEnv("PAYMES_BASE_URL", "https://api.paymes.com"),
				},
			},
		},
		BKM: BKMConfig{
			DefaultAccount: defaultAccountID,
			Accounts: map[string]BKMAccount{
				defaultAccountID: {
					MerchantID: GetEnv("BKM_MERCHANT_ID", ""),
					APIKey:     GetEnv("BKM_API_KEY", ""),
					SecretKey:  GetEnv("BKM_SECRET_KEY", ""),
					BaseURL:    GetEnv("BKM_BASE_URL", "https://www.bkmexpress.com.tr"),
				},
			},
		},
		Get724: Get724Config{
			DefaultAccount: defaultAccountID,
			Accounts: map[string]Get724Account{
				defaultAccountID: {
					ClientID:   GetEnv("GET724_CLIENT_ID", ""),
					ClientName: GetEnv("GET724_CLIENT_NAME", ""),
					StoreKey:   GetEnv("GET724_STORE_KEY", ""),
					StoreType:  GetEnv("GET724_STORE_TYPE", "3d"),
					Bank:       GetEnv("GET724_BANK", "isbank"),
				},
			},
		},
	}
}

// ApplyStoredAccounts merges accounts persisted by AccountStorage into the
// typed per-provider account maps. Keys follow the storage layout
// "provider_accountID". Stored credentials win over env-bound ones. Called
// at startup, before the configuration is shared.
func (c *VirtualPos) ApplyStoredAccounts(stored map[string]map[string]string) error {
	for key, credentials := range stored {
		parts := strings.SplitN(key, "_", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid stored account key: %s", key)
		}
		if err := c.ApplyStoredAccount(parts[0], parts[1], credentials); err != nil {
			return err
		}
	}
	return nil
}

// ApplyStoredAccount binds one credential map onto a provider account. The
// map keys are the account struct's JSON field names (clientId, storeKey,
// apiKey, ...).
func (c *VirtualPos) ApplyStoredAccount(providerName, accountID string, credentials map[string]string) error {
	data, err := json.Marshal(credentials)
	if err != nil {
		return fmt.Errorf("invalid credentials for %s/%s: %w", providerName, accountID, err)
	}

	switch providerName {
	case "nestpay":
		var account NestPayAccount
		if err := json.Unmarshal(data, &account); err != nil {
			return err
		}
		if c.NestPay.Accounts == nil {
			c.NestPay.Accounts = make(map[string]NestPayAccount)
		}
		c.NestPay.Accounts[accountID] = account
	case "iyzico":
		var account IyzicoAccount
		if err := json.Unmarshal(data, &account); err != nil {
			return err
		}
		if c.Iyzico.Accounts == nil {
			c.Iyzico.Accounts = make(map[string]IyzicoAccount)
		}
		c.Iyzico.Accounts[accountID] = account
	case "paytr":
		var account PayTRAccount
		if err := json.Unmarshal(data, &account); err != nil {
			return err
		}
		if c.PayTR.Accounts == nil {
			c.PayTR.Accounts = make(map[string]PayTRAccount)
		}
		c.PayTR.Accounts[accountID] = account
	case "paymes":
		var account PaymesAccount
		if err := json.Unmarshal(data, &account); err != nil {
			return err
		}
		if c.Paymes.Accounts == nil {
			c.Paymes.Accounts = make(map[string]PaymesAccount)
		}
		c.Paymes.Accounts[accountID] = account
	case "bkm":
		var account BKMAccount
		if err := json.Unmarshal(data, &account); err != nil {
			return err
		}
		if c.BKM.Accounts == nil {
			c.BKM.Accounts = make(map[string]BKMAccount)
		}
		c.BKM.Accounts[accountID] = account
	case "get724":
		var account Get724Account
		if err := json.Unmarshal(data, &account); err != nil {
			return err
		}
		if c.Get724.Accounts == nil {
			c.Get724.Accounts = make(map[string]Get724Account)
		}
		c.Get724.Accounts[accountID] = account
	default:
		return fmt.Errorf("unknown provider in stored account: %s", providerName)
	}

	return nil
}

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a default value.
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a default value.
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
