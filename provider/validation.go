package provider

import (
	"sort"
	"strings"
)

// RequireConfig checks that every listed credential is present and non-blank,
// returning a ConfigurationError naming the first missing field. Adapters
// call this from their constructors so a provider with incomplete credentials
// can never attempt a signed call.
func RequireConfig(providerName string, fields map[string]string) error {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if strings.TrimSpace(fields[key]) == "" {
			return NewConfigurationError("%s %s yapılandırılmamış", providerName, key)
		}
	}
	return nil
}
