package nestpay

import (
	"github.com/mstgnz/sanalpos/infra/config"
	"github.com/mstgnz/sanalpos/provider"
)

func init() {
	provider.Register("nestpay", func(cfg *config.VirtualPos, accountID string) (provider.VirtualPos, error) {
		return New(cfg, accountID)
	})
}
