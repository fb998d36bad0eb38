// Package settings provides per-merchant configuration with a two-tier
// read-through cache.
package settings

import (
	"context"

	"github.com/replyflow/replyflow/pkg/models"
)

// Provider returns merchant configuration for the pipeline. Invalidate
// exists because correctness-sensitive settings changes (e.g. sensitive
// words) must not wait for TTL expiry.
type Provider interface {
	Get(ctx context.Context, merchantID string) (*models.MerchantSettings, error)
	Invalidate(ctx context.Context, merchantID string) error
}
