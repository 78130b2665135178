package catalog

import (
	"context"
)

// Pricing quotes prices from the service catalog. A nil Pricing is valid and
// means the catalog integration is disabled.
type Pricing interface {
	// TotalPrice returns the summed price of the referenced catalog services
	// as a decimal string.
	TotalPrice(ctx context.Context, serviceRefs []string) (string, error)
}
