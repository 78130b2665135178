//go:build !protogen

package catalog

// NewPricing returns nil when gRPC codegen is not enabled; appointments are
// then created with a zero total and pricing happens downstream.
func NewPricing(_ string) (Pricing, error) {
	return nil, nil
}
