//go:build protogen

package catalog

import (
	"context"
	"time"

	"github.com/arafat-hossain/barberbook/libs/grpcx"
	catalogv1 "github.com/arafat-hossain/barberbook/protos/gen/catalog/v1"
)

type grpcPricing struct {
	client catalogv1.CatalogServiceClient
}

func NewPricing(addr string) (Pricing, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcPricing{client: catalogv1.NewCatalogServiceClient(conn)}, nil
}

func (p *grpcPricing) TotalPrice(ctx context.Context, serviceRefs []string) (string, error) {
	resp, err := p.client.QuoteServices(ctx, &catalogv1.QuoteServicesRequest{
		ServiceRefs: serviceRefs,
	})
	if err != nil {
		return "", err
	}
	return resp.GetTotalPrice(), nil
}
