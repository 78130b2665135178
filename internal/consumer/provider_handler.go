package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/arafat-hossain/barberbook/internal/model"
	"github.com/arafat-hossain/barberbook/internal/storage"
)

// TopicProviderUpdated carries provider profile changes from the identity
// service; it keeps the local providers table (and the accepting_bookings
// flag) current.
const TopicProviderUpdated = "identity.provider.updated.v1"

type providerUpdatedPayload struct {
	ProviderID        string `json:"provider_id"`
	DisplayName       string `json:"display_name"`
	AcceptingBookings bool   `json:"accepting_bookings"`
}

// ProviderUpdatedHandler upserts the provider row for each update event.
func ProviderUpdatedHandler(repo *storage.AvailabilityRepository, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var payload providerUpdatedPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			return fmt.Errorf("decode provider update: %w", err)
		}
		if payload.ProviderID == "" {
			return fmt.Errorf("provider update without provider_id")
		}
		err := repo.UpsertProvider(ctx, model.Provider{
			ID:                payload.ProviderID,
			DisplayName:       payload.DisplayName,
			AcceptingBookings: payload.AcceptingBookings,
		})
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "provider synced",
			"provider_id", payload.ProviderID, "accepting_bookings", payload.AcceptingBookings)
		return nil
	}
}
