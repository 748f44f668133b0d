package service

import (
	"context"
	"time"

	"OptionsOracle/internal/domain/models"
)

// Broker is the order-execution collaborator.
type Broker interface {
	ResolveInstrument(ctx context.Context, index string, strike int, side models.Side, expiry time.Time) (models.Instrument, error)
	SubmitOrder(ctx context.Context, req models.OrderRequest) (models.OrderAck, error)
	// AvailableMargin returns the free margin. Implementations that cannot
	// tell return ErrMarginUnknown.
	AvailableMargin(ctx context.Context) (float64, error)
	PlaceProtectiveExit(ctx context.Context, exit models.ProtectiveExit) (string, error)
}
