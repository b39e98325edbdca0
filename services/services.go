package services

import (
	"context"
	"errors"

	"github.com/yeremiapane/backoffice/realtime"
	"github.com/yeremiapane/backoffice/utils"
)

var (
	ErrOrderNotFound = errors.New("Orden no encontrada")
	ErrEmptyOrder    = errors.New("Sin datos para crear la orden")
	ErrInvalidDate   = utils.ErrInvalidDate
	ErrMissingUser   = errors.New("userId es requerido")
)

// ValidationError carries a message that is safe to show to the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Publisher is the write side of the realtime hub.
type Publisher interface {
	Publish(ctx context.Context, eventType, channel string, userIDs []int64, payload interface{}) (realtime.Event, error)
}

// publish sends a notification. Failures are logged, never returned.
func publish(ctx context.Context, p Publisher, eventType, channel string, userIDs []int64, payload interface{}) {
	if p == nil {
		return
	}
	if _, err := p.Publish(ctx, eventType, channel, userIDs, payload); err != nil {
		utils.ErrorLogger.Errorf("[realtime] failed to publish %s: %v", eventType, err)
	}
}
