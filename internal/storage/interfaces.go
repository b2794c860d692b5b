package storage

import (
	"context"
	"errors"
	"io"

	"github.com/usemate/order-stats-api/internal/models"
)

// ErrNotFound is returned when an order does not exist in the store.
var ErrNotFound = errors.New("order not found")

// OrderStore is the single long-lived owner of persisted Order records.
// Identifiers are matched case-insensitively by every implementation.
type OrderStore interface {
	// FindByID retrieves one order by identifier.
	FindByID(ctx context.Context, id string) (*models.Order, error)

	// FindByStatus retrieves all orders with the given status.
	FindByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error)

	// FindAll retrieves every persisted order.
	FindAll(ctx context.Context) ([]models.Order, error)

	// Insert stores a new order record.
	Insert(ctx context.Context, order *models.Order) error

	// Update replaces the stored record with the given identifier.
	Update(ctx context.Context, id string, order *models.Order) error

	// UpdateFields applies a partial update to the record with the
	// given identifier. Keys use the persisted field names.
	UpdateFields(ctx context.Context, id string, fields map[string]any) error

	// Ping checks if the store is reachable.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	io.Closer
}
