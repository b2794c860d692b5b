package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/usemate/order-stats-api/internal/models"
)

// MemoryStore keeps orders in process memory behind the same OrderStore
// contract as the Mongo implementation. It backs tests and local runs
// without a database.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]models.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]models.Order)}
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[models.NormalizeID(id)]
	if !ok {
		return nil, ErrNotFound
	}
	out := order
	return &out, nil
}

func (s *MemoryStore) FindByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Order{}
	for _, order := range s.orders {
		if order.Status == status {
			out = append(out, order)
		}
	}
	return out, nil
}

func (s *MemoryStore) FindAll(ctx context.Context) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Order, 0, len(s.orders))
	for _, order := range s.orders {
		out = append(out, order)
	}
	return out, nil
}

func (s *MemoryStore) Insert(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := models.NormalizeID(order.ID)
	if _, ok := s.orders[id]; ok {
		return fmt.Errorf("order %s already exists", id)
	}
	doc := *order
	doc.ID = id
	s.orders[id] = doc
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.NormalizeID(id)
	if _, ok := s.orders[key]; !ok {
		return ErrNotFound
	}
	doc := *order
	doc.ID = key
	s.orders[key] = doc
	return nil
}

func (s *MemoryStore) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.NormalizeID(id)
	order, ok := s.orders[key]
	if !ok {
		return ErrNotFound
	}
	for name, value := range fields {
		if err := applyField(&order, name, value); err != nil {
			return err
		}
	}
	s.orders[key] = order
	return nil
}

func applyField(order *models.Order, name string, value any) error {
	switch name {
	case "status":
		switch v := value.(type) {
		case models.OrderStatus:
			order.Status = v
		case string:
			order.Status = models.OrderStatus(v)
		default:
			return fmt.Errorf("field %s: unexpected type %T", name, value)
		}
		return nil
	case "canceledTimestamp":
		return setString(&order.CanceledTimestamp, name, value)
	case "canceledBlockNumber":
		return setString(&order.CanceledBlockNumber, name, value)
	case "executedTimestamp":
		return setString(&order.ExecutedTimestamp, name, value)
	case "executedBlockNumber":
		return setString(&order.ExecutedBlockNumber, name, value)
	case "executedTransactionHash":
		return setString(&order.ExecutedTransactionHash, name, value)
	case "recievedAmount":
		return setString(&order.RecievedAmount, name, value)
	case "isIgnored":
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("field %s: unexpected type %T", name, value)
		}
		order.IsIgnored = v
		return nil
	default:
		return fmt.Errorf("unsupported field %s", name)
	}
}

func setString(dst *string, name string, value any) error {
	v, ok := value.(string)
	if !ok {
		return fmt.Errorf("field %s: unexpected type %T", name, value)
	}
	*dst = v
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
