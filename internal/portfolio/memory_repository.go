package portfolio

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

type userData struct {
	holdings  []Holding
	snapshots []Snapshot
}

type memoryRepository struct {
	mu    sync.RWMutex
	users map[string]*userData
}

// NewMemoryRepository builds an in-memory portfolio store for tests and
// local development. It does not check that users exist.
func NewMemoryRepository() Repository {
	return &memoryRepository{users: make(map[string]*userData)}
}

func (r *memoryRepository) Holdings(_ context.Context, userID string) ([]Holding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Holding{}
	if d, ok := r.users[userID]; ok {
		out = append(out, d.holdings...)
	}
	return out, nil
}

func (r *memoryRepository) AddHolding(_ context.Context, userID string, holding Holding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.data(userID)
	for _, h := range d.holdings {
		if h.CoinID == holding.CoinID {
			return ErrHoldingExists
		}
	}
	d.holdings = append(d.holdings, holding)
	return nil
}

func (r *memoryRepository) RemoveHolding(_ context.Context, userID, coinID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.users[userID]
	if !ok {
		return 0, nil
	}
	for i, h := range d.holdings {
		if h.CoinID == coinID {
			d.holdings = append(d.holdings[:i:i], d.holdings[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (r *memoryRepository) UpdateAmount(_ context.Context, userID, coinID string, amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.users[userID]; ok {
		for i := range d.holdings {
			if d.holdings[i].CoinID == coinID {
				d.holdings[i].Amount = amount
				return nil
			}
		}
	}
	return ErrHoldingNotFound
}

func (r *memoryRepository) Snapshots(_ context.Context, userID string) ([]Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Snapshot{}
	if d, ok := r.users[userID]; ok {
		out = append(out, d.snapshots...)
	}
	return out, nil
}

func (r *memoryRepository) AppendSnapshot(_ context.Context, userID string, snapshot Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.data(userID)
	d.snapshots = append(d.snapshots, snapshot)
	return nil
}

func (r *memoryRepository) data(userID string) *userData {
	d, ok := r.users[userID]
	if !ok {
		d = &userData{}
		r.users[userID] = d
	}
	return d
}
