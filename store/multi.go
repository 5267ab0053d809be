package store

import (
	"context"
	"fmt"

	"github.com/angas/awattar-go/types"
)

// Multi writes to several stores in order. The first failing store aborts the call.
type Multi struct {
	stores []types.StateStore
}

func NewMulti(stores ...types.StateStore) *Multi {
	return &Multi{stores: stores}
}

func (m *Multi) SetObjectNotExists(ctx context.Context, id string, obj types.StateObject) error {
	for i, s := range m.stores {
		if err := s.SetObjectNotExists(ctx, id, obj); err != nil {
			return fmt.Errorf("store %d, declaring %s: %w", i, id, err)
		}
	}
	return nil
}

func (m *Multi) SetState(ctx context.Context, id string, val any, ack bool) error {
	for i, s := range m.stores {
		if err := s.SetState(ctx, id, val, ack); err != nil {
			return fmt.Errorf("store %d, writing %s: %w", i, id, err)
		}
	}
	return nil
}

// Trim forwards to every store that supports trimming.
func (m *Multi) Trim(ctx context.Context, channel string, keep int) error {
	for i, s := range m.stores {
		if t, ok := s.(types.StateTrimmer); ok {
			if err := t.Trim(ctx, channel, keep); err != nil {
				return fmt.Errorf("store %d, trimming %s: %w", i, channel, err)
			}
		}
	}
	return nil
}
