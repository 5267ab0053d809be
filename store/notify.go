package store

import (
	"context"

	"github.com/angas/awattar-go/types"
)

type OnStateChange func(id string, val any, ack bool)

// Notify calls fn after every successful write to the wrapped store.
type Notify struct {
	types.StateStore
	fn OnStateChange
}

func NewNotify(s types.StateStore, fn OnStateChange) *Notify {
	return &Notify{StateStore: s, fn: fn}
}

func (n *Notify) SetState(ctx context.Context, id string, val any, ack bool) error {
	if err := n.StateStore.SetState(ctx, id, val, ack); err != nil {
		return err
	}
	if n.fn != nil {
		n.fn(id, val, ack)
	}
	return nil
}

func (n *Notify) Trim(ctx context.Context, channel string, keep int) error {
	if t, ok := n.StateStore.(types.StateTrimmer); ok {
		return t.Trim(ctx, channel, keep)
	}
	return nil
}
