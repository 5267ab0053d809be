package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/angas/awattar-go/types"
)

type State struct {
	Val       any       `json:"val" yaml:"val"`
	Ack       bool      `json:"ack" yaml:"ack"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Memory is an in-memory state tree.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]types.StateObject
	states  map[string]State
}

func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string]types.StateObject),
		states:  make(map[string]State),
	}
}

func (m *Memory) SetObjectNotExists(_ context.Context, id string, obj types.StateObject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.objects[id]; !exists {
		m.objects[id] = obj
	}
	return nil
}

func (m *Memory) SetState(_ context.Context, id string, val any, ack bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[id] = State{Val: val, Ack: ack, UpdatedAt: time.Now()}
	return nil
}

func (m *Memory) Trim(_ context.Context, channel string, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.objects {
		if IsStale(channel, id, keep) {
			delete(m.objects, id)
		}
	}
	for id := range m.states {
		if IsStale(channel, id, keep) {
			delete(m.states, id)
		}
	}
	return nil
}

func (m *Memory) Object(id string) (types.StateObject, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[id]
	return obj, ok
}

func (m *Memory) State(id string) (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[id]
	return s, ok
}

// Ids returns all declared ids with the given prefix, sorted.
func (m *Memory) Ids(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0)
	for id := range m.objects {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// States returns a copy of all values with the given prefix.
func (m *Memory) States(prefix string) map[string]State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]State)
	for id, s := range m.states {
		if strings.HasPrefix(id, prefix) {
			result[id] = s
		}
	}
	return result
}
