package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Fake is an in-process Gateway for local runs and tests. Intents it creates
// succeed immediately.
type Fake struct {
	mu      sync.Mutex
	intents map[string]Intent
	created []Intent
	Err     error
}

func NewFake() *Fake {
	return &Fake{intents: make(map[string]Intent)}
}

var _ Gateway = (*Fake)(nil)

func (f *Fake) CreateIntent(_ context.Context, amount int64, currency string) (*Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	id := "pi_" + uuid.NewString()
	in := Intent{
		ID:           id,
		ClientSecret: fmt.Sprintf("%s_secret_%s", id, uuid.NewString()[:8]),
		Amount:       amount,
		Currency:     currency,
		Status:       StatusSucceeded,
	}
	f.intents[id] = in
	f.created = append(f.created, in)
	return &in, nil
}

func (f *Fake) GetIntent(_ context.Context, id string) (*Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	in, ok := f.intents[id]
	if !ok {
		return nil, ErrIntentNotFound
	}
	return &in, nil
}

// Put registers an intent, e.g. one with a non-succeeded status.
func (f *Fake) Put(in Intent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents[in.ID] = in
}

// Created returns the intents opened so far, oldest first.
func (f *Fake) Created() []Intent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Intent, len(f.created))
	copy(out, f.created)
	return out
}
