package event

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"dasa-hub/internal/model"
)

const (
	EventEntityCreated  = "entity.created"
	EventEntityResolved = "entity.resolved"
)

// EntityCreated is published after a source entity has been persisted.
type EntityCreated struct {
	Source     model.Source `json:"-"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// EntityResolved is published once per false->true transition of an
// entity's closure state.
type EntityResolved struct {
	Ref        model.SourceRef `json:"ref"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type Handler func(ctx context.Context, payload any) error

// Bus dispatches synchronously: Publish returns after every handler ran,
// joining their errors. A panicking handler is reported as an error.
type Bus struct {
	handlers sync.Map
	mu       sync.Mutex
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(event string, handler Handler) {
	if b == nil || handler == nil {
		return
	}

	eventName := strings.TrimSpace(event)
	if eventName == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := make([]Handler, 0, 1)
	if current, ok := b.handlers.Load(eventName); ok {
		if casted, valid := current.([]Handler); valid {
			handlers = append(handlers, casted...)
		}
	}
	handlers = append(handlers, handler)
	b.handlers.Store(eventName, handlers)
}

func (b *Bus) Publish(ctx context.Context, event string, payload any) error {
	if b == nil {
		return nil
	}

	eventName := strings.TrimSpace(event)
	if eventName == "" {
		return nil
	}

	current, ok := b.handlers.Load(eventName)
	if !ok {
		return nil
	}

	handlers, ok := current.([]Handler)
	if !ok || len(handlers) == 0 {
		return nil
	}

	var errs []error
	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		if err := invoke(ctx, eventName, handler, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func invoke(ctx context.Context, event string, handler Handler, payload any) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%s handler panic: %v", event, recovered)
		}
	}()
	return handler(ctx, payload)
}
