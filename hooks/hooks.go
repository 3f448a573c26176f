package hooks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// EventType defines the type of a hook event.
type EventType string

const (
	// EventPreReplayBatch fires before a batch is reduced. An error from a
	// listener aborts that batch and is surfaced as the batch's error.
	EventPreReplayBatch EventType = "PreReplayBatch"
	// EventPostReplayBatch fires after a batch is reduced, successfully or not.
	EventPostReplayBatch EventType = "PostReplayBatch"
	// EventPostReplayComplete fires once when a replay iterator is closed.
	EventPostReplayComplete EventType = "PostReplayComplete"
)

// HookManager defines the interface for managing and triggering hooks.
type HookManager interface {
	// Register adds a listener for a specific event type.
	Register(eventType EventType, listener HookListener)
	// Trigger fires all registered listeners for a given event.
	Trigger(ctx context.Context, event HookEvent) error
	// Stop waits for all asynchronous listeners to complete.
	Stop()
}

// HookEvent is the interface that all event objects must implement.
type HookEvent interface {
	Type() EventType
	Payload() interface{}
}

// BaseEvent provides a base implementation for HookEvent.
type BaseEvent struct {
	eventType EventType
	payload   interface{}
}

func (e *BaseEvent) Type() EventType      { return e.eventType }
func (e *BaseEvent) Payload() interface{} { return e.payload }

// PreReplayBatchPayload describes a batch about to be reduced.
type PreReplayBatchPayload struct {
	Version    int64
	IsLogBatch bool
	Rows       int
}

func NewPreReplayBatchEvent(payload PreReplayBatchPayload) HookEvent {
	return &BaseEvent{eventType: EventPreReplayBatch, payload: payload}
}

// PostReplayBatchPayload summarizes one reduced batch.
type PostReplayBatchPayload struct {
	Version    int64
	IsLogBatch bool
	Adds       int // add rows extracted after filtering
	Removes    int
	Emitted    int
	Err        error
}

func NewPostReplayBatchEvent(payload PostReplayBatchPayload) HookEvent {
	return &BaseEvent{eventType: EventPostReplayBatch, payload: payload}
}

// PostReplayCompletePayload summarizes a whole replay.
type PostReplayCompletePayload struct {
	Batches  int
	Emitted  int
	FirstErr error
}

func NewPostReplayCompleteEvent(payload PostReplayCompletePayload) HookEvent {
	return &BaseEvent{eventType: EventPostReplayComplete, payload: payload}
}

// HookListener receives events from a HookManager.
type HookListener interface {
	// OnEvent is called when a registered event is triggered. An error from a
	// "Pre" hook cancels the operation; errors from "Post" hooks are logged.
	OnEvent(ctx context.Context, event HookEvent) error

	// Priority returns the listener's priority. Lower numbers are executed first.
	Priority() int

	// IsAsync indicates if the listener should be called asynchronously for Post-events.
	IsAsync() bool
}

type listenerWithPriority struct {
	listener HookListener
	priority int
}

// DefaultHookManager is a concrete implementation of HookManager.
type DefaultHookManager struct {
	// listeners per event type, kept sorted by priority.
	listeners map[EventType][]*listenerWithPriority
	mu        sync.RWMutex
	wg        sync.WaitGroup
	logger    *slog.Logger
}

// NewHookManager creates a new DefaultHookManager.
func NewHookManager(logger *slog.Logger) HookManager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &DefaultHookManager{
		listeners: make(map[EventType][]*listenerWithPriority),
		logger:    logger.With("component", "HookManager"),
	}
}

// Register adds a listener, keeping listeners of equal priority in registration order.
func (m *DefaultHookManager) Register(eventType EventType, listener HookListener) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := &listenerWithPriority{listener: listener, priority: listener.Priority()}
	l := m.listeners[eventType]
	idx := sort.Search(len(l), func(i int) bool {
		return l[i].priority > item.priority
	})
	l = append(l, nil)
	copy(l[idx+1:], l[idx:])
	l[idx] = item
	m.listeners[eventType] = l
}

// Trigger fires all registered listeners for a given event in priority order.
// Pre-hooks always run synchronously and stop at the first error.
func (m *DefaultHookManager) Trigger(ctx context.Context, event HookEvent) error {
	m.mu.RLock()
	listeners := m.listeners[event.Type()]
	m.mu.RUnlock()

	if len(listeners) == 0 {
		return nil
	}

	isPreHook := strings.HasPrefix(string(event.Type()), "Pre")
	for _, item := range listeners {
		if isPreHook || !item.listener.IsAsync() {
			if err := item.listener.OnEvent(ctx, event); err != nil {
				if isPreHook {
					return fmt.Errorf("pre-hook for event %s (priority %d) failed: %w", event.Type(), item.priority, err)
				}
				m.logger.Error("Error from synchronous post-hook listener", "event", event.Type(), "priority", item.priority, "error", err)
			}
			continue
		}

		m.wg.Add(1)
		go func(current *listenerWithPriority) {
			defer m.wg.Done()
			if err := current.listener.OnEvent(ctx, event); err != nil {
				m.logger.Error("Error from asynchronous post-hook listener", "event", event.Type(), "priority", current.priority, "error", err)
			}
		}(item)
	}
	return nil
}

// Stop waits for all asynchronous listeners to complete.
func (m *DefaultHookManager) Stop() {
	m.wg.Wait()
}

// ListenerFunc adapts a function into a synchronous HookListener.
type ListenerFunc struct {
	Fn    func(ctx context.Context, event HookEvent) error
	Order int
}

func (l ListenerFunc) OnEvent(ctx context.Context, event HookEvent) error { return l.Fn(ctx, event) }
func (l ListenerFunc) Priority() int                                      { return l.Order }
func (l ListenerFunc) IsAsync() bool                                      { return false }
