package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a notable occurrence during recalculation, published to
// subscribers such as the CLI watch loop.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// PassID is the recalculation pass, if applicable.
	PassID string `json:"pass_id,omitempty"`

	// Cell is the affected cell in Sheet!A1 form, if applicable.
	Cell string `json:"cell,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants.
const (
	EventTypeRecalcCompleted  = "recalc.completed"
	EventTypeCycleDetected    = "cycle.detected"
	EventTypeSpillBlocked     = "spill.blocked"
	EventTypeRowRolledBack    = "table.row_rolled_back"
	EventTypeWorkbookReloaded = "workbook.reloaded"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions. In
// synchronous mode subscribers run on the publishing goroutine, in order.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.EnableAsync {
		ep.buffer = make(chan Event, cfg.BufferSize)
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers. A nil publisher drops
// the event.
func (ep *EventPublisher) Publish(event Event) error {
	if ep == nil || !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishRecalcCompleted publishes the summary of a recalculation pass.
func (ep *EventPublisher) PublishRecalcCompleted(passID, mode string, evaluated, cycles int, duration time.Duration) error {
	level := EventLevelInfo
	if cycles > 0 {
		level = EventLevelWarning
	}
	return ep.Publish(Event{
		Type:    EventTypeRecalcCompleted,
		Source:  "engine",
		PassID:  passID,
		Message: fmt.Sprintf("Recalculation %s evaluated %d cells", passID, evaluated),
		Level:   level,
		Data: map[string]interface{}{
			"mode":      mode,
			"evaluated": evaluated,
			"cycles":    cycles,
			"duration":  duration.Seconds(),
		},
	})
}

// PublishCycleDetected publishes a dependency cycle through cell.
func (ep *EventPublisher) PublishCycleDetected(passID, cell, path string) error {
	return ep.Publish(Event{
		Type:    EventTypeCycleDetected,
		Source:  "engine",
		PassID:  passID,
		Cell:    cell,
		Message: fmt.Sprintf("Circular reference: %s", path),
		Level:   EventLevelWarning,
		Data: map[string]interface{}{
			"path": path,
		},
	})
}

// PublishSpillBlocked publishes a blocked spill at origin.
func (ep *EventPublisher) PublishSpillBlocked(passID, origin, blocker string) error {
	return ep.Publish(Event{
		Type:    EventTypeSpillBlocked,
		Source:  "engine",
		PassID:  passID,
		Cell:    origin,
		Message: fmt.Sprintf("Spill from %s blocked by %s", origin, blocker),
		Level:   EventLevelWarning,
		Data: map[string]interface{}{
			"blocker": blocker,
		},
	})
}

// PublishRowRolledBack publishes a calculated-table row insertion that
// was undone.
func (ep *EventPublisher) PublishRowRolledBack(table, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeRowRolledBack,
		Source:  "tables",
		Message: fmt.Sprintf("Row insertion into %s rolled back: %s", table, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"table":  table,
			"reason": reason,
		},
	})
}

// PublishWorkbookReloaded publishes a reload of a watched document.
func (ep *EventPublisher) PublishWorkbookReloaded(path string) error {
	return ep.Publish(Event{
		Type:    EventTypeWorkbookReloaded,
		Source:  "workbook",
		Message: fmt.Sprintf("Reloaded %s", path),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"path": path,
		},
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// processEvents drains the buffer in async mode.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	for {
		select {
		case event := <-ep.buffer:
			ep.deliverEvent(event)
		case <-ep.ctx.Done():
			for {
				select {
				case event := <-ep.buffer:
					ep.deliverEvent(event)
				default:
					return
				}
			}
		}
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops the publisher, delivering buffered events first.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if ep == nil || !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}
