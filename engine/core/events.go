package core

// Pipeline event codes.
type EventCode int

const (
	// An asset reached the level a request asked for.
	/* Context usage:
	 * AssetID, Path, Flags
	 */
	EventAssetLoaded EventCode = iota + 1

	// A request ended with a terminal error.
	/* Context usage:
	 * AssetID, Path, Result
	 */
	EventAssetFailed

	// A source file changed on disk and the asset was invalidated.
	/* Context usage:
	 * AssetID, Path
	 */
	EventAssetChanged

	// The last handle to an asset was released.
	EventAssetReleased
)

type EventContext struct {
	AssetID int
	Path    string
	Flags   PhaseFlags
	Result  Result
}

// Should return true if handled.
type FnOnEvent func(code EventCode, sender interface{}, listener interface{}, data EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus dispatches pipeline events synchronously on the caller's thread.
type EventBus struct {
	registered map[EventCode][]*registeredEvent
}

func NewEventBus() *EventBus {
	return &EventBus{registered: make(map[EventCode][]*registeredEvent)}
}

/**
 * Register to listen for when events are sent with the provided code. Events with duplicate
 * listeners will not be registered again and will cause this to return false.
 * @param code The event code to listen for.
 * @param listener The listener instance. Can be nil.
 * @param onEvent The callback invoked when the event code is fired.
 * @returns true if the event is successfully registered; otherwise false.
 */
func (b *EventBus) Register(code EventCode, listener interface{}, onEvent FnOnEvent) bool {
	for _, e := range b.registered[code] {
		if e.listener == listener {
			LogWarn("event %d already has this listener registered", code)
			return false
		}
	}
	b.registered[code] = append(b.registered[code], &registeredEvent{listener: listener, callback: onEvent})
	return true
}

// Unregister removes the listener for code. Returns false if it was not registered.
func (b *EventBus) Unregister(code EventCode, listener interface{}) bool {
	events := b.registered[code]
	for i, e := range events {
		if e.listener == listener {
			b.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * true, the event is considered handled and is not passed on to any more listeners.
 * @returns true if handled, otherwise false.
 */
func (b *EventBus) Fire(code EventCode, sender interface{}, data EventContext) bool {
	for _, e := range b.registered[code] {
		if e.callback(code, sender, e.listener, data) {
			return true
		}
	}
	return false
}

// Shutdown drops every registration.
func (b *EventBus) Shutdown() {
	b.registered = make(map[EventCode][]*registeredEvent)
}
