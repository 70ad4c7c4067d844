package core

import "sync"

// Resource event codes. Applications should use codes beyond 255.
type SystemEventCode int

const (
	// A source file was imported successfully.
	/* Context usage:
	 * path = context.Path
	 */
	EVENT_CODE_RESOURCE_IMPORTED SystemEventCode = 0x01

	// An import attempt failed; the resource may now be broken.
	/* Context usage:
	 * path = context.Path
	 * err  = context.Err
	 */
	EVENT_CODE_RESOURCE_IMPORT_FAILED SystemEventCode = 0x02

	// A watched source file disappeared from disk.
	EVENT_CODE_RESOURCE_SOURCE_REMOVED SystemEventCode = 0x03

	// A watched source file was modified and its import is now stale.
	EVENT_CODE_RESOURCE_STALE SystemEventCode = 0x04

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

type EventContext struct {
	Path string
	Err  error
}

type FnOnEvent func(code SystemEventCode, sender interface{}, context EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

type eventSystemState struct {
	mu         sync.RWMutex
	registered map[SystemEventCode][]*registeredEvent
}

var onceEventSystem sync.Once
var esState *eventSystemState

func EventSystemInitialize() bool {
	onceEventSystem.Do(func() {
		esState = &eventSystemState{
			registered: make(map[SystemEventCode][]*registeredEvent),
		}
	})
	return true
}

func EventSystemShutdown() {
	if esState == nil {
		return
	}
	esState.mu.Lock()
	esState.registered = make(map[SystemEventCode][]*registeredEvent)
	esState.mu.Unlock()
}

func EventRegister(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if esState == nil {
		return false
	}
	esState.mu.Lock()
	defer esState.mu.Unlock()

	for _, ev := range esState.registered[code] {
		if ev.listener == listener {
			LogWarn("event listener already registered for code %d", code)
			return false
		}
	}
	esState.registered[code] = append(esState.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

func EventUnregister(code SystemEventCode, listener interface{}) bool {
	if esState == nil {
		return false
	}
	esState.mu.Lock()
	defer esState.mu.Unlock()

	events := esState.registered[code]
	for i, ev := range events {
		if ev.listener == listener {
			esState.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// EventFire notifies listeners in registration order. A listener returning
// true consumes the event and stops propagation.
func EventFire(code SystemEventCode, sender interface{}, context EventContext) bool {
	if esState == nil {
		return false
	}
	esState.mu.RLock()
	events := make([]*registeredEvent, len(esState.registered[code]))
	copy(events, esState.registered[code])
	esState.mu.RUnlock()

	for _, ev := range events {
		if ev.callback(code, sender, context) {
			return true
		}
	}
	return false
}
