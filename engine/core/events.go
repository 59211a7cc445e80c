package core

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Keyboard key pressed. Data: *KeyEvent
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02

	// Keyboard key released. Data: *KeyEvent
	EVENT_CODE_KEY_RELEASED SystemEventCode = 0x03

	// Resized/resolution changed from the OS. Data: *SystemEvent
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// A watched asset changed on disk. Data: *AssetEvent
	EVENT_CODE_ASSET_CHANGED SystemEventCode = 0x09

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

type EventContext struct {
	Type SystemEventCode
	Data interface{}
}

type KeyEvent struct {
	KeyCode KeyCode
}

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

type AssetEvent struct {
	Path string
}

// FnOnEvent handlers run synchronously on the thread that fires the event.
type FnOnEvent func(context EventContext)

// EventBus dispatches events to the handlers registered for their code, in
// registration order.
type EventBus struct {
	registered map[SystemEventCode][]FnOnEvent
}

func NewEventBus() *EventBus {
	return &EventBus{
		registered: make(map[SystemEventCode][]FnOnEvent),
	}
}

func (b *EventBus) Register(code SystemEventCode, onEvent FnOnEvent) {
	b.registered[code] = append(b.registered[code], onEvent)
}

// Unregister drops every handler listening on code.
func (b *EventBus) Unregister(code SystemEventCode) {
	delete(b.registered, code)
}

// Fire reports whether at least one handler received the event.
func (b *EventBus) Fire(context EventContext) bool {
	handlers := b.registered[context.Type]
	for _, h := range handlers {
		h(context)
	}
	return len(handlers) > 0
}

func (b *EventBus) Shutdown() {
	b.registered = make(map[SystemEventCode][]FnOnEvent)
}
