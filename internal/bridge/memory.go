package bridge

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lumefi/bridgepool/internal/logger"
	"github.com/lumefi/bridgepool/internal/types"
)

// Envelope is one queued cross-domain message.
type Envelope struct {
	ID       string
	Origin   types.Address
	Target   types.Address
	Payload  Payload
	GasLimit uint64
}

// MemoryMessenger is an in-process messenger with the same contract as the
// external relay: independent FIFO queues per (origin, target) direction,
// authenticated origin on delivery, and the ability to redeliver (the relay
// guarantees at-least-once, not exactly-once).
//
// Messages are not delivered inline on Send; a pump (the engine relay loop, or
// a test) drains the queues. This keeps every pool operation non-blocking with
// respect to the cross-domain round trip.
type MemoryMessenger struct {
	mu        sync.Mutex
	log       zerolog.Logger
	handlers  map[types.Address]MessageHandler
	queues    map[direction][]Envelope
	delivered map[direction][]Envelope
}

type direction struct {
	origin types.Address
	target types.Address
}

// NewMemoryMessenger creates an empty messenger.
func NewMemoryMessenger() *MemoryMessenger {
	return &MemoryMessenger{
		log:       logger.GetForComponent("bridge"),
		handlers:  make(map[types.Address]MessageHandler),
		queues:    make(map[direction][]Envelope),
		delivered: make(map[direction][]Envelope),
	}
}

// Register binds a receiving handler to its address.
func (m *MemoryMessenger) Register(addr types.Address, handler MessageHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[addr] = handler
}

// Endpoint returns a Sender bound to origin. Components never pass their own
// origin per call; the binding is what makes the origin authentic.
func (m *MemoryMessenger) Endpoint(origin types.Address) Sender {
	return &endpoint{messenger: m, origin: origin}
}

type endpoint struct {
	messenger *MemoryMessenger
	origin    types.Address
}

func (e *endpoint) Send(target types.Address, payload Payload, gasLimit uint64) error {
	return e.messenger.enqueue(e.origin, target, payload, gasLimit)
}

func (m *MemoryMessenger) enqueue(origin, target types.Address, payload Payload, gasLimit uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	env := Envelope{
		ID:       uuid.New().String(),
		Origin:   origin,
		Target:   target,
		Payload:  payload,
		GasLimit: gasLimit,
	}
	dir := direction{origin: origin, target: target}
	m.queues[dir] = append(m.queues[dir], env)

	m.log.Debug().
		Str("message_id", env.ID).
		Str("origin", origin.String()).
		Str("target", target.String()).
		Str("kind", payload.Kind()).
		Msg("Cross-domain message queued")
	return nil
}

// DeliverAll drains every queue in order until no messages remain, including
// messages enqueued by handlers during delivery (the settlement round trip).
// A rejected message goes back to the front of its queue: delivery is
// at-least-once, and a handler error must never drop the message. Returns the
// number of messages delivered.
func (m *MemoryMessenger) DeliverAll() (int, error) {
	delivered := 0
	for {
		env, ok := m.dequeue()
		if !ok {
			return delivered, nil
		}
		if err := m.deliver(env); err != nil {
			m.requeueFront(env)
			return delivered, err
		}
		m.markDelivered(env)
		delivered++
	}
}

// Redeliver replays every already-delivered message from origin to target, in
// the original order. Exists to exercise receiver idempotency under the
// relay's at-least-once guarantee.
func (m *MemoryMessenger) Redeliver(origin, target types.Address) error {
	m.mu.Lock()
	history := append([]Envelope(nil), m.delivered[direction{origin: origin, target: target}]...)
	m.mu.Unlock()

	for _, env := range history {
		if err := m.deliver(env); err != nil {
			return err
		}
	}
	return nil
}

// Pending reports the number of undelivered messages across all directions.
func (m *MemoryMessenger) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, queue := range m.queues {
		count += len(queue)
	}
	return count
}

func (m *MemoryMessenger) dequeue() (Envelope, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for dir, queue := range m.queues {
		if len(queue) == 0 {
			continue
		}
		env := queue[0]
		m.queues[dir] = queue[1:]
		return env, true
	}
	return Envelope{}, false
}

func (m *MemoryMessenger) requeueFront(env Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir := direction{origin: env.Origin, target: env.Target}
	m.queues[dir] = append([]Envelope{env}, m.queues[dir]...)
}

// markDelivered records a successful delivery for Redeliver replays.
func (m *MemoryMessenger) markDelivered(env Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir := direction{origin: env.Origin, target: env.Target}
	m.delivered[dir] = append(m.delivered[dir], env)
}

func (m *MemoryMessenger) deliver(env Envelope) error {
	m.mu.Lock()
	handler, ok := m.handlers[env.Target]
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("no handler registered for %s", env.Target)
	}

	m.log.Debug().
		Str("message_id", env.ID).
		Str("target", env.Target.String()).
		Str("kind", env.Payload.Kind()).
		Msg("Delivering cross-domain message")

	if err := handler.HandleMessage(env.Origin, env.Payload); err != nil {
		return fmt.Errorf("handler for %s rejected message %s: %w", env.Target, env.ID, err)
	}
	return nil
}
