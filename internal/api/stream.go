package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamQueueSize    = 32
)

// subscriber is one /predict/stream connection. Events are queued on send and
// written by a dedicated goroutine, so a slow reader only ever blocks itself.
type subscriber struct {
	conn *websocket.Conn
	send chan DecisionEvent
	done chan struct{}
	once sync.Once
}

func newSubscriber(conn *websocket.Conn) *subscriber {
	return &subscriber{
		conn: conn,
		send: make(chan DecisionEvent, streamQueueSize),
		done: make(chan struct{}),
	}
}

// enqueue hands the event to the writer without blocking; false means the queue is full.
func (sub *subscriber) enqueue(event DecisionEvent) bool {
	select {
	case sub.send <- event:
		return true
	default:
		return false
	}
}

func (sub *subscriber) close() {
	sub.once.Do(func() {
		close(sub.done)
		if sub.conn != nil {
			_ = sub.conn.Close()
		}
	})
}

// DecisionNotifier tracks stream subscribers and fans decision events out to them.
type DecisionNotifier struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	last        *DecisionEvent
}

// NewDecisionNotifier constructs a notifier with no subscribers.
func NewDecisionNotifier() *DecisionNotifier {
	return &DecisionNotifier{subscribers: make(map[*subscriber]struct{})}
}

// Register attaches a websocket connection and starts its writer. The most
// recent decision, if any, is queued ahead of new events.
func (n *DecisionNotifier) Register(conn *websocket.Conn) *subscriber {
	sub := newSubscriber(conn)

	n.mu.Lock()
	if n.last != nil {
		sub.enqueue(*n.last)
	}
	n.subscribers[sub] = struct{}{}
	n.mu.Unlock()

	go n.writeLoop(sub)
	return sub
}

// Unregister detaches the subscriber and closes its socket.
func (n *DecisionNotifier) Unregister(sub *subscriber) {
	if sub == nil {
		return
	}
	n.mu.Lock()
	delete(n.subscribers, sub)
	n.mu.Unlock()
	sub.close()
}

// Broadcast stamps the event and queues it for every subscriber. A subscriber
// whose queue is full has stopped keeping up and is disconnected.
func (n *DecisionNotifier) Broadcast(event DecisionEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	n.mu.Lock()
	snapshot := event
	n.last = &snapshot
	targets := make([]*subscriber, 0, len(n.subscribers))
	for sub := range n.subscribers {
		targets = append(targets, sub)
	}
	n.mu.Unlock()

	for _, sub := range targets {
		if !sub.enqueue(event) {
			n.Unregister(sub)
		}
	}
}

// Last returns a copy of the most recent event, or nil before the first decision.
func (n *DecisionNotifier) Last() *DecisionEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.last == nil {
		return nil
	}
	event := *n.last
	return &event
}

// Clients reports the number of connected subscribers.
func (n *DecisionNotifier) Clients() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subscribers)
}

func (n *DecisionNotifier) writeLoop(sub *subscriber) {
	for {
		select {
		case <-sub.done:
			return
		case event := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := sub.conn.WriteJSON(event); err != nil {
				n.Unregister(sub)
				return
			}
		}
	}
}
