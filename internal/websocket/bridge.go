package websocket

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/Clinteastman/heartlib/internal/model"
	"github.com/Clinteastman/heartlib/internal/pipeline"
)

// Message types sent over the progress socket
const (
	MessageTypeSnapshot = "snapshot"
	MessageTypeError    = "error"
	MessageTypePing     = "ping"
	MessageTypePong     = "pong"
)

type message struct {
	Type string             `json:"type"`
	Job  *model.JobSnapshot `json:"job,omitempty"`
	Err  string             `json:"error,omitempty"`
}

// wsConn is the connection surface the bridge reads from and writes to
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, data []byte, err error)
}

// Bridge serves a job's progress snapshots over WebSocket connections. It
// is an alternative observer surface to the SSE stream: each connection
// subscribes independently and a disconnect only detaches that observer.
type Bridge struct {
	registry *pipeline.Registry
	notifier *pipeline.Notifier
}

func NewBridge(registry *pipeline.Registry, notifier *pipeline.Notifier) *Bridge {
	return &Bridge{
		registry: registry,
		notifier: notifier,
	}
}

// HandleConnection serves one connected client until the job is terminal
// or the client goes away.
func (b *Bridge) HandleConnection(c *websocket.Conn, jobID string) {
	b.serve(c, jobID)
}

func (b *Bridge) serve(c wsConn, jobID string) {
	job, ok := b.registry.Get(jobID)
	if !ok {
		writeMessage(c, message{Type: MessageTypeError, Err: "job not found"})
		c.WriteMessage(websocket.CloseMessage, []byte{})
		return
	}

	snap := job.Snapshot()
	if err := writeMessage(c, message{Type: MessageTypeSnapshot, Job: &snap}); err != nil {
		return
	}
	if snap.Status.Terminal() {
		c.WriteMessage(websocket.CloseMessage, []byte{})
		return
	}

	sub := b.notifier.Subscribe(jobID)
	defer b.notifier.Unsubscribe(sub)

	pong := make(chan struct{}, 1)

	// Writer goroutine: snapshot delivery plus ping keepalive
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case snap, open := <-sub.C:
				if !open {
					// Terminal cleanup beat us to the channel; the
					// registry still has the outcome
					if last := job.Snapshot(); last.Status.Terminal() {
						writeMessage(c, message{Type: MessageTypeSnapshot, Job: &last})
					}
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := writeMessage(c, message{Type: MessageTypeSnapshot, Job: &snap}); err != nil {
					return
				}
				if snap.Status.Terminal() {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}

			case <-pong:
				if err := writeMessage(c, message{Type: MessageTypePong}); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop: consume client messages until disconnect
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("websocket error on job %s: %v", jobID, err)
			}
			break
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == MessageTypePing {
			select {
			case pong <- struct{}{}:
			default:
			}
		}
	}

	// Detaching the subscription closes its channel, which stops the
	// writer goroutine
	b.notifier.Unsubscribe(sub)
	<-done
}

func writeMessage(c wsConn, msg message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, data)
}
