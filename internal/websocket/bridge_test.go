package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/Clinteastman/heartlib/internal/model"
	"github.com/Clinteastman/heartlib/internal/pipeline"
)

type wireFrame struct {
	messageType int
	data        []byte
}

// fakeConn stands in for a websocket connection: written frames are
// recorded, reads block until the test feeds a message or disconnects.
type fakeConn struct {
	mu     sync.Mutex
	frames []wireFrame
	in     chan []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 4)}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, wireFrame{messageType, append([]byte(nil), data...)})
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-c.in
	if !ok {
		return 0, nil, errors.New("client disconnected")
	}
	return websocket.TextMessage, data, nil
}

func (c *fakeConn) disconnect() {
	close(c.in)
}

// snapshot of all written frames
func (c *fakeConn) written() []wireFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]wireFrame(nil), c.frames...)
}

// decoded text messages, in write order
func (c *fakeConn) textMessages(t *testing.T) []message {
	t.Helper()
	var msgs []message
	for _, f := range c.written() {
		if f.messageType != websocket.TextMessage {
			continue
		}
		var msg message
		if err := json.Unmarshal(f.data, &msg); err != nil {
			t.Fatalf("bad frame %q: %v", f.data, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func (c *fakeConn) closeFrameSent() bool {
	for _, f := range c.written() {
		if f.messageType == websocket.CloseMessage {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testParams() model.GenerationParams {
	return model.GenerationParams{
		Lyrics:           "[verse]\nhello world",
		Tags:             "pop,upbeat",
		Temperature:      1.0,
		TopK:             50,
		CFGScale:         1.5,
		MaxAudioLengthMS: 240000,
	}
}

func newTestBridge(t *testing.T) (*Bridge, *pipeline.Registry, *pipeline.Notifier) {
	t.Helper()
	registry := pipeline.NewRegistry()
	notifier := pipeline.NewNotifier()
	return NewBridge(registry, notifier), registry, notifier
}

func TestBridgeUnknownJob(t *testing.T) {
	b, _, _ := newTestBridge(t)
	conn := newFakeConn()

	b.serve(conn, "no-such-job")

	msgs := conn.textMessages(t)
	if len(msgs) != 1 || msgs[0].Type != MessageTypeError {
		t.Fatalf("expected a single error message, got %+v", msgs)
	}
	if !conn.closeFrameSent() {
		t.Fatal("expected a close frame after the error")
	}
}

func TestBridgeTerminalJob(t *testing.T) {
	b, registry, _ := newTestBridge(t)

	job, err := registry.Create(pipeline.NewJobID(), testParams())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	job.Complete("/output/x.mp3")

	conn := newFakeConn()
	b.serve(conn, job.ID)

	msgs := conn.textMessages(t)
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one snapshot for a terminal job, got %d", len(msgs))
	}
	if msgs[0].Type != MessageTypeSnapshot || msgs[0].Job == nil {
		t.Fatalf("expected a snapshot message, got %+v", msgs[0])
	}
	if msgs[0].Job.Status != model.JobStatusCompleted {
		t.Fatalf("expected completed snapshot, got %s", msgs[0].Job.Status)
	}
	if !conn.closeFrameSent() {
		t.Fatal("expected a close frame after the terminal snapshot")
	}
}

func TestBridgeLiveJobDelivery(t *testing.T) {
	b, registry, notifier := newTestBridge(t)

	job, err := registry.Create(pipeline.NewJobID(), testParams())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	conn := newFakeConn()
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.serve(conn, job.ID)
	}()

	waitFor(t, "subscription", func() bool { return notifier.SubscriberCount(job.ID) == 1 })

	job.BeginGenerating(100)
	for i := 1; i <= 3; i++ {
		job.AdvanceFrame(i)
		notifier.Publish(job.Snapshot())
	}
	job.Complete("/output/x.mp3")
	notifier.PublishTerminal(job.Snapshot())
	notifier.Close(job.ID)

	waitFor(t, "close frame", conn.closeFrameSent)
	conn.disconnect()
	<-done

	msgs := conn.textMessages(t)
	// First snapshot on connect, three progress updates, one terminal
	if len(msgs) != 5 {
		t.Fatalf("expected 5 snapshots, got %d: %+v", len(msgs), msgs)
	}
	lastFrame := -1
	terminals := 0
	for _, msg := range msgs {
		if msg.Type != MessageTypeSnapshot || msg.Job == nil {
			t.Fatalf("unexpected message: %+v", msg)
		}
		if msg.Job.CurrentFrame < lastFrame {
			t.Fatalf("frame counter went backwards: %d after %d", msg.Job.CurrentFrame, lastFrame)
		}
		lastFrame = msg.Job.CurrentFrame
		if msg.Job.Status.Terminal() {
			terminals++
		}
	}
	if terminals != 1 {
		t.Fatalf("expected exactly one terminal snapshot, got %d", terminals)
	}
	if msgs[len(msgs)-1].Job.Status != model.JobStatusCompleted {
		t.Fatalf("expected terminal snapshot last, got %s", msgs[len(msgs)-1].Job.Status)
	}

	if notifier.SubscriberCount(job.ID) != 0 {
		t.Fatal("expected observer detached after disconnect")
	}
}

func TestBridgeTerminalAfterChannelClose(t *testing.T) {
	b, registry, notifier := newTestBridge(t)

	job, err := registry.Create(pipeline.NewJobID(), testParams())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	conn := newFakeConn()
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.serve(conn, job.ID)
	}()

	waitFor(t, "subscription", func() bool { return notifier.SubscriberCount(job.ID) == 1 })

	// Terminal cleanup races the push delivery: the channel closes without
	// the terminal snapshot having been sent
	job.Complete("/output/x.mp3")
	notifier.Close(job.ID)

	waitFor(t, "close frame", conn.closeFrameSent)
	conn.disconnect()
	<-done

	msgs := conn.textMessages(t)
	last := msgs[len(msgs)-1]
	if last.Type != MessageTypeSnapshot || last.Job == nil || !last.Job.Status.Terminal() {
		t.Fatalf("expected the outcome re-read from the registry, got %+v", last)
	}
}

func TestBridgePingPong(t *testing.T) {
	b, registry, notifier := newTestBridge(t)

	job, err := registry.Create(pipeline.NewJobID(), testParams())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	conn := newFakeConn()
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.serve(conn, job.ID)
	}()

	waitFor(t, "subscription", func() bool { return notifier.SubscriberCount(job.ID) == 1 })

	conn.in <- []byte(`{"type":"ping"}`)
	waitFor(t, "pong reply", func() bool {
		for _, msg := range conn.textMessages(t) {
			if msg.Type == MessageTypePong {
				return true
			}
		}
		return false
	})

	job.Complete("/output/x.mp3")
	notifier.Close(job.ID)
	waitFor(t, "close frame", conn.closeFrameSent)
	conn.disconnect()
	<-done
}
