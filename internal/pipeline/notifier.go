package pipeline

import (
	"sync"

	"github.com/Clinteastman/heartlib/internal/model"
)

// subscriberBuffer bounds each observer's channel. Intermediate progress is
// best-effort: a full buffer drops the update, superseded by the next one.
const subscriberBuffer = 16

// Subscription is one observer's view of a job's progress. Snapshots arrive
// on C in non-decreasing frame order; C is closed when the job reaches a
// terminal state.
type Subscription struct {
	C     chan model.JobSnapshot
	jobID string
}

// Notifier fans progress snapshots out from the executor to any number of
// independently-connected observers. Publishing never blocks the executor
// on a slow or absent observer.
type Notifier struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{
		subs: make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers a new observer for the given job id
func (n *Notifier) Subscribe(jobID string) *Subscription {
	sub := &Subscription{
		C:     make(chan model.JobSnapshot, subscriberBuffer),
		jobID: jobID,
	}

	n.mu.Lock()
	if n.subs[jobID] == nil {
		n.subs[jobID] = make(map[*Subscription]struct{})
	}
	n.subs[jobID][sub] = struct{}{}
	n.mu.Unlock()

	return sub
}

// Unsubscribe removes one observer and closes its channel. Safe to call
// after Close has already cleaned the job up.
func (n *Notifier) Unsubscribe(sub *Subscription) {
	n.mu.Lock()
	defer n.mu.Unlock()

	set, ok := n.subs[sub.jobID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	close(sub.C)
	if len(set) == 0 {
		delete(n.subs, sub.jobID)
	}
}

// Close removes every observer of a job and closes their channels. Called
// once the job is terminal.
func (n *Notifier) Close(jobID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for sub := range n.subs[jobID] {
		close(sub.C)
	}
	delete(n.subs, jobID)
}

// Publish delivers a snapshot to every observer of the job. Delivery is
// non-blocking: observers whose buffer is full miss this update.
func (n *Notifier) Publish(snap model.JobSnapshot) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for sub := range n.subs[snap.JobID] {
		select {
		case sub.C <- snap:
		default:
		}
	}
}

// PublishTerminal delivers the final snapshot. Unlike intermediate updates
// it must not be silently lost, so a full buffer has its oldest entry
// evicted to make room.
func (n *Notifier) PublishTerminal(snap model.JobSnapshot) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for sub := range n.subs[snap.JobID] {
		select {
		case sub.C <- snap:
			continue
		default:
		}
		select {
		case <-sub.C:
		default:
		}
		select {
		case sub.C <- snap:
		default:
		}
	}
}

// SubscriberCount returns the number of registered observers for a job
func (n *Notifier) SubscriberCount(jobID string) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs[jobID])
}
