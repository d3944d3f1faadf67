package worker

import (
	"sync"
	"time"
)

// DeliveryWorker schedules delayed delivery confirmations for outbound
// messages. Each message gets one cancellable timer; confirming or failing a
// message cancels its pending timer so a late confirmation never overwrites a
// failure.
type DeliveryWorker struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewDeliveryWorker creates the worker.
func NewDeliveryWorker() *DeliveryWorker {
	return &DeliveryWorker{timers: make(map[string]*time.Timer)}
}

// Schedule runs fn after delay unless cancelled first. Scheduling the same
// message id again replaces the previous timer.
func (w *DeliveryWorker) Schedule(messageID string, delay time.Duration, fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if existing, ok := w.timers[messageID]; ok {
		existing.Stop()
	}
	w.timers[messageID] = time.AfterFunc(delay, func() {
		w.mu.Lock()
		delete(w.timers, messageID)
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return
		}
		fn()
	})
}

// Cancel stops the pending timer for a message id, if any.
func (w *DeliveryWorker) Cancel(messageID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	timer, ok := w.timers[messageID]
	if !ok {
		return false
	}
	timer.Stop()
	delete(w.timers, messageID)
	return true
}

// Pending returns the number of scheduled confirmations.
func (w *DeliveryWorker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.timers)
}

// Stop cancels all timers and rejects further scheduling.
func (w *DeliveryWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for id, timer := range w.timers {
		timer.Stop()
		delete(w.timers, id)
	}
}
