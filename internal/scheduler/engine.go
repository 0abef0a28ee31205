package scheduler

import (
	"container/heap"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
)

var (
	ErrInvalidTriggerTime = errors.New("scheduler: invalid trigger time")
	ErrEngineStopped      = errors.New("scheduler: engine stopped")
)

// Reminder fires once for one timed occurrence.
type Reminder struct {
	Key       model.OccurrenceKey
	Title     string
	StartAt   time.Time
	TriggerAt time.Time
}

// ID identifies the reminder across refreshes.
func (r Reminder) ID() string {
	return r.Key.String() + "@" + r.StartAt.UTC().Format(time.RFC3339)
}

type queueItem struct {
	reminder Reminder
}

type priorityQueue []queueItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	return pq[i].reminder.TriggerAt.Before(pq[j].reminder.TriggerAt)
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
}

func (pq *priorityQueue) Push(x any) {
	*pq = append(*pq, x.(queueItem))
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[0 : n-1]
	return item
}

// Engine emits reminders on C() when their trigger time passes. Delivery is
// non-blocking: reminders that find the buffer full are counted as dropped.
type Engine struct {
	mu      sync.Mutex
	queue   priorityQueue
	queued  map[string]struct{}
	fired   map[string]struct{}
	out     chan Reminder
	wakeup  chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
	dropped uint64
	now     func() time.Time
}

func NewEngine(bufferSize int) *Engine {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Engine{
		queue:  make(priorityQueue, 0),
		queued: make(map[string]struct{}),
		fired:  make(map[string]struct{}),
		out:    make(chan Reminder, bufferSize),
		wakeup: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		now:    time.Now,
	}
}

func (e *Engine) C() <-chan Reminder {
	return e.out
}

func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true
	heap.Init(&e.queue)
	go e.loop()
}

func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.stopCh)
	e.mu.Unlock()
	<-e.doneCh
}

// Schedule queues one reminder. Scheduling a reminder that is already queued
// or has already fired is a no-op.
func (e *Engine) Schedule(r Reminder) error {
	if r.TriggerAt.IsZero() {
		return ErrInvalidTriggerTime
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrEngineStopped
	}
	e.pushLocked(r)
	e.signalWakeup()
	return nil
}

// Replace swaps the queued reminders for rs, keeping the record of what has
// already fired. It returns how many reminders were queued.
func (e *Engine) Replace(rs []Reminder) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return 0, ErrEngineStopped
	}
	e.queue = e.queue[:0]
	e.queued = make(map[string]struct{}, len(rs))
	for _, r := range rs {
		if r.TriggerAt.IsZero() {
			continue
		}
		e.pushLocked(r)
	}
	e.signalWakeup()
	return len(e.queue), nil
}

func (e *Engine) pushLocked(r Reminder) {
	id := r.ID()
	if _, ok := e.fired[id]; ok {
		return
	}
	if _, ok := e.queued[id]; ok {
		return
	}
	e.queued[id] = struct{}{}
	heap.Push(&e.queue, queueItem{reminder: r})
}

// Pending returns the queued reminders in trigger order.
func (e *Engine) Pending() []Reminder {
	e.mu.Lock()
	out := make([]Reminder, 0, len(e.queue))
	for _, item := range e.queue {
		out = append(out, item.reminder)
	}
	e.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].TriggerAt.Before(out[j].TriggerAt) })
	return out
}

func (e *Engine) Dropped() uint64 {
	return atomic.LoadUint64(&e.dropped)
}

func (e *Engine) loop() {
	defer close(e.doneCh)
	defer close(e.out)

	var timer *time.Timer
	for {
		next, hasNext := e.peek()
		if !hasNext {
			select {
			case <-e.wakeup:
				continue
			case <-e.stopCh:
				return
			}
		}

		wait := next.TriggerAt.Sub(e.now())
		if wait < 0 {
			wait = 0
		}
		timer = resetTimer(timer, wait)

		select {
		case <-timer.C:
			due := e.popDue(e.now())
			for _, r := range due {
				select {
				case e.out <- r:
				default:
					atomic.AddUint64(&e.dropped, 1)
				}
			}
		case <-e.wakeup:
			continue
		case <-e.stopCh:
			if timer != nil {
				stopTimer(timer)
			}
			return
		}
	}
}

func (e *Engine) signalWakeup() {
	select {
	case e.wakeup <- struct{}{}:
	default:
	}
}

func (e *Engine) peek() (Reminder, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return Reminder{}, false
	}
	return e.queue[0].reminder, true
}

func (e *Engine) popDue(now time.Time) []Reminder {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Reminder, 0)
	for len(e.queue) > 0 {
		next := e.queue[0].reminder
		if next.TriggerAt.After(now) {
			break
		}
		item := heap.Pop(&e.queue).(queueItem)
		id := item.reminder.ID()
		delete(e.queued, id)
		e.fired[id] = struct{}{}
		out = append(out, item.reminder)
	}
	return out
}

func resetTimer(timer *time.Timer, d time.Duration) *time.Timer {
	if timer == nil {
		return time.NewTimer(d)
	}
	stopTimer(timer)
	timer.Reset(d)
	return timer
}

func stopTimer(timer *time.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
