package systems

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/kiln/engine/assets"
	"github.com/spaghettifunk/kiln/engine/containers"
	"github.com/spaghettifunk/kiln/engine/core"
)

var ErrNoCapacity = fmt.Errorf("attempting to create request queue with a capacity less than 1")
var ErrUnknownRequest = fmt.Errorf("no pending request with that id")

/** @brief One outstanding asset request. */
type Request struct {
	ID     uuid.UUID
	Handle *assets.Handle
	Flags  core.PhaseFlags
	// OnDone runs once, with nil on success or the terminal error. The
	// handle belongs to the caller from then on.
	OnDone func(r *Request, err error)
	// Ticks counts how many ticks the request was driven in.
	Ticks int

	canceled bool
}

// RequestQueue drives outstanding requests cooperatively from the caller's
// thread. Each tick visits requests in FIFO order until the time slice is
// spent; a request that is still pending goes to the back of the queue.
type RequestQueue struct {
	queue   *containers.RingQueue[*Request]
	byID    map[uuid.UUID]*Request
	events  *core.EventBus
	metrics *core.Metrics
}

func NewRequestQueue(capacity int, events *core.EventBus, metrics *core.Metrics) (*RequestQueue, error) {
	if capacity <= 0 {
		return nil, ErrNoCapacity
	}
	if events == nil {
		events = core.NewEventBus()
	}
	if metrics == nil {
		metrics = core.NewMetrics()
	}
	return &RequestQueue{
		queue:   containers.NewRingQueue[*Request](capacity),
		byID:    make(map[uuid.UUID]*Request),
		events:  events,
		metrics: metrics,
	}, nil
}

/**
 * @brief Submits the provided handle to be processed with flags until it
 * succeeds or fails.
 * @param h The handle to drive. The queue does not release it.
 * @param flags The phase and target flags to process with.
 * @param onDone Optional completion callback.
 */
func (rq *RequestQueue) Submit(h *assets.Handle, flags core.PhaseFlags, onDone func(r *Request, err error)) (*Request, error) {
	r := &Request{
		ID:     uuid.New(),
		Handle: h,
		Flags:  flags,
		OnDone: onDone,
	}
	if err := rq.queue.Enqueue(r); err != nil {
		return nil, err
	}
	rq.byID[r.ID] = r
	return r, nil
}

// Cancel aborts a pending request and frees its queue slot at once. Its
// handle is canceled but not released, and OnDone is never called.
func (rq *RequestQueue) Cancel(id uuid.UUID) error {
	r, ok := rq.byID[id]
	if !ok {
		return ErrUnknownRequest
	}
	r.canceled = true
	delete(rq.byID, id)
	rq.compact()
	return r.Handle.Cancel()
}

// compact rotates the queue once, dropping canceled requests and keeping
// the order of the rest.
func (rq *RequestQueue) compact() {
	n := rq.queue.Len()
	for i := 0; i < n; i++ {
		r, err := rq.queue.Dequeue()
		if err != nil {
			return
		}
		if r.canceled {
			continue
		}
		_ = rq.queue.Enqueue(r)
	}
}

func (rq *RequestQueue) Len() int {
	return rq.queue.Len()
}

func (rq *RequestQueue) Pending() int {
	return len(rq.byID)
}

/**
 * @brief Drives queued requests. Should happen once an update cycle.
 * @param ts The time budget of this tick.
 * @return The number of requests that finished during the tick.
 */
func (rq *RequestQueue) Tick(ts core.TimeSlice) int {
	done := 0
	n := rq.queue.Len()
	for i := 0; i < n && ts.Remaining(); i++ {
		r, err := rq.queue.Dequeue()
		if err != nil {
			break
		}
		if r.canceled {
			continue
		}
		r.Ticks++
		perr := r.Handle.Process(ts, r.Flags)
		res := core.ResultOf(perr)
		rq.metrics.Record(res)
		if res == core.Pending {
			// Capacity was freed by the dequeue above.
			_ = rq.queue.Enqueue(r)
			continue
		}
		rq.finish(r, perr)
		done++
	}
	return done
}

func (rq *RequestQueue) finish(r *Request, err error) {
	delete(rq.byID, r.ID)
	ctx := core.EventContext{
		AssetID: r.Handle.ID(),
		Path:    r.Handle.Path(),
		Flags:   r.Flags,
		Result:  core.ResultOf(err),
	}
	if err != nil {
		core.LogError("request %s for '%s' failed: %s", r.ID, r.Handle.Path(), err)
		rq.events.Fire(core.EventAssetFailed, rq, ctx)
	} else {
		core.LogDebug("request %s for '%s' done after %d ticks", r.ID, r.Handle.Path(), r.Ticks)
		rq.events.Fire(core.EventAssetLoaded, rq, ctx)
	}
	if r.OnDone != nil {
		r.OnDone(r, err)
	}
}

/**
 * @brief Shuts the request queue down, canceling everything still queued.
 */
func (rq *RequestQueue) Shutdown() error {
	for !rq.queue.IsEmpty() {
		r, _ := rq.queue.Dequeue()
		if r.canceled {
			continue
		}
		_ = r.Handle.Cancel()
	}
	rq.byID = make(map[uuid.UUID]*Request)
	return nil
}
