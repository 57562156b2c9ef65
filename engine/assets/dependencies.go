package assets

import "github.com/spaghettifunk/kiln/engine/core"

// Dependencies is the sub-handle table of a processor, keyed by asset id.
// It fetches or creates a handle and drives it forward with the caller's
// time slice. Iteration follows insertion order so fan-out stays deterministic.
type Dependencies struct {
	manager *Manager
	handles map[int]*Handle
	started map[int]bool
	order   []int
}

func NewDependencies(m *Manager) *Dependencies {
	return &Dependencies{
		manager: m,
		handles: make(map[int]*Handle),
		started: make(map[int]bool),
	}
}

func (d *Dependencies) Get(id int) (*Handle, bool) {
	h, ok := d.handles[id]
	return h, ok
}

// Resolve returns the held handle for id or acquires a new one.
func (d *Dependencies) Resolve(id int) (*Handle, error) {
	if h, ok := d.handles[id]; ok {
		return h, nil
	}
	h, err := d.manager.Acquire(id)
	if err != nil {
		return nil, err
	}
	d.handles[id] = h
	d.order = append(d.order, id)
	return h, nil
}

// Drive resolves id and processes it. Results propagate unchanged.
func (d *Dependencies) Drive(id int, ts core.TimeSlice, flags core.PhaseFlags) (*Handle, error) {
	h, err := d.Resolve(id)
	if err != nil {
		return nil, err
	}
	d.started[id] = true
	return h, h.Process(ts, flags)
}

func (d *Dependencies) Len() int {
	return len(d.handles)
}

// Each visits held handles in the order they were resolved.
func (d *Dependencies) Each(fn func(h *Handle) error) error {
	for _, id := range d.order {
		if err := fn(d.handles[id]); err != nil {
			return err
		}
	}
	return nil
}

// Cancel cancels every handle whose processor was started.
func (d *Dependencies) Cancel() {
	for _, id := range d.order {
		if d.started[id] {
			_ = d.handles[id].Cancel()
		}
	}
	d.started = make(map[int]bool)
}

// Release drops every handle.
func (d *Dependencies) Release() {
	for _, id := range d.order {
		d.handles[id].Release()
	}
	d.handles = make(map[int]*Handle)
	d.started = make(map[int]bool)
	d.order = d.order[:0]
}
