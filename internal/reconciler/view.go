package reconciler

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/resumedesk/internal/feed"
	"github.com/yoockh/resumedesk/internal/metrics"
	"github.com/yoockh/resumedesk/internal/models"
)

var ErrViewClosed = errors.New("view closed")

// Store loads rows for a view. Reads in the unrestricted scope include the owner profile.
type Store interface {
	List(ctx context.Context, scope feed.Scope) ([]models.Resume, error)
	Fetch(ctx context.Context, id string, scope feed.Scope) (*models.Resume, error)
}

// Listener receives every new snapshot. It runs under the view lock and must not block
// or call back into the view.
type Listener func(State)

// View keeps one ordered list consistent with the store and the change feed.
type View struct {
	store    Store
	feed     feed.Subscriber
	log      *logrus.Entry
	onChange Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	state  State
	scope  feed.Scope
	gen    uint64
	handle *handle
	closed bool
}

// handle owns one subscription and closes it at most once.
type handle struct {
	sub  feed.Subscription
	once sync.Once
}

func (h *handle) close() {
	h.once.Do(func() { _ = h.sub.Close() })
}

func NewView(ctx context.Context, store Store, sub feed.Subscriber, log *logrus.Entry, onChange Listener) *View {
	ctx, cancel := context.WithCancel(ctx)
	return &View{
		store:    store,
		feed:     sub,
		log:      log,
		onChange: onChange,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Start loads the list for scope and then follows the change feed.
// Calling it again switches scope: the previous subscription is closed first.
// A load failure is recorded in the state and returned; the view stays usable.
func (v *View) Start(scope feed.Scope) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrViewClosed
	}
	v.dropHandleLocked()
	v.gen++
	gen := v.gen
	v.scope = scope
	v.dispatchLocked(Loading{})
	v.mu.Unlock()

	items, err := v.store.List(v.ctx, scope)

	v.mu.Lock()
	if v.staleLocked(gen) {
		v.mu.Unlock()
		return nil
	}
	if err != nil {
		v.dispatchLocked(LoadFailed{Err: err})
		v.mu.Unlock()
		return err
	}
	v.dispatchLocked(Loaded{Items: items})
	v.mu.Unlock()

	sub, err := v.feed.Subscribe(v.ctx, scope)
	if err != nil {
		if v.ctx.Err() != nil {
			return nil
		}
		// the list stays as loaded; it just will not follow changes
		v.log.WithError(err).Warn("subscribe change feed")
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.staleLocked(gen) {
		_ = sub.Close()
		return nil
	}
	h := &handle{sub: sub}
	v.handle = h
	v.wg.Add(1)
	go v.consume(h, gen, scope)
	return nil
}

// Close tears the view down and waits for its goroutines.
// In-flight fetch results are dropped.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.dropHandleLocked()
	v.cancel()
	v.mu.Unlock()

	v.wg.Wait()
}

func (v *View) dropHandleLocked() {
	if v.handle != nil {
		v.handle.close()
		v.handle = nil
	}
}

func (v *View) staleLocked(gen uint64) bool {
	return v.closed || gen != v.gen
}

func (v *View) dispatchLocked(ev Event) {
	v.state = Apply(v.state, ev)
	if v.onChange != nil {
		v.onChange(v.state)
	}
}

// dispatch applies ev unless the generation that produced it has been superseded.
func (v *View) dispatch(gen uint64, ev Event) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.staleLocked(gen) {
		return
	}
	v.dispatchLocked(ev)
}

func (v *View) consume(h *handle, gen uint64, scope feed.Scope) {
	defer v.wg.Done()
	for c := range h.sub.Events() {
		switch c.Type {
		case feed.ChangeInsert:
			v.onInsert(gen, scope, *c.Record)
		case feed.ChangeUpdate:
			v.onUpdate(gen, scope, *c.Record, c.Fields)
		case feed.ChangeDelete:
			v.dispatch(gen, Deleted{ID: c.RecordID()})
		}
	}
}

// Inserts are applied in arrival order so the head of the list stays newest.
func (v *View) onInsert(gen uint64, scope feed.Scope, row models.Resume) {
	if !scope.All() {
		v.dispatch(gen, Inserted{Item: row})
		return
	}
	item, err := v.store.Fetch(v.ctx, row.ID, scope)
	if err != nil || item == nil {
		if v.ctx.Err() != nil {
			return
		}
		metrics.ReconcileFallbacks.WithLabelValues("insert_raw").Inc()
		v.log.WithError(err).WithField("id", row.ID).Warn("re-fetch inserted resume; using change record")
		v.dispatch(gen, Inserted{Item: row})
		return
	}
	v.dispatch(gen, Inserted{Item: *item})
}

func (v *View) onUpdate(gen uint64, scope feed.Scope, row models.Resume, fields []string) {
	v.dispatch(gen, UpdateStarted{ID: row.ID})

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		item, err := v.store.Fetch(v.ctx, row.ID, scope)
		if err != nil || item == nil {
			if v.ctx.Err() != nil {
				return
			}
			metrics.ReconcileFallbacks.WithLabelValues("update_merge").Inc()
			v.log.WithError(err).WithField("id", row.ID).Warn("re-fetch updated resume; merging change record")
			v.dispatch(gen, UpdateMerged{Row: row, Fields: fields})
			return
		}
		v.dispatch(gen, Updated{Item: *item})
	}()
}
