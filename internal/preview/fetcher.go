package preview

import (
	"context"
	"sync"
	"time"

	"github.com/bwise1/lookaround/internal/model"
	"github.com/sirupsen/logrus"
)

const defaultTimeout = 10 * time.Second

// Fetcher loads the preview for the current selection. Each Request cancels the one
// before it; a result that arrives after a newer Request is discarded.
type Fetcher struct {
	provider Provider
	log      logrus.FieldLogger
	timeout  time.Duration

	mu         sync.Mutex
	onChange   func(model.PreviewStatus)
	generation uint64
	cancel     context.CancelFunc
	status     model.PreviewStatus
	wg         sync.WaitGroup
}

// NewFetcher returns an idle fetcher. provider may be nil, in which case every request
// ends unavailable.
func NewFetcher(provider Provider, log logrus.FieldLogger) *Fetcher {
	return &Fetcher{
		provider: provider,
		log:      log.WithField("component", "preview"),
		timeout:  defaultTimeout,
		status:   model.PreviewStatus{State: model.PreviewIdle},
	}
}

// OnChange registers fn to run after every state change. It replaces any previous callback
// and must not call back into the fetcher.
func (f *Fetcher) OnChange(fn func(model.PreviewStatus)) {
	f.mu.Lock()
	f.onChange = fn
	f.mu.Unlock()
}

// Request starts loading the preview for coord.
func (f *Fetcher) Request(coord model.Coordinate) {
	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.generation++
	gen := f.generation

	if f.provider == nil {
		notify := f.setLocked(model.PreviewStatus{State: model.PreviewUnavailable})
		f.mu.Unlock()
		notify()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	f.cancel = cancel
	notify := f.setLocked(model.PreviewStatus{State: model.PreviewLoading})
	f.wg.Add(1)
	f.mu.Unlock()
	notify()

	go func() {
		defer f.wg.Done()
		defer cancel()

		p, err := f.provider.Lookup(ctx, coord)
		if err != nil {
			f.log.WithError(err).Debug("preview lookup failed")
		}

		next := model.PreviewStatus{State: model.PreviewUnavailable}
		if err == nil && p != nil {
			next = model.PreviewStatus{State: model.PreviewAvailable, Preview: p}
		}

		f.mu.Lock()
		if gen != f.generation {
			f.mu.Unlock()
			return
		}
		f.cancel = nil
		notify := f.setLocked(next)
		f.mu.Unlock()
		notify()
	}()
}

// Reset cancels any pending request and returns to idle.
func (f *Fetcher) Reset() {
	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.generation++
	notify := f.setLocked(model.PreviewStatus{State: model.PreviewIdle})
	f.mu.Unlock()
	notify()
}

func (f *Fetcher) Status() model.PreviewStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Wait blocks until every lookup started so far has returned.
func (f *Fetcher) Wait() {
	f.wg.Wait()
}

// setLocked records s and returns the notification to run once the lock is released.
func (f *Fetcher) setLocked(s model.PreviewStatus) func() {
	f.status = s
	fn := f.onChange
	if fn == nil {
		return func() {}
	}
	return func() { fn(s) }
}
