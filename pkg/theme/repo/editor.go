package repo

import (
	"context"
	"sync"
	"time"

	"github.com/podtheme/themepack/pkg/theme"
)

// DefaultFlushDelay batches rapid keystrokes into one persistence call.
const DefaultFlushDelay = time.Second

// SpecEditor is the debounced persistence state machine for spec edits:
// Clean → Dirty(pending) → Clean. "Edit" moves to Dirty and (re)arms the
// timer; "timer elapsed" and "theme switched/closed" both perform the same
// flush back to Clean. It serializes all writes for one theme id, which is
// what makes concurrent puts to the same record impossible.
type SpecEditor struct {
	repo    *Repository
	themeID string
	delay   time.Duration

	mu    sync.Mutex
	spec  theme.Spec
	dirty bool
	timer *time.Timer
}

// NewSpecEditor starts editing a loaded user theme. The working copy is
// independent of t; nothing persists until a flush.
func NewSpecEditor(r *Repository, t theme.LoadedTheme) *SpecEditor {
	return &SpecEditor{
		repo:    r,
		themeID: t.ID,
		delay:   DefaultFlushDelay,
		spec:    t.Spec.DeepCopy(),
	}
}

// Spec returns the current working copy.
func (e *SpecEditor) Spec() theme.Spec {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spec.DeepCopy()
}

// Edit applies one structural mutation (dotted path → nested write) to the
// working copy and arms the flush timer.
func (e *SpecEditor) Edit(path string, value any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.spec.SetPath(path, value); err != nil {
		return err
	}
	e.dirty = true
	if e.timer == nil {
		e.timer = time.AfterFunc(e.delay, e.timerElapsed)
	} else {
		e.timer.Reset(e.delay)
	}
	return nil
}

func (e *SpecEditor) timerElapsed() {
	if err := e.Flush(context.Background()); err != nil {
		e.repo.logger.Error("debounced spec flush failed", "id", e.themeID, "error", err)
	}
}

// Flush persists the working copy if dirty. Call before switching the active
// theme — losing a pending edit is the failure mode the debounce exists to
// prevent.
func (e *SpecEditor) Flush(ctx context.Context) error {
	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if !e.dirty {
		e.mu.Unlock()
		return nil
	}
	snapshot := e.spec.DeepCopy()
	e.dirty = false
	e.mu.Unlock()

	if err := e.repo.UpdateSpec(ctx, e.themeID, snapshot); err != nil {
		e.mu.Lock()
		e.dirty = true // surface to the caller and keep the pending state
		e.mu.Unlock()
		return err
	}
	return nil
}

// Close flushes any pending edit. Same transition as the timer firing.
func (e *SpecEditor) Close(ctx context.Context) error {
	return e.Flush(ctx)
}

// Dirty reports whether an unpersisted edit is pending.
func (e *SpecEditor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}
