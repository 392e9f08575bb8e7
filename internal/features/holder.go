package features

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
)

// Holder publishes matrix snapshots to in-process readers. Readers call Current once and
// keep the returned snapshot for the whole query; a concurrent Publish never mutates it.
type Holder struct {
	current atomic.Pointer[Snapshot]
	mu      sync.Mutex
}

// NewHolder creates an empty holder.
func NewHolder() *Holder {
	return &Holder{}
}

// Publish stamps the snapshot with the next version, a fresh id and the build time, then
// swaps it in. The caller must not modify the snapshot afterwards.
func (h *Holder) Publish(s *Snapshot) *Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := *s
	next.Version = 1
	if prev := h.current.Load(); prev != nil {
		next.Version = prev.Version + 1
	}

	next.ID = uuid.NewString()
	next.BuiltAt = time.Now().UTC()
	h.current.Store(&next)

	return &next
}

// Restore installs a snapshot that already carries its version, e.g. one read back from
// the store. It is ignored when an equal or newer version is already current.
func (h *Holder) Restore(s *Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev := h.current.Load(); prev != nil && prev.Version >= s.Version {
		return
	}

	h.current.Store(s)
}

// Current returns the snapshot readers should bind to.
func (h *Holder) Current() (*Snapshot, error) {
	s := h.current.Load()
	if s == nil {
		return nil, errors.New(errors.ErrCodeSnapshotNotLoaded, "no feature matrix snapshot has been published")
	}

	return s, nil
}
