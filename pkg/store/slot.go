package store

import (
	"context"
	"time"

	"github.com/matzehuels/olette/pkg/errors"
	"github.com/matzehuels/olette/pkg/observability"
)

// Slot binds a store to one slot name.
type Slot struct {
	store Store
	name  string
	ttl   time.Duration
}

// NewSlot returns a handle on the named slot. A non-positive ttl means [DefaultTTL].
func NewSlot(st Store, name string, ttl time.Duration) *Slot {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Slot{store: st, name: name, ttl: ttl}
}

// Name returns the slot name.
func (s *Slot) Name() string { return s.name }

// Store returns the backing store.
func (s *Slot) Store() Store { return s.store }

// Load returns the persisted snapshot. ok is false on first run or after
// the slot expired.
func (s *Slot) Load(ctx context.Context) (snapshot []byte, ok bool, err error) {
	rec, err := s.store.Get(ctx, s.name)
	observability.Store().OnSlotRead(ctx, BackendName(s.store), rec != nil)
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeStore, err, "read slot %q", s.name)
	}
	if rec == nil {
		return nil, false, nil
	}
	return rec.Snapshot, true, nil
}

// Record returns the full persisted record, or nil.
func (s *Slot) Record(ctx context.Context) (*Record, error) {
	rec, err := s.store.Get(ctx, s.name)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "read slot %q", s.name)
	}
	return rec, nil
}

// Save overwrites the slot and renews its TTL.
func (s *Slot) Save(ctx context.Context, snapshot []byte) error {
	err := s.store.Set(ctx, NewRecord(s.name, snapshot, s.ttl))
	observability.Store().OnSlotWrite(ctx, BackendName(s.store), len(snapshot), err)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "write slot %q", s.name)
	}
	return nil
}

// Clear deletes the slot.
func (s *Slot) Clear(ctx context.Context) error {
	if err := s.store.Delete(ctx, s.name); err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "clear slot %q", s.name)
	}
	return nil
}
