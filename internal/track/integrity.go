package track

import (
	"errors"
	"fmt"

	"coaster-builder/internal/common"
	"coaster-builder/internal/monitoring"
)

// ErrCorrupt reports that the point sequence broke an internal invariant.
var ErrCorrupt = errors.New("track: corrupted point sequence")

// Check validates the track invariants: unique ids, an index that agrees
// with the sequence, finite positions and the height clamp.
// On violation the last consistent sequence is restored and an error
// wrapping ErrCorrupt is returned.
func (t *Track) Check() error {
	err := t.validate()
	if err == nil {
		return nil
	}
	monitoring.Logf("track: %v, restoring %d points from last consistent state", err, len(t.snapshot))
	t.points = make([]ControlPoint, len(t.snapshot))
	copy(t.points, t.snapshot)
	t.reindex()
	t.version++
	return err
}

func (t *Track) validate() error {
	if len(t.index) != len(t.points) {
		return fmt.Errorf("%w: index has %d entries for %d points", ErrCorrupt, len(t.index), len(t.points))
	}
	for i, p := range t.points {
		if p.ID == "" {
			return fmt.Errorf("%w: point %d has no id", ErrCorrupt, i)
		}
		if j, ok := t.index[p.ID]; !ok || j != i {
			return fmt.Errorf("%w: point %d (%s) indexed at %d", ErrCorrupt, i, p.ID, j)
		}
		if !common.IsFinite(p.Position) {
			return fmt.Errorf("%w: point %d has position %v", ErrCorrupt, i, p.Position)
		}
		if p.Position.Y < t.minHeight {
			return fmt.Errorf("%w: point %d below minimum height", ErrCorrupt, i)
		}
	}
	return nil
}
