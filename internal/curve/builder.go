package curve

import "coaster-builder/internal/track"

// Builder memoizes the curve of one track by its version, so consumers can
// ask for the curve every frame and only pay for a rebuild after a mutation.
type Builder struct {
	opts    Options
	track   *track.Track
	version uint64
	curve   *Curve
	builds  int
}

// NewBuilder creates a builder with the given options.
func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts}
}

// Options returns the options used for every build.
func (b *Builder) Options() Options {
	return b.opts
}

// Curve returns the curve for t, rebuilding only when t changed.
func (b *Builder) Curve(t *track.Track) *Curve {
	if b.curve != nil && b.track == t && b.version == t.Version() {
		return b.curve
	}
	b.curve = Build(t.Positions(), b.opts)
	b.track = t
	b.version = t.Version()
	b.builds++
	return b.curve
}

// Invalidate drops the cached curve.
func (b *Builder) Invalidate() {
	b.curve = nil
}

// Builds returns how many times a curve was actually constructed.
func (b *Builder) Builds() int {
	return b.builds
}
