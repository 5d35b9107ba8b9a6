// Package pager fires a next-page request when the last rendered result
// becomes visible.
//
// The pager does not know how visibility is computed. Callers report the
// identity of the last rendered item and whether it currently intersects
// the viewport; the pager turns that stream into at most one trigger per
// not-visible to visible crossing.
package pager

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Gate reports whether a next page may be requested.
// search.Controller implements it.
type Gate interface {
	Loading() bool
	HasMore() bool
}

// Pager tracks one observation target at a time.
type Pager struct {
	gate         Gate
	target       string
	intersecting bool
	fired        int
	logger       zerolog.Logger
}

// New creates a pager that consults gate before firing.
func New(gate Gate) *Pager {
	return &Pager{
		gate:   gate,
		logger: log.With().Str("component", "pager").Logger(),
	}
}

// Observe attaches to target, releasing the previous one. Attaching to a
// new target resets the intersection state, so the next visible report
// counts as a crossing. Re-observing the current target is a no-op.
func (p *Pager) Observe(target string) {
	if target == p.target {
		return
	}
	p.logger.Debug().
		Str("previous", p.target).
		Str("target", target).
		Msg("Observation target changed")
	p.target = target
	p.intersecting = false
}

// Update records the visibility of target and reports whether the caller
// should request the next page now. It returns true only on a transition
// to intersecting while the gate has more pages and is not loading. An
// empty target never fires.
func (p *Pager) Update(target string, intersecting bool) bool {
	p.Observe(target)

	crossed := intersecting && !p.intersecting
	p.intersecting = intersecting

	if !crossed || p.target == "" {
		return false
	}
	if p.gate.Loading() || !p.gate.HasMore() {
		return false
	}

	p.fired++
	p.logger.Debug().Str("target", p.target).Msg("Last item visible, requesting next page")
	return true
}

// Target returns the current observation target.
func (p *Pager) Target() string {
	return p.target
}

// Fired returns how many times the pager has fired.
func (p *Pager) Fired() int {
	return p.fired
}

// Reset releases the current target.
func (p *Pager) Reset() {
	p.target = ""
	p.intersecting = false
}

// Visible reports whether row index lies inside a scroll window of height
// rows starting at offset.
func Visible(index, offset, height int) bool {
	if index < 0 || height <= 0 {
		return false
	}
	return index >= offset && index < offset+height
}
