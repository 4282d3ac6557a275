package installer

import (
	"github.com/jamesainslie/mminstall/pkg/mminstall/download"
	"github.com/jamesainslie/mminstall/pkg/mminstall/event"
)

// minProgressDelta is the smallest change in the overall fraction that a
// download callback reports. Step boundaries are always reported.
const minProgressDelta = 0.001

// progress turns per-artifact byte counts into the overall run fraction
// (completed + current) / total. Reported values never decrease.
type progress struct {
	emit      func(event.Event)
	total     int
	completed int
	last      float64
}

func newProgress(total int, emit func(event.Event)) *progress {
	return &progress{emit: emit, total: max(total, 1)}
}

func (p *progress) report(f float64) {
	f = min(max(f, 0), 1)
	if f < p.last {
		f = p.last
	}
	p.last = f
	p.emit(event.UpdateProgress(f))
}

// start reports zero before any work.
func (p *progress) start() { p.report(0) }

// artifact is the download callback for the current step. An unknown total
// length contributes nothing until the step completes.
func (p *progress) artifact(dp download.Progress) {
	f, ok := dp.Fraction()
	if !ok {
		return
	}
	overall := (float64(p.completed) + f) / float64(p.total)
	if overall-p.last < minProgressDelta {
		return
	}
	p.report(overall)
}

// step marks the current artifact done.
func (p *progress) step() {
	p.completed = min(p.completed+1, p.total)
	p.report(float64(p.completed) / float64(p.total))
}

// finish reports exactly 1.
func (p *progress) finish() {
	p.completed = p.total
	p.report(1)
}
