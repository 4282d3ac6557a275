package installer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jamesainslie/mminstall/pkg/mminstall/errdefs"
	"github.com/jamesainslie/mminstall/pkg/mminstall/logging"
	"github.com/jamesainslie/mminstall/pkg/mminstall/manifest"
)

// ErrInstallFailed is the only failure a Runner reports to its caller. The
// cause is written to the log.
var ErrInstallFailed = errors.New("installation failed, see the log for details")

type (
	// Job performs one install run.
	Job func(ctx context.Context) (*Summary, error)

	// Outcome is delivered once per started run.
	Outcome struct {
		Summary *Summary
		Err     error
	}

	// RunnerOption configures a Runner.
	RunnerOption func(*Runner)
)

// Runner allows at most one install run in flight.
type Runner struct {
	job          Job
	manifestPath string
	onFinish     func(*Summary, error)

	mu   sync.Mutex
	busy bool
}

// WithFinishHook registers fn to receive every finished run with its full
// error before the opaque Outcome is delivered.
func WithFinishHook(fn func(*Summary, error)) RunnerOption {
	return func(r *Runner) {
		r.onFinish = fn
	}
}

// NewRunner returns a Runner for in.
func NewRunner(in *Installer, opts ...RunnerOption) *Runner {
	return NewJobRunner(in.ManifestPath(), in.Run, opts...)
}

// NewJobRunner returns a Runner for an arbitrary job. manifestPath backs
// CanStart.
func NewJobRunner(manifestPath string, job Job, opts ...RunnerOption) *Runner {
	r := &Runner{job: job, manifestPath: manifestPath}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CanStart reports whether a run can start: the manifest exists. A run
// already in flight does not change the answer; Start reports that case
// with errdefs.ErrBusy.
func (r *Runner) CanStart() bool {
	return manifest.Exists(r.manifestPath)
}

// Busy reports whether a run is in flight.
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy
}

// Start dispatches a run onto its own goroutine. It fails immediately with
// errdefs.ErrBusy when a run is already active. The run is not cancelled
// with ctx; only ctx's values are kept.
func (r *Runner) Start(ctx context.Context) (<-chan Outcome, error) {
	r.mu.Lock()
	if r.busy {
		r.mu.Unlock()
		logging.Get("runner").Debug("install already in progress")
		return nil, errdefs.ErrBusy
	}
	r.busy = true
	r.mu.Unlock()

	out := make(chan Outcome, 1)
	go r.work(context.WithoutCancel(ctx), out)
	return out, nil
}

// Run starts a run and waits for it.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	ch, err := r.Start(ctx)
	if err != nil {
		return nil, err
	}
	o := <-ch
	return o.Summary, o.Err
}

func (r *Runner) work(ctx context.Context, out chan<- Outcome) {
	defer close(out)
	log := logging.Get("runner")

	summary, err := r.runJob(ctx)
	if r.onFinish != nil {
		r.onFinish(summary, err)
	}

	r.mu.Lock()
	r.busy = false
	r.mu.Unlock()

	if err != nil {
		log.Error("install run failed", "error", err)
		out <- Outcome{Summary: summary, Err: ErrInstallFailed}
		return
	}
	out <- Outcome{Summary: summary}
}

// runJob converts a panic in the job into an error so the busy flag is
// always released.
func (r *Runner) runJob(ctx context.Context) (s *Summary, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Join(ErrInstallFailed, panicError{p})
		}
	}()
	return r.job(ctx)
}

type panicError struct{ v any }

func (p panicError) Error() string { return fmt.Sprintf("panic: %v", p.v) }
