// scheduler.go - bounded worker pool with FinalizeDir ordering
//
// (c) 2024 Sudhi Herle <sudhi@herle.net>
//
// Licensing Terms: GPLv2
//
// If you need a commercial license for this work, please contact
// the author.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package engine

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// dirState tracks, for one destination directory, how many of its
// directly-submitted child tasks are still outstanding and whether the
// Walker has finished enumerating it. A directory's FinalizeDir task is
// held back until both reach zero/true - implementing invariant 2
// ("for every FinalizeDir(d), all tasks producing entries inside d have
// observably completed before finalize runs").
type dirState struct {
	pending  atomic.Int64
	walked   atomic.Bool
	finalize atomic.Pointer[Task]
}

// Scheduler is the fixed-capacity worker pool described in spec §4.3.
// It generalizes fsx.WorkPool with the one ordering edge the copy
// engine needs (directory-before-contents, contents-before-finalize)
// and cooperative cancellation via a shared CancelToken.
type Scheduler struct {
	run func(t *Task) error

	cancel *CancelToken
	fatal  bool

	dirs *xsync.MapOf[string, *dirState]
	ch   chan *Task

	wg      sync.WaitGroup
	gen     atomic.Uint64
	closing atomic.Bool

	mu      sync.Mutex
	errs    []error
	ndone   atomic.Int64
}

// NewScheduler creates a scheduler with 'workers' goroutines (minimum
// 1) that invoke 'run' for every dispatched task.
func NewScheduler(workers int, cancel *CancelToken, fatal bool, run func(t *Task) error) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	s := &Scheduler{
		run:    run,
		cancel: cancel,
		fatal:  fatal,
		dirs:   xsync.NewMapOf[string, *dirState](),
		ch:     make(chan *Task, workers*2),
	}

	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.worker()
	}
	return s
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for t := range s.ch {
		if s.cancel.Cancelled() {
			continue
		}

		err := s.run(t)
		s.ndone.Add(1)
		if err != nil {
			s.mu.Lock()
			s.errs = append(s.errs, err)
			s.mu.Unlock()

			if s.fatal {
				s.cancel.Cancel(ReasonError)
			}
		}

		if t.Kind != TaskFinalizeDir && t.Parent != "" {
			s.completeChild(t.Parent)
		}
	}
}

func (s *Scheduler) dirStateFor(dir string) *dirState {
	d, _ := s.dirs.LoadOrStore(dir, &dirState{})
	return d
}

// Submit dispatches a task. Non-finalize tasks bump their parent
// directory's pending counter before going onto the queue, unless the
// task is already Reserved (see ReserveChild); FinalizeDir tasks are
// held in the dirState until the directory's walk is marked complete
// and its pending counter has drained to zero.
func (s *Scheduler) Submit(t *Task) {
	t.Gen = s.gen.Add(1)

	if t.Kind == TaskFinalizeDir {
		ds := s.dirStateFor(t.Dest)
		ds.finalize.Store(t)
		s.maybeRunFinalize(t.Dest, ds)
		return
	}

	if t.Parent != "" && !t.Reserved {
		s.dirStateFor(t.Parent).pending.Add(1)
	}

	if s.cancel.Cancelled() {
		return
	}
	s.ch <- t
}

// ReserveChild bumps dir's pending counter for a child whose
// submission is known to be coming but hasn't happened yet. The Walker
// only discovers a subdirectory during its parent's enumeration - the
// subdirectory's own MkDir task isn't actually submitted until some
// worker goroutine later dequeues and processes it, which can race
// past the parent's own DirDone. Callers must reserve at discovery
// time (walk.Options.DirFound) and mark the eventual Submit call
// Reserved, or the parent's pending count is double-counted.
func (s *Scheduler) ReserveChild(dir string) {
	s.dirStateFor(dir).pending.Add(1)
}

// MarkWalked tells the scheduler the Walker has finished enumerating
// 'dir' - i.e. no further children of dir will ever be submitted. Once
// the pending counter also reaches zero, the held-back FinalizeDir task
// (if any has arrived) runs.
func (s *Scheduler) MarkWalked(dir string) {
	ds := s.dirStateFor(dir)
	ds.walked.Store(true)
	s.maybeRunFinalize(dir, ds)
}

func (s *Scheduler) completeChild(dir string) {
	ds := s.dirStateFor(dir)
	if ds.pending.Add(-1) == 0 {
		s.maybeRunFinalize(dir, ds)
	}
}

func (s *Scheduler) maybeRunFinalize(dir string, ds *dirState) {
	if !ds.walked.Load() || ds.pending.Load() != 0 {
		return
	}
	t := ds.finalize.Swap(nil)
	if t == nil {
		return
	}
	if s.cancel.Cancelled() {
		return
	}
	s.ch <- t
}

// Close signals that no further tasks will be submitted and waits for
// all in-flight and queued tasks to finish. It returns a joined error
// of every task failure observed (nil if none).
func (s *Scheduler) Close() error {
	if s.closing.CompareAndSwap(false, true) {
		close(s.ch)
	}
	s.wg.Wait()

	if len(s.errs) > 0 {
		return errors.Join(s.errs...)
	}
	return nil
}

// Done returns the count of tasks the scheduler has finished running
// (success or failure), useful for tests asserting on throughput.
func (s *Scheduler) Done() int64 {
	return s.ndone.Load()
}
