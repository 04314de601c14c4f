// engine.go - ties the Planner, Walker, Scheduler, File Copier, Link
// Tracker and Control Plane into a single Run() entry point.
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
	"fmt"
	"path/filepath"
	"strings"

	fio "github.com/opencoff/cpx/fsx"
	"github.com/opencoff/cpx/walk"
)

// Result summarizes one Run() invocation.
type Result struct {
	Errors    int
	Cancelled bool
	ExitCode  int
}

// Engine is the entry point external callers (cmd/cpx, tests) use. It
// owns no global state: the CancelToken is supplied by the caller so
// multiple engines can run independently in the same process.
type Engine struct {
	Sink   EventSink
	Cancel *CancelToken
}

func New(cancel *CancelToken, sink EventSink) *Engine {
	if sink == nil {
		sink = NopSink{}
	}
	if cancel == nil {
		cancel = NewCancelToken()
	}
	return &Engine{Sink: sink, Cancel: cancel}
}

// Run executes plan to completion (or cancellation) and returns a
// Result summarizing error/cancellation state. It never runs the Go
// toolchain or spawns external processes - every operation goes
// through the File Copier's own primitives.
func (e *Engine) Run(plan *CopyPlan) (Result, error) {
	opts := plan.Options
	planner := NewPlanner(opts)
	roots, planErrs := planner.Resolve(plan, e.Sink)

	errCount := len(planErrs)

	if len(roots) == 0 {
		return e.finish(errCount), errors.Join(planErrs...)
	}

	destRoot := plan.Dest
	if !plan.DestIsDir {
		destRoot = filepath.Dir(roots[0].Dest)
	}

	resume, err := LoadResumeIndex(destRoot)
	if err != nil {
		resume = nil
	}

	links := NewLinkTracker()
	copier := NewCopier(opts, e.Sink, links, resume, e.Cancel)
	matcher := NewMatcher(opts.Exclude)

	var allErrs []error
	allErrs = append(allErrs, planErrs...)

	for i := range roots {
		rp := &roots[i]

		if !sameSourceDevice(roots, i) {
			links.Reset()
		}

		if rp.SrcIsDir && !opts.Recursive {
			err := newErr(TypeMismatch, "recursive-required", rp.Src, fmt.Errorf("omitting directory"))
			e.Sink.OnError(err)
			allErrs = append(allErrs, err)
			errCount++
			continue
		}

		sched := NewScheduler(opts.Parallel, e.Cancel, opts.FatalOnFirstError, func(t *Task) error {
			return e.runTask(copier, t)
		})

		if rp.SrcIsDir {
			e.walkTree(rp, opts, matcher, sched)
		} else {
			e.submitLeaf(rp, sched)
		}

		if terr := sched.Close(); terr != nil {
			allErrs = append(allErrs, terr)
			errCount += countJoined(terr)
		}
	}

	if resume != nil {
		resume.Persist()
	}

	res := e.finish(errCount)
	if len(allErrs) == 0 {
		return res, nil
	}
	return res, errors.Join(allErrs...)
}

func (e *Engine) finish(errCount int) Result {
	cancelled := e.Cancel.Cancelled()
	res := Result{Errors: errCount, Cancelled: cancelled}
	switch {
	case cancelled:
		res.ExitCode = e.Cancel.ExitCode()
	case errCount > 0:
		res.ExitCode = 1
	default:
		res.ExitCode = 0
	}
	return res
}

// sameSourceDevice reports whether roots[i] shares a device with the
// root right before it, per the Link Tracker's per-device epoch rule. A
// simple conservative approximation: Run resets the tracker before a
// root whenever the device changes from the previous root.
func sameSourceDevice(roots []rootPlan, i int) bool {
	if i == 0 {
		return true
	}
	return roots[i].SrcInfo.Dev == roots[i-1].SrcInfo.Dev
}

func countJoined(err error) int {
	if err == nil {
		return 0
	}
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		return len(u.Unwrap())
	}
	return 1
}

func (e *Engine) runTask(c *Copier, t *Task) error {
	switch t.Kind {
	case TaskFinalizeDir:
		return c.FinalizeDir(t.Entry, t.Dest)
	case TaskMakeHardLink:
		return c.tryHardLink(t.ExistingDest, t.Dest)
	default:
		return c.CopyEntry(t.Entry, t.Dest)
	}
}

// walkTree drives walk.WalkFunc over a single directory root, submitting
// a MkDir task and a held-back FinalizeDir task for every directory
// encountered and a CopyFile task for every other entry (the copier
// dispatches symlinks and special files by kind), bridging the
// Walker's per-directory completion signal to the Scheduler.
func (e *Engine) walkTree(rp *rootPlan, opts Options, matcher *Matcher, sched *Scheduler) {
	wopt := walk.Options{
		Concurrency:    opts.Parallel,
		FollowSymlinks: opts.Follow == FollowAlways,
		Type:           walk.ALL,
		Filter: func(fi *fio.Info) (bool, error) {
			rel := relPath(rp.Src, fi.Path())
			return matcher.Match(rel, fi.IsDir()), nil
		},
		DirDone: func(path string) {
			destDir := destFor(rp, path)
			sched.MarkWalked(destDir)
		},
		DirFound: func(parent, child string) {
			if parent == "" {
				return // top-level root; its own tasks are submitted directly, below
			}
			sched.ReserveChild(destFor(rp, parent))
		},
	}

	// root directory itself
	sched.Submit(&Task{Kind: TaskMkDir, Dest: rp.Dest, Mode: rp.SrcInfo.Mode().Perm(), Entry: entryFrom(rp, rp.SrcInfo, rp.Dest)})
	sched.Submit(&Task{
		Kind:   TaskFinalizeDir,
		Dest:   rp.Dest,
		Entry:  entryFrom(rp, rp.SrcInfo, rp.Dest),
		Parent: "",
	})

	apply := func(fi *fio.Info) error {
		if e.Cancel.Cancelled() {
			return nil
		}

		srcPath := fi.Path()
		if srcPath == rp.Src {
			return nil // root already submitted above
		}

		dest := destFor(rp, srcPath)
		parent := filepath.Dir(dest)
		entry := entryFrom(rp, fi, dest)

		switch entry.Kind {
		case KindDirectory:
			// pending was already bumped for parent when the Walker
			// discovered this subdirectory (DirFound, above) - mark
			// Reserved so Submit doesn't double-count it.
			sched.Submit(&Task{Kind: TaskMkDir, Entry: entry, Dest: dest, Mode: fi.Mode().Perm(), Parent: parent, Reserved: true})
			sched.Submit(&Task{Kind: TaskFinalizeDir, Dest: dest, Entry: entry})
		default:
			sched.Submit(&Task{Kind: TaskCopyFile, Entry: entry, Dest: dest, Parent: parent})
		}
		return nil
	}

	if err := walk.WalkFunc([]string{rp.Src}, wopt, apply); err != nil {
		e.Sink.OnError(newErr(Io, "walk", rp.Src, err))
	}

	// the root itself counts as "walked" immediately: its own children
	// are all submitted by the time WalkFunc returns.
	sched.MarkWalked(rp.Dest)
}

func (e *Engine) submitLeaf(rp *rootPlan, sched *Scheduler) {
	entry := entryFrom(rp, rp.SrcInfo, rp.Dest)
	sched.Submit(&Task{Kind: TaskCopyFile, Entry: entry, Dest: rp.Dest, Parent: filepath.Dir(rp.Dest)})
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.Base(path)
	}
	return rel
}

func destFor(rp *rootPlan, srcPath string) string {
	rel := relPath(rp.Src, srcPath)
	if rel == "." {
		return rp.Dest
	}
	return filepath.Join(rp.Dest, rel)
}

func entryFrom(rp *rootPlan, fi *fio.Info, dest string) *Entry {
	return &Entry{
		SrcPath:   fi.Path(),
		RelPath:   strings.TrimPrefix(relPath(rp.Dest, dest), "./"),
		SrcRoot:   rp.Src,
		Kind:      entryKind(fi),
		Info:      fi,
		LinkCount: fi.Nlink,
		Dev:       fi.Dev,
		Rdev:      fi.Rdev,
		Ino:       fi.Ino,
	}
}
