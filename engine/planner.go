// planner.go - resolves each (source, destination) pair into a root task
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
	"os"
	"path/filepath"

	fio "github.com/opencoff/cpx/fsx"
)

// rootPlan is one resolved (source, destination) pair ready for the
// Walker/Scheduler; SrcIsDir tells Run() whether to invoke the parallel
// walker or dispatch a single leaf task.
type rootPlan struct {
	Src      string
	SrcInfo  *fio.Info
	Dest     string
	SrcIsDir bool
}

// Planner resolves every source in a CopyPlan against the destination,
// applying the destination-is-directory rule, same-file detection and
// the root symlink-follow policy.
type Planner struct {
	opts Options
}

func NewPlanner(opts Options) *Planner {
	return &Planner{opts: opts}
}

// Resolve walks plan.Sources and returns one rootPlan per source that
// resolves, plus every planning error. MultipleSourcesNonDirDest aborts
// the whole plan and is returned alone. Per-source errors (SourceMissing,
// SameFile, TypeMismatch) are also reported to the sink, and that source
// is omitted from the returned roots - see Engine.Run.
func (p *Planner) Resolve(plan *CopyPlan, sink EventSink) ([]rootPlan, []error) {
	if !plan.DestIsDir && len(plan.Sources) > 1 {
		return nil, []error{newErr(MultipleSourcesNonDirDest, "plan", plan.Dest, nil)}
	}

	var roots []rootPlan
	var errs []error

	for _, src := range plan.Sources {
		rp, err := p.resolveOne(src, plan)
		if err != nil {
			sink.OnError(err.(*Error))
			errs = append(errs, err)
			continue
		}
		roots = append(roots, rp)
	}
	return roots, errs
}

func (p *Planner) resolveOne(src string, plan *CopyPlan) (rootPlan, error) {
	si, err := fio.Lstat(src)
	if err != nil {
		return rootPlan{}, newErr(SourceMissing, "lstat", src, err)
	}

	effectiveSrc := src
	if si.Mode()&os.ModeSymlink != 0 && p.opts.Follow != FollowNever {
		resolved, rerr := filepath.EvalSymlinks(src)
		if rerr != nil {
			return rootPlan{}, newErr(SourceMissing, "eval-symlink", src, rerr)
		}
		effectiveSrc = resolved
		si, err = fio.Lstat(effectiveSrc)
		if err != nil {
			return rootPlan{}, newErr(SourceMissing, "lstat", effectiveSrc, err)
		}
	}

	dest := plan.Dest
	if plan.DestIsDir {
		dest = filepath.Join(plan.Dest, filepath.Base(src))
	}

	if p.opts.Parents {
		dest = filepath.Join(plan.Dest, effectiveSrc)
	}

	if di, derr := fio.Lstat(dest); derr == nil {
		if sameFile(si, di) {
			if !(p.opts.Force && p.opts.Backup != BackupNone) {
				return rootPlan{}, newErr(SameFile, "plan", dest, nil)
			}
		}
		if si.IsDir() != di.IsDir() {
			return rootPlan{}, newErr(TypeMismatch, "plan", dest, nil)
		}
	}

	return rootPlan{
		Src:      effectiveSrc,
		SrcInfo:  si,
		Dest:     dest,
		SrcIsDir: si.IsDir(),
	}, nil
}

func sameFile(a, b *fio.Info) bool {
	return a.Dev == b.Dev && a.Ino == b.Ino
}
