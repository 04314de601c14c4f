// dryrun.go - --dry-run reporting, built on the directory-diff engine
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
	"sync"

	"github.com/opencoff/cpx/cmp"
	fio "github.com/opencoff/cpx/fsx"
	"github.com/opencoff/cpx/walk"
)

// DryRunReport summarizes how a CopyPlan's sources compare with the
// destination, without mutating it: entries that would be created,
// entries that already match (same size, mtime and other compared
// attributes), entries whose source/destination disagree and would be
// overwritten, and entries whose types differ.
type DryRunReport struct {
	WouldCreate []string
	UpToDate    []string
	WouldUpdate []string
	Funny       []string
}

// DryRun walks plan.Sources against plan.Dest using the same
// directory-diff machinery the cmp package already provides, and
// reports what a real Run() would change - without executing a single
// copy. One report is produced per (source, effective-destination)
// pair, in the order the sources appear in the plan.
func DryRun(plan *CopyPlan) ([]DryRunReport, error) {
	planner := NewPlanner(plan.Options)
	roots, errs := planner.Resolve(plan, NopSink{})
	if len(errs) > 0 && len(roots) == 0 {
		return nil, errs[0]
	}

	var reports []DryRunReport
	for i := range roots {
		rp := &roots[i]
		if !rp.SrcIsDir {
			reports = append(reports, leafReport(rp))
			continue
		}

		di, err := os.Stat(rp.Dest)
		if err != nil || !di.IsDir() {
			// cmp.DirTree requires an existing destination
			// directory to lstat against; a brand new (or
			// non-directory) destination means every source
			// entry would be created outright.
			reports = append(reports, wholeTreeReport(rp))
			continue
		}

		diff, err := cmp.DirTree(rp.Src, rp.Dest)
		if err != nil {
			return reports, err
		}
		reports = append(reports, reportFromDiff(diff))
	}
	return reports, nil
}

func leafReport(rp *rootPlan) DryRunReport {
	return DryRunReport{WouldCreate: []string{rp.Dest}}
}

// wholeTreeReport walks rp.Src directly and reports every entry as a
// creation, for the case where rp.Dest does not yet exist as a
// directory and cmp.DirTree has nothing to diff against. WalkFunc's
// apply callback runs concurrently across its worker pool, so every
// append to the shared report is serialized through mu.
func wholeTreeReport(rp *rootPlan) DryRunReport {
	var mu sync.Mutex
	var r DryRunReport
	wopt := walk.Options{Type: walk.ALL}
	walk.WalkFunc([]string{rp.Src}, wopt, func(fi *fio.Info) error {
		if fi.Path() == rp.Src {
			mu.Lock()
			r.WouldCreate = append(r.WouldCreate, rp.Dest)
			mu.Unlock()
			return nil
		}
		rel := relPath(rp.Src, fi.Path())
		mu.Lock()
		r.WouldCreate = append(r.WouldCreate, filepath.Join(rp.Dest, rel))
		mu.Unlock()
		return nil
	})
	return r
}

func reportFromDiff(d *cmp.Difference) DryRunReport {
	var r DryRunReport

	d.LeftDirs.Range(func(nm string, _ *fio.Info) bool {
		r.WouldCreate = append(r.WouldCreate, nm)
		return true
	})
	d.LeftFiles.Range(func(nm string, _ *fio.Info) bool {
		r.WouldCreate = append(r.WouldCreate, nm)
		return true
	})
	d.CommonFiles.Range(func(nm string, _ cmp.Pair) bool {
		r.UpToDate = append(r.UpToDate, nm)
		return true
	})
	d.Diff.Range(func(nm string, _ cmp.Pair) bool {
		r.WouldUpdate = append(r.WouldUpdate, nm)
		return true
	})
	d.Funny.Range(func(nm string, _ cmp.Pair) bool {
		r.Funny = append(r.Funny, nm)
		return true
	})
	return r
}
