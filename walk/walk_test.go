// walk_test.go -- test harness for walk.go

package walk

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	fio "github.com/opencoff/cpx/fsx"
)

func newAsserter(t *testing.T) func(cond bool, msg string, args ...interface{}) {
	return func(cond bool, msg string, args ...interface{}) {
		if cond {
			return
		}

		_, file, line, ok := runtime.Caller(1)
		if !ok {
			file = "???"
			line = 0
		}

		s := fmt.Sprintf(msg, args...)
		t.Fatalf("\n%s: %d: Assertion failed: %s\n", file, line, s)
	}
}

// make a test dir with known entries:
//
//	a
//	b/c/d
//	b/c/e
//	b/symlink -> b/c/e
func mkTestDir(tmpdir string) error {
	if err := mkfile(tmpdir, "a"); err != nil {
		return err
	}
	if err := mkfile(tmpdir, "b/c/d"); err != nil {
		return err
	}
	if err := mkfile(tmpdir, "b/c/e"); err != nil {
		return err
	}
	return mksym(tmpdir, "b/c/e", "b/symlink")
}

func mkfile(tmpdir, p string) error {
	fn := filepath.Join(tmpdir, p)
	bn := filepath.Dir(fn)
	if err := os.MkdirAll(bn, 0700); err != nil {
		return fmt.Errorf("mkdir: %s: %w", bn, err)
	}

	fd, err := os.OpenFile(fn, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("creat: %s: %w", fn, err)
	}
	fd.Write([]byte("hello"))
	fd.Sync()
	return fd.Close()
}

func mksym(tmpdir, target, link string) error {
	t := filepath.Join(tmpdir, target)
	l := filepath.Join(tmpdir, link)
	return os.Symlink(t, l)
}

func TestWalkSimple(t *testing.T) {
	assert := newAsserter(t)
	tmpdir := t.TempDir()
	assert(mkTestDir(tmpdir) == nil, "mktmp failed")

	var mu sync.Mutex
	seen := make(map[string]bool)

	opt := Options{
		Type: ALL,
		Filter: func(fi *fio.Info) (bool, error) {
			return false, nil
		},
	}

	err := WalkFunc([]string{tmpdir}, opt, func(fi *fio.Info) error {
		mu.Lock()
		seen[fi.Path()] = true
		mu.Unlock()
		return nil
	})
	assert(err == nil, "walk: %s", err)

	want := []string{
		tmpdir,
		filepath.Join(tmpdir, "a"),
		filepath.Join(tmpdir, "b"),
		filepath.Join(tmpdir, "b", "c"),
		filepath.Join(tmpdir, "b", "c", "d"),
		filepath.Join(tmpdir, "b", "c", "e"),
		filepath.Join(tmpdir, "b", "symlink"),
	}
	for _, nm := range want {
		assert(seen[nm], "walk: missing %s", nm)
	}
}

// TestWalkDirDone verifies that DirDone fires exactly once for every
// directory encountered, and that a *file* child is never submitted
// after its own parent's DirDone has fired - file children are applied
// synchronously during their parent's enumeration, strictly before
// DirDone(parent) can run.
//
// A subdirectory child is a different story: it is only queued during
// enumeration, and its own apply() call happens later, whenever some
// worker goroutine dequeues it - which can legitimately race past its
// parent's DirDone. Callers that need a synchronous "this child is
// coming" signal ahead of DirDone must use DirFound instead; see
// TestWalkDirFoundPrecedesDirDone.
func TestWalkDirDone(t *testing.T) {
	assert := newAsserter(t)
	tmpdir := t.TempDir()
	assert(mkTestDir(tmpdir) == nil, "mktmp failed")

	var mu sync.Mutex
	doneOrder := make(map[string]bool)

	opt := Options{
		Type: ALL,
		DirDone: func(path string) {
			mu.Lock()
			doneOrder[path] = true
			mu.Unlock()
		},
	}

	err := WalkFunc([]string{tmpdir}, opt, func(fi *fio.Info) error {
		if fi.Mode().IsDir() {
			return nil
		}
		mu.Lock()
		dirDone := doneOrder[filepath.Dir(fi.Path())]
		mu.Unlock()
		assert(!dirDone, "%s: file submitted after parent DirDone", fi.Path())
		return nil
	})
	assert(err == nil, "walk: %s", err)

	for _, dir := range []string{tmpdir, filepath.Join(tmpdir, "b"), filepath.Join(tmpdir, "b", "c")} {
		mu.Lock()
		ok := doneOrder[dir]
		mu.Unlock()
		assert(ok, "DirDone never fired for %s", dir)
	}
}

// TestWalkDirFoundPrecedesDirDone verifies the guarantee DirFound
// exists for: every subdirectory child is reported through DirFound
// strictly before its parent's own DirDone fires, even though the
// child's own apply() call (via DirDone/output) may happen much later.
func TestWalkDirFoundPrecedesDirDone(t *testing.T) {
	assert := newAsserter(t)
	tmpdir := t.TempDir()
	assert(mkTestDir(tmpdir) == nil, "mktmp failed")

	var mu sync.Mutex
	foundBefore := make(map[string]bool)
	doneOrder := make(map[string]bool)

	opt := Options{
		Type: ALL,
		DirFound: func(parent, child string) {
			mu.Lock()
			defer mu.Unlock()
			if parent == "" {
				return
			}
			foundBefore[child] = !doneOrder[parent]
		},
		DirDone: func(path string) {
			mu.Lock()
			doneOrder[path] = true
			mu.Unlock()
		},
	}

	err := WalkFunc([]string{tmpdir}, opt, func(fi *fio.Info) error { return nil })
	assert(err == nil, "walk: %s", err)

	for _, dir := range []string{filepath.Join(tmpdir, "b"), filepath.Join(tmpdir, "b", "c")} {
		mu.Lock()
		ok := foundBefore[dir]
		mu.Unlock()
		assert(ok, "%s: DirFound did not fire before parent DirDone", dir)
	}
}
