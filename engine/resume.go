// resume.go - resume index persistence and content hashing
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
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"lukechampine.com/blake3"
)

const resumeIndexName = ".cpx-resume"

// ResumeIndex is the Control Plane's sidecar index: a mapping from
// destination-relative path to ResumeEntry, keys unique. It is read
// once at the start of a run, updated in memory by Record (workers
// store straight into a concurrent map; there is no dedicated writer
// goroutine and nothing is appended to the file during the run) and
// rewritten compactly by Persist when the run ends.
type ResumeIndex struct {
	root string
	m    *xsync.MapOf[string, ResumeEntry]

	mu     sync.Mutex
	dirty  bool
}

// LoadResumeIndex reads the .cpx-resume file at destRoot, if present,
// and returns an index primed with its records. A missing file is not
// an error - the index simply starts empty.
func LoadResumeIndex(destRoot string) (*ResumeIndex, error) {
	idx := &ResumeIndex{
		root: destRoot,
		m:    xsync.NewMapOf[string, ResumeEntry](),
	}

	fd, err := os.Open(filepath.Join(destRoot, resumeIndexName))
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, newErr(Io, "open-resume", destRoot, err)
	}
	defer fd.Close()

	sc := bufio.NewScanner(fd)
	for sc.Scan() {
		rec, ok := parseResumeLine(sc.Text())
		if ok {
			idx.m.Store(rec.RelPath, rec)
		}
	}
	return idx, sc.Err()
}

func parseResumeLine(line string) (ResumeEntry, bool) {
	f := strings.Split(line, "\t")
	if len(f) != 5 {
		return ResumeEntry{}, false
	}
	sz, err := strconv.ParseInt(f[1], 10, 64)
	if err != nil {
		return ResumeEntry{}, false
	}
	mt, err := strconv.ParseInt(f[2], 10, 64)
	if err != nil {
		return ResumeEntry{}, false
	}
	return ResumeEntry{RelPath: f[0], Size: sz, MtimeNs: mt, Hash: f[3], Status: f[4]}, true
}

func (e ResumeEntry) line() string {
	return fmt.Sprintf("%s\t%d\t%d\t%s\t%s", e.RelPath, e.Size, e.MtimeNs, e.Hash, e.Status)
}

// Lookup returns the recorded entry for relPath, if any.
func (idx *ResumeIndex) Lookup(relPath string) (ResumeEntry, bool) {
	return idx.m.Load(relPath)
}

// Record stores/overwrites the entry for rec.RelPath. Safe for
// concurrent callers - all mutation funnels through the underlying
// xsync.MapOf.
func (idx *ResumeIndex) Record(rec ResumeEntry) {
	idx.m.Store(rec.RelPath, rec)
	idx.mu.Lock()
	idx.dirty = true
	idx.mu.Unlock()
}

// Persist rewrites the index file compactly. Called once at the end of
// a run (including a cancelled run).
func (idx *ResumeIndex) Persist() error {
	idx.mu.Lock()
	dirty := idx.dirty
	idx.mu.Unlock()
	if !dirty {
		return nil
	}

	path := filepath.Join(idx.root, resumeIndexName)
	tmp := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())

	fd, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return newErr(Io, "create-resume", path, err)
	}

	w := bufio.NewWriter(fd)
	var werr error
	idx.m.Range(func(_ string, rec ResumeEntry) bool {
		if _, err := w.WriteString(rec.line() + "\n"); err != nil {
			werr = err
			return false
		}
		return true
	})
	if werr == nil {
		werr = w.Flush()
	}
	fd.Close()
	if werr != nil {
		os.Remove(tmp)
		return newErr(Io, "write-resume", path, werr)
	}

	if err := os.Rename(tmp, path); err != nil {
		return newErr(Io, "rename-resume", path, err)
	}
	return nil
}

// HashFile computes a streaming BLAKE3 content hash of 'path', used by
// the resume path to verify a same-size destination actually matches
// its source before skipping the copy.
func HashFile(path string) (string, error) {
	fd, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer fd.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, fd); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
