// types.go - core data model: CopyPlan, Entry, Task, LinkKey
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
	"fmt"
	"io/fs"
	"time"

	fio "github.com/opencoff/cpx/fsx"
)

// CopyPlan is the engine's input contract: an ordered list of sources, a
// destination, and a resolved option set. It is built once by the caller
// and never mutated by the engine.
type CopyPlan struct {
	Sources []string
	Dest    string

	// DestIsDir is true when Dest already exists and is a directory;
	// in that case every source's basename is appended to it. When
	// false, Dest names the resolved destination verbatim and there
	// must be exactly one source.
	DestIsDir bool

	Options Options
}

// EntryKind enumerates the filesystem object types the Walker can
// produce.
type EntryKind int

const (
	KindRegular EntryKind = iota
	KindDirectory
	KindSymlink
	KindFifo
	KindSocket
	KindBlock
	KindChar
)

func entryKind(fi *fio.Info) EntryKind {
	m := fi.Mode()
	switch {
	case m.IsDir():
		return KindDirectory
	case m&fs.ModeSymlink != 0:
		return KindSymlink
	case m&fs.ModeNamedPipe != 0:
		return KindFifo
	case m&fs.ModeSocket != 0:
		return KindSocket
	case m&(fs.ModeDevice|fs.ModeCharDevice) == fs.ModeDevice|fs.ModeCharDevice:
		return KindChar
	case m&fs.ModeDevice != 0:
		return KindBlock
	default:
		return KindRegular
	}
}

// Entry is a single filesystem object discovered by the Walker. It is
// produced once, handed to the Scheduler by pointer inside its Task,
// and dropped when its task completes.
type Entry struct {
	SrcPath  string // absolute (or plan-relative) source path
	RelPath  string // path relative to its source root
	SrcRoot  string // the source root this entry was discovered under

	Kind EntryKind
	Info *fio.Info // lstat'd metadata; the copier re-stats the source only for special files

	LinkCount uint32
	Dev, Rdev uint64
	Ino       uint64
}

// LinkKey identifies a source file that may have multiple hard links.
type LinkKey struct {
	Dev  uint64
	Rdev uint64
	Ino  uint64
}

func (k LinkKey) String() string {
	return fmt.Sprintf("%d:%d:%d", k.Dev, k.Rdev, k.Ino)
}

func linkKeyOf(e *Entry) LinkKey {
	return LinkKey{Dev: e.Dev, Rdev: e.Rdev, Ino: e.Ino}
}

// TaskKind enumerates the task variants the Scheduler dispatches.
type TaskKind int

const (
	TaskMkDir TaskKind = iota
	TaskCopyFile
	TaskMakeSymlink
	TaskMakeHardLink
	TaskMakeSpecial
	TaskFinalizeDir
)

// Task is a single scheduled unit of work. Not every field is populated
// for every Kind; the field comments below name the kinds they apply to.
type Task struct {
	Kind TaskKind
	Gen  uint64 // generation counter, used by cancellation

	Entry *Entry // source entry, when applicable
	Dest  string // destination path
	Mode  fs.FileMode

	// MakeSymlink target spec (raw readlink() target, or a
	// recomputed absolute/relative target per SymlinkMode).
	Target string

	// MakeHardLink: the pre-existing destination to link from.
	ExistingDest string

	// parent directory this task's destination lives under; used by
	// the Scheduler's per-directory completion counters.
	Parent string

	// Reserved is true when the Scheduler's pending counter for
	// Parent was already bumped ahead of submission - via
	// ReserveChild, at walk.Options.DirFound time - so Submit must
	// not increment it again. Only subdirectory MkDir tasks set this;
	// every other task kind is submitted and counted in one step.
	Reserved bool
}

// ResumeEntry is a single persisted record in the resume index: the
// destination-relative path, source size/mtime, a content hash, and a
// completion flag.
type ResumeEntry struct {
	RelPath string
	Size    int64
	MtimeNs int64
	Hash    string
	Status  string // "ok" or "partial"
}

func mtimeNs(t time.Time) int64 {
	return t.UnixNano()
}
