// options.go - engine option set
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

// SymlinkMode controls whether the copier replaces a regular-file copy
// with a symlink to the source.
type SymlinkMode int

const (
	SymlinkOff SymlinkMode = iota
	SymlinkAuto
	SymlinkAbsolute
	SymlinkRelative
)

// FollowMode controls symlink dereference policy while walking sources.
type FollowMode int

const (
	FollowNever FollowMode = iota // -P: never dereference
	FollowAlways                 // -L: always dereference
	FollowCommandLine             // -H: dereference only command-line args
)

// ReflinkMode controls use of the FICLONE copy-on-write primitive.
type ReflinkMode int

const (
	ReflinkAuto ReflinkMode = iota
	ReflinkNever
	ReflinkAlways
)

// BackupMode controls what happens to a pre-existing destination before
// it is overwritten.
type BackupMode int

const (
	BackupNone BackupMode = iota
	BackupSimple
	BackupNumbered
	BackupExisting
)

// Preserve is a bitmask of attribute categories the File Copier carries
// over from source to destination.
type Preserve uint

const (
	PreserveMode Preserve = 1 << iota
	PreserveOwnership
	PreserveTimestamps
	PreserveLinks
	PreserveContext
	PreserveXattr

	PreserveNone    Preserve = 0
	PreserveDefault          = PreserveMode | PreserveOwnership | PreserveTimestamps
	PreserveAll              = PreserveMode | PreserveOwnership | PreserveTimestamps | PreserveLinks | PreserveContext | PreserveXattr
)

func (p Preserve) Has(bit Preserve) bool {
	return p&bit != 0
}

// Options is the resolved option set the engine consumes; it is built by
// the external CLI layer (out of scope for the engine itself) and handed
// to the engine unmodified at construction.
type Options struct {
	Recursive         bool
	Parallel          int
	Resume            bool
	Force             bool
	Interactive       bool
	Parents           bool
	AttributesOnly    bool
	RemoveDestination bool
	Symlink           SymlinkMode
	HardLink          bool
	Follow            FollowMode
	Preserve          Preserve
	Backup            BackupMode
	Reflink           ReflinkMode
	Exclude           []string
	FatalOnFirstError bool
}

// Option is a functional option used to build an Options value, mirroring
// the functional-options layer used by cmp.Option.
type Option func(*Options)

// DefaultOptions returns an Options value with the engine's documented
// defaults: recursive off, 4 workers, default attribute preservation,
// never-follow symlinks, no backups, auto reflink.
func DefaultOptions() Options {
	return Options{
		Parallel: 4,
		Preserve: PreserveDefault,
		Follow:   FollowNever,
		Reflink:  ReflinkAuto,
	}
}

// NewOptions builds an Options value starting from the defaults and
// applying each Option in order.
func NewOptions(opts ...Option) Options {
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if o.Parallel <= 0 {
		o.Parallel = 4
	}
	return o
}

func WithRecursive(b bool) Option         { return func(o *Options) { o.Recursive = b } }
func WithParallel(n int) Option           { return func(o *Options) { o.Parallel = n } }
func WithResume(b bool) Option            { return func(o *Options) { o.Resume = b } }
func WithForce(b bool) Option             { return func(o *Options) { o.Force = b } }
func WithInteractive(b bool) Option       { return func(o *Options) { o.Interactive = b } }
func WithParents(b bool) Option           { return func(o *Options) { o.Parents = b } }
func WithAttributesOnly(b bool) Option    { return func(o *Options) { o.AttributesOnly = b } }
func WithRemoveDestination(b bool) Option { return func(o *Options) { o.RemoveDestination = b } }
func WithSymlink(m SymlinkMode) Option    { return func(o *Options) { o.Symlink = m } }
func WithHardLink(b bool) Option          { return func(o *Options) { o.HardLink = b } }
func WithFollow(m FollowMode) Option      { return func(o *Options) { o.Follow = m } }
func WithPreserve(p Preserve) Option      { return func(o *Options) { o.Preserve = p } }
func WithBackup(m BackupMode) Option      { return func(o *Options) { o.Backup = m } }
func WithReflink(m ReflinkMode) Option    { return func(o *Options) { o.Reflink = m } }
func WithExclude(pats ...string) Option   { return func(o *Options) { o.Exclude = pats } }
func WithFatalOnFirstError(b bool) Option { return func(o *Options) { o.FatalOnFirstError = b } }
