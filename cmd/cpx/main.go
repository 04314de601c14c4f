// main.go - cpx command-line entry point
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

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"github.com/opencoff/cpx/engine"
	logger "github.com/opencoff/go-logger"
	flag "github.com/opencoff/pflag"
)

var Z = path.Base(os.Args[0])

func main() {
	var recursive, force, interactive, parents, attrsOnly, removeDest bool
	var hardLink, fatalOnError, resume, help, dryRun bool
	var followAlways, followCmdline bool
	var parallel int
	var symlinkMode, followMode, preserveSpec, backupSpec, reflinkSpec string
	var excludes []string

	fs := flag.NewFlagSet(Z, flag.ExitOnError)
	fs.BoolVarP(&recursive, "recursive", "r", false, "Copy directories recursively")
	fs.BoolVarP(&force, "force", "f", false, "Remove and retry on permission errors")
	fs.BoolVarP(&interactive, "interactive", "i", false, "Prompt before overwrite")
	fs.BoolVarP(&parents, "parents", "", false, "Replicate full source path under destination")
	fs.BoolVarP(&attrsOnly, "attributes-only", "", false, "Apply attributes only, skip data copy")
	fs.BoolVarP(&removeDest, "remove-destination", "", false, "Unlink destination before copying")
	fs.BoolVarP(&hardLink, "link", "l", false, "Hard link files instead of copying")
	fs.BoolVarP(&fatalOnError, "abort-on-error", "", false, "Abort on first error")
	fs.BoolVarP(&resume, "resume", "", false, "Enable hash-verified resume")
	fs.BoolVarP(&dryRun, "dry-run", "n", false, "Report what would be copied, without copying")
	fs.BoolVarP(&followAlways, "dereference", "L", false, "Always follow symlinks in source")
	fs.BoolVarP(&followCmdline, "dereference-command-line", "H", false, "Follow symlinks named on the command line only")
	fs.IntVarP(&parallel, "parallel", "j", 4, "Use `N` worker goroutines")
	fs.StringVarP(&symlinkMode, "symlink", "", "off", "Symlink mode: off|auto|absolute|relative")
	fs.StringVarP(&followMode, "follow", "", "never", "Symlink follow policy: never|always|command-line")
	fs.StringVarP(&preserveSpec, "preserve", "", "default", "Attributes to preserve")
	fs.StringVarP(&backupSpec, "backup", "", "none", "Backup mode: none|simple|numbered|existing")
	fs.StringVarP(&reflinkSpec, "reflink", "", "auto", "Reflink policy: never|auto|always")
	fs.StringSliceVarP(&excludes, "exclude", "", nil, "Exclude glob pattern (repeatable)")
	fs.BoolVarP(&help, "help", "h", false, "Show help and exit")

	if err := fs.Parse(os.Args[1:]); err != nil {
		die(2, "%s", err)
	}
	if help {
		fs.Usage()
		os.Exit(0)
	}

	args := fs.Args()
	if len(args) < 2 {
		die(2, "Usage: %s [options] source... dest", Z)
	}

	sources, dest := args[:len(args)-1], args[len(args)-1]

	follow := parseFollowMode(followMode)
	switch {
	case followAlways:
		follow = engine.FollowAlways
	case followCmdline:
		follow = engine.FollowCommandLine
	}

	plan := &engine.CopyPlan{
		Sources:   sources,
		Dest:      dest,
		DestIsDir: destIsDir(dest, len(sources)),
		Options: engine.NewOptions(
			engine.WithRecursive(recursive),
			engine.WithParallel(parallel),
			engine.WithResume(resume),
			engine.WithForce(force),
			engine.WithInteractive(interactive),
			engine.WithParents(parents),
			engine.WithAttributesOnly(attrsOnly),
			engine.WithRemoveDestination(removeDest),
			engine.WithSymlink(parseSymlinkMode(symlinkMode)),
			engine.WithHardLink(hardLink),
			engine.WithFollow(follow),
			engine.WithPreserve(parsePreserve(preserveSpec)),
			engine.WithBackup(parseBackupMode(backupSpec)),
			engine.WithReflink(parseReflinkMode(reflinkSpec)),
			engine.WithExclude(excludes...),
			engine.WithFatalOnFirstError(fatalOnError),
		),
	}

	log, err := logger.NewLogger(os.Stderr, logger.LOG_INFO, Z, logger.Ldate|logger.Ltime|logger.Lfileloc)
	if err != nil {
		die(1, "logger: %s", err)
	}

	if dryRun {
		reports, derr := engine.DryRun(plan)
		if derr != nil {
			die(1, "%s", derr)
		}
		printDryRun(reports)
		os.Exit(0)
	}

	cancel := engine.NewCancelToken()
	sigch := make(chan os.Signal, 2)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range sigch {
			switch sig {
			case syscall.SIGTERM:
				cancel.Cancel(engine.ReasonSigterm)
			default:
				cancel.Cancel(engine.ReasonSigint)
			}
		}
	}()

	sink := newLogSink(log)
	eng := engine.New(cancel, sink)

	res, runErr := eng.Run(plan)
	if runErr != nil {
		log.Warn("%s", runErr)
	}

	os.Exit(res.ExitCode)
}

func destIsDir(dest string, nsrc int) bool {
	fi, err := os.Stat(dest)
	if err == nil {
		return fi.IsDir()
	}
	return false
}

func parseSymlinkMode(s string) engine.SymlinkMode {
	switch strings.ToLower(s) {
	case "auto":
		return engine.SymlinkAuto
	case "absolute":
		return engine.SymlinkAbsolute
	case "relative":
		return engine.SymlinkRelative
	default:
		return engine.SymlinkOff
	}
}

func parseFollowMode(s string) engine.FollowMode {
	switch strings.ToLower(s) {
	case "always":
		return engine.FollowAlways
	case "command-line":
		return engine.FollowCommandLine
	default:
		return engine.FollowNever
	}
}

func parseReflinkMode(s string) engine.ReflinkMode {
	switch strings.ToLower(s) {
	case "never":
		return engine.ReflinkNever
	case "always":
		return engine.ReflinkAlways
	default:
		return engine.ReflinkAuto
	}
}

func parseBackupMode(s string) engine.BackupMode {
	switch strings.ToLower(s) {
	case "simple":
		return engine.BackupSimple
	case "numbered":
		return engine.BackupNumbered
	case "existing":
		return engine.BackupExisting
	default:
		return engine.BackupNone
	}
}

func parsePreserve(s string) engine.Preserve {
	switch strings.ToLower(s) {
	case "all":
		return engine.PreserveAll
	case "none":
		return engine.PreserveNone
	case "default", "":
		return engine.PreserveDefault
	}

	var p engine.Preserve
	for _, f := range strings.Split(s, ",") {
		switch strings.TrimSpace(f) {
		case "mode":
			p |= engine.PreserveMode
		case "ownership":
			p |= engine.PreserveOwnership
		case "timestamps":
			p |= engine.PreserveTimestamps
		case "links":
			p |= engine.PreserveLinks
		case "context":
			p |= engine.PreserveContext
		case "xattr":
			p |= engine.PreserveXattr
		}
	}
	return p
}

func die(code int, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", Z, fmt.Sprintf(format, args...))
	os.Exit(code)
}
