// cmd_clone.go -- implements the "clone" command to clone dir trees

package main

import (
	"os"
	"path/filepath"

	"github.com/opencoff/cpx/engine"
)

type cloneCmd struct {
}

func (t *cloneCmd) Reset() {
}

// clone - takes no options and recursively mirrors the contents of LHS
// into RHS (entry by entry, so the two roots line up) using the same
// engine the cpx binary drives.
func (t *cloneCmd) Run(env *TestEnv, args []string) error {
	ents, err := os.ReadDir(env.Lhs)
	if err != nil {
		return err
	}
	if len(ents) == 0 {
		return nil
	}

	sources := make([]string, 0, len(ents))
	for _, e := range ents {
		sources = append(sources, filepath.Join(env.Lhs, e.Name()))
	}

	plan := &engine.CopyPlan{
		Sources:   sources,
		Dest:      env.Rhs,
		DestIsDir: true,
		Options: engine.NewOptions(
			engine.WithRecursive(true),
			engine.WithParallel(env.ncpu),
		),
	}

	eng := engine.New(engine.NewCancelToken(), engine.NopSink{})
	_, err = eng.Run(plan)
	return err
}

func (t *cloneCmd) Name() string {
	return "clone"
}

var _ Cmd = &cloneCmd{}

func init() {
	RegisterCommand(&cloneCmd{})
}
