// sink.go - event sink that reports through go-logger and stdin prompts
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
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/opencoff/cpx/engine"
	logger "github.com/opencoff/go-logger"
)

// logSink implements engine.EventSink by routing entry lifecycle and
// diagnostic events through a go-logger.Logger, and prompts the user on
// stdin/stdout for interactive overwrite decisions. newLogSink wraps it
// in engine.SerializeSink, so this type doesn't need its own locking.
type logSink struct {
	log   logger.Logger
	stdin *bufio.Reader
}

func newLogSink(log logger.Logger) *engine.SerializeSink {
	return engine.SerializeEventSink(&logSink{log: log, stdin: bufio.NewReader(os.Stdin)})
}

func (s *logSink) OnEntryBegin(e *engine.Entry) {
	s.log.Debug("begin %s", e.RelPath)
}

func (s *logSink) OnEntryEnd(e *engine.Entry, err error) {
	if err != nil {
		s.log.Debug("end %s: %s", e.RelPath, err)
		return
	}
	s.log.Debug("end %s", e.RelPath)
}

func (s *logSink) OnBytes(e *engine.Entry, cumulative int64) {
	s.log.Debug("%s: %d bytes", e.RelPath, cumulative)
}

func (s *logSink) OnWarning(path, op string, err error) {
	s.log.Warn("%s: %s: %s", op, path, err)
}

func (s *logSink) OnError(err *engine.Error) {
	s.log.Err("%s", err)
}

func (s *logSink) Prompt(existing, incoming string) engine.PromptReply {
	fmt.Fprintf(os.Stdout, "overwrite %s? (y/n) ", existing)
	line, _ := s.stdin.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return engine.PromptYes
	case "q", "quit":
		return engine.PromptQuit
	default:
		return engine.PromptNo
	}
}

var _ engine.EventSink = &logSink{}

// printDryRun renders DryRun reports to stdout in cp-style "would copy"
// lines, one root per report.
func printDryRun(reports []engine.DryRunReport) {
	for _, r := range reports {
		for _, nm := range r.WouldCreate {
			fmt.Printf("create  %s\n", nm)
		}
		for _, nm := range r.WouldUpdate {
			fmt.Printf("update  %s\n", nm)
		}
		for _, nm := range r.Funny {
			fmt.Printf("funny   %s\n", nm)
		}
	}
}
