package monitoring

import (
	"fmt"
	"log"
	"time"

	"github.com/banshee-data/pattern.report/internal/timeutil"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Clock is used by Stage to measure elapsed time.
var Clock timeutil.Clock = timeutil.RealClock{}

// Stage logs the start and end of one pipeline stage.
type Stage struct {
	pipeline string
	name     string
	start    time.Time
}

// StartStage logs that a stage of the named pipeline has started.
func StartStage(pipeline, name string) *Stage {
	Logf("[%s] %s: started", pipeline, name)
	return &Stage{pipeline: pipeline, name: name, start: Clock.Now()}
}

// Elapsed returns the time since the stage started.
func (s *Stage) Elapsed() time.Duration {
	return Clock.Since(s.start)
}

// Done logs the stage's elapsed time and an optional summary.
func (s *Stage) Done(format string, v ...interface{}) {
	msg := ""
	if format != "" {
		msg = ": " + fmt.Sprintf(format, v...)
	}
	Logf("[%s] %s: done in %s%s", s.pipeline, s.name, s.Elapsed().Round(time.Millisecond), msg)
}

// Fail logs that the stage aborted with err and returns err unchanged.
func (s *Stage) Fail(err error) error {
	Logf("[%s] %s: failed: %v", s.pipeline, s.name, err)
	return err
}
