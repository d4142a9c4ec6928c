// Package interpreter runs Malayalam-keyword scripts: assignments, print,
// counted loops, equality conditionals and the tea break pause.
package interpreter

import (
	"strconv"
	"strings"
	"time"

	"github.com/antibyte/chayakada/pkg/logger"
)

// DefaultPauseDuration is how long a tea break blocks when not configured.
const DefaultPauseDuration = time.Second

// Interpreter holds run configuration only. It is safe for concurrent use:
// every Run starts from its own empty variable store and output buffer.
type Interpreter struct {
	sleeper Sleeper
	pause   time.Duration
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithSleeper replaces the wall-clock sleeper, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(in *Interpreter) {
		if s != nil {
			in.sleeper = s
		}
	}
}

// WithPauseDuration sets how long a tea break blocks. Negative values are
// treated as zero.
func WithPauseDuration(d time.Duration) Option {
	return func(in *Interpreter) {
		if d < 0 {
			d = 0
		}
		in.pause = d
	}
}

// New creates an Interpreter.
func New(opts ...Option) *Interpreter {
	in := &Interpreter{
		sleeper: RealSleeper{},
		pause:   DefaultPauseDuration,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// PauseDuration returns the configured tea break length.
func (in *Interpreter) PauseDuration() time.Duration {
	return in.pause
}

// Result is the outcome of one run.
type Result struct {
	Output     string         // Lines joined with "\n"
	Lines      []string       // emitted lines in order
	Dispatched int            // statements dispatched, counting every loop iteration
	Pauses     int            // tea breaks taken
	Variables  int            // distinct variables set by the end of the run
	Errors     []*ScriptError // error lines, in emission order
}

// Run executes source and returns its output. It never fails: problems in the
// script become lines of the output.
func (in *Interpreter) Run(source string) string {
	return in.Execute(source).Output
}

// Execute runs source and returns the output together with run counters.
func (in *Interpreter) Execute(source string) *Result {
	start := time.Now()
	r := &run{
		interp: in,
		vars:   NewVariables(),
		result: &Result{},
	}

	lines := strings.Split(source, "\n")
	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			i++
			continue
		}

		cmd := ClassifyStatement(line)
		if !cmd.Kind.IsBlockStart() {
			r.dispatch(cmd)
			i++
			continue
		}

		body, next := collectBlock(lines, i, KeywordTerminator)
		if cmd.Kind == CommandLoop {
			r.loop(cmd.Payload, body)
		} else {
			r.conditional(cmd.Payload, body)
		}
		i = next
	}

	r.result.Output = strings.Join(r.result.Lines, "\n")
	r.result.Variables = r.vars.Len()
	logger.Debug(logger.AreaInterpreter, "Run finished: %d source lines, %d statements, %d output lines, %d errors, %d pauses, %d variables in %v",
		len(lines), r.result.Dispatched, len(r.result.Lines), len(r.result.Errors), r.result.Pauses, r.result.Variables, time.Since(start))
	return r.result
}

// run is the mutable state of a single execution.
type run struct {
	interp *Interpreter
	vars   *Variables
	result *Result
}

func (r *run) emit(line string) {
	r.result.Lines = append(r.result.Lines, line)
}

func (r *run) fail(err *ScriptError) {
	r.result.Errors = append(r.result.Errors, err)
	r.emit(err.Error())
	logger.Debug(logger.AreaInterpreter, "Script error %s: %q", err.Kind, err.Source)
}

// dispatchLine classifies and executes one block body line.
func (r *run) dispatchLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	r.dispatch(Classify(line))
}

// dispatch executes a single statement. Loop and if are only recognised by
// the program runner, so reaching them here means a block start inside a
// body, which is reported like any unknown command.
func (r *run) dispatch(cmd Command) {
	r.result.Dispatched++
	switch cmd.Kind {
	case CommandAssign:
		r.vars.Set(cmd.Name, cmd.Value)
	case CommandPrint:
		r.print(cmd.Payload)
	case CommandPause:
		r.pause()
	case CommandLoop, CommandIf, CommandUnknown:
		r.fail(newScriptError(ErrUnknownCommand, cmd.Line))
	}
}

// print emits a quoted literal as is, a bare variable name as its value, and
// anything else with placeholders substituted.
func (r *run) print(payload string) {
	if isQuoted(payload) {
		r.emit(unquote(payload))
		return
	}
	if value, ok := r.vars.Get(payload); ok {
		r.emit(value)
		return
	}
	r.emit(r.vars.Substitute(payload))
}

func (r *run) pause() {
	r.emit(PauseMessage)
	r.result.Pauses++
	r.interp.sleeper.Sleep(r.interp.pause)
}

func (r *run) loop(payload string, body []string) {
	count, err := parseCount(payload)
	if err != nil {
		r.fail(newScriptError(ErrInvalidLoopCount, payload))
		return
	}
	for n := 0; n < count; n++ {
		for _, line := range body {
			r.dispatchLine(line)
		}
	}
}

func (r *run) conditional(payload string, body []string) {
	left, right, ok := strings.Cut(payload, OperatorEquals)
	if !ok {
		r.fail(newScriptError(ErrInvalidCondition, payload))
		return
	}
	left = strings.TrimSpace(left)
	right = strings.TrimSpace(right)
	if isQuoted(right) {
		right = unquote(right)
	}

	value, ok := r.vars.Get(left)
	if !ok {
		value = left
	}
	if value != right {
		return
	}
	for _, line := range body {
		r.dispatchLine(line)
	}
}

// parseCount reads a base-10 loop count. Malayalam digits are read like
// their ASCII counterparts.
func parseCount(payload string) (int, error) {
	return strconv.Atoi(strings.Map(func(r rune) rune {
		if r >= '൦' && r <= '൯' {
			return '0' + (r - '൦')
		}
		return r
	}, strings.TrimSpace(payload)))
}
