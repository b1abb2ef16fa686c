// Package engine provides the Lisp scripting engine for relievo.
// It wraps zygomys in a sandboxed environment and runs image-to-mesh
// pipelines described in user source code.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/relievo/pkg/repair"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Result collects what a pipeline run produced: the paths written by
// save-stl in evaluation order, and one repair report per repair call.
type Result struct {
	Outputs []string
	Reports []repair.Report
}

// Options configures an evaluation session.
type Options struct {
	// OutDir is prepended to relative output paths. Empty means the
	// current directory.
	OutDir string
}

// Engine wraps the zygomys interpreter for pipeline evaluation.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	opts       Options
	mu         sync.Mutex
	generation uint64
}

// NewEngine creates a new Engine instance.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Evaluate runs Lisp source describing a model pipeline.
// Each call creates a fresh zygomys sandbox for deterministic evaluation.
//
// Return semantics:
//   - On success: returns result + nil errors + nil error
//   - On parse/eval failure: returns nil result + eval errors + nil error
//   - On fatal failure (timeout, panic): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*Result, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		res, evalErrs, err := e.evaluate(source)
		ch <- evalResult{result: res, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*Result, []EvalError, error) {
	// Empty source is a valid program that produces nothing.
	if strings.TrimSpace(source) == "" {
		return &Result{}, nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem
	// or syscalls directly; all IO goes through the builtins.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	res := &Result{}
	registerBuiltins(env, res, e.opts)

	err := env.LoadString(preprocessSource(source))
	if err != nil {
		return nil, parseZygomysError(err), nil
	}

	_, err = env.Run()
	if err != nil {
		return nil, parseZygomysError(err), nil
	}

	return res, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	// zygomys formats parse errors as "Error on line N: <details>\n"
	if m := linePattern.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return []EvalError{{
			Line:    line,
			Message: strings.TrimSpace(m[2]),
		}}
	}

	if m := linePatternShort.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return []EvalError{{
			Line:    line,
			Message: strings.TrimSpace(m[2]),
		}}
	}

	// Fallback: no line info available.
	return []EvalError{{
		Message: strings.TrimSpace(msg),
	}}
}
