package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	tailLines    = 5
	stderrPrefix = 200
)

// Command is one tool invocation inside a stage.
type Command struct {
	Description string
	Tool        string
	Args        []string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Tool + " " + strings.Join(c.Args, " "))
}

// StepResult is the outcome of one Command.
type StepResult struct {
	Command  Command       `json:"-"`
	Line     string        `json:"command"`
	OK       bool          `json:"ok"`
	Tail     []string      `json:"tail,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// CommandRunner executes stage commands.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) StepResult
	Available(tool string) bool
}

// ExecRunner runs each tool as a subprocess. Tools are looked up in BinDir,
// or on PATH when BinDir is empty. With GoRun set, tools are started through
// `go run ./cmd/<tool>` from Dir.
type ExecRunner struct {
	Dir    string
	BinDir string
	GoRun  bool
}

func (r ExecRunner) resolve(tool string) (string, []string, error) {
	if r.GoRun {
		path, err := exec.LookPath("go")
		if err != nil {
			return "", nil, err
		}
		return path, []string{"run", "./cmd/" + tool}, nil
	}
	name := tool
	if r.BinDir != "" {
		name = filepath.Join(r.BinDir, tool)
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", nil, err
	}
	return path, nil, nil
}

func (r ExecRunner) Available(tool string) bool {
	if r.GoRun {
		_, err := exec.LookPath("go")
		return err == nil
	}
	_, _, err := r.resolve(tool)
	return err == nil
}

func (r ExecRunner) Run(ctx context.Context, c Command) StepResult {
	start := time.Now()
	result := StepResult{Command: c, Line: c.String()}

	path, prefix, err := r.resolve(c.Tool)
	if err != nil {
		result.Err = fmt.Errorf("tool %s not found: %w", c.Tool, err)
		result.Duration = time.Since(start)
		return result
	}

	cmd := exec.CommandContext(ctx, path, append(prefix, c.Args...)...)
	cmd.Dir = r.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	result.Duration = time.Since(start)
	result.OK = err == nil
	result.Tail = Tail(stdout.String(), tailLines)
	if len(result.Tail) == 0 {
		// tools that only log write to stderr
		result.Tail = Tail(stderr.String(), tailLines)
	}
	if err != nil {
		result.Err = err
		var exitErr *exec.ExitError
		if ctx.Err() != nil {
			result.Err = ctx.Err()
		} else if errors.As(err, &exitErr) {
			result.Err = fmt.Errorf("exit status %d", exitErr.ExitCode())
		}
		result.Stderr = Truncate(stderr.String(), stderrPrefix)
		if strings.TrimSpace(result.Stderr) == "" {
			result.Stderr = Truncate(strings.Join(result.Tail, "\n"), stderrPrefix)
		}
	}
	return result
}

// Tail returns the non-blank lines among the last n lines of out.
func Tail(out string, n int) []string {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil
	}
	lines := strings.Split(out, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, strings.TrimRight(line, "\r"))
		}
	}
	return kept
}

// Truncate returns at most n characters of s.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
