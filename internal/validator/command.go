package validator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CommandResult is the outcome of one external process invocation. Every
// failure mode - non-zero exit, timeout, launch failure - is folded into
// the result; nothing is raised to the caller.
type CommandResult struct {
	Command    string `json:"command"`
	Returncode int    `json:"returncode"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	Success    bool   `json:"success"`
}

// Runner executes external commands with a bounded timeout and capped
// output capture.
type Runner struct {
	timeout   time.Duration
	maxOutput int64
	logger    *zap.Logger
}

// NewRunner creates a runner. Zero timeout defaults to 30s, zero maxOutput
// to 10MB, nil logger to a no-op logger.
func NewRunner(timeout time.Duration, maxOutput int64, logger *zap.Logger) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxOutput <= 0 {
		maxOutput = 10 * 1024 * 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{timeout: timeout, maxOutput: maxOutput, logger: logger}
}

// Run executes argv in dir (empty dir means the current working directory)
// and returns a CommandResult. Timeouts and launch failures become failed
// results with returncode -1.
func (r *Runner) Run(ctx context.Context, argv []string, dir string) CommandResult {
	result := CommandResult{
		Command:    strings.Join(argv, " "),
		Returncode: -1,
	}
	if len(argv) == 0 {
		result.Stderr = "empty command"
		return result
	}

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, argv[0], argv[1:]...)
	cmd.Dir = dir

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdoutBuf, max: r.maxOutput}
	cmd.Stderr = &limitedWriter{w: &stderrBuf, max: r.maxOutput}

	start := time.Now()
	err := cmd.Run()

	result.Stdout = strings.TrimSpace(stdoutBuf.String())
	result.Stderr = strings.TrimSpace(stderrBuf.String())

	switch {
	case execCtx.Err() == context.DeadlineExceeded:
		result.Stderr = fmt.Sprintf("Command timed out after %s", r.timeout)
		r.logger.Warn("command timed out",
			zap.String("command", result.Command),
			zap.Duration("timeout", r.timeout))
	case err != nil:
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.Returncode = exitErr.ExitCode()
			r.logger.Debug("command exited non-zero",
				zap.String("command", result.Command),
				zap.Int("returncode", result.Returncode))
		} else {
			result.Stderr = err.Error()
			r.logger.Warn("command failed to start",
				zap.String("command", result.Command),
				zap.Error(err))
		}
	default:
		result.Returncode = 0
		result.Success = true
		r.logger.Debug("command succeeded",
			zap.String("command", result.Command),
			zap.Duration("duration", time.Since(start)))
	}

	return result
}

// limitedWriter caps total bytes written, silently discarding the excess so
// a runaway command cannot bloat the validation report.
type limitedWriter struct {
	w       io.Writer
	max     int64
	written int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.max {
		return n, nil
	}
	if remaining := lw.max - lw.written; int64(n) > remaining {
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}
	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
