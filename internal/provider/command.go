package provider

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// maxLineSize bounds one streamed output line. Structured event lines can
// carry large aggregated command output.
const maxLineSize = 1024 * 1024

// newCommand builds a subprocess command that runs in its own process
// group so that cancellation kills its spawned descendants too.
func newCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second
	return cmd
}

// streamLines spawns cmd and feeds every non-empty stdout line to fn.
// fn may return an error to abort the stream; the subprocess is then
// killed and that error is returned. Otherwise returns the lines seen
// and the subprocess exit error, if any, alongside captured stderr.
func streamLines(cmd *exec.Cmd, fn func(line string) error) (lines []string, stderr string, err error) {
	var errBuf bytes.Buffer
	cmd.Stderr = &errBuf
	cmd.Stdin = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, "", fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, "", fmt.Errorf("spawn %s: %w", cmd.Path, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	var fnErr error
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if fnErr == nil {
			if e := fn(line); e != nil {
				fnErr = e
				_ = cmd.Cancel()
			}
		}
	}
	scanErr := scanner.Err()

	waitErr := cmd.Wait()
	if fnErr != nil {
		return lines, errBuf.String(), fnErr
	}
	if scanErr != nil {
		return lines, errBuf.String(), fmt.Errorf("stream read: %w", scanErr)
	}
	return lines, strings.TrimSpace(errBuf.String()), waitErr
}

// runCaptured runs cmd to completion and returns trimmed stdout, trimmed
// stderr, and the exit error, if any.
func runCaptured(cmd *exec.Cmd) (string, string, error) {
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	cmd.Stdin = nil

	err := cmd.Run()
	return strings.TrimSpace(outBuf.String()), strings.TrimSpace(errBuf.String()), err
}
