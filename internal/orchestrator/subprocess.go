package orchestrator

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/promptgate/gateway/internal/event"
	"github.com/promptgate/gateway/internal/fault"
	"github.com/promptgate/gateway/internal/tokenizer"
)

// SubprocessRunner executes invocations through the local CLI binary. The
// API key travels in the child environment, never on the command line.
type SubprocessRunner struct {
	// BinaryPath locates the CLI executable.
	BinaryPath string
	// APIKey, when set, is exported as ANTHROPIC_API_KEY to the child.
	APIKey string
	// KillGrace bounds how long a termination signal may go unanswered
	// before the whole process group is killed.
	KillGrace time.Duration
}

// argv builds the child command line for one invocation.
func (r *SubprocessRunner) argv(inv Invocation) []string {
	args := []string{inv.Command}
	if inv.Prompt != "" {
		args = append(args, "--prompt", inv.Prompt)
	}
	if inv.Model != "" {
		args = append(args, "--model", inv.Model)
	}
	if inv.SessionID != "" {
		args = append(args, "--session", inv.SessionID)
	}
	args = append(args, inv.Args...)
	return args
}

// Run starts the CLI, relays stdout line by line as deltas, and terminates
// the stream with a completion or classified error. The child runs in its
// own process group so descendants die with it.
func (r *SubprocessRunner) Run(ctx context.Context, inv Invocation, emit func(event.Event)) {
	cmd := exec.Command(r.BinaryPath, r.argv(inv)...)
	cmd.Dir = inv.WorkingDir
	cmd.Env = append(os.Environ(), "CLAUDE_NO_COLOR=1")
	if r.APIKey != "" {
		cmd.Env = append(cmd.Env, "ANTHROPIC_API_KEY="+r.APIKey)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		emit(event.FromError(fault.Wrap(fault.KindBackend, err, "open CLI stdout")))
		return
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		emit(event.FromError(fault.Wrap(fault.KindBackend, err, "start CLI process")))
		return
	}
	log.Printf("orchestrator.SubprocessRunner: started id=%s command=%s pid=%d", inv.ID, inv.Command, cmd.Process.Pid)

	// Reap the whole group when the deadline fires or the caller cancels.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			r.killGroup(cmd, watchDone)
		case <-watchDone:
		}
	}()

	emit(event.Role("assistant"))
	emit(event.BlockStart(0))

	var out strings.Builder
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if out.Len() > 0 {
			out.WriteString("\n")
			emit(event.Delta(0, "\n"))
		}
		out.WriteString(line)
		if line != "" {
			emit(event.Delta(0, line))
		}
	}
	scanErr := scanner.Err()

	waitErr := cmd.Wait()
	close(watchDone)

	if ctx.Err() != nil {
		kind := fault.KindTimeout
		msg := "CLI invocation exceeded its deadline"
		if errors.Is(ctx.Err(), context.Canceled) {
			msg = "CLI invocation cancelled"
		}
		log.Printf("orchestrator.SubprocessRunner: terminated id=%s reason=%v", inv.ID, ctx.Err())
		emit(event.Errorf(kind, msg))
		return
	}
	if scanErr != nil {
		emit(event.FromError(fault.Wrap(fault.KindBackend, scanErr, "read CLI output")))
		return
	}
	if waitErr != nil {
		code := exitCode(waitErr)
		log.Printf("orchestrator.SubprocessRunner: CLI failed id=%s exit=%d stderr=%q", inv.ID, code, firstLine(stderr.String()))
		ev := event.Errorf(fault.KindBackend, "CLI exited with status %d", code)
		ev.ExitCode = code
		emit(ev)
		return
	}

	emit(event.BlockStop(0))
	emit(event.Completion("stop", tokenizer.Estimate(inv.Prompt, out.String())))
}

// killGroup signals the child's process group, escalating to SIGKILL after
// the grace period. The escalation is skipped once reaped closes, so a
// recycled pgid is never signalled.
func (r *SubprocessRunner) killGroup(cmd *exec.Cmd, reaped <-chan struct{}) {
	if cmd.Process == nil {
		return
	}
	pgid := -cmd.Process.Pid
	_ = syscall.Kill(pgid, syscall.SIGTERM)
	grace := r.KillGrace
	if grace <= 0 {
		grace = 3 * time.Second
	}
	select {
	case <-reaped:
	case <-time.After(grace):
		_ = syscall.Kill(pgid, syscall.SIGKILL)
	}
}

func exitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
