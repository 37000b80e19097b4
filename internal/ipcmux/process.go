// File: internal/ipcmux/process.go
// Browser process handle: spawn/stop/wait, wiring stdin/stdout/stderr and
// tracking pid, instance id, and exit state.
package ipcmux

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/owlhq/owl-gateway/internal/wire"
)

// process wraps the running browser child and its pipes.
type process struct {
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     io.ReadCloser
	stderr     io.ReadCloser
	instanceID string

	exited chan struct{}
	exitErr error
}

// startProcess forks/spawns binaryPath with redirected stdin/stdout/stderr
// and a unique instance id.
func startProcess(ctx context.Context, binaryPath string, args []string) (*process, error) {
	cmd := exec.CommandContext(ctx, binaryPath, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &process{
		cmd:        cmd,
		stdin:      stdin,
		stdout:     stdout,
		stderr:     stderr,
		instanceID: uuid.NewString(),
		exited:     make(chan struct{}),
	}
	go func() {
		p.exitErr = cmd.Wait()
		close(p.exited)
	}()
	return p, nil
}

func (p *process) pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// write writes b, an already newline-terminated encoded command, to the
// browser's stdin. Only the reactor goroutine calls write; stdin is not
// safe for concurrent writers.
func (p *process) write(b []byte) error {
	_, err := p.stdin.Write(b)
	return err
}

// readStdoutLines runs until stdout closes (EOF, i.e. the browser exited)
// or a read fails, invoking onLine for each complete newline-delimited
// JSON line.
func (p *process) readStdoutLines(onLine func([]byte)) {
	sc := wire.LineScanner(p.stdout)
	for sc.Scan() {
		line := append([]byte(nil), sc.Bytes()...)
		onLine(line)
	}
}

// readStderrLines scans stderr for the readiness sentinel and license
// error objects. onSentinel is invoked for every line that parses as a
// StderrSentinel object; ordinary log lines are ignored.
func (p *process) readStderrLines(onSentinel func(*wire.StderrSentinel)) {
	scanner := bufio.NewScanner(p.stderr)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if s, err := wire.DecodeStderrLine(line); err == nil {
			onSentinel(s)
		}
	}
}

// stop closes stdin, waits up to grace for exit, then kills the process.
func (p *process) stop(grace time.Duration) {
	_ = p.stdin.Close()
	select {
	case <-p.exited:
		return
	case <-time.After(grace):
	}
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	<-p.exited
}
