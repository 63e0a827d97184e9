package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/kballard/go-shellquote"
	"github.com/rocketscienceinc/kinarow/internal/apperror"
	"github.com/rocketscienceinc/kinarow/internal/entity"
)

var ErrEmptyCommand = errors.New("agent command is empty")

// ParseCommand splits a configured command line into argv using shell
// quoting rules, so paths with spaces can be quoted.
func ParseCommand(line string) ([]string, error) {
	argv, err := shellquote.Split(line)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command %q: %w", line, err)
	}

	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}

	return argv, nil
}

// Agent owns one external decision process and talks to it over a
// newline-delimited UTF-8 protocol on its standard streams.
//
// ReadLine and SendLine may be called from a different goroutine than Stop;
// Stop unblocks a pending ReadLine.
type Agent struct {
	logger  *slog.Logger
	symbol  entity.Symbol
	command []string

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   *os.File
	stdout  *os.File
	stderr  *os.File
	writer  *bufio.Writer
	started bool
	stopped bool

	writeMu sync.Mutex

	lines   chan string
	quit    chan struct{}
	exited  chan struct{}
	readErr error
}

func New(logger *slog.Logger, symbol entity.Symbol, command []string) *Agent {
	return &Agent{
		logger:  logger.With("component", "agent", "symbol", string(symbol)),
		symbol:  symbol,
		command: command,
		quit:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
}

func (that *Agent) Symbol() entity.Symbol {
	return that.symbol
}

// Pid returns the process id, or 0 before Start.
func (that *Agent) Pid() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.cmd == nil || that.cmd.Process == nil {
		return 0
	}

	return that.cmd.Process.Pid
}

// Exited is closed once the process has been reaped.
func (that *Agent) Exited() <-chan struct{} {
	return that.exited
}

// Start spawns the process with all three standard streams redirected.
func (that *Agent) Start(ctx context.Context) error {
	log := that.logger.With("method", "Start")

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", apperror.ErrSpawn, err)
	}

	if len(that.command) == 0 {
		return fmt.Errorf("%w: %w", apperror.ErrSpawn, ErrEmptyCommand)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.started || that.stopped {
		return fmt.Errorf("%w: agent %s cannot be restarted", apperror.ErrSpawn, that.symbol)
	}

	cmd := exec.Command(that.command[0], that.command[1:]...) //nolint: gosec // command comes from the operator's config
	setProcessGroup(cmd)

	childStdin, stdin, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("%w: stdin pipe: %w", apperror.ErrSpawn, err)
	}

	stdout, childStdout, err := os.Pipe()
	if err != nil {
		closeAll(childStdin, stdin)
		return fmt.Errorf("%w: stdout pipe: %w", apperror.ErrSpawn, err)
	}

	stderr, childStderr, err := os.Pipe()
	if err != nil {
		closeAll(childStdin, stdin, stdout, childStdout)
		return fmt.Errorf("%w: stderr pipe: %w", apperror.ErrSpawn, err)
	}

	cmd.Stdin = childStdin
	cmd.Stdout = childStdout
	cmd.Stderr = childStderr

	if err = cmd.Start(); err != nil {
		closeAll(childStdin, stdin, stdout, childStdout, stderr, childStderr)
		log.Error("failed to start agent", "command", that.command, "error", err)
		return fmt.Errorf("%w: %s: %w", apperror.ErrSpawn, that.command[0], err)
	}

	// the child holds its own copies now
	closeAll(childStdin, childStdout, childStderr)

	that.cmd = cmd
	that.stdin = stdin
	that.stdout = stdout
	that.stderr = stderr
	that.writer = bufio.NewWriter(stdin)
	that.lines = make(chan string)
	that.started = true

	go that.readLoop(stdout)
	go that.drainStderr(stderr)
	go that.wait(cmd)

	log.Info("agent started", "command", that.command, "pid", cmd.Process.Pid)

	return nil
}

// Handshake performs the three-step setup exchange: board size, symbol and
// active flag, each followed by one acknowledgement line whose content is
// ignored.
func (that *Agent) Handshake(ctx context.Context, size int, active bool) error {
	for _, step := range handshakeLines(size, that.symbol, active) {
		if err := that.SendLine(step); err != nil {
			return fmt.Errorf("handshake send %q: %w", step, err)
		}

		if _, err := that.ReadLine(ctx); err != nil {
			return fmt.Errorf("handshake ack for %q: %w", step, err)
		}
	}

	return nil
}

// SendLine writes text, adding a trailing newline when it is missing, and
// flushes. It blocks while the child's stdin pipe is full, so a process that
// stops reading its input stalls the caller.
func (that *Agent) SendLine(text string) error {
	that.mu.Lock()
	writer, live := that.writer, that.started && !that.stopped
	that.mu.Unlock()

	if !live {
		return fmt.Errorf("%w: agent %s is not running", apperror.ErrAgentDisconnected, that.symbol)
	}

	that.logger.Debug("sending line", "line", text)

	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if _, err := writer.WriteString(text); err != nil {
		return fmt.Errorf("%w: write: %w", apperror.ErrAgentDisconnected, err)
	}

	if !strings.HasSuffix(text, "\n") {
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("%w: write: %w", apperror.ErrAgentDisconnected, err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %w", apperror.ErrAgentDisconnected, err)
	}

	return nil
}

// ReadLine blocks until the process writes a complete line and returns it
// without the line terminator. A stream closed mid-line or at EOF yields
// ErrAgentDisconnected; a context deadline yields ErrAgentTimeout.
func (that *Agent) ReadLine(ctx context.Context) (string, error) {
	that.mu.Lock()
	lines := that.lines
	that.mu.Unlock()

	if lines == nil {
		return "", fmt.Errorf("%w: agent %s is not running", apperror.ErrAgentDisconnected, that.symbol)
	}

	that.logger.Debug("reading line")

	select {
	case line, ok := <-lines:
		if !ok {
			return "", that.readError()
		}

		that.logger.Debug("read line", "line", line)

		return line, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: agent %s", apperror.ErrAgentTimeout, that.symbol)
		}

		return "", ctx.Err()
	}
}

// Stop kills the process and all of its descendants. Failures, including
// processes that already exited, are logged and swallowed. Stop is
// idempotent and does not wait for the process to be reaped.
func (that *Agent) Stop() {
	log := that.logger.With("method", "Stop")

	that.mu.Lock()
	if that.stopped {
		that.mu.Unlock()
		return
	}
	that.stopped = true
	cmd := that.cmd
	that.mu.Unlock()

	close(that.quit)

	if cmd != nil && cmd.Process != nil {
		for _, err := range killTree(cmd.Process) {
			log.Debug("ignored kill failure", "error", err)
		}
	}

	// closing our ends unblocks the reader even if a stray descendant
	// still holds the child's end open
	closeAll(that.stdin, that.stdout, that.stderr)

	log.Info("agent stopped")
}

func (that *Agent) readLoop(stdout io.Reader) {
	reader := bufio.NewReader(stdout)

	defer close(that.lines)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			// a partial line without its terminator is never delivered
			that.mu.Lock()
			that.readErr = fmt.Errorf("%w: agent %s: %w", apperror.ErrAgentDisconnected, that.symbol, err)
			that.mu.Unlock()

			return
		}

		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		select {
		case that.lines <- line:
		case <-that.quit:
			that.mu.Lock()
			that.readErr = fmt.Errorf("%w: agent %s stopped", apperror.ErrAgentDisconnected, that.symbol)
			that.mu.Unlock()

			return
		}
	}
}

func (that *Agent) readError() error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.readErr == nil {
		return fmt.Errorf("%w: agent %s", apperror.ErrAgentDisconnected, that.symbol)
	}

	return that.readErr
}

func (that *Agent) drainStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	for scanner.Scan() {
		that.logger.Debug("agent stderr", "line", scanner.Text())
	}

	// keep the pipe empty so the child never blocks on stderr
	_, _ = io.Copy(io.Discard, stderr)
}

func (that *Agent) wait(cmd *exec.Cmd) {
	err := cmd.Wait()

	that.logger.Info("agent exited", "pid", cmd.Process.Pid, "state", cmd.ProcessState.String(), "error", err)

	close(that.exited)
}

func closeAll(files ...*os.File) {
	for _, file := range files {
		if file != nil {
			_ = file.Close()
		}
	}
}
