// Package agentstub turns the running test binary into a scripted agent
// process, so agent and controller tests can exercise real pipes and real
// process teardown without external executables.
//
// A test package wires it in through TestMain:
//
//	func TestMain(m *testing.M) {
//		agentstub.RunIfStub()
//		os.Exit(m.Run())
//	}
package agentstub

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

const sentinel = "kinarow-agent-stub"

const (
	// ModePlay acks the handshake, then alternates its scripted moves with
	// reading the opponent's relayed moves.
	ModePlay = "play"
	// ModeEcho writes every received line straight back.
	ModeEcho = "echo"
	// ModeSilent acks the handshake and then never writes again.
	ModeSilent = "silent"
	// ModeExit acks the handshake and exits.
	ModeExit = "exit"
	// ModePartial writes a line without its terminator and exits.
	ModePartial = "partial"
	// ModeCRLF acks the handshake and writes one CRLF-terminated move.
	ModeCRLF = "crlf"
	// ModeSpawnChild starts a sleeping child, records its pid, then plays.
	ModeSpawnChild = "spawn-child"
	modeSleep      = "sleep"
)

// Options describes one scripted agent.
type Options struct {
	Mode  string
	Moves []string
}

// Stub is a configured agent command plus the files it reports through.
type Stub struct {
	Command    []string
	transcript string
	pidFile    string
}

// New returns the argv that re-executes the test binary as a stub agent.
func New(t *testing.T, opts Options) *Stub {
	t.Helper()

	dir := t.TempDir()

	mode := opts.Mode
	if mode == "" {
		mode = ModePlay
	}

	stub := &Stub{
		transcript: filepath.Join(dir, "transcript"),
		pidFile:    filepath.Join(dir, "child.pid"),
	}

	stub.Command = []string{
		os.Args[0], "-test.run=^$", "--", sentinel,
		"mode=" + mode,
		"moves=" + strings.Join(opts.Moves, ";"),
		"transcript=" + stub.transcript,
		"pidfile=" + stub.pidFile,
	}

	return stub
}

// Received returns every line the stub has read so far.
func (that *Stub) Received(t *testing.T) []string {
	t.Helper()

	data, err := os.ReadFile(that.transcript)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("could not read transcript: %v", err)
	}

	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil
	}

	return strings.Split(text, "\n")
}

// ChildPid returns the pid of the child started in ModeSpawnChild, or 0.
func (that *Stub) ChildPid(t *testing.T) int {
	t.Helper()

	data, err := os.ReadFile(that.pidFile)
	if err != nil {
		return 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("could not parse child pid: %v", err)
	}

	return pid
}

// RunIfStub runs the stub and exits when the binary was started as one.
func RunIfStub() {
	args := os.Args
	for i, arg := range args {
		if arg == sentinel {
			os.Exit(run(parseArgs(args[i+1:])))
		}
	}
}

func parseArgs(args []string) map[string]string {
	params := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, _ := strings.Cut(arg, "=")
		params[key] = value
	}
	return params
}

type script struct {
	in         *bufio.Reader
	out        *bufio.Writer
	transcript *os.File
}

func (that *script) read() (string, bool) {
	line, err := that.in.ReadString('\n')
	if err != nil {
		return "", false
	}

	line = strings.TrimSuffix(line, "\n")
	if that.transcript != nil {
		_, _ = that.transcript.WriteString(line + "\n")
	}

	return line, true
}

func (that *script) write(text string) {
	_, _ = that.out.WriteString(text)
	_ = that.out.Flush()
}

func run(params map[string]string) int {
	mode := params["mode"]

	if mode == modeSleep {
		time.Sleep(time.Hour)
		return 0
	}

	var transcript *os.File
	if path := params["transcript"]; path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "transcript: %v\n", err)
			return 2
		}
		defer file.Close()
		transcript = file
	}

	s := &script{
		in:         bufio.NewReader(os.Stdin),
		out:        bufio.NewWriter(os.Stdout),
		transcript: transcript,
	}

	var moves []string
	if raw := params["moves"]; raw != "" {
		moves = strings.Split(raw, ";")
	}

	switch mode {
	case ModeEcho:
		for {
			line, ok := s.read()
			if !ok {
				return 0
			}
			s.write(line + "\n")
		}
	case ModePartial:
		s.write("0.0")
		return 0
	case ModeSpawnChild:
		if err := spawnChild(params["pidfile"]); err != nil {
			fmt.Fprintf(os.Stderr, "spawn child: %v\n", err)
			return 2
		}
	}

	active := false
	for step := 0; step < 3; step++ {
		line, ok := s.read()
		if !ok {
			return 1
		}
		if step == 2 {
			active = line == "True"
		}
		s.write("ok\n")
	}

	switch mode {
	case ModeExit:
		return 0
	case ModeCRLF:
		s.write("1.2\r\n")
	case ModeSilent:
	default:
		if !play(s, moves, active) {
			return 0
		}
	}

	// keep recording relayed lines until the arbiter goes away
	for {
		if _, ok := s.read(); !ok {
			return 0
		}
	}
}

func play(s *script, moves []string, active bool) bool {
	for _, move := range moves {
		if !active {
			if _, ok := s.read(); !ok {
				return false
			}
		}

		s.write(move + "\n")

		if active {
			if _, ok := s.read(); !ok {
				return false
			}
		}
	}

	return true
}

func spawnChild(pidFile string) error {
	child := exec.Command(os.Args[0], "-test.run=^$", "--", sentinel, "mode="+modeSleep) //nolint: gosec // re-executes the test binary
	if err := child.Start(); err != nil {
		return err
	}

	return os.WriteFile(pidFile, []byte(strconv.Itoa(child.Process.Pid)), 0o600)
}
