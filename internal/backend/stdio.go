package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"SlotChat/internal/learning"
)

// StdioLearner runs a local learning process and talks JSON-RPC to it, one
// message per line on stdin/stdout.
type StdioLearner struct {
	name    string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stderr  io.ReadCloser
	lines   chan []byte
	readErr error
	done    chan struct{}
	reqID   int
	logger  *slog.Logger
	callMu  sync.Mutex // one exchange at a time
	mu      sync.Mutex
	closed  bool
}

// NewStdioLearner starts command with args
func NewStdioLearner(name string, command string, args []string, logger *slog.Logger) (*StdioLearner, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	cmd := exec.Command(command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("failed to start learner process: %w", err)
	}

	l := &StdioLearner{
		name:   name,
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		lines:  make(chan []byte),
		done:   make(chan struct{}),
		logger: logger,
	}

	go l.readStdout(stdout)
	go l.logStderr()

	logger.Info("started stdio learner", "name", name, "command", command)
	return l, nil
}

// Name returns the learner identifier
func (l *StdioLearner) Name() string {
	return l.name
}

// Initialize performs the protocol handshake
func (l *StdioLearner) Initialize(ctx context.Context) error {
	var result InitializeResult
	if err := l.sendRequest(ctx, MethodInitialize, initializeParams(), &result); err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}

	l.logger.Info("learning service initialized", "server", result.ServerInfo.Name, "version", result.ServerInfo.Version)
	return nil
}

// Submit sends one example
func (l *StdioLearner) Submit(ctx context.Context, intent string, data map[string]string) learning.Outcome {
	var result SubmitResult
	err := l.sendRequest(ctx, MethodSubmit, submitParams(intent, data), &result)
	return toOutcome(result, err)
}

// Close stops the learner process. It does not wait for an exchange in
// flight; that exchange fails with "learner is closed".
func (l *StdioLearner) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.done)
	l.mu.Unlock()

	l.stdin.Close()
	if l.cmd.Process != nil {
		if err := l.cmd.Process.Kill(); err != nil {
			l.logger.Warn("failed to kill learner process", "error", err)
		}
		l.cmd.Wait()
	}

	l.logger.Info("closed stdio learner", "name", l.name)
	return nil
}

func (l *StdioLearner) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// sendRequest writes one request line and waits for the matching response
// line. A learner that does not answer before ctx is done is stopped.
func (l *StdioLearner) sendRequest(ctx context.Context, method string, params interface{}, result interface{}) error {
	l.callMu.Lock()
	defer l.callMu.Unlock()

	if l.isClosed() {
		return fmt.Errorf("learner is closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.reqID++
	request := JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      l.reqID,
		Method:  method,
		Params:  params,
	}

	requestJSON, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	if _, err := l.stdin.Write(append(requestJSON, '\n')); err != nil {
		return fmt.Errorf("failed to write request: %w", err)
	}

	select {
	case line, ok := <-l.lines:
		if !ok {
			if l.isClosed() {
				return fmt.Errorf("learner is closed")
			}
			if l.readErr != nil {
				return fmt.Errorf("failed to read response: %w", l.readErr)
			}
			return fmt.Errorf("EOF from learner process")
		}
		var response JSONRPCResponse
		if err := json.Unmarshal(line, &response); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
		if response.ID != request.ID {
			return fmt.Errorf("response id %d does not match request id %d", response.ID, request.ID)
		}
		return decodeResult(response, result)

	case <-ctx.Done():
		l.logger.Warn("learner did not respond, stopping it", "learner", l.name, "method", method, "error", ctx.Err())
		l.Close()
		return fmt.Errorf("waiting for %s response: %w", method, ctx.Err())

	case <-l.done:
		return fmt.Errorf("learner is closed")
	}
}

// readStdout hands each response line to the waiting request. readErr is
// set before lines is closed.
func (l *StdioLearner) readStdout(r io.Reader) {
	defer close(l.lines)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		select {
		case l.lines <- line:
		case <-l.done:
			return
		}
	}
	l.readErr = scanner.Err()
}

// logStderr forwards the process's stderr to the log
func (l *StdioLearner) logStderr() {
	scanner := bufio.NewScanner(l.stderr)
	for scanner.Scan() {
		l.logger.Warn("learner stderr", "learner", l.name, "message", scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		l.logger.Debug("stopped reading learner stderr", "learner", l.name, "error", err)
	}
}
