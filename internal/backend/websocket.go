package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"SlotChat/internal/learning"
)

// WebSocketLearner submits examples over a persistent WebSocket JSON-RPC connection
type WebSocketLearner struct {
	name   string
	url    string
	conn   *websocket.Conn
	reqID  int
	logger *slog.Logger
	mu     sync.Mutex
	closed bool
}

// NewWebSocketLearner dials url and returns a connected learner
func NewWebSocketLearner(ctx context.Context, name string, url string, logger *slog.Logger) (*WebSocketLearner, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	l := &WebSocketLearner{
		name:   name,
		url:    url,
		conn:   conn,
		logger: logger,
	}

	logger.Info("created WebSocket learner", "name", name, "url", url)
	return l, nil
}

// Name returns the learner identifier
func (l *WebSocketLearner) Name() string {
	return l.name
}

// Initialize performs the protocol handshake
func (l *WebSocketLearner) Initialize(ctx context.Context) error {
	var result InitializeResult
	if err := l.sendRequest(ctx, MethodInitialize, initializeParams(), &result); err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}

	l.logger.Info("learning service initialized",
		"server", result.ServerInfo.Name,
		"version", result.ServerInfo.Version,
		"protocol", result.ProtocolVersion)
	return nil
}

// Submit sends one example
func (l *WebSocketLearner) Submit(ctx context.Context, intent string, data map[string]string) learning.Outcome {
	var result SubmitResult
	err := l.sendRequest(ctx, MethodSubmit, submitParams(intent, data), &result)
	return toOutcome(result, err)
}

// Close disconnects from the learning service
func (l *WebSocketLearner) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.conn != nil {
		l.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		l.conn.Close()
	}

	l.logger.Info("closed WebSocket learner", "name", l.name)
	return nil
}

// sendRequest sends a JSON-RPC request over WebSocket and waits for its reply
func (l *WebSocketLearner) sendRequest(ctx context.Context, method string, params interface{}, result interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("learner is closed")
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	l.conn.SetWriteDeadline(deadline)
	l.conn.SetReadDeadline(deadline)

	l.reqID++
	request := JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      l.reqID,
		Method:  method,
		Params:  params,
	}

	if err := l.conn.WriteJSON(request); err != nil {
		return fmt.Errorf("failed to write request: %w", err)
	}

	var response JSONRPCResponse
	if err := l.conn.ReadJSON(&response); err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if response.ID != request.ID {
		return fmt.Errorf("response id %d does not match request id %d", response.ID, request.ID)
	}

	return decodeResult(response, result)
}
