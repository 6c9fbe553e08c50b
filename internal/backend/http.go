package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"SlotChat/internal/learning"
)

// HTTPLearner submits examples to a remote learning service via HTTP JSON-RPC
type HTTPLearner struct {
	name       string
	baseURL    string
	httpClient *http.Client
	reqID      int32
	logger     *slog.Logger
}

// NewHTTPLearner creates a new HTTP-based learner
func NewHTTPLearner(name string, baseURL string, logger *slog.Logger) (*HTTPLearner, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	l := &HTTPLearner{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}

	logger.Info("created HTTP learner", "name", name, "url", baseURL)
	return l, nil
}

// Name returns the learner identifier
func (l *HTTPLearner) Name() string {
	return l.name
}

// Initialize checks that the service speaks the protocol
func (l *HTTPLearner) Initialize(ctx context.Context) error {
	var result InitializeResult
	if err := l.sendRequest(ctx, MethodInitialize, initializeParams(), &result); err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}

	l.logger.Info("learning service initialized", "server", result.ServerInfo.Name, "version", result.ServerInfo.Version)
	return nil
}

// Submit sends one example
func (l *HTTPLearner) Submit(ctx context.Context, intent string, data map[string]string) learning.Outcome {
	var result SubmitResult
	err := l.sendRequest(ctx, MethodSubmit, submitParams(intent, data), &result)
	return toOutcome(result, err)
}

// Close releases idle connections
func (l *HTTPLearner) Close() error {
	l.httpClient.CloseIdleConnections()
	l.logger.Info("closed HTTP learner", "name", l.name)
	return nil
}

// sendRequest sends an HTTP JSON-RPC request
func (l *HTTPLearner) sendRequest(ctx context.Context, method string, params interface{}, result interface{}) error {
	reqID := int(atomic.AddInt32(&l.reqID, 1))

	request := JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	requestJSON, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/rpc", bytes.NewBuffer(requestJSON))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return fmt.Errorf("HTTP error %d: %s", httpResp.StatusCode, strings.TrimSpace(string(body)))
	}

	responseJSON, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var response JSONRPCResponse
	if err := json.Unmarshal(responseJSON, &response); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return decodeResult(response, result)
}
