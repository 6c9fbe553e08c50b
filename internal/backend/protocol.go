package backend

import (
	"encoding/json"
	"fmt"

	"SlotChat/internal/learning"
)

// JSON-RPC 2.0 protocol types for the learning service

// JSONRPCRequest represents a JSON-RPC 2.0 request
type JSONRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"` // Always "2.0"
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"` // Always "2.0"
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Learning service methods
const (
	MethodInitialize = "initialize"
	MethodSubmit     = "learning/submit"
)

const (
	protocolVersion = "2024-11-05"
	clientName      = "slotchat"
	clientVersion   = "1.0.0"
)

// InitializeParams represents parameters for initialize request
type InitializeParams struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ClientInfo      ClientInfo `json:"clientInfo"`
}

// ClientInfo contains client identification
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult represents result from initialize request
type InitializeResult struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ServerInfo      ServerInfo `json:"serverInfo"`
}

// ServerInfo contains server identification
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// SubmitParams carries one completed intent as a training example
type SubmitParams struct {
	Intent   string              `json:"intent"`
	Examples []map[string]string `json:"examples"`
}

// SubmitResult is the service's verdict on a submission
type SubmitResult struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}

func initializeParams() InitializeParams {
	return InitializeParams{
		ProtocolVersion: protocolVersion,
		ClientInfo: ClientInfo{
			Name:    clientName,
			Version: clientVersion,
		},
	}
}

func submitParams(intent string, data map[string]string) SubmitParams {
	return SubmitParams{Intent: intent, Examples: []map[string]string{data}}
}

// decodeResult checks a response for an RPC error and unmarshals its result.
func decodeResult(response JSONRPCResponse, result interface{}) error {
	if response.Error != nil {
		return response.Error
	}
	if result != nil && len(response.Result) > 0 {
		if err := json.Unmarshal(response.Result, result); err != nil {
			return fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}
	return nil
}

// toOutcome maps a submit round-trip onto a learning outcome.
func toOutcome(result SubmitResult, err error) learning.Outcome {
	if err != nil {
		return learning.Failed(err)
	}
	if !result.Accepted {
		msg := result.Message
		if msg == "" {
			msg = "example rejected"
		}
		return learning.Outcome{Success: false, Message: msg}
	}
	return learning.Succeeded(result.Message)
}
