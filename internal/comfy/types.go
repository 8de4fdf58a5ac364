package comfy

import (
	"encoding/json"

	"github.com/krelinga/video-generator/internal/workflow"
)

// PromptRequest is the body of POST /prompt.
type PromptRequest struct {
	Prompt   workflow.Graph `json:"prompt"`
	ClientID string         `json:"client_id"`
}

// PromptResponse is returned from POST /prompt. Error and NodeErrors are
// kept raw because their shape differs between engine releases.
type PromptResponse struct {
	PromptID   string                     `json:"prompt_id"`
	Number     int                        `json:"number"`
	NodeErrors map[string]json.RawMessage `json:"node_errors,omitempty"`
	Error      json.RawMessage            `json:"error,omitempty"`
}

// HistoryResponse is returned from GET /history/{prompt_id}.
type HistoryResponse map[string]HistoryEntry

type HistoryEntry struct {
	Outputs map[string]NodeOutput `json:"outputs"`
	Status  ExecutionStatus       `json:"status"`
}

// NodeOutput holds the video-bearing result keys of one output node. Other
// keys (images, audio, text) are ignored.
type NodeOutput struct {
	Gifs   []FileOutput `json:"gifs,omitempty"`
	Videos []FileOutput `json:"videos,omitempty"`
	// HasGifs is set when the "gifs" key is present, including as null.
	HasGifs bool `json:"-"`
}

func (o *NodeOutput) UnmarshalJSON(data []byte) error {
	type plain NodeOutput
	if err := json.Unmarshal(data, (*plain)(o)); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	_, o.HasGifs = keys["gifs"]
	return nil
}

// FileOutput describes one file written by an output node.
type FileOutput struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
	Format    string `json:"format,omitempty"`
	// FullPath is set by video combine nodes and points at the engine's
	// local file system.
	FullPath string `json:"fullpath,omitempty"`
}

// StatusError is the status_str of a prompt that failed during execution.
const StatusError = "error"

type ExecutionStatus struct {
	StatusStr string `json:"status_str"`
	Completed bool   `json:"completed"`
}

// Message is one text frame on the event socket.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	MessageExecuting            = "executing"
	MessageProgress             = "progress"
	MessageExecutionError       = "execution_error"
	MessageExecutionInterrupted = "execution_interrupted"
)

// ExecutingData is the payload of "executing" messages. A nil Node marks the
// end of the prompt's execution.
type ExecutingData struct {
	Node     *string `json:"node"`
	PromptID string  `json:"prompt_id"`
}

type ProgressData struct {
	Value    int    `json:"value"`
	Max      int    `json:"max"`
	PromptID string `json:"prompt_id"`
	Node     string `json:"node"`
}

type ExecutionErrorData struct {
	PromptID         string `json:"prompt_id"`
	NodeID           string `json:"node_id"`
	NodeType         string `json:"node_type"`
	ExceptionType    string `json:"exception_type"`
	ExceptionMessage string `json:"exception_message"`
}
