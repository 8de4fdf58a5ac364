package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/krelinga/video-generator/internal/workflow"
	"github.com/rs/zerolog"
)

var (
	ErrEngineUnreachable = errors.New("execution engine unreachable")
	ErrSocketTimeout     = errors.New("event socket connection timed out")
	ErrSubmission        = errors.New("failed to submit workflow")
	ErrExecution         = errors.New("workflow execution failed")
	ErrExecutionTimeout  = errors.New("workflow execution timed out")
)

const (
	DefaultPort         = 8188
	DefaultReadyTimeout = 5 * time.Second
)

// maxErrorBody caps how much of an error response is copied into errors.
const maxErrorBody = 4 << 10

// Config configures a Client. Zero values take the defaults above.
type Config struct {
	Host string
	Port int
	// ClientID correlates this client's submissions with its event socket.
	ClientID string

	ReadyPolicy  RetryPolicy
	ReadyTimeout time.Duration
	SocketPolicy RetryPolicy
	// ExecutionTimeout bounds the wait for completion after submission.
	// Zero waits until the engine reports completion or ctx is done.
	ExecutionTimeout time.Duration

	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	Logger     zerolog.Logger
}

// Client drives the readiness check, connect, submit, await and fetch protocol against
// a ComfyUI engine. A Client runs one prompt at a time.
type Client struct {
	baseURL          string
	socketURL        string
	clientID         string
	readyPolicy      RetryPolicy
	readyTimeout     time.Duration
	socketPolicy     RetryPolicy
	executionTimeout time.Duration
	http             *http.Client
	dialer           *websocket.Dialer
	logger           zerolog.Logger
}

func NewClient(cfg Config) *Client {
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	hostPort := net.JoinHostPort(host, strconv.Itoa(port))

	c := &Client{
		baseURL:          "http://" + hostPort,
		socketURL:        "ws://" + hostPort + "/ws?clientId=" + url.QueryEscape(cfg.ClientID),
		clientID:         cfg.ClientID,
		readyPolicy:      cfg.ReadyPolicy,
		readyTimeout:     cfg.ReadyTimeout,
		socketPolicy:     cfg.SocketPolicy,
		executionTimeout: cfg.ExecutionTimeout,
		http:             cfg.HTTPClient,
		dialer:           cfg.Dialer,
		logger:           cfg.Logger.With().Str("engine", hostPort).Logger(),
	}
	if c.readyPolicy == (RetryPolicy{}) {
		c.readyPolicy = DefaultReadyPolicy
	}
	if c.readyTimeout == 0 {
		c.readyTimeout = DefaultReadyTimeout
	}
	if c.socketPolicy == (RetryPolicy{}) {
		c.socketPolicy = DefaultSocketPolicy
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.dialer == nil {
		c.dialer = websocket.DefaultDialer
	}
	return c
}

// ClientID returns the identifier sent with every submission.
func (c *Client) ClientID() string {
	return c.clientID
}

// WaitReady polls the engine's root endpoint until it answers.
func (c *Client) WaitReady(ctx context.Context) error {
	target := c.baseURL + "/"
	attempts, err := c.readyPolicy.Do(ctx, func(int) error {
		reqCtx, cancel := context.WithTimeout(ctx, c.readyTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		c.logger.Warn().Err(err).
			Int("attempt", attempt).
			Int("max_attempts", c.readyPolicy.attempts()).
			Dur("retry_in", wait).
			Msg("engine http readiness check failed")
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s after %d attempts: %w", ErrEngineUnreachable, target, attempts, err)
	}
	c.logger.Info().Int("attempt", attempts).Msg("engine http readiness check succeeded")
	return nil
}

// Connect opens the event socket for this client's id.
func (c *Client) Connect(ctx context.Context) (*Session, error) {
	var conn *websocket.Conn
	attempts, err := c.socketPolicy.Do(ctx, func(int) error {
		cn, _, err := c.dialer.DialContext(ctx, c.socketURL, nil)
		if err != nil {
			return err
		}
		conn = cn
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		c.logger.Warn().Err(err).
			Int("attempt", attempt).
			Int("max_attempts", c.socketPolicy.attempts()).
			Dur("retry_in", wait).
			Msg("event socket connection failed")
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrSocketTimeout, c.socketURL, attempts, err)
	}
	c.logger.Info().Int("attempt", attempts).Msg("event socket connected")
	return &Session{
		conn:             conn,
		executionTimeout: c.executionTimeout,
		logger:           c.logger,
	}, nil
}

// Submit queues g for execution and returns the engine's prompt id.
func (c *Client) Submit(ctx context.Context, g workflow.Graph) (string, error) {
	body, err := json.Marshal(PromptRequest{Prompt: g, ClientID: c.clientID})
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal prompt: %w", ErrSubmission, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSubmission, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSubmission, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %w", ErrSubmission, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrSubmission, resp.StatusCode, truncate(respBody))
	}

	var pr PromptResponse
	if err := json.Unmarshal(respBody, &pr); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %w", ErrSubmission, err)
	}
	if len(pr.NodeErrors) > 0 {
		return "", fmt.Errorf("%w: node errors: %s", ErrSubmission, truncate(respBody))
	}
	if pr.PromptID == "" {
		return "", fmt.Errorf("%w: response has no prompt_id", ErrSubmission)
	}
	c.logger.Info().Str("prompt_id", pr.PromptID).Int("number", pr.Number).Msg("workflow submitted")
	return pr.PromptID, nil
}

// History fetches the execution record of promptID.
func (c *Client) History(ctx context.Context, promptID string) (*HistoryEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/history/"+url.PathEscape(promptID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("history request failed with status %d: %s", resp.StatusCode, body)
	}

	var history HistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	entry, ok := history[promptID]
	if !ok {
		return nil, fmt.Errorf("%w: no history for prompt %s", ErrExecution, promptID)
	}
	return &entry, nil
}

// View downloads a file through GET /view.
func (c *Client) View(ctx context.Context, f FileOutput) ([]byte, error) {
	query := url.Values{
		"filename":  {f.Filename},
		"subfolder": {f.Subfolder},
		"type":      {f.Type},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/view?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", f.Filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("view request for %s failed with status %d", f.Filename, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Filename, err)
	}
	return data, nil
}

// Outputs collects the video artifacts of promptID. Each output node
// contributes its "gifs" entries, or its "videos" entries when it has no
// "gifs" key. Files with a fullpath are read from local disk; others are
// fetched through the engine's /view endpoint. A history whose status is
// "error" fails with ErrExecution.
func (c *Client) Outputs(ctx context.Context, promptID string) (Outputs, error) {
	entry, err := c.History(ctx, promptID)
	if err != nil {
		return nil, err
	}
	if entry.Status.StatusStr == StatusError {
		return nil, fmt.Errorf("%w: prompt %s finished with status %q", ErrExecution, promptID, entry.Status.StatusStr)
	}

	outputs := make(Outputs, len(entry.Outputs))
	for nodeID, out := range entry.Outputs {
		files := out.Gifs
		if !out.HasGifs {
			files = out.Videos
		}
		artifacts := make([]Artifact, 0, len(files))
		for _, f := range files {
			var data []byte
			switch {
			case f.FullPath != "":
				data, err = os.ReadFile(f.FullPath)
				if err != nil {
					return nil, fmt.Errorf("failed to read output of node %s: %w", nodeID, err)
				}
			case f.Filename != "":
				data, err = c.View(ctx, f)
				if err != nil {
					return nil, fmt.Errorf("failed to fetch output of node %s: %w", nodeID, err)
				}
			default:
				continue
			}
			artifacts = append(artifacts, Artifact{Filename: f.Filename, Data: data})
		}
		outputs[nodeID] = artifacts
	}
	return outputs, nil
}

// Run executes g end to end: readiness check, connect, submit, await, fetch. The
// event socket is closed before Run returns.
func (c *Client) Run(ctx context.Context, g workflow.Graph, progress ProgressFunc) (Outputs, error) {
	logger := c.logger.With().Str("client_id", c.clientID).Logger()
	state := StateDisconnected
	enter := func(next State) {
		logger.Debug().Stringer("from", state).Stringer("to", next).Msg("engine state")
		state = next
	}
	fail := func(err error) (Outputs, error) {
		logger.Error().Err(err).Stringer("state", state).Msg("engine run failed")
		enter(StateFailed)
		return nil, err
	}

	enter(StateHTTPProbing)
	if err := c.WaitReady(ctx); err != nil {
		return fail(err)
	}

	enter(StateSocketConnecting)
	session, err := c.Connect(ctx)
	if err != nil {
		return fail(err)
	}
	defer session.Close()

	promptID, err := c.Submit(ctx, g)
	if err != nil {
		return fail(err)
	}
	enter(StateSubmitted)
	logger = logger.With().Str("prompt_id", promptID).Logger()

	enter(StateAwaiting)
	if err := session.Await(ctx, promptID, progress); err != nil {
		return fail(err)
	}

	outputs, err := c.Outputs(ctx, promptID)
	if err != nil {
		return fail(err)
	}
	enter(StateCompleted)
	return outputs, nil
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
