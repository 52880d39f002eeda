package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	a2acore "github.com/a2aproject/a2a-go/a2a"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/Strob0t/tubedigest/internal/domain"
	"github.com/Strob0t/tubedigest/internal/domain/task"
	"github.com/Strob0t/tubedigest/internal/secrets"
)

const (
	defaultDelegationTimeout = 2 * time.Minute
	defaultReadLimit         = 1 << 20
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// Peer names the remote agent; it becomes the hop of failures the
	// client synthesizes.
	Peer    string
	BaseURL string
	Timeout time.Duration // used when an envelope carries no deadline hint
	// Credentials and AuthSecret enable a bearer token on every call.
	Credentials *secrets.Cache
	AuthSecret  string
	HTTPClient  *http.Client
}

// Client talks to a remote agent's protocol server.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient creates a protocol client for the agent at cfg.BaseURL.
func NewClient(cfg ClientConfig) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultDelegationTimeout
	}
	if cfg.Credentials == nil {
		cfg.AuthSecret = ""
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{cfg: cfg, http: hc}
}

// Card fetches the remote agent card.
func (c *Client) Card(ctx context.Context) (*a2acore.AgentCard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/.well-known/agent.json", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build card request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, upstreamErr("fetch agent card", errors.Is(err, context.DeadlineExceeded), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch agent card: status %d: %w", resp.StatusCode, domain.ErrUpstreamUnavailable)
	}
	var card a2acore.AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("decode agent card: %w", err)
	}
	return &card, nil
}

// Send submits env without streaming and returns the terminal event.
func (c *Client) Send(ctx context.Context, env Envelope) (task.Event, error) {
	env = c.prepare(env)
	env.Stream = false
	ctx, cancel := context.WithTimeout(ctx, env.Timeout(c.cfg.Timeout))
	defer cancel()

	body, err := json.Marshal(env)
	if err != nil {
		return task.Event{}, fmt.Errorf("marshal envelope: %w", err)
	}

	reply, err := secrets.WithAuthRetry(ctx, c.cfg.Credentials, c.cfg.AuthSecret, func(ctx context.Context, tok secrets.Value) (*TaskReply, error) {
		return c.post(ctx, body, tok)
	})
	if err != nil {
		return task.Event{}, err
	}
	if reply.TaskID != env.TaskID {
		return task.Event{}, fmt.Errorf("reply for task %q while waiting for %q: %w", reply.TaskID, env.TaskID, domain.ErrUpstreamUnavailable)
	}
	if !reply.Event.Type.IsTerminal() {
		return task.Event{}, fmt.Errorf("reply carries non-terminal event %q: %w", reply.Event.Type, domain.ErrUpstreamUnavailable)
	}
	return reply.Event, nil
}

func (c *Client) post(ctx context.Context, body []byte, tok secrets.Value) (*TaskReply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/a2a/tasks", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setBearer(req.Header, tok)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, upstreamErr("send task", ctx.Err() != nil, err)
	}
	defer resp.Body.Close()

	if err := statusErr(resp); err != nil {
		return nil, err
	}
	var reply TaskReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, upstreamErr("decode reply", ctx.Err() != nil, err)
	}
	return &reply, nil
}

// Stream submits env over a WebSocket and returns the task's events in
// order. The channel is closed after exactly one terminal event; callers
// must drain it. Each event is acknowledged only once the caller has
// received it. Transport failures and deadline expiry surface as a
// synthesized failed event.
func (c *Client) Stream(ctx context.Context, env Envelope) (<-chan task.Event, error) {
	env = c.prepare(env)
	env.Stream = true
	ctx, cancel := context.WithTimeout(ctx, env.Timeout(c.cfg.Timeout))

	conn, err := secrets.WithAuthRetry(ctx, c.cfg.Credentials, c.cfg.AuthSecret, func(ctx context.Context, tok secrets.Value) (*websocket.Conn, error) {
		return c.dial(ctx, tok)
	})
	if err != nil {
		cancel()
		return nil, err
	}
	conn.SetReadLimit(defaultReadLimit)

	if err := wsjson.Write(ctx, conn, env); err != nil {
		cancel()
		_ = conn.CloseNow()
		return nil, upstreamErr("send envelope", ctx.Err() != nil, err)
	}

	out := make(chan task.Event)
	go func() {
		defer cancel()
		defer close(out)
		c.pump(ctx, conn, env.TaskID, out)
	}()
	return out, nil
}

func (c *Client) dial(ctx context.Context, tok secrets.Value) (*websocket.Conn, error) {
	h := http.Header{}
	setBearer(h, tok)
	conn, resp, err := websocket.Dial(ctx, c.cfg.BaseURL+"/a2a/tasks/stream", &websocket.DialOptions{
		HTTPClient: c.http,
		HTTPHeader: h,
	})
	if err != nil {
		if resp != nil {
			if serr := statusErr(resp); serr != nil {
				return nil, serr
			}
		}
		return nil, upstreamErr("dial stream", ctx.Err() != nil, err)
	}
	return conn, nil
}

// pump reads stream messages until the terminal event, forwarding events
// for taskID and acknowledging everything it reads.
func (c *Client) pump(ctx context.Context, conn *websocket.Conn, taskID string, out chan<- task.Event) {
	lastSeq := 0
	for {
		var msg StreamMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			_ = conn.CloseNow()
			out <- c.synthesize(taskID, lastSeq+1, upstreamErr("read stream", ctx.Err() != nil, err))
			return
		}
		if msg.TaskID != taskID || msg.Event.TaskID != taskID {
			slog.Debug("discarding uncorrelated stream message", "want", taskID, "got", msg.TaskID)
			_ = wsjson.Write(ctx, conn, Ack{TaskID: msg.TaskID, Seq: msg.Event.Seq})
			continue
		}
		if msg.Event.Seq <= lastSeq {
			_ = wsjson.Write(ctx, conn, Ack{TaskID: taskID, Seq: msg.Event.Seq})
			continue
		}

		select {
		case out <- msg.Event:
		case <-ctx.Done():
			_ = conn.CloseNow()
			out <- c.synthesize(taskID, msg.Event.Seq, upstreamErr("deliver event", true, ctx.Err()))
			return
		}
		lastSeq = msg.Event.Seq

		if err := wsjson.Write(ctx, conn, Ack{TaskID: taskID, Seq: msg.Event.Seq}); err != nil && !msg.Event.Type.IsTerminal() {
			_ = conn.CloseNow()
			out <- c.synthesize(taskID, lastSeq+1, upstreamErr("ack", ctx.Err() != nil, err))
			return
		}
		if msg.Event.Type.IsTerminal() {
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}

// Delegate runs env to completion and returns its terminal event. It never
// fails: transport errors and timeouts become failed events. When env
// streams, onEvent (if set) sees every progress event before the terminal.
func (c *Client) Delegate(ctx context.Context, env Envelope, onEvent func(task.Event)) task.Event {
	env = c.prepare(env)
	if !env.Stream {
		ev, err := c.Send(ctx, env)
		if err != nil {
			return c.synthesize(env.TaskID, 1, err)
		}
		return ev
	}

	ch, err := c.Stream(ctx, env)
	if err != nil {
		return c.synthesize(env.TaskID, 1, err)
	}
	var last task.Event
	for ev := range ch {
		if !ev.Type.IsTerminal() && onEvent != nil {
			onEvent(ev)
		}
		last = ev
	}
	return last
}

func (c *Client) prepare(env Envelope) Envelope {
	if env.TaskID == "" {
		env.TaskID = uuid.NewString()
	}
	if env.TimeoutMS <= 0 {
		env.TimeoutMS = c.cfg.Timeout.Milliseconds()
	}
	return env
}

func (c *Client) synthesize(taskID string, seq int, err error) task.Event {
	ev := task.Failed(task.ReasonFromError(err, c.cfg.Peer))
	ev.TaskID = taskID
	ev.Seq = seq
	ev.Time = time.Now()
	return ev
}

func setBearer(h http.Header, tok secrets.Value) {
	if tok != "" {
		h.Set("Authorization", "Bearer "+tok.Reveal())
	}
}

func statusErr(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrAuthFailure)
	case resp.StatusCode == http.StatusSwitchingProtocols, resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s: %w", resp.StatusCode, bytes.TrimSpace(msg), domain.ErrValidation)
	default:
		return fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrUpstreamUnavailable)
	}
}
