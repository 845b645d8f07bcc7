package simulation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	submitPath        = "api/run-simulation"
	streamPathPrefix  = "api/ws/status"
	completedMessage  = "completed"
	failedPrefix      = "failed:"
	closeWriteWait    = time.Second
	maxFrameBytes     = 32 << 20
	maxErrorBodyBytes = 64 << 10

	msgTransportError = "websocket connection error"
	msgConnectionLost = "connection lost"
	msgDisposed       = "simulation controller closed"
)

type Option func(*Controller)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Controller) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Controller) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithObserver registers fn for every state change. fn is called from the
// submitting goroutine and from the stream reader, never concurrently for
// the same session, and must not call back into the controller.
func WithObserver(fn func(Event)) Option {
	return func(c *Controller) {
		c.observer = fn
	}
}

// WithFrameSink receives every accepted frame with its 1-based sequence
// number within the session, on the stream reader goroutine.
func WithFrameSink(fn func(taskID string, seq int, frame string)) Option {
	return func(c *Controller) {
		c.sink = fn
	}
}

// Controller owns at most one simulation session and its result stream.
// Submit supersedes any previous session; Close disposes the controller.
type Controller struct {
	backend    *url.URL
	httpClient *http.Client
	dialer     *websocket.Dialer
	observer   func(Event)
	sink       func(taskID string, seq int, frame string)

	submitMu sync.Mutex

	mu         sync.Mutex
	gen        uint64
	state      Snapshot
	conn       *websocket.Conn
	readerDone chan struct{}
	done       chan struct{}
	closed     bool
}

func NewController(backendURL string, opts ...Option) (*Controller, error) {
	backend, err := parseBackendURL(backendURL)
	if err != nil {
		return nil, err
	}
	c := &Controller{
		backend:    backend,
		httpClient: http.DefaultClient,
		dialer:     websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func parseBackendURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("simulation backend url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse simulation backend url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return nil, fmt.Errorf("simulation backend url must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("simulation backend url has no host")
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// SubmitURL is the endpoint the job description is posted to.
func (c *Controller) SubmitURL() string {
	return c.backend.JoinPath(submitPath).String()
}

// StreamURL derives the websocket address for taskID from the backend
// origin: http becomes ws and https becomes wss.
func (c *Controller) StreamURL(taskID string) string {
	u := *c.backend
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.JoinPath(streamPathPrefix, taskID).String()
}

// Submit starts a new run. Any previous stream is closed before the request
// is validated or posted. ctx bounds the POST and the websocket handshake
// only; the stream itself lives until a terminal message, a new Submit or
// Close.
func (c *Controller) Submit(ctx context.Context, req Request) (Snapshot, error) {
	if req == nil {
		return Snapshot{}, &ValidationError{Field: "request", Message: "simulation request is required"}
	}
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	if c.isClosed() {
		return Snapshot{}, ErrClosed
	}
	c.teardown()

	c.mu.Lock()
	if c.done != nil && !c.state.Status.Terminal() {
		close(c.done)
	}
	c.gen++
	gen := c.gen
	c.state = Snapshot{Status: StatusValidating}
	c.done = make(chan struct{})
	snap := c.state
	c.mu.Unlock()
	c.emit(EventStatus, gen, snap)

	if err := req.Validate(); err != nil {
		return c.fail(gen, err), err
	}

	c.transition(gen, StatusSubmitting)
	if c.isClosed() {
		return c.Snapshot(), ErrClosed
	}
	taskID, err := c.post(ctx, req)
	if err != nil {
		log.Printf("simulation: submit failed type=%s err=%v", req.Type(), err)
		return c.fail(gen, err), err
	}

	c.mu.Lock()
	if c.closed {
		snap = c.state
		c.mu.Unlock()
		return snap, ErrClosed
	}
	c.state.TaskID = taskID
	snap = c.state
	c.mu.Unlock()
	c.emit(EventSubmitted, gen, snap)
	c.transition(gen, StatusStreaming)

	streamURL := c.StreamURL(taskID)
	conn, resp, err := c.dialer.DialContext(ctx, streamURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		streamErr := &StreamError{TaskID: taskID, Message: msgTransportError}
		log.Printf("simulation: stream dial failed task=%s url=%s err=%v", taskID, streamURL, err)
		return c.fail(gen, streamErr), streamErr
	}
	conn.SetReadLimit(maxFrameBytes)

	c.mu.Lock()
	if c.closed || c.gen != gen {
		snap = c.state
		c.mu.Unlock()
		_ = conn.Close()
		return snap, ErrClosed
	}
	readerDone := make(chan struct{})
	c.conn = conn
	c.readerDone = readerDone
	snap = c.state
	c.mu.Unlock()

	go c.read(gen, conn, readerDone)
	return snap, nil
}

// Snapshot returns the state of the current session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Wait blocks until the current session is terminal or superseded by a
// newer Submit, then returns the controller's latest snapshot.
func (c *Controller) Wait(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return c.Snapshot(), nil
	}
	select {
	case <-done:
		return c.Snapshot(), nil
	case <-ctx.Done():
		return c.Snapshot(), ctx.Err()
	}
}

// Close disposes the controller: the live stream is closed and a session
// that has not finished is marked failed. Close is idempotent.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.teardown()

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	c.fail(gen, &StreamError{TaskID: c.Snapshot().TaskID, Message: msgDisposed})
	return nil
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// teardown releases ownership of the live socket, closes it and waits for
// its reader to exit. Closing a socket that is already gone is a no-op.
func (c *Controller) teardown() {
	c.mu.Lock()
	conn, readerDone := c.conn, c.readerDone
	c.conn, c.readerDone = nil, nil
	c.mu.Unlock()

	if conn != nil {
		closeNormal(conn)
	}
	if readerDone != nil {
		<-readerDone
	}
}

func closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
	_ = conn.Close()
}

func (c *Controller) post(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", &SubmitError{Message: fmt.Sprintf("encode request: %v", err)}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.SubmitURL(), bytes.NewReader(body))
	if err != nil {
		return "", &SubmitError{Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &SubmitError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", &SubmitError{StatusCode: resp.StatusCode}
	}
	var out struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &SubmitError{Message: fmt.Sprintf("decode response: %v", err)}
	}
	taskID := strings.TrimSpace(out.TaskID)
	if taskID == "" {
		return "", &SubmitError{Message: "response has no task_id"}
	}
	return taskID, nil
}

func (c *Controller) read(gen uint64, conn *websocket.Conn, readerDone chan struct{}) {
	defer func() {
		c.emit(EventStreamClosed, gen, c.Snapshot())
		close(readerDone)
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.streamEnded(gen, conn, err)
			return
		}
		msg := string(payload)
		switch {
		case msg == completedMessage:
			if c.finishStream(gen, conn, StatusCompleted, "") {
				closeNormal(conn)
			}
			return
		case strings.HasPrefix(msg, failedPrefix):
			reason := strings.TrimSpace(strings.TrimPrefix(msg, failedPrefix))
			if c.finishStream(gen, conn, StatusFailed, reason) {
				closeNormal(conn)
			}
			return
		default:
			if !c.frame(gen, conn, msg) {
				return
			}
		}
	}
}

// ownsLocked reports whether conn is still the live socket of session gen.
// Callers hold c.mu.
func (c *Controller) ownsLocked(gen uint64, conn *websocket.Conn) bool {
	return c.gen == gen && c.conn == conn && !c.state.Status.Terminal()
}

func (c *Controller) frame(gen uint64, conn *websocket.Conn, frame string) bool {
	c.mu.Lock()
	if !c.ownsLocked(gen, conn) {
		c.mu.Unlock()
		return false
	}
	c.state.LatestFrame = frame
	c.state.Frames++
	snap := c.state
	c.mu.Unlock()
	c.emit(EventFrame, gen, snap)
	if c.sink != nil {
		c.sink(snap.TaskID, snap.Frames, frame)
	}
	return true
}

// finishStream moves the session to a terminal status and releases the
// socket. It returns false when the socket no longer belongs to gen.
func (c *Controller) finishStream(gen uint64, conn *websocket.Conn, status Status, message string) bool {
	c.mu.Lock()
	if !c.ownsLocked(gen, conn) {
		c.mu.Unlock()
		return false
	}
	c.conn = nil
	snap := c.finishLocked(status, message)
	c.mu.Unlock()
	c.emit(EventStatus, gen, snap)
	return true
}

func (c *Controller) streamEnded(gen uint64, conn *websocket.Conn, err error) {
	// A close frame from the backend without a terminal message means the
	// run was abandoned; 1006 is a dropped socket and counts as transport.
	message := msgTransportError
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure {
		message = msgConnectionLost
	}
	if c.finishStream(gen, conn, StatusFailed, message) {
		log.Printf("simulation: stream ended without terminal message task=%s err=%v", c.Snapshot().TaskID, err)
		_ = conn.Close()
	}
}

func (c *Controller) transition(gen uint64, status Status) {
	c.mu.Lock()
	if c.gen != gen || c.state.Status.Terminal() {
		c.mu.Unlock()
		return
	}
	c.state.Status = status
	snap := c.state
	c.mu.Unlock()
	c.emit(EventStatus, gen, snap)
}

func (c *Controller) fail(gen uint64, err error) Snapshot {
	c.mu.Lock()
	if c.gen != gen || c.state.Status.Terminal() || c.state.Status == StatusIdle {
		snap := c.state
		c.mu.Unlock()
		return snap
	}
	snap := c.finishLocked(StatusFailed, err.Error())
	c.mu.Unlock()
	c.emit(EventStatus, gen, snap)
	return snap
}

func (c *Controller) finishLocked(status Status, message string) Snapshot {
	c.state.Status = status
	c.state.ErrorMessage = message
	if c.done != nil {
		close(c.done)
	}
	return c.state
}

func (c *Controller) emit(kind EventKind, gen uint64, snap Snapshot) {
	if c.observer == nil {
		return
	}
	c.observer(Event{Kind: kind, Session: gen, Snapshot: snap})
}
