// Package ws serves contour requests over WebSocket.
//
// Clients send JSON requests as text messages. Vertex responses come back as
// binary frames (little-endian int64 token, then float32 vertices); GeoJSON
// responses as a JSON text message wrapping the document. Every request is
// answered, in completion order, unless it set skip_if_stale and a newer
// response was already delivered on the session.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/couchcryptid/isobar-contour-service/internal/domain"
	"github.com/couchcryptid/isobar-contour-service/internal/observability"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// outBuffer bounds how many computed responses may wait for the writer.
	outBuffer = 16
)

// Submitter queues a contour request; the response is sent to reply. Done is
// closed when the submitter stops answering.
type Submitter interface {
	Submit(ctx context.Context, req domain.Request, reply chan<- domain.Response) error
	Done() <-chan struct{}
}

// Handler upgrades HTTP connections and runs one session per connection.
type Handler struct {
	worker          Submitter
	upgrader        websocket.Upgrader
	maxMessageBytes int64
	metrics         *observability.Metrics
	logger          *slog.Logger
}

// NewHandler creates a WebSocket handler in front of the contour worker.
func NewHandler(worker Submitter, maxMessageBytes int64, metrics *observability.Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		worker: worker,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		maxMessageBytes: maxMessageBytes,
		metrics:         metrics,
		logger:          logger,
	}
}

// geoJSONMessage is the text message carrying a GeoJSON response.
type geoJSONMessage struct {
	Token    int64                 `json:"correlation_token"`
	Outcome  domain.Outcome        `json:"outcome"`
	Reason   domain.FallbackReason `json:"reason,omitempty"`
	Segments int                   `json:"segments"`
	GeoJSON  json.RawMessage       `json:"geojson,omitempty"`
}

// outgoing is a response queued for the writer.
type outgoing struct {
	resp        domain.Response
	skipIfStale bool
}

type session struct {
	conn    *websocket.Conn
	out     chan outgoing
	done    chan struct{} // closed when the read loop ends
	stale   domain.StaleFilter
	metrics *observability.Metrics
	logger  *slog.Logger
	broken  bool
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	defer conn.Close()

	h.metrics.WSConnections.Inc()
	defer h.metrics.WSConnections.Dec()

	s := &session{
		conn:    conn,
		out:     make(chan outgoing, outBuffer),
		done:    make(chan struct{}),
		metrics: h.metrics,
		logger:  h.logger.With("remote", r.RemoteAddr),
	}
	s.logger.Debug("websocket session opened")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop()
	}()
	go s.closeWhenStopped(h.worker.Done())

	h.readLoop(r.Context(), s)

	// Responses still in flight are discarded once the client is gone.
	close(s.done)
	<-writerDone
	s.logger.Debug("websocket session closed")
}

// closeWhenStopped ends the session if the worker stops first, since no
// further responses will arrive.
func (s *session) closeWhenStopped(stopped <-chan struct{}) {
	select {
	case <-stopped:
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "contour worker stopped")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = s.conn.Close()
	case <-s.done:
	}
}

func (h *Handler) readLoop(ctx context.Context, s *session) {
	s.conn.SetReadLimit(h.maxMessageBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			s.logger.Warn("ignoring non-text websocket message", "type", kind)
			continue
		}

		req, err := domain.ParseRequest(data)
		if err != nil {
			s.logger.Warn("decode failed, skipping message", "error", err)
			h.metrics.DecodeErrors.Inc()
			continue
		}

		// The worker never blocks on a buffered reply of one.
		reply := make(chan domain.Response, 1)
		if err := h.worker.Submit(ctx, req, reply); err != nil {
			s.logger.Error("submit to worker failed", "error", err, "correlation_token", req.Token)
			return
		}
		go s.forward(reply, req.SkipIfStale)
	}
}

// forward hands one response to the writer, or gives up when the session ends.
func (s *session) forward(reply <-chan domain.Response, skipIfStale bool) {
	select {
	case resp := <-reply:
		select {
		case s.out <- outgoing{resp: resp, skipIfStale: skipIfStale}:
		case <-s.done:
		}
	case <-s.done:
	}
}

// writeLoop is the only goroutine writing data frames to the connection.
func (s *session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case o := <-s.out:
			s.deliver(o)
		case <-ticker.C:
			if s.broken {
				continue
			}
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.broken = true
			}
		case <-s.done:
			return
		}
	}
}

func (s *session) deliver(o outgoing) {
	resp := o.resp
	if s.broken {
		return
	}
	if o.skipIfStale {
		if !s.stale.Accept(resp.Token) {
			s.metrics.StaleDropped.Inc()
			s.logger.Debug("dropping stale response", "correlation_token", resp.Token)
			return
		}
	} else {
		s.stale.Observe(resp.Token)
	}
	s.metrics.Requests.WithLabelValues("ws", string(resp.Outcome)).Inc()

	kind, payload, err := encode(resp)
	if err != nil {
		s.logger.Error("encode response failed", "error", err, "correlation_token", resp.Token)
		return
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(kind, payload); err != nil {
		s.logger.Warn("websocket write failed", "error", err, "correlation_token", resp.Token)
		s.broken = true
	}
}

// encode picks the wire form of a response.
func encode(resp domain.Response) (int, []byte, error) {
	if resp.Format != domain.FormatGeoJSON {
		return websocket.BinaryMessage, domain.EncodeFrame(resp.Token, resp.Vertices), nil
	}
	data, err := json.Marshal(geoJSONMessage{
		Token:    resp.Token,
		Outcome:  resp.Outcome,
		Reason:   resp.Reason,
		Segments: resp.Segments,
		GeoJSON:  resp.GeoJSON,
	})
	return websocket.TextMessage, data, err
}
