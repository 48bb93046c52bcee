package http

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"quizroom-service/internal/app"
)

// WSHandler upgrades HTTP requests to websockets and wires each
// connection into the room supervisor.
type WSHandler struct {
	supervisor *app.Supervisor
	upgrader   websocket.Upgrader
}

func NewWSHandler(supervisor *app.Supervisor) *WSHandler {
	return &WSHandler{
		supervisor: supervisor,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startGamePayload struct {
	CountdownSeconds int `json:"countdownSeconds"`
}

type sendMessagePayload struct {
	Text string `json:"text"`
}

type submitAnswerPayload struct {
	QuestionID    string  `json:"questionId"`
	OptionID      string  `json:"optionId"`
	TimeRemaining float64 `json:"timeRemaining"`
}

type targetUserPayload struct {
	UserID string `json:"userId"`
}

// wsConn adapts a gorilla connection to app.Conn. A single writer
// goroutine owns all writes; Send never blocks the room actor and drops
// events when the client cannot keep up.
type wsConn struct {
	conn   *websocket.Conn
	send   chan app.Event
	closed chan struct{}
	once   sync.Once
}

func newWSConn(conn *websocket.Conn) *wsConn {
	c := &wsConn{
		conn:   conn,
		send:   make(chan app.Event, 32),
		closed: make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *wsConn) writeLoop() {
	for {
		select {
		case ev := <-c.send:
			if err := c.conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Msg("ws write error")
				c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *wsConn) Send(ev app.Event) {
	select {
	case c.send <- ev:
	case <-c.closed:
	default:
		log.Warn().Str("event", ev.Type).Msg("slow ws client, event dropped")
	}
}

func (c *wsConn) Close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

// ServeWS registers the connection as a participant and pumps its
// actions into the room. Each action is acknowledged before the next
// message on the connection is read, so a client's actions cannot be
// reordered.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	wallet := r.URL.Query().Get("walletAddress")
	name := r.URL.Query().Get("name")
	if roomID == "" || wallet == "" {
		http.Error(w, "missing roomId or walletAddress", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("ws upgrade failed")
		return
	}
	c := newWSConn(conn)

	handle, err := h.supervisor.Join(r.Context(), roomID, wallet, name, c)
	if err != nil {
		// Malformed identity and join failures close the connection
		// before any room state was touched.
		_ = conn.WriteJSON(app.ErrorEvent(err))
		c.Close()
		return
	}
	defer c.Close()
	defer handle.Leave()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		if err := h.dispatch(handle, inbound); err != nil {
			c.Send(app.ErrorEvent(err))
		}
	}
}

func (h *WSHandler) dispatch(handle *app.Handle, inbound inboundMessage) error {
	switch inbound.Type {
	case "toggleReady":
		// The new ready/total aggregate reaches clients through the
		// roomStatsUpdate broadcast.
		_, _, err := handle.ToggleReady()
		return err
	case "startGame":
		var payload startGamePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errInvalidPayload
		}
		return handle.StartGame(payload.CountdownSeconds)
	case "sendMessage":
		var payload sendMessagePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errInvalidPayload
		}
		return handle.SendMessage(payload.Text)
	case "submitAnswer":
		var payload submitAnswerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errInvalidPayload
		}
		return handle.SubmitAnswer(payload.QuestionID, payload.OptionID, payload.TimeRemaining)
	case "skipQuestion":
		return handle.SkipQuestion()
	case "promoteAdmin":
		var payload targetUserPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errInvalidPayload
		}
		return handle.PromoteAdmin(payload.UserID)
	case "kick":
		var payload targetUserPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errInvalidPayload
		}
		return handle.Kick(payload.UserID)
	default:
		return errUnsupportedType
	}
}
