package events

import (
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Type string

const (
	TaskCreated       Type = "task_created"
	TaskUpdated       Type = "task_updated"
	TaskDeleted       Type = "task_deleted"
	MemberAdded       Type = "member_added"
	MemberRoleChanged Type = "member_role_changed"
	MemberRemoved     Type = "member_removed"
	BoardUpdated      Type = "board_updated"
	BoardDeleted      Type = "board_deleted"
)

type Event struct {
	Type    Type      `json:"event"`
	BoardID uuid.UUID `json:"board_id"`
	Payload any       `json:"payload,omitempty"`
}

const writeWait = 5 * time.Second

// Hub fans board events out to the websocket connections subscribed to that
// board. Each connection remembers the user it was opened for so a removed
// member can be cut off.
type Hub struct {
	connections map[uuid.UUID]map[*websocket.Conn]uuid.UUID
	mutex       sync.Mutex
	log         *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID]map[*websocket.Conn]uuid.UUID),
		log:         log,
	}
}

func (h *Hub) register(boardID, userID uuid.UUID, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.connections[boardID] == nil {
		h.connections[boardID] = make(map[*websocket.Conn]uuid.UUID)
	}
	h.connections[boardID][conn] = userID
}

func (h *Hub) unregister(boardID uuid.UUID, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.removeLocked(boardID, conn)
}

func (h *Hub) removeLocked(boardID uuid.UUID, conn *websocket.Conn) {
	conns, ok := h.connections[boardID]
	if !ok {
		return
	}
	if _, ok := conns[conn]; !ok {
		return
	}
	delete(conns, conn)
	conn.Close()
	if len(conns) == 0 {
		delete(h.connections, boardID)
	}
}

// Serve registers conn for the board and blocks reading until the client
// goes away. Incoming messages are ignored.
//
// admit, when set, runs after registration. A Disconnect issued before the
// connection was registered is missed, so the caller re-checks access here;
// an error closes the connection with a policy violation.
func (h *Hub) Serve(boardID, userID uuid.UUID, conn *websocket.Conn, admit func() error) {
	h.register(boardID, userID, conn)
	defer h.unregister(boardID, conn)

	if admit != nil {
		if err := admit(); err != nil {
			h.log.WithFields(logrus.Fields{
				"board": boardID,
				"user":  userID,
			}).WithError(err).Debug("websocket subscription revoked")
			writeClose(conn)
			return
		}
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.WithFields(logrus.Fields{
					"board": boardID,
					"user":  userID,
				}).WithError(err).Debug("websocket closed")
			}
			return
		}
	}
}

// Publish sends the event to every connection on the board. Connections that
// fail to accept the write are dropped.
func (h *Hub) Publish(boardID uuid.UUID, ev Event) {
	ev.BoardID = boardID
	message, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).WithField("event", ev.Type).Error("marshal board event")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn := range h.connections[boardID] {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.log.WithFields(logrus.Fields{
				"board": boardID,
				"event": ev.Type,
			}).WithError(err).Warn("dropping websocket subscriber")
			h.removeLocked(boardID, conn)
		}
	}
}

// Disconnect closes the board's connections held by the given users, or all
// of them when no user is named.
func (h *Hub) Disconnect(boardID uuid.UUID, userIDs ...uuid.UUID) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn, owner := range h.connections[boardID] {
		if len(userIDs) == 0 || slices.Contains(userIDs, owner) {
			writeClose(conn)
			h.removeLocked(boardID, conn)
		}
	}
}

func writeClose(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "access revoked"),
		time.Now().Add(writeWait))
}

// Subscribers reports how many connections are open on the board.
func (h *Hub) Subscribers(boardID uuid.UUID) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections[boardID])
}
