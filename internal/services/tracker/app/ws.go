package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/veritest/veritest/internal/services/tracker/auth"
	"github.com/veritest/veritest/internal/services/tracker/domain"
	"github.com/veritest/veritest/internal/services/tracker/notify"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3
)

type wsFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type roomPayload struct {
	Room string `json:"room"`
}

type ackPayload struct {
	Action string `json:"action"`
	Room   string `json:"room,omitempty"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// wsPeer serializes frame writes to one websocket connection.
type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
	conn    *websocket.Conn
}

func newWSPeer(conn *websocket.Conn) *wsPeer {
	return &wsPeer{encoder: json.NewEncoder(conn), conn: conn}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

// SendEvent delivers one notification frame. It implements Peer.
func (p *wsPeer) SendEvent(event notify.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writeFrame(wsFrame{Type: "notification", Payload: payload})
}

func (p *wsPeer) close() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// userLoader resolves stored users during the websocket handshake.
type userLoader interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
}

type wsUserContextKey struct{}

// newWSHandler builds the /ws endpoint. The handshake authenticates a
// bearer token from the Authorization header or token query parameter,
// then the connection auto-joins its role and department rooms.
func newWSHandler(verifier *auth.Verifier, users userLoader, registry *Registry) http.Handler {
	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		handleWSConn(conn, registry)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		token := auth.BearerToken(r.Header.Get("Authorization"), r.URL.Query().Get("token"))
		if token == "" {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		identity, err := verifier.Verify(token)
		if err != nil {
			log.Printf("ws: token rejected for remote=%s: %v", r.RemoteAddr, err)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		user, err := users.GetUser(r.Context(), identity.UserID)
		if err != nil || !user.Active {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), wsUserContextKey{}, user)
		wsHandler.ServeHTTP(w, r.WithContext(ctx))
	})
}

func handleWSConn(conn *websocket.Conn, registry *Registry) {
	defer func() {
		_ = conn.Close()
	}()

	request := conn.Request()
	if request == nil {
		return
	}
	user, ok := request.Context().Value(wsUserContextKey{}).(domain.User)
	if !ok {
		return
	}

	peer := newWSPeer(conn)
	if replaced := registry.Register(user.ID, peer); replaced != nil {
		if old, isWS := replaced.(*wsPeer); isWS {
			old.close()
		}
	}
	defer registry.Unregister(peer)

	registry.JoinRoom(peer, notify.RoleRoom(user.Role))
	if strings.TrimSpace(user.Department) != "" {
		registry.JoinRoom(peer, notify.DeptRoom(user.Department))
	}

	decoder := json.NewDecoder(conn)
	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			_ = writeWSError(peer, "INVALID_ARGUMENT", "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			_ = writeWSError(peer, "INVALID_ARGUMENT", "payload too large")
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeWSError(peer, "RESOURCE_EXHAUSTED", "rate limit exceeded")
			return
		}

		switch frame.Type {
		case "join-room":
			handleRoomFrame(peer, registry, frame, true)
		case "leave-room":
			handleRoomFrame(peer, registry, frame, false)
		default:
			_ = writeWSError(peer, "INVALID_ARGUMENT", "unsupported frame type")
		}
	}
}

// joinableRoom limits client-requested rooms to cycle and category
// rooms. Role and department rooms are joined by the server only.
func joinableRoom(room string) bool {
	return strings.HasPrefix(room, "cycle_") || strings.HasPrefix(room, "category_")
}

func handleRoomFrame(peer *wsPeer, registry *Registry, frame wsFrame, join bool) {
	var payload roomPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(peer, "INVALID_ARGUMENT", "invalid room payload")
		return
	}
	room := strings.TrimSpace(payload.Room)
	if room == "" {
		_ = writeWSError(peer, "INVALID_ARGUMENT", "room is required")
		return
	}
	if !joinableRoom(room) {
		_ = writeWSError(peer, "FORBIDDEN", "room cannot be joined")
		return
	}

	action := "joined"
	if join {
		registry.JoinRoom(peer, room)
	} else {
		registry.LeaveRoom(peer, room)
		action = "left"
	}
	_ = peer.writeFrame(wsFrame{Type: "ack", Payload: mustJSON(ackPayload{Action: action, Room: room})})
}

func writeWSError(peer *wsPeer, code string, message string) error {
	return peer.writeFrame(wsFrame{Type: "error", Payload: mustJSON(errorPayload{Code: code, Message: message})})
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("failed to marshal websocket frame payload: %v", err)
		return nil
	}
	return b
}
