// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/mkells/pointdeck/internal/middleware"
	"github.com/mkells/pointdeck/internal/models"
)

// RoomWSHandler streams room snapshots to a client. The client receives the
// current room state on connect and again after every commit (local or from
// another instance); a "room_closed" message follows the room's deletion.
func RoomWSHandler(logger *logrus.Logger, rs *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/rooms/ws/"), "/")
		if len(pathParts) < 1 || pathParts[0] == "" {
			http.Error(w, "missing room id", http.StatusBadRequest)
			return
		}
		roomID := strings.ToUpper(pathParts[0])

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"rooms"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "rooms" {
			c.Close(websocket.StatusPolicyViolation, "client must speak the rooms subprotocol")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Buffered so a slow client never blocks the store's notify path;
		// updates beyond the buffer are dropped for that client.
		updates := make(chan models.Table, 8)
		unsubscribe := rs.Store.Subscribe(func(table models.Table) {
			select {
			case updates <- table:
			default:
			}
		})
		defer unsubscribe()

		// Drain the client side only to notice disconnects.
		go func() {
			defer cancel()
			for {
				if _, _, err := c.Read(ctx); err != nil {
					return
				}
			}
		}()

		if err := writeRoomState(ctx, c, rs.Store.Snapshot(), roomID); err != nil {
			middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
			return
		}
		for {
			select {
			case <-ctx.Done():
				middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, nil)
				c.Close(websocket.StatusNormalClosure, "bye")
				return
			case table := <-updates:
				if err := writeRoomState(ctx, c, table, roomID); err != nil {
					middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
					return
				}
			}
		}
	}
}

func writeRoomState(ctx context.Context, c *websocket.Conn, table models.Table, roomID string) error {
	var payload map[string]interface{}
	if room, ok := table[roomID]; ok {
		payload = map[string]interface{}{
			"type": "room_state",
			"room": room,
		}
	} else {
		payload = map[string]interface{}{
			"type":    "room_closed",
			"room_id": roomID,
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.Write(ctx, websocket.MessageText, data)
}
