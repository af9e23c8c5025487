// internal/handlers/rooms.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mkells/pointdeck/internal/models"
	"github.com/mkells/pointdeck/internal/roomstore"
)

// RoomServer is the HTTP surface over the room store. Every endpoint maps
// onto exactly one store operation; the store decides what a no-op is.
type RoomServer struct {
	Store  *roomstore.Store
	Logger *logrus.Logger
}

// NewRoomServer wires a RoomServer over the given store.
func NewRoomServer(store *roomstore.Store, logger *logrus.Logger) *RoomServer {
	return &RoomServer{Store: store, Logger: logger}
}

type participantPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AvatarColor string `json:"avatarColor"`
}

func (p participantPayload) toModel() models.Participant {
	return models.Participant{ID: p.ID, Name: p.Name, AvatarColor: p.AvatarColor}
}

// CreateRoomHandler creates a room seeded with the requesting host.
//
// POST /rooms/create {"name": ..., "deckType": ..., "customDeck": ..., "participant": {...}}
func (rs *RoomServer) CreateRoomHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name        string             `json:"name"`
			DeckType    string             `json:"deckType"`
			CustomDeck  string             `json:"customDeck"`
			Participant participantPayload `json:"participant"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad create request payload", http.StatusBadRequest)
			return
		}
		if req.Participant.ID == "" {
			http.Error(w, "missing participant id", http.StatusBadRequest)
			return
		}
		roomID := rs.Store.CreateRoom(r.Context(), req.Name, req.DeckType, req.CustomDeck, req.Participant.toModel())
		room := rs.Store.Snapshot()[roomID]

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"roomId": roomID,
			"room":   room,
		})
	}
}

// ListRoomsHandler returns the whole table, mainly for debugging dashboards.
func (rs *RoomServer) ListRoomsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rs.Store.Snapshot())
	}
}

// RoomHandler dispatches /rooms/{id} and /rooms/{id}/{action} requests.
func (rs *RoomServer) RoomHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/rooms/"), "/")
		if len(parts) < 1 || parts[0] == "" {
			http.Error(w, "missing room id", http.StatusBadRequest)
			return
		}
		roomID := strings.ToUpper(parts[0])

		if len(parts) == 1 {
			rs.getRoom(w, r, roomID)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		switch parts[1] {
		case "join":
			rs.joinRoom(w, r, roomID)
		case "leave":
			rs.leaveRoom(w, r, roomID)
		case "profile":
			rs.updateProfile(w, r, roomID)
		case "vote":
			rs.submitVote(w, r, roomID)
		case "reveal":
			rs.Store.RevealVotes(r.Context(), roomID)
			rs.writeRoom(w, roomID)
		case "reset":
			rs.Store.ResetVotes(r.Context(), roomID)
			rs.writeRoom(w, roomID)
		case "remove":
			rs.removeParticipant(w, r, roomID)
		case "transfer-host":
			rs.transferHost(w, r, roomID)
		default:
			http.Error(w, "unknown room action", http.StatusNotFound)
		}
	}
}

func (rs *RoomServer) getRoom(w http.ResponseWriter, _ *http.Request, roomID string) {
	room, ok := rs.Store.Snapshot()[roomID]
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(room)
}

func (rs *RoomServer) joinRoom(w http.ResponseWriter, r *http.Request, roomID string) {
	var req struct {
		Participant participantPayload `json:"participant"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad join request payload", http.StatusBadRequest)
		return
	}
	if req.Participant.ID == "" {
		http.Error(w, "missing participant id", http.StatusBadRequest)
		return
	}
	room, err := rs.Store.JoinRoom(r.Context(), roomID, req.Participant.toModel())
	if errors.Is(err, roomstore.ErrRoomNotFound) {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(room)
}

func (rs *RoomServer) leaveRoom(w http.ResponseWriter, r *http.Request, roomID string) {
	var req struct {
		ParticipantID string `json:"participantId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad leave request payload", http.StatusBadRequest)
		return
	}
	rs.Store.LeaveRoom(r.Context(), roomID, req.ParticipantID)
	w.WriteHeader(http.StatusNoContent)
}

func (rs *RoomServer) updateProfile(w http.ResponseWriter, r *http.Request, roomID string) {
	var req struct {
		ParticipantID string  `json:"participantId"`
		Name          *string `json:"name"`
		AvatarColor   *string `json:"avatarColor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad profile request payload", http.StatusBadRequest)
		return
	}
	rs.Store.UpdateParticipantProfile(r.Context(), roomID, req.ParticipantID, roomstore.ProfileUpdate{
		Name:        req.Name,
		AvatarColor: req.AvatarColor,
	})
	rs.writeRoom(w, roomID)
}

func (rs *RoomServer) submitVote(w http.ResponseWriter, r *http.Request, roomID string) {
	var req struct {
		ParticipantID string  `json:"participantId"`
		Value         *string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad vote request payload", http.StatusBadRequest)
		return
	}
	rs.Store.SubmitVote(r.Context(), roomID, req.ParticipantID, req.Value)
	rs.writeRoom(w, roomID)
}

func (rs *RoomServer) removeParticipant(w http.ResponseWriter, r *http.Request, roomID string) {
	var req struct {
		RequesterID   string `json:"requesterId"`
		ParticipantID string `json:"participantId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad remove request payload", http.StatusBadRequest)
		return
	}
	if !rs.isHost(roomID, req.RequesterID) {
		http.Error(w, "only the host may remove participants", http.StatusForbidden)
		return
	}
	rs.Store.RemoveParticipant(r.Context(), roomID, req.ParticipantID)
	w.WriteHeader(http.StatusNoContent)
}

func (rs *RoomServer) transferHost(w http.ResponseWriter, r *http.Request, roomID string) {
	var req struct {
		RequesterID string `json:"requesterId"`
		NewHostID   string `json:"newHostId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad transfer request payload", http.StatusBadRequest)
		return
	}
	if !rs.isHost(roomID, req.RequesterID) {
		http.Error(w, "only the host may transfer the host role", http.StatusForbidden)
		return
	}
	rs.Store.TransferHost(r.Context(), roomID, req.NewHostID)
	rs.writeRoom(w, roomID)
}

// isHost checks the requester against the current snapshot. This gate lives
// in the transport layer; the store itself doesn't know about privileges.
func (rs *RoomServer) isHost(roomID, requesterID string) bool {
	room, ok := rs.Store.Snapshot()[roomID]
	return ok && requesterID != "" && room.HostID == requesterID
}

// writeRoom responds with the room's post-operation state, or 404 when the
// operation (or a concurrent one) removed it.
func (rs *RoomServer) writeRoom(w http.ResponseWriter, roomID string) {
	room, ok := rs.Store.Snapshot()[roomID]
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(room)
}
