// internal/handlers/rooms_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkells/pointdeck/internal/backing"
	"github.com/mkells/pointdeck/internal/models"
	"github.com/mkells/pointdeck/internal/roomstore"
)

func newTestServer(t *testing.T) *RoomServer {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	store := roomstore.New(roomstore.Options{
		Backing: backing.NewMemoryBacking(),
		Logger:  logger,
	})
	store.Init(context.Background())
	t.Cleanup(store.Close)
	return NewRoomServer(store, logger)
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// TestCreateRoom checks that /rooms/create builds a room seeded with the host.
func TestCreateRoom(t *testing.T) {
	rs := newTestServer(t)

	body := `{"name":"sprint 9","deckType":"fibonacci","participant":{"id":"U1","name":"Ana","avatarColor":"#f00"}}`
	w := postJSON(t, rs.CreateRoomHandler(), "/rooms/create", body)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		RoomID string       `json:"roomId"`
		Room   *models.Room `json:"room"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Regexp(t, `^[A-Z0-9]{4}-[A-Z0-9]{4}$`, resp.RoomID)
	require.NotNil(t, resp.Room)
	assert.Equal(t, "U1", resp.Room.HostID)
	assert.Equal(t, "☕", resp.Room.DeckValues[len(resp.Room.DeckValues)-1])
}

func TestCreateRoomRejectsMissingParticipant(t *testing.T) {
	rs := newTestServer(t)
	w := postJSON(t, rs.CreateRoomHandler(), "/rooms/create", `{"name":"x","deckType":"numeric"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJoinUnknownRoomIs404(t *testing.T) {
	rs := newTestServer(t)
	w := postJSON(t, rs.RoomHandler(), "/rooms/ZZZZ-9999/join",
		`{"participant":{"id":"U2","name":"Ben"}}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func createTestRoom(t *testing.T, rs *RoomServer) string {
	t.Helper()
	return rs.Store.CreateRoom(context.Background(), "room", "fibonacci", "",
		models.Participant{ID: "U1", Name: "Ana"})
}

func TestVoteRevealResetFlow(t *testing.T) {
	rs := newTestServer(t)
	id := createTestRoom(t, rs)
	h := rs.RoomHandler()

	w := postJSON(t, h, fmt.Sprintf("/rooms/%s/join", id), `{"participant":{"id":"U2","name":"Ben"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = postJSON(t, h, fmt.Sprintf("/rooms/%s/vote", id), `{"participantId":"U2","value":"8"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, h, fmt.Sprintf("/rooms/%s/reveal", id), `{}`)
	require.Equal(t, http.StatusOK, w.Code)
	var room models.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	assert.True(t, room.Revealed)
	require.NotNil(t, room.Votes["U2"])
	assert.Equal(t, "8", *room.Votes["U2"])

	// clearing a vote over HTTP hides the cards again
	w = postJSON(t, h, fmt.Sprintf("/rooms/%s/vote", id), `{"participantId":"U2","value":null}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	assert.False(t, room.Revealed)

	w = postJSON(t, h, fmt.Sprintf("/rooms/%s/reset", id), `{}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	assert.Nil(t, room.Votes["U1"])
	assert.Nil(t, room.Votes["U2"])
}

func TestGetRoom(t *testing.T) {
	rs := newTestServer(t)
	id := createTestRoom(t, rs)

	req := httptest.NewRequest("GET", "/rooms/"+id, nil)
	w := httptest.NewRecorder()
	rs.RoomHandler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var room models.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	assert.Equal(t, id, room.ID)
}

func TestRemoveParticipantIsHostOnly(t *testing.T) {
	rs := newTestServer(t)
	id := createTestRoom(t, rs)
	h := rs.RoomHandler()

	w := postJSON(t, h, fmt.Sprintf("/rooms/%s/join", id), `{"participant":{"id":"U2","name":"Ben"}}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, h, fmt.Sprintf("/rooms/%s/remove", id), `{"requesterId":"U2","participantId":"U1"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = postJSON(t, h, fmt.Sprintf("/rooms/%s/remove", id), `{"requesterId":"U1","participantId":"U2"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotContains(t, rs.Store.Snapshot()[id].Participants, "U2")
}

func TestTransferHostEndpoint(t *testing.T) {
	rs := newTestServer(t)
	id := createTestRoom(t, rs)
	h := rs.RoomHandler()

	w := postJSON(t, h, fmt.Sprintf("/rooms/%s/join", id), `{"participant":{"id":"U2","name":"Ben"}}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, h, fmt.Sprintf("/rooms/%s/transfer-host", id), `{"requesterId":"U1","newHostId":"U2"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "U2", rs.Store.Snapshot()[id].HostID)
}

func TestLeaveLastParticipantRemovesRoomOverHTTP(t *testing.T) {
	rs := newTestServer(t)
	id := createTestRoom(t, rs)

	w := postJSON(t, rs.RoomHandler(), fmt.Sprintf("/rooms/%s/leave", id), `{"participantId":"U1"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotContains(t, rs.Store.Snapshot(), id)
}
