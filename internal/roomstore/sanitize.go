// internal/roomstore/sanitize.go
package roomstore

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/mkells/pointdeck/internal/deck"
	"github.com/mkells/pointdeck/internal/models"
)

// looseRoom mirrors models.Room but leaves the historically unstable fields
// raw, so one malformed field never rejects the whole room.
type looseRoom struct {
	ID           string                        `json:"id"`
	Name         string                        `json:"name"`
	DeckType     string                        `json:"deckType"`
	DeckValues   json.RawMessage               `json:"deckValues"`
	HostID       string                        `json:"hostId"`
	Participants map[string]models.Participant `json:"participants"`
	Votes        map[string]*string            `json:"votes"`
	Revealed     json.RawMessage               `json:"revealed"`
	CreatedAt    int64                         `json:"createdAt"`
}

// decodeTable parses a serialized table, tolerating whatever shape an older
// version may have written. It returns ok=false only when the blob is not a
// JSON object at all; per-room damage is repaired or dropped in place.
func decodeTable(blob []byte, log *logrus.Logger) (models.Table, bool) {
	if len(blob) == 0 {
		return models.Table{}, true
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(blob, &raw); err != nil {
		log.Warnf("roomstore: persisted table is not an object, starting empty: %v", err)
		return nil, false
	}
	table := make(models.Table, len(raw))
	for id, rawRoom := range raw {
		room := sanitizeRoom(id, rawRoom, log)
		if room != nil {
			table[id] = room
		}
	}
	return table, true
}

// sanitizeRoom coerces one raw room into a valid models.Room, or returns nil
// when the room cannot exist at all (unparseable, or zero participants).
func sanitizeRoom(id string, raw json.RawMessage, log *logrus.Logger) *models.Room {
	var lr looseRoom
	if err := json.Unmarshal(raw, &lr); err != nil {
		log.Warnf("roomstore: dropping unparseable room %s: %v", id, err)
		return nil
	}
	if len(lr.Participants) == 0 {
		// an empty room has no right to exist
		return nil
	}

	room := &models.Room{
		ID:           id,
		Name:         lr.Name,
		DeckType:     lr.DeckType,
		DeckValues:   coerceDeckValues(lr.DeckValues),
		HostID:       lr.HostID,
		Participants: lr.Participants,
		Votes:        lr.Votes,
		Revealed:     coerceBool(lr.Revealed),
		CreatedAt:    lr.CreatedAt,
	}

	if room.Votes == nil {
		room.Votes = make(map[string]*string, len(room.Participants))
	}
	for pid := range room.Participants {
		if _, ok := room.Votes[pid]; !ok {
			room.Votes[pid] = nil
		}
	}
	for pid := range room.Votes {
		if _, ok := room.Participants[pid]; !ok {
			delete(room.Votes, pid)
		}
	}
	if _, ok := room.Participants[room.HostID]; !ok {
		room.HostID = nextHost(room.Participants)
	}
	return room
}

// coerceDeckValues turns whatever was stored into a non-empty ordered list of
// strings. Scalar entries are stringified; anything else is skipped.
func coerceDeckValues(raw json.RawMessage) []string {
	var values []string
	if err := json.Unmarshal(raw, &values); err == nil && len(values) > 0 {
		return values
	}
	var loose []interface{}
	if err := json.Unmarshal(raw, &loose); err == nil {
		out := make([]string, 0, len(loose))
		for _, v := range loose {
			switch v := v.(type) {
			case string:
				out = append(out, v)
			case float64:
				out = append(out, trimFloat(v))
			case bool:
				out = append(out, fmt.Sprintf("%t", v))
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return []string{deck.FallbackValue}
}

// trimFloat renders a JSON number the way a user would have typed it.
func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

// coerceBool reads a strict JSON bool; everything else becomes false.
func coerceBool(raw json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false
	}
	return b
}

// nextHost picks the remaining participant with the smallest id, making host
// reassignment deterministic regardless of map iteration order.
func nextHost(participants map[string]models.Participant) string {
	ids := make([]string, 0, len(participants))
	for id := range participants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids[0]
}
