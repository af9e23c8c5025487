// internal/models/room.go
package models

// Participant is one person seated in an estimation room.
type Participant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AvatarColor string `json:"avatarColor"`

	// JoinedAt is a unix-millisecond timestamp used only for seat ordering
	// in clients; it plays no part in conflict resolution.
	JoinedAt int64 `json:"joinedAt"`
}

// Room is one estimation session: a deck, a host, participants and their votes.
type Room struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	DeckType   string   `json:"deckType"`
	DeckValues []string `json:"deckValues"`

	// HostID always references a key of Participants while the room is
	// non-empty. A room with zero participants is deleted, never kept.
	HostID string `json:"hostId"`

	Participants map[string]Participant `json:"participants"`

	// Votes has an entry for every participant; nil means "no card chosen".
	Votes map[string]*string `json:"votes"`

	Revealed  bool  `json:"revealed"`
	CreatedAt int64 `json:"createdAt"`
}

// Table is the process-wide map of room id to room state. Commits replace
// the whole table, so a Table handed out to a reader is never mutated.
type Table map[string]*Room

// Clone returns a deep copy of the room, sharing nothing with the original.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	cp := *r
	cp.DeckValues = append([]string(nil), r.DeckValues...)
	cp.Participants = make(map[string]Participant, len(r.Participants))
	for id, p := range r.Participants {
		cp.Participants[id] = p
	}
	cp.Votes = make(map[string]*string, len(r.Votes))
	for id, v := range r.Votes {
		if v == nil {
			cp.Votes[id] = nil
			continue
		}
		val := *v
		cp.Votes[id] = &val
	}
	return &cp
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	cp := make(Table, len(t))
	for id, room := range t {
		cp[id] = room.Clone()
	}
	return cp
}
