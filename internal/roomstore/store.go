// internal/roomstore/store.go

// Package roomstore owns the authoritative in-memory table of estimation
// rooms. Every mutation runs against a deep clone of the table and commits
// the clone wholesale, then persists the new table to the backing store,
// publishes it on the sync bus, and notifies local subscribers. Inbound sync
// messages from other instances replace the table wholesale (last writer
// wins) and are never re-published.
package roomstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mkells/pointdeck/internal/backing"
	"github.com/mkells/pointdeck/internal/bus"
	"github.com/mkells/pointdeck/internal/deck"
	"github.com/mkells/pointdeck/internal/journal"
	"github.com/mkells/pointdeck/internal/models"
)

// ErrRoomNotFound is returned by JoinRoom when the requested room id is not
// in the table. All other operations treat a missing room or participant as
// "already converged" and silently no-op: with several instances racing, a
// room deleted elsewhere is routine, not exceptional.
var ErrRoomNotFound = errors.New("room not found")

// Options configures a Store. Backing is required; Bus and Journal may be
// nil for a standalone instance.
type Options struct {
	Backing backing.Backing
	Bus     bus.Bus
	Journal *journal.Journal
	Logger  *logrus.Logger
}

// Store is the process-wide room table service. One Store corresponds to one
// client instance on the shared machine; instances converge through the bus.
type Store struct {
	log     *logrus.Logger
	backing backing.Backing
	bus     bus.Bus
	journal *journal.Journal
	origin  uuid.UUID

	// opMu serializes mutations and inbound sync replacements, so every
	// operation runs to completion against a consistent base table.
	opMu sync.Mutex

	// mu guards only the table pointer swap; readers never block mutations.
	mu    sync.Mutex
	table models.Table

	subMu   sync.Mutex
	subs    map[int64]func(models.Table)
	nextSub int64

	cancelBus func()
}

// New builds a Store with an empty table. Call Init before use.
func New(opts Options) *Store {
	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}
	return &Store{
		log:     log,
		backing: opts.Backing,
		bus:     opts.Bus,
		journal: opts.Journal,
		origin:  uuid.New(),
		table:   models.Table{},
		subs:    make(map[int64]func(models.Table)),
	}
}

// Init loads the persisted table, sanitizing whatever it finds, and attaches
// the store to the sync bus. Malformed persisted state is repaired or
// dropped, never surfaced: the store always starts usable.
func (s *Store) Init(ctx context.Context) {
	blob, err := s.backing.Load(ctx)
	if err != nil {
		s.log.Warnf("roomstore: failed to load persisted table, starting empty: %v", err)
	}
	table, ok := decodeTable(blob, s.log)
	if !ok {
		table = models.Table{}
	}
	s.mu.Lock()
	s.table = table
	s.mu.Unlock()

	if s.bus != nil {
		s.cancelBus = s.bus.Subscribe(s.handleSyncMessage)
	}
}

// Close detaches the store from the sync bus. The table itself outlives all
// consumers and needs no teardown.
func (s *Store) Close() {
	if s.cancelBus != nil {
		s.cancelBus()
		s.cancelBus = nil
	}
}

// Snapshot returns a copy of the current committed table. The caller may hold
// it or write through it freely; it never changes under later commits and
// never reaches the committed table.
func (s *Store) Snapshot() models.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Clone()
}

// Subscribe registers fn to run after every commit, local or inbound. By the
// time fn runs, Snapshot already reflects the new table. The returned func
// cancels the subscription.
func (s *Store) Subscribe(fn func(models.Table)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// CreateRoom makes a new room hosted by host and returns its id. The deck is
// resolved from deckType; customDeck is consulted only for non-preset types.
func (s *Store) CreateRoom(ctx context.Context, name, deckType, customDeck string, host models.Participant) string {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	table := s.Snapshot().Clone()
	id := newRoomID()
	for {
		if _, exists := table[id]; !exists {
			break
		}
		id = newRoomID()
	}

	now := time.Now().UnixMilli()
	if host.JoinedAt == 0 {
		host.JoinedAt = now
	}
	table[id] = &models.Room{
		ID:           id,
		Name:         name,
		DeckType:     deckType,
		DeckValues:   deck.Resolve(deckType, customDeck),
		HostID:       host.ID,
		Participants: map[string]models.Participant{host.ID: host},
		Votes:        map[string]*string{host.ID: nil},
		Revealed:     false,
		CreatedAt:    now,
	}
	s.commit(ctx, table)
	s.record(ctx, id, host.ID, "room_created", map[string]interface{}{
		"name":     name,
		"deckType": deckType,
	})
	return id
}

// JoinRoom seats p in the room. Re-joining is idempotent: the original
// joinedAt is preserved and an existing vote is never clobbered. This is the
// one operation that reports a missing room, so a client can tell a bad room
// code from a quiet no-op.
func (s *Store) JoinRoom(ctx context.Context, roomID string, p models.Participant) (*models.Room, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	table := s.Snapshot().Clone()
	room, ok := table[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if existing, ok := room.Participants[p.ID]; ok {
		p.JoinedAt = existing.JoinedAt
	} else if p.JoinedAt == 0 {
		p.JoinedAt = time.Now().UnixMilli()
	}
	room.Participants[p.ID] = p
	if _, ok := room.Votes[p.ID]; !ok {
		room.Votes[p.ID] = nil
	}
	s.commit(ctx, table)
	s.record(ctx, roomID, p.ID, "participant_joined", nil)
	// hand back a detached copy: writing through the result must never
	// reach the committed table behind the store's back
	return room.Clone(), nil
}

// LeaveRoom removes the participant and their vote slot. Emptying the room
// deletes it outright; otherwise a departing host hands off to a remaining
// participant.
func (s *Store) LeaveRoom(ctx context.Context, roomID, participantID string) {
	s.removeFromRoom(ctx, roomID, participantID, "participant_left")
}

// RemoveParticipant is the host kicking someone out. Functionally it is
// LeaveRoom; the host-only gate belongs to the calling layer.
func (s *Store) RemoveParticipant(ctx context.Context, roomID, participantID string) {
	s.removeFromRoom(ctx, roomID, participantID, "participant_removed")
}

func (s *Store) removeFromRoom(ctx context.Context, roomID, participantID, eventType string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	table := s.Snapshot().Clone()
	room, ok := table[roomID]
	if !ok {
		return
	}
	if _, ok := room.Participants[participantID]; !ok {
		return
	}
	delete(room.Participants, participantID)
	delete(room.Votes, participantID)
	if len(room.Participants) == 0 {
		delete(table, roomID)
	} else if room.HostID == participantID {
		room.HostID = nextHost(room.Participants)
	}
	s.commit(ctx, table)
	s.record(ctx, roomID, participantID, eventType, nil)
}

// ProfileUpdate carries the mutable display fields of a participant. Nil
// fields are left untouched; identity and join time never change.
type ProfileUpdate struct {
	Name        *string
	AvatarColor *string
}

// UpdateParticipantProfile merges update into the participant record.
func (s *Store) UpdateParticipantProfile(ctx context.Context, roomID, participantID string, update ProfileUpdate) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	table := s.Snapshot().Clone()
	room, ok := table[roomID]
	if !ok {
		return
	}
	p, ok := room.Participants[participantID]
	if !ok {
		return
	}
	if update.Name != nil {
		p.Name = *update.Name
	}
	if update.AvatarColor != nil {
		p.AvatarColor = *update.AvatarColor
	}
	room.Participants[participantID] = p
	s.commit(ctx, table)
	s.record(ctx, roomID, participantID, "profile_updated", nil)
}

// SubmitVote sets the participant's vote. A nil value clears the vote and
// forces the room back to hidden: a late change of mind invalidates the
// current reveal for everyone.
func (s *Store) SubmitVote(ctx context.Context, roomID, participantID string, value *string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	table := s.Snapshot().Clone()
	room, ok := table[roomID]
	if !ok {
		return
	}
	if _, ok := room.Participants[participantID]; !ok {
		return
	}
	if value == nil {
		room.Votes[participantID] = nil
		room.Revealed = false
	} else {
		v := *value
		room.Votes[participantID] = &v
	}
	s.commit(ctx, table)
	s.record(ctx, roomID, participantID, "vote_submitted", map[string]interface{}{
		"cleared": value == nil,
	})
}

// RevealVotes makes all cast votes visible, even when none were cast.
func (s *Store) RevealVotes(ctx context.Context, roomID string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	table := s.Snapshot().Clone()
	room, ok := table[roomID]
	if !ok {
		return
	}
	room.Revealed = true
	s.commit(ctx, table)
	s.record(ctx, roomID, "", "votes_revealed", nil)
}

// ResetVotes clears every vote and hides the cards for the next round.
func (s *Store) ResetVotes(ctx context.Context, roomID string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	table := s.Snapshot().Clone()
	room, ok := table[roomID]
	if !ok {
		return
	}
	for pid := range room.Votes {
		room.Votes[pid] = nil
	}
	room.Revealed = false
	s.commit(ctx, table)
	s.record(ctx, roomID, "", "votes_reset", nil)
}

// TransferHost reassigns the host role. No-op unless newHostID is a current
// participant.
func (s *Store) TransferHost(ctx context.Context, roomID, newHostID string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	table := s.Snapshot().Clone()
	room, ok := table[roomID]
	if !ok {
		return
	}
	if _, ok := room.Participants[newHostID]; !ok {
		return
	}
	room.HostID = newHostID
	s.commit(ctx, table)
	s.record(ctx, roomID, newHostID, "host_transferred", nil)
}

// commit swaps in the new table and runs the side-effect sequence: persist,
// publish, notify. Persist and publish failures are warnings only; the
// in-memory commit stands.
func (s *Store) commit(ctx context.Context, table models.Table) {
	s.mu.Lock()
	s.table = table
	s.mu.Unlock()

	s.persist(ctx, table)
	s.publish(ctx, table)
	s.notify(table)
}

func (s *Store) persist(ctx context.Context, table models.Table) {
	blob, err := json.Marshal(table)
	if err != nil {
		s.log.Warnf("roomstore: failed to serialize table: %v", err)
		return
	}
	if err := s.backing.Save(ctx, blob); err != nil {
		s.log.Warnf("roomstore: failed to persist table: %v", err)
	}
}

func (s *Store) publish(ctx context.Context, table models.Table) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(table)
	if err != nil {
		s.log.Warnf("roomstore: failed to serialize sync payload: %v", err)
		return
	}
	msg := bus.Message{Type: bus.SyncType, Origin: s.origin, Payload: payload}
	if err := s.bus.Publish(ctx, msg); err != nil {
		s.log.Warnf("roomstore: failed to publish sync message: %v", err)
	}
}

func (s *Store) notify(table models.Table) {
	s.subMu.Lock()
	fns := make([]func(models.Table), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(table)
	}
}

// handleSyncMessage applies an inbound table from another instance: replace
// wholesale, persist locally, notify subscribers. It never re-publishes, so
// messages cannot echo between instances.
func (s *Store) handleSyncMessage(msg bus.Message) {
	if msg.Type != bus.SyncType || msg.Origin == s.origin {
		return
	}
	if len(msg.Payload) == 0 || string(msg.Payload) == "null" {
		// only an object payload is acted upon
		return
	}
	table, ok := decodeTable(msg.Payload, s.log)
	if !ok {
		return
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	s.table = table
	s.mu.Unlock()

	s.persist(context.Background(), table)
	s.notify(table)
}

func (s *Store) record(ctx context.Context, roomID, actorID, eventType string, payload map[string]interface{}) {
	if s.journal == nil {
		return
	}
	rec := journal.RoomEventRecord{
		EventID:   uuid.New(),
		RoomID:    roomID,
		ActorID:   actorID,
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := s.journal.Append(ctx, rec); err != nil {
		s.log.Warnf("roomstore: failed to journal %s event: %v", eventType, err)
	}
}
