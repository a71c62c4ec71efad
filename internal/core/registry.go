package core

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

type slot struct {
	occupied bool
	active   bool
	nickname string
	roomID   int
	session  *Session
}

// Entry is a point-in-time view of one active slot.
type Entry struct {
	Slot     int
	Nickname string
	RoomID   int
	Session  *Session
}

// Registry is the bounded table of connected sessions. Every operation runs
// under a single mutex; the table is small so scans are linear.
type Registry struct {
	mu          sync.Mutex
	slots       []slot
	active      int
	maxNickname int
}

// NewRegistry builds a registry with capacity slots. maxNickname bounds
// nickname length in runes.
func NewRegistry(capacity, maxNickname int) *Registry {
	if capacity <= 0 {
		capacity = 1
	}
	if maxNickname <= 0 {
		maxNickname = 19
	}
	return &Registry{
		slots:       make([]slot, capacity),
		maxNickname: maxNickname,
	}
}

// Cap returns the number of slots.
func (r *Registry) Cap() int {
	return len(r.slots)
}

// Allocate binds sess to the first free slot with the placeholder nickname.
func (r *Registry) Allocate(sess *Session) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.slots {
		if r.slots[i].occupied {
			continue
		}
		r.slots[i] = slot{
			occupied: true,
			nickname: proto.Placeholder,
			roomID:   DefaultRoomID,
			session:  sess,
		}
		sess.bind(i)
		return i, nil
	}
	return -1, ErrRegistryFull
}

// ClaimNickname stores proposed for the slot and counts it as active.
// It fails with ErrNicknameTaken when another active slot holds the name and
// with ErrNicknameInvalid when the name cannot be used at all.
func (r *Registry) ClaimNickname(slotID int, proposed string) error {
	nickname := strings.TrimSpace(proposed)
	if !r.validNickname(nickname) {
		return ErrNicknameInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if slotID < 0 || slotID >= len(r.slots) || !r.slots[slotID].occupied {
		return ErrSessionNotFound
	}
	if r.slots[slotID].active {
		return ErrNicknameInvalid
	}
	for i := range r.slots {
		if i != slotID && r.slots[i].active && r.slots[i].nickname == nickname {
			return ErrNicknameTaken
		}
	}

	s := &r.slots[slotID]
	s.nickname = nickname
	s.active = true
	r.active++
	if s.session != nil {
		s.session.setNickname(nickname)
	}
	return nil
}

func (r *Registry) validNickname(nickname string) bool {
	if nickname == "" || nickname == strings.TrimSpace(proto.Placeholder) {
		return false
	}
	if !utf8.ValidString(nickname) || utf8.RuneCountInString(nickname) > r.maxNickname {
		return false
	}
	for _, c := range nickname {
		if unicode.IsSpace(c) || unicode.IsControl(c) {
			return false
		}
	}
	return !proto.IsCommand(nickname)
}

// LookupByNickname finds the active slot holding name.
func (r *Registry) LookupByNickname(name string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.slots {
		if r.slots[i].active && r.slots[i].nickname == name {
			return r.entry(i), nil
		}
	}
	return Entry{}, ErrSessionNotFound
}

// ListActive returns every active slot in slot order.
func (r *Registry) ListActive() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, r.active)
	for i := range r.slots {
		if r.slots[i].active {
			out = append(out, r.entry(i))
		}
	}
	return out
}

// Members returns the active slots of one room.
func (r *Registry) Members(roomID int) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, r.active)
	for i := range r.slots {
		if r.slots[i].active && r.slots[i].roomID == roomID {
			out = append(out, r.entry(i))
		}
	}
	return out
}

// Release frees the slot, drops its nickname and, if it was active, decrements
// the active count. It reports whether the slot was occupied.
func (r *Registry) Release(slotID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slotID < 0 || slotID >= len(r.slots) || !r.slots[slotID].occupied {
		return false
	}
	if r.slots[slotID].active {
		r.active--
	}
	r.slots[slotID] = slot{}
	return true
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Occupied returns the number of occupied slots, handshaking ones included.
func (r *Registry) Occupied() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for i := range r.slots {
		if r.slots[i].occupied {
			n++
		}
	}
	return n
}

func (r *Registry) entry(i int) Entry {
	return Entry{
		Slot:     i,
		Nickname: r.slots[i].nickname,
		RoomID:   r.slots[i].roomID,
		Session:  r.slots[i].session,
	}
}
