package core

import (
	"sort"
	"sync"
)

// DefaultRoomID is the room every session joins on connect.
const DefaultRoomID = 0

const (
	defaultRoomName        = "Chat_général"
	defaultRoomDescription = "Salon général par défaut"
)

// Room is a named channel. Capacity is advisory and never checked against
// occupancy.
type Room struct {
	ID          int
	Occupied    bool
	Name        string
	Description string
	Capacity    int
}

// Directory holds the rooms known to the hub. It is populated once at
// construction; the lock is kept so rooms can be added at runtime later.
type Directory struct {
	mu    sync.RWMutex
	rooms map[int]*Room
}

// NewDirectory creates the directory with the general room sized to capacity.
func NewDirectory(capacity int) *Directory {
	return &Directory{
		rooms: map[int]*Room{
			DefaultRoomID: {
				ID:          DefaultRoomID,
				Occupied:    true,
				Name:        defaultRoomName,
				Description: defaultRoomDescription,
				Capacity:    capacity,
			},
		},
	}
}

// Get returns a copy of the room with id.
func (d *Directory) Get(id int) (Room, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	room, ok := d.rooms[id]
	if !ok || !room.Occupied {
		return Room{}, ErrRoomNotFound
	}
	return *room, nil
}

// Exists reports whether id names an existing room.
func (d *Directory) Exists(id int) bool {
	_, err := d.Get(id)
	return err == nil
}

// List returns every room ordered by id.
func (d *Directory) List() []Room {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Room, 0, len(d.rooms))
	for _, room := range d.rooms {
		if room.Occupied {
			out = append(out, *room)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
