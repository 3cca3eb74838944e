package registry

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

var (
	ErrInvalidRoom     = errors.New("room id must not be empty")
	ErrInvalidIdentity = errors.New("connection identity must not be empty")
)

// HostPolicy decides what happens to a room when its host leaves.
type HostPolicy string

const (
	// HostPolicyNone leaves the room host-less for the rest of its life.
	HostPolicyNone HostPolicy = "none"

	// HostPolicyPromoteOldest hands the host role to the earliest joiner
	// still in the room.
	HostPolicyPromoteOldest HostPolicy = "promote-oldest"
)

// ParseHostPolicy maps a config value to a HostPolicy. Empty means none.
func ParseHostPolicy(s string) (HostPolicy, error) {
	switch HostPolicy(s) {
	case "", HostPolicyNone:
		return HostPolicyNone, nil
	case HostPolicyPromoteOldest:
		return HostPolicyPromoteOldest, nil
	default:
		return "", fmt.Errorf("unknown host policy %q", s)
	}
}

// Options configures a Registry.
type Options struct {
	HostPolicy HostPolicy

	// ReapEmpty deletes a room as soon as its last participant leaves.
	ReapEmpty bool
}

// room is the registry's private, mutable record. Callers only ever see Views.
type room struct {
	id string

	// host is the identity allowed to issue host actions, or "".
	host string

	// participants in join order, no duplicates.
	participants []string

	createdAt time.Time
}

// View is an immutable snapshot of a room.
type View struct {
	ID           string    `json:"id"`
	Host         string    `json:"host,omitempty"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`

	// Created is set when the Join that produced this view created the room.
	Created bool `json:"-"`

	// Rejoined is set when the Join was a no-op because the identity was
	// already a participant.
	Rejoined bool `json:"-"`
}

// Departure describes the effect of an identity leaving a room.
type Departure struct {
	RoomID string

	// Remaining participants after the removal, in join order.
	Remaining []string

	WasHost bool

	// NewHost is set when the host policy promoted someone.
	NewHost string

	// Reaped is set when the room was deleted because it became empty.
	Reaped bool
}

// Registry owns every room and the identity -> room index. It is safe for
// concurrent use; each method observes a consistent state.
type Registry struct {
	mu    sync.Mutex
	opts  Options
	rooms map[string]*room
	index map[string]string
	now   func() time.Time
}

func New(opts Options) *Registry {
	if opts.HostPolicy == "" {
		opts.HostPolicy = HostPolicyNone
	}
	return &Registry{
		opts:  opts,
		rooms: make(map[string]*room),
		index: make(map[string]string),
		now:   time.Now,
	}
}

// Join adds id to roomID, creating the room if needed. The host is only
// assigned at creation time. If id currently belongs to another room it is
// moved, and the departure from the old room is returned.
func (r *Registry) Join(roomID, id string, isHost bool) (View, *Departure, error) {
	if roomID == "" {
		return View{}, nil, ErrInvalidRoom
	}
	if id == "" {
		return View{}, nil, ErrInvalidIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var moved *Departure
	if current, ok := r.index[id]; ok {
		if current == roomID {
			if rm, ok := r.rooms[roomID]; ok {
				v := rm.view()
				v.Rejoined = true
				return v, nil, nil
			}
		}
		if dep, ok := r.leaveLocked(id); ok {
			moved = &dep
		}
	}

	rm, exists := r.rooms[roomID]
	if !exists {
		rm = &room{id: roomID, createdAt: r.now()}
		if isHost {
			rm.host = id
		}
		r.rooms[roomID] = rm
	}

	rm.participants = append(rm.participants, id)
	r.index[id] = roomID

	v := rm.view()
	v.Created = !exists
	return v, moved, nil
}

// Leave removes id from whatever room it is in. It reports false when id is
// not a participant anywhere.
func (r *Registry) Leave(id string) (Departure, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(id)
}

func (r *Registry) leaveLocked(id string) (Departure, bool) {
	roomID, ok := r.index[id]
	if !ok {
		return Departure{}, false
	}
	delete(r.index, id)

	rm, ok := r.rooms[roomID]
	if !ok {
		return Departure{}, false
	}

	i := slices.Index(rm.participants, id)
	if i < 0 {
		return Departure{}, false
	}
	rm.participants = slices.Delete(rm.participants, i, i+1)

	dep := Departure{RoomID: roomID}
	if rm.host == id {
		dep.WasHost = true
		rm.host = ""
		if r.opts.HostPolicy == HostPolicyPromoteOldest && len(rm.participants) > 0 {
			rm.host = rm.participants[0]
			dep.NewHost = rm.host
		}
	}

	if len(rm.participants) == 0 && r.opts.ReapEmpty {
		delete(r.rooms, roomID)
		dep.Reaped = true
	}

	dep.Remaining = slices.Clone(rm.participants)
	return dep, true
}

// IsHost reports whether id is the current host of roomID.
func (r *Registry) IsHost(roomID, id string) bool {
	if id == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	return ok && rm.host == id
}

func (r *Registry) Room(roomID string) (View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return View{}, false
	}
	return rm.view(), true
}

// Rooms returns a snapshot of every room, ordered by id.
func (r *Registry) Rooms() []View {
	r.mu.Lock()
	views := make([]View, 0, len(r.rooms))
	for _, rm := range r.rooms {
		views = append(views, rm.view())
	}
	r.mu.Unlock()

	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}

// Stats returns the number of rooms and joined identities.
func (r *Registry) Stats() (rooms, participants int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms), len(r.index)
}

func (rm *room) view() View {
	return View{
		ID:           rm.id,
		Host:         rm.host,
		Participants: slices.Clone(rm.participants),
		CreatedAt:    rm.createdAt,
	}
}
