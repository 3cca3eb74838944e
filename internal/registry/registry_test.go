package registry

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"testing"
)

func TestJoin_FirstJoinerBecomesHostOnlyAtCreation(t *testing.T) {
	r := New(Options{ReapEmpty: true})

	v, moved, err := r.Join("abc", "A", true)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if moved != nil {
		t.Fatalf("moved=%+v, want nil", moved)
	}
	if !v.Created || v.Host != "A" {
		t.Fatalf("view=%+v, want created with host A", v)
	}

	v, _, err = r.Join("abc", "B", true)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if v.Created {
		t.Fatalf("second join reported Created")
	}
	if v.Host != "A" {
		t.Fatalf("host=%q, want A", v.Host)
	}
	if !slices.Equal(v.Participants, []string{"A", "B"}) {
		t.Fatalf("participants=%v, want [A B]", v.Participants)
	}
	if !r.IsHost("abc", "A") || r.IsHost("abc", "B") {
		t.Fatalf("IsHost mismatch: A=%v B=%v", r.IsHost("abc", "A"), r.IsHost("abc", "B"))
	}
}

func TestJoin_NonHostCreatorLeavesRoomHostless(t *testing.T) {
	r := New(Options{ReapEmpty: true})

	v, _, _ := r.Join("abc", "A", false)
	if v.Host != "" {
		t.Fatalf("host=%q, want none", v.Host)
	}
	v, _, _ = r.Join("abc", "B", true)
	if v.Host != "" {
		t.Fatalf("host=%q after late host join, want none", v.Host)
	}
	if r.IsHost("abc", "") {
		t.Fatalf("empty identity reported as host")
	}
}

func TestJoin_Validation(t *testing.T) {
	r := New(Options{})

	if _, _, err := r.Join("", "A", false); !errors.Is(err, ErrInvalidRoom) {
		t.Fatalf("err=%v, want %v", err, ErrInvalidRoom)
	}
	if _, _, err := r.Join("abc", "", false); !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("err=%v, want %v", err, ErrInvalidIdentity)
	}
	if rooms, _ := r.Stats(); rooms != 0 {
		t.Fatalf("rooms=%d after rejected joins, want 0", rooms)
	}
}

func TestJoin_RejoinIsNoop(t *testing.T) {
	r := New(Options{ReapEmpty: true})

	r.Join("abc", "A", true)
	v, moved, err := r.Join("abc", "A", false)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !v.Rejoined || moved != nil {
		t.Fatalf("view=%+v moved=%v, want rejoined and not moved", v, moved)
	}
	if !slices.Equal(v.Participants, []string{"A"}) {
		t.Fatalf("participants=%v, want [A]", v.Participants)
	}
	if v.Host != "A" {
		t.Fatalf("host=%q, want A", v.Host)
	}
}

func TestJoin_MovesBetweenRooms(t *testing.T) {
	r := New(Options{ReapEmpty: true})

	r.Join("one", "A", true)
	r.Join("one", "B", false)

	v, moved, err := r.Join("two", "A", false)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if moved == nil {
		t.Fatalf("moved=nil, want departure from room one")
	}
	if moved.RoomID != "one" || !moved.WasHost {
		t.Fatalf("moved=%+v, want host departure from one", moved)
	}
	if !slices.Equal(moved.Remaining, []string{"B"}) {
		t.Fatalf("remaining=%v, want [B]", moved.Remaining)
	}
	if !slices.Equal(v.Participants, []string{"A"}) {
		t.Fatalf("participants=%v, want [A]", v.Participants)
	}
	if one, _ := r.Room("one"); !slices.Equal(one.Participants, []string{"B"}) {
		t.Fatalf("room one participants=%v, want [B]", one.Participants)
	}
}

func TestLeave(t *testing.T) {
	r := New(Options{ReapEmpty: true})

	if _, ok := r.Leave("ghost"); ok {
		t.Fatalf("Leave of unknown identity reported ok")
	}

	r.Join("abc", "A", true)
	r.Join("abc", "B", false)

	dep, ok := r.Leave("A")
	if !ok {
		t.Fatalf("Leave(A) not ok")
	}
	if !dep.WasHost || dep.NewHost != "" || dep.Reaped {
		t.Fatalf("dep=%+v, want host departure without promotion", dep)
	}
	if r.IsHost("abc", "B") {
		t.Fatalf("B promoted under HostPolicyNone")
	}

	dep, ok = r.Leave("B")
	if !ok || !dep.Reaped || len(dep.Remaining) != 0 {
		t.Fatalf("dep=%+v ok=%v, want reaped empty room", dep, ok)
	}
	if _, exists := r.Room("abc"); exists {
		t.Fatalf("room abc still exists after reap")
	}

	if _, ok := r.Leave("B"); ok {
		t.Fatalf("second Leave(B) reported ok")
	}
}

func TestLeave_KeepsEmptyRoomWhenReapDisabled(t *testing.T) {
	r := New(Options{ReapEmpty: false})

	r.Join("abc", "A", true)
	dep, _ := r.Leave("A")
	if dep.Reaped {
		t.Fatalf("room reaped with ReapEmpty=false")
	}

	v, ok := r.Room("abc")
	if !ok {
		t.Fatalf("room abc gone")
	}
	if v.Host != "" || len(v.Participants) != 0 {
		t.Fatalf("view=%+v, want empty host-less room", v)
	}

	// The host is only assigned at creation, so a returning host is ordinary.
	v, _, _ = r.Join("abc", "A", true)
	if v.Host != "" {
		t.Fatalf("host=%q, want none", v.Host)
	}
}

func TestLeave_PromoteOldest(t *testing.T) {
	r := New(Options{HostPolicy: HostPolicyPromoteOldest, ReapEmpty: true})

	r.Join("abc", "A", true)
	r.Join("abc", "B", false)
	r.Join("abc", "C", false)

	dep, _ := r.Leave("A")
	if dep.NewHost != "B" {
		t.Fatalf("NewHost=%q, want B", dep.NewHost)
	}
	if !r.IsHost("abc", "B") {
		t.Fatalf("B is not host after promotion")
	}

	dep, _ = r.Leave("C")
	if dep.WasHost || dep.NewHost != "" {
		t.Fatalf("dep=%+v, want plain departure", dep)
	}
}

func TestRooms_SortedSnapshot(t *testing.T) {
	r := New(Options{ReapEmpty: true})

	r.Join("zeta", "A", true)
	r.Join("alpha", "B", true)
	r.Join("mid", "C", true)

	views := r.Rooms()
	var ids []string
	for _, v := range views {
		ids = append(ids, v.ID)
	}
	if !slices.Equal(ids, []string{"alpha", "mid", "zeta"}) {
		t.Fatalf("ids=%v, want sorted", ids)
	}

	views[0].Participants[0] = "mutated"
	v, _ := r.Room("alpha")
	if v.Participants[0] != "B" {
		t.Fatalf("snapshot mutation leaked into registry")
	}
}

func TestParseHostPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    HostPolicy
		wantErr bool
	}{
		{"", HostPolicyNone, false},
		{"none", HostPolicyNone, false},
		{"promote-oldest", HostPolicyPromoteOldest, false},
		{"random", "", true},
	}
	for _, tc := range tests {
		got, err := ParseHostPolicy(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ParseHostPolicy(%q) err=%v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Fatalf("ParseHostPolicy(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestRandomOperations checks the registry against a trivial model: every
// identity is in at most one room and every room's participant list matches
// the set of identities mapped to it.
func TestRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r := New(Options{HostPolicy: HostPolicyPromoteOldest, ReapEmpty: true})
	model := map[string]string{}

	ids := []string{"a", "b", "c", "d", "e", "f"}
	rooms := []string{"r1", "r2", "r3"}

	for step := 0; step < 2000; step++ {
		id := ids[rng.Intn(len(ids))]
		if rng.Intn(3) == 0 {
			_, ok := r.Leave(id)
			_, inModel := model[id]
			if ok != inModel {
				t.Fatalf("step %d: Leave(%s) ok=%v, model has=%v", step, id, ok, inModel)
			}
			delete(model, id)
		} else {
			roomID := rooms[rng.Intn(len(rooms))]
			if _, _, err := r.Join(roomID, id, rng.Intn(2) == 0); err != nil {
				t.Fatalf("step %d: Join: %v", step, err)
			}
			model[id] = roomID
		}

		_, participants := r.Stats()
		if participants != len(model) {
			t.Fatalf("step %d: participants=%d, want %d", step, participants, len(model))
		}
		for _, v := range r.Rooms() {
			if len(v.Participants) == 0 {
				t.Fatalf("step %d: empty room %s survived reaping", step, v.ID)
			}
			seen := map[string]bool{}
			for _, p := range v.Participants {
				if seen[p] {
					t.Fatalf("step %d: duplicate %s in %s", step, p, v.ID)
				}
				seen[p] = true
				if model[p] != v.ID {
					t.Fatalf("step %d: %s listed in %s, model says %q", step, p, v.ID, model[p])
				}
			}
			if v.Host != "" && !seen[v.Host] {
				t.Fatalf("step %d: host %s of %s is not a participant", step, v.Host, v.ID)
			}
		}
	}
}

func TestConcurrentJoinLeave(t *testing.T) {
	r := New(Options{ReapEmpty: true})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("peer-%d", i)
			for j := 0; j < 100; j++ {
				r.Join(fmt.Sprintf("room-%d", j%4), id, j%2 == 0)
				r.IsHost("room-0", id)
				r.Rooms()
				if j%3 == 0 {
					r.Leave(id)
				}
			}
			r.Leave(id)
		}(i)
	}
	wg.Wait()

	rooms, participants := r.Stats()
	if rooms != 0 || participants != 0 {
		t.Fatalf("rooms=%d participants=%d, want 0 0", rooms, participants)
	}
}
