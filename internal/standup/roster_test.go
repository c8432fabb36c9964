package standup

import (
	"testing"

	"cadence.app/server/common/id"
	"cadence.app/server/internal/model"
)

func TestMain(m *testing.M) {
	if err := id.Init(1); err != nil {
		panic(err)
	}
	m.Run()
}

func TestUpsertMember_Idempotent(t *testing.T) {
	state := model.NewConversationState()

	added := UpsertMember(state, model.RosterMember{ID: "u1", Name: "Alice"})
	if !added {
		t.Error("first upsert should report added=true")
	}

	added = UpsertMember(state, model.RosterMember{ID: "u1", Name: "Alice B."})
	if added {
		t.Error("second upsert with same id should report added=false")
	}

	if len(state.Roster) != 1 {
		t.Fatalf("roster size = %d, want 1", len(state.Roster))
	}
	if state.Roster["u1"].Name != "Alice B." {
		t.Errorf("Name = %q, want refreshed name", state.Roster["u1"].Name)
	}
}

func TestUpsertMember_SortsByName(t *testing.T) {
	state := model.NewConversationState()
	UpsertMember(state, model.RosterMember{ID: "u3", Name: "carol"})
	UpsertMember(state, model.RosterMember{ID: "u1", Name: "Alice"})
	UpsertMember(state, model.RosterMember{ID: "u2", Name: "Bob"})

	members := Members(state)
	got := []string{members[0].Name, members[1].Name, members[2].Name}
	want := []string{"Alice", "Bob", "carol"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("members[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRemoveMember(t *testing.T) {
	state := model.NewConversationState()
	UpsertMember(state, model.RosterMember{ID: "u1", Name: "Alice"})
	UpsertMember(state, model.RosterMember{ID: "u2", Name: "Bob"})

	removed := RemoveMember(state, "u1")
	if removed == nil || removed.Name != "Alice" {
		t.Fatalf("RemoveMember = %+v, want Alice", removed)
	}
	if len(state.Roster) != 1 || len(state.RosterOrder) != 1 {
		t.Errorf("roster size = %d/%d, want 1/1", len(state.Roster), len(state.RosterOrder))
	}

	if removed := RemoveMember(state, "missing"); removed != nil {
		t.Errorf("RemoveMember on unknown id = %+v, want nil", removed)
	}
	if len(state.Roster) != 1 {
		t.Error("removing an unknown id must not mutate the roster")
	}
}

func TestFindMemberByName_CaseInsensitive(t *testing.T) {
	state := model.NewConversationState()
	UpsertMember(state, model.RosterMember{ID: "u1", Name: "Alice"})

	if member := FindMemberByName(state, "ALICE"); member == nil || member.ID != "u1" {
		t.Errorf("FindMemberByName(ALICE) = %+v, want u1", member)
	}
	if member := FindMemberByName(state, "Mallory"); member != nil {
		t.Errorf("FindMemberByName(Mallory) = %+v, want nil", member)
	}
}
