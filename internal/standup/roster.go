package standup

import (
	"sort"
	"strings"

	"cadence.app/server/internal/model"
)

// UpsertMember inserts the member if absent or merges fields if present, then
// re-sorts the roster order case-insensitively by display name. Returns true
// when the member was newly added.
func UpsertMember(state *model.ConversationState, member model.RosterMember) bool {
	_, existed := state.Roster[member.ID]

	m := member
	state.Roster[member.ID] = &m

	if !existed {
		state.RosterOrder = append(state.RosterOrder, member.ID)
	}

	sortRoster(state)
	return !existed
}

// RemoveMember deletes the member with the given id. Returns nil when the id
// is not on the roster.
func RemoveMember(state *model.ConversationState, id string) *model.RosterMember {
	existing, ok := state.Roster[id]
	if !ok {
		return nil
	}

	delete(state.Roster, id)
	order := state.RosterOrder[:0]
	for _, memberID := range state.RosterOrder {
		if memberID != id {
			order = append(order, memberID)
		}
	}
	state.RosterOrder = order
	return existing
}

// Members returns the roster sorted by display name.
func Members(state *model.ConversationState) []model.RosterMember {
	members := make([]model.RosterMember, 0, len(state.RosterOrder))
	for _, id := range state.RosterOrder {
		if member, ok := state.Roster[id]; ok {
			members = append(members, *member)
		}
	}
	return members
}

// FindMemberByName returns the member whose display name matches name,
// case-insensitive exact match, or nil.
func FindMemberByName(state *model.ConversationState, name string) *model.RosterMember {
	target := strings.TrimSpace(name)
	for _, member := range state.Roster {
		if strings.EqualFold(strings.TrimSpace(member.Name), target) {
			return member
		}
	}
	return nil
}

func sortRoster(state *model.ConversationState) {
	sort.SliceStable(state.RosterOrder, func(i, j int) bool {
		left, lok := state.Roster[state.RosterOrder[i]]
		right, rok := state.Roster[state.RosterOrder[j]]
		if !lok || !rok {
			return false
		}
		return strings.ToLower(left.Name) < strings.ToLower(right.Name)
	})
}
