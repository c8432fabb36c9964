package standup

import (
	"fmt"
	"strings"

	"cadence.app/server/internal/model"
)

// SummaryPage is one length-bounded chunk of a rendered summary.
type SummaryPage struct {
	Title   string
	Content string
}

const noResponsePlaceholder = "_No response_"

// BuildPages renders a session's captured answers into paginated summary
// pages. Each participant in the session order contributes one block, in
// order; blocks are packed greedily up to maxPageLength characters and a
// block is never split across pages. Page titles carry the session's start
// date plus an "(i of N)" marker computed once the page count is known.
func BuildPages(state *model.ConversationState, session *model.StandupSession, maxPageLength int) []SummaryPage {
	if maxPageLength <= 0 {
		maxPageLength = 4000
	}

	var blocks []string
	for _, participantID := range session.Order {
		member, ok := state.Roster[participantID]
		if !ok {
			continue
		}
		blocks = append(blocks, participantBlock(member, session.Responses[participantID]))
	}

	title := fmt.Sprintf("Standup for %s", session.StartedAt.UTC().Format("2006-01-02"))

	var pages []SummaryPage
	var buffer string
	for _, block := range blocks {
		if strings.TrimSpace(block) == "" {
			continue
		}
		prospective := block
		if buffer != "" {
			prospective = buffer + "\n\n" + block
		}
		if len(prospective) > maxPageLength && buffer != "" {
			pages = append(pages, SummaryPage{Title: title, Content: strings.TrimSpace(buffer)})
			buffer = block
		} else {
			buffer = prospective
		}
	}
	if strings.TrimSpace(buffer) != "" {
		pages = append(pages, SummaryPage{Title: title, Content: strings.TrimSpace(buffer)})
	}

	total := len(pages)
	if total == 0 {
		total = 1
	}
	for i := range pages {
		pages[i].Title = fmt.Sprintf("%s (%d of %d)", pages[i].Title, i+1, total)
	}
	return pages
}

func participantBlock(member *model.RosterMember, response *model.ParticipantResponse) string {
	header := fmt.Sprintf("## Status for %s ##", member.Name)

	if response == nil || response.Skipped {
		return header + "\n_(Skipped)_\n"
	}

	lines := make([]string, 0, len(Questions))
	for i, question := range Questions {
		answer := noResponsePlaceholder
		if i < len(response.Answers) {
			answer = normalizeAnswer(response.Answers[i])
		}
		lines = append(lines, fmt.Sprintf("**%s**\n%s", question.Prompt, answer))
	}

	return header + "\n" + strings.Join(lines, "\n\n") + "\n"
}

// normalizeAnswer substitutes the placeholder for empty answers and spreads
// single newlines into paragraph breaks so multi-line answers render as
// separate lines in markdown.
func normalizeAnswer(answer string) string {
	if strings.TrimSpace(answer) == "" {
		return noResponsePlaceholder
	}
	normalized := strings.ReplaceAll(answer, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\n", "\n\n")
	return strings.TrimSpace(normalized)
}
