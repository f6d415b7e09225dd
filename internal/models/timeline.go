package models

import "sort"

// Timeline keeps an ordered view of a conversation's messages and applies
// the merge rule used by stream consumers: a known id replaces in place,
// a server record matching a pending client key replaces the optimistic
// entry, anything else inserts and the list re-sorts by creation time with
// the store-assigned insertion key breaking ties.
type Timeline struct {
	messages []Message
	byPublic map[string]int
	byClient map[string]int
}

// NewTimeline builds a timeline from an already-ordered backlog.
func NewTimeline(backlog []Message) *Timeline {
	t := &Timeline{
		byPublic: make(map[string]int, len(backlog)),
		byClient: make(map[string]int),
	}
	for _, m := range backlog {
		t.Apply(m)
	}
	return t
}

// Apply merges one message into the timeline.
func (t *Timeline) Apply(msg Message) {
	if i, ok := t.byPublic[msg.PublicID]; ok {
		t.messages[i] = msg
		t.resort()
		return
	}
	if msg.ClientKey != "" {
		if i, ok := t.byClient[msg.ClientKey]; ok {
			// Server confirmation of an optimistic local insert.
			delete(t.byPublic, t.messages[i].PublicID)
			t.messages[i] = msg
			t.resort()
			return
		}
	}
	t.messages = append(t.messages, msg)
	t.resort()
}

// Messages returns the current ordered view.
func (t *Timeline) Messages() []Message {
	return t.messages
}

// Len returns the number of entries in the timeline.
func (t *Timeline) Len() int {
	return len(t.messages)
}

func (t *Timeline) resort() {
	sort.SliceStable(t.messages, func(i, j int) bool {
		a, b := t.messages[i], t.messages[j]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	for i, m := range t.messages {
		t.byPublic[m.PublicID] = i
		if m.ClientKey != "" {
			t.byClient[m.ClientKey] = i
		}
	}
}
