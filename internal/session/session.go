// Package session folds the events a reader's client sees for one open
// document into a single value: who is online and the chat log, including
// messages still in flight. Apply is pure; callers own the State.
package session

import (
	"clurb/internal/chat"
	"clurb/internal/presence"
	"clurb/internal/realtime"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
)

// Entry is one chat line. Pending entries have no server id yet and are
// matched by ClientID; failed sends are dropped rather than kept.
type Entry struct {
	ClientID string
	Status   Status
	Message  chat.Message
}

type State struct {
	Members  []presence.Member
	Messages []Entry
}

func (s State) Online() map[uint64]struct{} {
	return presence.OnlineSet(s.Members)
}

type Event interface {
	apply(State) State
}

// PresenceSync replaces the member list wholesale.
type PresenceSync struct {
	Members []presence.Member
}

// MessagePending is the local echo shown before the send resolves.
type MessagePending struct {
	ClientID string
	SenderID uint64
	Content  string
	At       time.Time
}

// MessageConfirmed is the send response; Message.ClientID names the pending entry.
type MessageConfirmed struct {
	Message chat.Message
}

type MessageFailed struct {
	ClientID string
}

// MessageInserted is the realtime broadcast of a stored message.
type MessageInserted struct {
	Message chat.Message
}

func Apply(s State, ev Event) State {
	return ev.apply(s)
}

func (e PresenceSync) apply(s State) State {
	s.Members = slices.Clone(e.Members)
	return s
}

func (e MessagePending) apply(s State) State {
	if e.ClientID == "" || indexByClientID(s.Messages, e.ClientID) >= 0 {
		return s
	}
	s.Messages = append(slices.Clone(s.Messages), Entry{
		ClientID: e.ClientID,
		Status:   StatusPending,
		Message:  chat.Message{SenderID: e.SenderID, Content: e.Content, CreatedAt: e.At, ClientID: e.ClientID},
	})
	sortEntries(s.Messages)
	return s
}

func (e MessageConfirmed) apply(s State) State {
	return confirm(s, e.Message)
}

func (e MessageInserted) apply(s State) State {
	return confirm(s, e.Message)
}

// Failed removes only a pending entry; a confirmed message is terminal.
func (e MessageFailed) apply(s State) State {
	i := indexByClientID(s.Messages, e.ClientID)
	if i < 0 || s.Messages[i].Status != StatusPending {
		return s
	}
	s.Messages = slices.Delete(slices.Clone(s.Messages), i, i+1)
	return s
}

// confirm places a stored message exactly once, whichever of the send
// response and the broadcast echo arrives first.
func confirm(s State, msg chat.Message) State {
	messages := slices.Clone(s.Messages)

	pending := -1
	if msg.ClientID != "" {
		pending = indexByClientID(messages, msg.ClientID)
	}

	if slices.ContainsFunc(messages, func(e Entry) bool { return e.Status == StatusConfirmed && e.Message.ID == msg.ID }) {
		if pending >= 0 && messages[pending].Status == StatusPending {
			messages = slices.Delete(messages, pending, pending+1)
		}
		s.Messages = messages
		return s
	}

	entry := Entry{ClientID: msg.ClientID, Status: StatusConfirmed, Message: msg}
	if pending >= 0 {
		messages[pending] = entry
	} else {
		messages = append(messages, entry)
	}
	sortEntries(messages)
	s.Messages = messages
	return s
}

func indexByClientID(entries []Entry, clientID string) int {
	if clientID == "" {
		return -1
	}
	return slices.IndexFunc(entries, func(e Entry) bool { return e.ClientID == clientID })
}

func sortEntries(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		if c := a.Message.CreatedAt.Compare(b.Message.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.Message.ID < b.Message.ID:
			return -1
		case a.Message.ID > b.Message.ID:
			return 1
		}
		return 0
	})
}

// Decode turns a stream event into a reducer event.
func Decode(ev realtime.Event) (Event, error) {
	switch ev.Type {
	case realtime.EventPresenceSync:
		var payload presence.SyncPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		return PresenceSync{Members: payload.Members}, nil
	case realtime.EventMessageInserted:
		var msg chat.Message
		if err := json.Unmarshal(ev.Payload, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		return MessageInserted{Message: msg}, nil
	}
	return nil, fmt.Errorf("unknown event type %q", ev.Type)
}
