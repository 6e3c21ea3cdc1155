package irc

import (
	"fmt"
	"strings"
)

// Channel is a named, joinable group of sessions. All channel state is
// owned by the server's event loop; nothing here is accessed from other
// goroutines, so no locking is used.
type Channel struct {
	name  string
	topic string
	key   string // join password, mode +k ("" = none)

	// members keeps join order; it is the source of truth for the
	// deterministic names listing and broadcast delivery order.
	members   []*Client
	operators map[*Client]bool
	invited   map[*Client]bool

	userLimit       int // mode +l, 0 = unlimited
	inviteOnly      bool
	topicRestricted bool // mode +t, topic changes need channel operator
}

// NewChannel creates a channel with its creator inserted as both member
// and operator.
func NewChannel(name string, creator *Client) *Channel {
	ch := &Channel{
		name:            name,
		operators:       make(map[*Client]bool),
		invited:         make(map[*Client]bool),
		topicRestricted: true,
	}
	ch.AddClient(creator)
	ch.AddOperator(creator)
	return ch
}

// Name returns the channel name.
func (ch *Channel) Name() string { return ch.name }

// Topic returns the channel topic, "" if unset.
func (ch *Channel) Topic() string { return ch.topic }

// SetTopic sets the channel topic.
func (ch *Channel) SetTopic(topic string) { ch.topic = topic }

// Key returns the join password, "" if none.
func (ch *Channel) Key() string { return ch.key }

// SetKey sets or clears the join password.
func (ch *Channel) SetKey(key string) { ch.key = key }

// UserLimit returns the member cap, 0 = unlimited.
func (ch *Channel) UserLimit() int { return ch.userLimit }

// SetUserLimit sets the member cap.
func (ch *Channel) SetUserLimit(limit int) { ch.userLimit = limit }

// IsInviteOnly reports whether mode +i is active.
func (ch *Channel) IsInviteOnly() bool { return ch.inviteOnly }

// SetInviteOnly toggles mode +i.
func (ch *Channel) SetInviteOnly(v bool) { ch.inviteOnly = v }

// IsTopicRestricted reports whether mode +t is active.
func (ch *Channel) IsTopicRestricted() bool { return ch.topicRestricted }

// SetTopicRestricted toggles mode +t.
func (ch *Channel) SetTopicRestricted(v bool) { ch.topicRestricted = v }

// AddClient appends a member, preserving join order. Adding an existing
// member is a no-op.
func (ch *Channel) AddClient(client *Client) {
	if ch.HasClient(client) {
		return
	}
	ch.members = append(ch.members, client)
}

// RemoveClient removes a member and strips its operator status and any
// pending invite.
func (ch *Channel) RemoveClient(client *Client) {
	for i, member := range ch.members {
		if member == client {
			ch.members = append(ch.members[:i], ch.members[i+1:]...)
			break
		}
	}
	delete(ch.operators, client)
	delete(ch.invited, client)
}

// HasClient reports membership.
func (ch *Channel) HasClient(client *Client) bool {
	for _, member := range ch.members {
		if member == client {
			return true
		}
	}
	return false
}

// Clients returns the members in join order.
func (ch *Channel) Clients() []*Client {
	out := make([]*Client, len(ch.members))
	copy(out, ch.members)
	return out
}

// Len returns the member count.
func (ch *Channel) Len() int { return len(ch.members) }

// AddOperator grants channel-operator status. Only members can hold it.
func (ch *Channel) AddOperator(client *Client) {
	if ch.HasClient(client) {
		ch.operators[client] = true
	}
}

// RemoveOperator revokes channel-operator status.
func (ch *Channel) RemoveOperator(client *Client) {
	delete(ch.operators, client)
}

// IsOperator reports channel-operator status.
func (ch *Channel) IsOperator(client *Client) bool {
	return ch.operators[client]
}

// Invite marks a session invited. The set is only consulted while the
// channel is invite-only.
func (ch *Channel) Invite(client *Client) {
	ch.invited[client] = true
}

// IsInvited reports a pending invite.
func (ch *Channel) IsInvited(client *Client) bool {
	return ch.invited[client]
}

// ClearInvite consumes a pending invite.
func (ch *Channel) ClearInvite(client *Client) {
	delete(ch.invited, client)
}

// Broadcast delivers line to every member in join order, optionally
// skipping one session.
func (ch *Channel) Broadcast(line string, except *Client) {
	for _, member := range ch.members {
		if member == except {
			continue
		}
		member.send(line)
	}
}

// NamesList produces the member nicknames in join order, channel
// operators marked with "@".
func (ch *Channel) NamesList() string {
	var sb strings.Builder
	for _, member := range ch.members {
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		if ch.operators[member] {
			sb.WriteString("@")
		}
		sb.WriteString(member.nickname)
	}
	return sb.String()
}

// ModeString serializes the active flags into the canonical "+itkl"
// form, mode arguments appended after the flags.
func (ch *Channel) ModeString() string {
	modes := "+"
	params := ""

	if ch.inviteOnly {
		modes += "i"
	}
	if ch.topicRestricted {
		modes += "t"
	}
	if ch.key != "" {
		modes += "k"
		params += " " + ch.key
	}
	if ch.userLimit > 0 {
		modes += "l"
		params += fmt.Sprintf(" %d", ch.userLimit)
	}

	return modes + params
}
