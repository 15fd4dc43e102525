// Package topics derives broadcast topic keys from entity ids.
package topics

import (
	"fmt"
	"strconv"
	"strings"
)

// Target kinds.
const (
	KindChannel = "channel"
	KindDM      = "dm"
	KindUser    = "user"
)

// Target identifies the channel or direct chat an event belongs to.
type Target struct {
	Kind string
	ID   int
}

// ForChannel returns the target of a channel.
func ForChannel(id int) Target { return Target{Kind: KindChannel, ID: id} }

// ForDM returns the target of a direct chat.
func ForDM(id int) Target { return Target{Kind: KindDM, ID: id} }

func (t Target) prefix() string {
	return t.Kind + "." + strconv.Itoa(t.ID)
}

// Prefix matches every topic of the target and nothing of another target.
func (t Target) Prefix() string { return t.prefix() + "." }

func (t Target) Messages() string         { return t.prefix() + ".messages" }
func (t Target) MessagesUpdated() string  { return t.prefix() + ".messages.updated" }
func (t Target) MessagesDeleted() string  { return t.prefix() + ".messages.deleted" }
func (t Target) ReactionsUpdated() string { return t.prefix() + ".messages.reactions.updated" }
func (t Target) Typing() string           { return t.prefix() + ".typing" }

// Video carries call signaling. Only channels have one.
func (t Target) Video() string { return t.prefix() + ".video" }

// UserErrors is the private error destination of a user.
func UserErrors(userID int) string {
	return fmt.Sprintf("user.%d.errors", userID)
}

// UserNotifications is the private notification destination of a user.
func UserNotifications(userID int) string {
	return fmt.Sprintf("user.%d.notifications", userID)
}

var suffixes = []string{
	".messages.reactions.updated",
	".messages.updated",
	".messages.deleted",
	".messages",
	".typing",
	".video",
}

// Parse extracts the target from a channel or dm topic. User topics are not
// subscribable and are rejected.
func Parse(topic string) (Target, error) {
	parts := strings.SplitN(topic, ".", 3)
	if len(parts) != 3 {
		return Target{}, fmt.Errorf("malformed topic %q", topic)
	}
	kind := parts[0]
	if kind != KindChannel && kind != KindDM {
		return Target{}, fmt.Errorf("unsupported topic kind %q", kind)
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil || id <= 0 {
		return Target{}, fmt.Errorf("malformed topic id in %q", topic)
	}
	rest := "." + parts[2]
	if rest == ".video" && kind != KindChannel {
		return Target{}, fmt.Errorf("direct chats have no video topic")
	}
	for _, s := range suffixes {
		if rest == s {
			return Target{Kind: kind, ID: id}, nil
		}
	}
	return Target{}, fmt.Errorf("unknown topic %q", topic)
}
