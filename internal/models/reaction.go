package models

import "time"

// Reaction is a (message, user, emoji) tuple.
type Reaction struct {
	MessageID int       `db:"message_id" json:"message_id"`
	UserID    int       `db:"user_id" json:"user_id"`
	Username  string    `db:"username" json:"username"`
	AvatarURL string    `db:"avatar_url" json:"avatar_url,omitempty"`
	Emoji     string    `db:"emoji" json:"emoji"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ReactionSummary aggregates reactions on one message.
type ReactionSummary struct {
	Counts   map[string]int           `json:"counts"`
	Reactors map[string][]UserSummary `json:"reactors"`
}

// Summarize groups reactions by emoji, keeping row order for reactors.
func Summarize(reactions []Reaction) ReactionSummary {
	summary := ReactionSummary{
		Counts:   make(map[string]int),
		Reactors: make(map[string][]UserSummary),
	}
	for _, r := range reactions {
		summary.Counts[r.Emoji]++
		summary.Reactors[r.Emoji] = append(summary.Reactors[r.Emoji], UserSummary{
			ID:        r.UserID,
			Username:  r.Username,
			AvatarURL: r.AvatarURL,
		})
	}
	return summary
}

// EmojiInfo describes one allowed reaction emoji.
type EmojiInfo struct {
	Key       string `json:"key"`
	Character string `json:"character"`
	Name      string `json:"name"`
	Slug      string `json:"slug,omitempty"`
}
