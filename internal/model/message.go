package model

import (
	"time"
)

// MaxMessageLength bounds message content, in runes.
const MaxMessageLength = 500

// Message represents an immutable chat message. Ordering within a
// conversation is by creation time; Seq breaks ties and doubles as the
// backfill index.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	AuthorID       string    `json:"author_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	Seq            int       `json:"seq"`
}

// TimestampFormat is how message timestamps are rendered in live events.
const TimestampFormat = "01/02/2006 15:04:05"

// FormatTimestamp renders a message timestamp in server-local time for
// display in the chat transcript.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(TimestampFormat)
}
