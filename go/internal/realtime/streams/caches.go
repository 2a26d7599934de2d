package streams

import "github.com/mcdev12/tablesync/go/internal/models"

const (
	DefaultChatLimit     = 120
	DefaultReactionLimit = 40
)

// Caches groups the auxiliary per-table streams.
type Caches struct {
	Chat       *Window[models.ChatMessage]
	Reactions  *Window[models.Reaction]
	Moderation *Moderation
}

// NewCaches creates the caches with the given window caps. Non-positive caps
// fall back to the defaults.
func NewCaches(chatLimit, reactionLimit int) *Caches {
	if chatLimit <= 0 {
		chatLimit = DefaultChatLimit
	}
	if reactionLimit <= 0 {
		reactionLimit = DefaultReactionLimit
	}
	return &Caches{
		Chat:       NewWindow[models.ChatMessage](chatLimit),
		Reactions:  NewWindow[models.Reaction](reactionLimit),
		Moderation: NewModeration(),
	}
}

// DropTable forgets everything cached for a closed table.
func (c *Caches) DropTable(tableID string) {
	c.Chat.Drop(tableID)
	c.Reactions.Drop(tableID)
	c.Moderation.Drop(tableID)
}
