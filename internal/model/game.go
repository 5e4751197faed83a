package model

import "time"

// Game is one tracked backlog entry.
type Game struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Platform    string    `json:"platform"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	CoverImage  *string   `json:"coverImage"`
	CoverKey    string    `json:"-"`
	CoverMime   string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GameInput is the full set of user-editable fields of a game. Create and
// update both send every field.
type GameInput struct {
	Name        string `json:"name"`
	Platform    string `json:"platform"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
}

// HasCover reports whether the game references a stored cover image.
func (g *Game) HasCover() bool {
	return g.CoverImage != nil && *g.CoverImage != ""
}

// Game statuses. Each one is a display group on the board.
const (
	StatusBacklog    = "backlog"
	StatusNextToPlay = "next-to-play"
	StatusPlaying    = "playing"
	StatusCompleted  = "completed"
)

// Statuses lists every status in board order.
var Statuses = []string{StatusBacklog, StatusNextToPlay, StatusPlaying, StatusCompleted}

// ValidStatus reports whether s is one of the known statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusBacklog, StatusNextToPlay, StatusPlaying, StatusCompleted:
		return true
	}
	return false
}

// StatusLabel returns the human-readable group title for a status.
func StatusLabel(s string) string {
	switch s {
	case StatusBacklog:
		return "Backlog"
	case StatusNextToPlay:
		return "Next to Play"
	case StatusPlaying:
		return "Playing"
	case StatusCompleted:
		return "Completed"
	}
	return s
}

// Platforms offered as suggestions. Any other non-empty value is accepted.
var Platforms = []string{"PC", "Xbox Series S/X", "PlayStation 5", "Android"}
