package backlog

import "github.com/erazemk/gamelog/internal/model"

// Groups is the board: the collection partitioned by status.
type Groups struct {
	Backlog    []model.Game
	NextToPlay []model.Game
	Playing    []model.Game
	Completed  []model.Game
	// Unknown holds records whose status is not one of the four. A store
	// that enforces the enumeration never produces any.
	Unknown []model.Game
}

// Partition splits games into status groups, keeping collection order
// inside each group. games is not modified.
func Partition(games []model.Game) Groups {
	var g Groups
	for _, game := range games {
		switch game.Status {
		case model.StatusBacklog:
			g.Backlog = append(g.Backlog, game)
		case model.StatusNextToPlay:
			g.NextToPlay = append(g.NextToPlay, game)
		case model.StatusPlaying:
			g.Playing = append(g.Playing, game)
		case model.StatusCompleted:
			g.Completed = append(g.Completed, game)
		default:
			g.Unknown = append(g.Unknown, game)
		}
	}
	return g
}

// Get returns the group for status, or nil for an unknown status.
func (g Groups) Get(status string) []model.Game {
	switch status {
	case model.StatusBacklog:
		return g.Backlog
	case model.StatusNextToPlay:
		return g.NextToPlay
	case model.StatusPlaying:
		return g.Playing
	case model.StatusCompleted:
		return g.Completed
	}
	return nil
}

// Len returns the number of records across all groups.
func (g Groups) Len() int {
	return len(g.Backlog) + len(g.NextToPlay) + len(g.Playing) + len(g.Completed) + len(g.Unknown)
}
