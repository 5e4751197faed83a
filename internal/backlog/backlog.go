// Package backlog keeps a local view of the game collection in step with
// the remote game store.
//
// Every mutation goes to the store first and touches the local view only
// once the store has answered with success, so a failed call never changes
// what the view shows.
package backlog

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/erazemk/gamelog/internal/client"
	"github.com/erazemk/gamelog/internal/model"
)

// ErrUnknownGame is returned when an id is not in the local view.
var ErrUnknownGame = errors.New("game not in collection")

// Remote is the game store as seen by the synchronizer. *client.Client
// satisfies it.
type Remote interface {
	ListGames(ctx context.Context) ([]model.Game, error)
	CreateGame(ctx context.Context, s client.Submission) (*model.Game, error)
	UpdateGame(ctx context.Context, id int64, s client.Submission) (*model.Game, error)
	DeleteGame(ctx context.Context, id int64) error
	RemoveCoverImage(ctx context.Context, id int64) (*model.Game, error)
}

// Synchronizer owns the ordered local collection. It is safe for concurrent
// use. Mutations of the same game are serialized so only one request per
// game is in flight; different games do not wait on each other. Beyond that
// the last successful response wins.
type Synchronizer struct {
	remote Remote
	log    *slog.Logger

	mu    sync.Mutex
	games []model.Game

	locks recordLocks
}

// New returns a synchronizer with an empty collection. A nil logger uses
// slog.Default().
func New(remote Remote, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		remote: remote,
		log:    logger.With("component", "backlog"),
	}
}

// Load replaces the local collection with a full snapshot from the store.
// On failure the previous collection is kept.
func (s *Synchronizer) Load(ctx context.Context) error {
	games, err := s.remote.ListGames(ctx)
	if err != nil {
		s.log.Error("loading games failed", "error", err)
		return err
	}

	s.mu.Lock()
	s.games = slices.Clone(games)
	s.mu.Unlock()

	s.log.Info("games loaded", "count", len(games))
	return nil
}

// Create submits d and puts the stored record at the head of the
// collection. On success d is reset; on failure it is left untouched so the
// user can retry.
func (s *Synchronizer) Create(ctx context.Context, d *Draft) (*model.Game, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	g, err := s.remote.CreateGame(ctx, d.Submission())
	if err != nil {
		s.log.Error("creating game failed", "name", d.Name, "error", err)
		return nil, err
	}

	s.mu.Lock()
	// Ids are unique in the view even if the store repeats one.
	s.games = slices.DeleteFunc(s.games, func(x model.Game) bool { return x.ID == g.ID })
	s.games = slices.Insert(s.games, 0, *g)
	s.mu.Unlock()

	d.Reset()
	s.log.Info("game created", "id", g.ID, "name", g.Name, "status", g.Status)
	return g, nil
}

// Edit opens an edit surface for the game with id, prefilled from the
// local view.
func (s *Synchronizer) Edit(id int64) (*Edit, error) {
	g, ok := s.Find(id)
	if !ok {
		return nil, ErrUnknownGame
	}
	return NewEdit(g), nil
}

// Update replaces every field of the game e.ID in the store and then in the
// local view, keeping its position. On success e is closed; on failure it
// stays open.
func (s *Synchronizer) Update(ctx context.Context, e *Edit) (*model.Game, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(e.ID)
	defer unlock()

	g, err := s.remote.UpdateGame(ctx, e.ID, e.Submission())
	if err != nil {
		s.log.Error("updating game failed", "id", e.ID, "error", err)
		return nil, err
	}

	s.replace(*g)
	e.Close()
	s.log.Info("game updated", "id", g.ID, "name", g.Name, "status", g.Status)
	return g, nil
}

// Delete removes the game from the store and then from the local view.
func (s *Synchronizer) Delete(ctx context.Context, id int64) error {
	unlock := s.locks.lock(id)
	defer unlock()

	if err := s.remote.DeleteGame(ctx, id); err != nil {
		s.log.Error("deleting game failed", "id", id, "error", err)
		return err
	}

	s.mu.Lock()
	s.games = slices.DeleteFunc(s.games, func(x model.Game) bool { return x.ID == id })
	s.mu.Unlock()

	s.log.Info("game deleted", "id", id)
	return nil
}

// RemoveCoverImage clears the game's cover in the store and replaces the
// local record with the store's version.
func (s *Synchronizer) RemoveCoverImage(ctx context.Context, id int64) (*model.Game, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	g, err := s.remote.RemoveCoverImage(ctx, id)
	if err != nil {
		s.log.Error("removing cover failed", "id", id, "error", err)
		return nil, err
	}

	s.replace(*g)
	s.log.Info("game cover removed", "id", id)
	return g, nil
}

// Games returns a copy of the collection in display order.
func (s *Synchronizer) Games() []model.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.games)
}

// Len returns the size of the collection.
func (s *Synchronizer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.games)
}

// Find returns the game with id from the local view.
func (s *Synchronizer) Find(id int64) (model.Game, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.games, func(x model.Game) bool { return x.ID == id })
	if i < 0 {
		return model.Game{}, false
	}
	return s.games[i], true
}

// Groups partitions the current collection by status. It is recomputed on
// every call.
func (s *Synchronizer) Groups() Groups {
	return Partition(s.Games())
}

// Group returns the games with the given status.
func (s *Synchronizer) Group(status string) []model.Game {
	return s.Groups().Get(status)
}

// replace swaps in g for the record with the same id. A record deleted
// while the call was in flight stays deleted.
func (s *Synchronizer) replace(g model.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.games, func(x model.Game) bool { return x.ID == g.ID })
	if i < 0 {
		s.log.Warn("updated game no longer in collection", "id", g.ID)
		return
	}
	s.games[i] = g
}
