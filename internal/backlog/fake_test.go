package backlog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"testing"

	"github.com/erazemk/gamelog/internal/client"
	"github.com/erazemk/gamelog/internal/model"
)

var errStoreDown = &client.RemoteCallError{Op: "test", Status: http.StatusInternalServerError, Message: "store down"}

// fakeRemote is an in-memory game store.
type fakeRemote struct {
	mu     sync.Mutex
	games  []model.Game // newest first, like the real store
	nextID int64
	fail   map[string]error
	calls  map[string]int
	last   client.Submission
}

func newFakeRemote(games ...model.Game) *fakeRemote {
	f := &fakeRemote{fail: map[string]error{}, calls: map[string]int{}}
	for _, g := range games {
		f.games = append(f.games, g)
		f.nextID = max(f.nextID, g.ID)
	}
	return f
}

func (f *fakeRemote) failOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

func (f *fakeRemote) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRemote) begin(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.fail[op]
}

func (f *fakeRemote) ListGames(ctx context.Context) ([]model.Game, error) {
	if err := f.begin("list"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.games), nil
}

func (f *fakeRemote) CreateGame(ctx context.Context, s client.Submission) (*model.Game, error) {
	if err := f.begin("create"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = s
	f.nextID++
	in := s.Input()
	g := model.Game{ID: f.nextID, Name: in.Name, Platform: in.Platform, Status: in.Status, Description: in.Description}
	if s.Cover() != nil {
		url := "http://store/api/games/cover"
		g.CoverImage = &url
	}
	f.games = slices.Insert(f.games, 0, g)
	return &g, nil
}

func (f *fakeRemote) UpdateGame(ctx context.Context, id int64, s client.Submission) (*model.Game, error) {
	if err := f.begin("update"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = s
	i := slices.IndexFunc(f.games, func(g model.Game) bool { return g.ID == id })
	if i < 0 {
		return nil, &client.RemoteCallError{Op: "update game", Status: http.StatusNotFound}
	}
	in := s.Input()
	g := f.games[i]
	g.Name, g.Platform, g.Status, g.Description = in.Name, in.Platform, in.Status, in.Description
	f.games[i] = g
	return &g, nil
}

func (f *fakeRemote) DeleteGame(ctx context.Context, id int64) error {
	if err := f.begin("delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.games)
	f.games = slices.DeleteFunc(f.games, func(g model.Game) bool { return g.ID == id })
	if len(f.games) == n {
		return &client.RemoteCallError{Op: "delete game", Status: http.StatusNotFound}
	}
	return nil
}

func (f *fakeRemote) RemoveCoverImage(ctx context.Context, id int64) (*model.Game, error) {
	if err := f.begin("remove-image"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := slices.IndexFunc(f.games, func(g model.Game) bool { return g.ID == id })
	if i < 0 {
		return nil, &client.RemoteCallError{Op: "remove cover", Status: http.StatusNotFound}
	}
	f.games[i].CoverImage = nil
	g := f.games[i]
	return &g, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newLoaded returns a synchronizer whose view was loaded from remote.
func newLoaded(t *testing.T, remote *fakeRemote) *Synchronizer {
	t.Helper()
	s := New(remote, quietLogger())
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func ids(games []model.Game) []int64 {
	out := make([]int64, len(games))
	for i, g := range games {
		out[i] = g.ID
	}
	return out
}

func isRemoteFailure(err error) bool {
	return errors.Is(err, client.ErrRemoteCall)
}
