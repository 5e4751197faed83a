package backlog

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erazemk/gamelog/internal/client"
	"github.com/erazemk/gamelog/internal/model"
)

func seedGames() []model.Game {
	cover := "http://store/api/games/3/cover"
	return []model.Game{
		{ID: 4, Name: "Warcraft 3", Platform: "PC", Status: model.StatusCompleted},
		{ID: 3, Name: "Dead Space", Platform: "PlayStation 5", Status: model.StatusPlaying, CoverImage: &cover},
		{ID: 2, Name: "Halo", Platform: "Xbox Series S/X", Status: model.StatusNextToPlay},
		{ID: 1, Name: "Gears of War", Platform: "Xbox Series S/X", Status: model.StatusBacklog},
	}
}

func TestLoadReplacesCollection(t *testing.T) {
	remote := newFakeRemote(seedGames()...)
	s := newLoaded(t, remote)

	if got := ids(s.Games()); !slices.Equal(got, []int64{4, 3, 2, 1}) {
		t.Errorf("expected store order, got %v", got)
	}

	// A second load is a full overwrite, not a merge.
	remote.mu.Lock()
	remote.games = remote.games[:1]
	remote.mu.Unlock()
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if got := ids(s.Games()); !slices.Equal(got, []int64{4}) {
		t.Errorf("expected snapshot overwrite, got %v", got)
	}
}

func TestLoadFailureKeepsPriorState(t *testing.T) {
	remote := newFakeRemote(seedGames()...)
	remote.failOn("list", errStoreDown)

	s := New(remote, quietLogger())
	err := s.Load(context.Background())
	if !isRemoteFailure(err) {
		t.Fatalf("expected remote failure, got %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty collection after failed first load, got %d", s.Len())
	}

	remote.failOn("list", nil)
	s.Load(context.Background())
	remote.failOn("list", errStoreDown)
	s.Load(context.Background())
	if s.Len() != 4 {
		t.Errorf("expected prior collection to survive failed reload, got %d", s.Len())
	}
}

func TestCreatePrependsStoreRecord(t *testing.T) {
	s := newLoaded(t, newFakeRemote(seedGames()...))
	ctx := context.Background()

	names := []string{"Cyberpunk 2077", "Hades", "Celeste"}
	for i, name := range names {
		before := s.Len()
		d := NewDraft()
		d.Name, d.Platform = name, "PC"

		g, err := s.Create(ctx, d)
		if err != nil {
			t.Fatalf("Create %q: %v", name, err)
		}
		if s.Len() != before+1 {
			t.Errorf("create %d: expected size %d, got %d", i, before+1, s.Len())
		}
		head := s.Games()[0]
		if head.ID != g.ID || head.Name != name {
			t.Errorf("create %d: expected %q (id %d) at head, got %+v", i, name, g.ID, head)
		}
	}
}

func TestCreateResetsDraft(t *testing.T) {
	s := newLoaded(t, newFakeRemote())

	d := &Draft{Name: "Halo", Platform: "PC", Status: model.StatusPlaying, Cover: &client.Cover{Filename: "halo.jpg", Data: []byte{0xff, 0xd8}}}
	if _, err := s.Create(context.Background(), d); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !reflect.DeepEqual(d, NewDraft()) {
		t.Errorf("expected draft reset to defaults, got %+v", d)
	}
}

func TestCreateSendsCoverVariant(t *testing.T) {
	remote := newFakeRemote()
	s := newLoaded(t, remote)
	ctx := context.Background()

	s.Create(ctx, &Draft{Name: "Halo", Platform: "PC"})
	if remote.last.Cover() != nil {
		t.Error("expected fields-only submission without a cover")
	}
	if remote.last.Input().Status != model.StatusBacklog {
		t.Errorf("expected default status, got %q", remote.last.Input().Status)
	}

	g, _ := s.Create(ctx, &Draft{Name: "Doom", Platform: "PC", Cover: &client.Cover{Filename: "doom.png", Data: []byte("png")}})
	if remote.last.Cover() == nil {
		t.Fatal("expected submission with cover")
	}
	if !g.HasCover() {
		t.Error("expected created record to carry the cover reference")
	}
}

func TestCreateFailureLeavesCollectionAndDraft(t *testing.T) {
	remote := newFakeRemote(seedGames()...)
	s := newLoaded(t, remote)
	before := s.Games()

	remote.failOn("create", errStoreDown)
	d := &Draft{Name: "X", Platform: "PC", Status: model.StatusBacklog}
	_, err := s.Create(context.Background(), d)
	if !isRemoteFailure(err) {
		t.Fatalf("expected remote failure, got %v", err)
	}

	if !reflect.DeepEqual(s.Games(), before) {
		t.Error("collection changed after failed create")
	}
	if d.Name != "X" || d.Platform != "PC" || d.Status != model.StatusBacklog {
		t.Errorf("draft should be retained for retry, got %+v", d)
	}
}

func TestCreateRequiresNameAndPlatform(t *testing.T) {
	remote := newFakeRemote()
	s := newLoaded(t, remote)

	tests := []Draft{
		{Name: "", Platform: "PC"},
		{Name: "   ", Platform: "PC"},
		{Name: "Halo", Platform: ""},
	}
	for _, d := range tests {
		_, err := s.Create(context.Background(), &d)
		if !errors.Is(err, ErrMissingField) {
			t.Errorf("Create(%+v): expected ErrMissingField, got %v", d, err)
		}
	}
	if remote.count("create") != 0 {
		t.Errorf("expected no remote calls, got %d", remote.count("create"))
	}
}

func TestUpdateReplacesOnlyTarget(t *testing.T) {
	s := newLoaded(t, newFakeRemote(seedGames()...))
	before := s.Games()

	e, err := s.Edit(2)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	e.Name = "Halo Infinite"
	e.Status = model.StatusPlaying

	if _, err := s.Update(context.Background(), e); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if e.IsOpen() {
		t.Error("expected edit surface to close on success")
	}

	after := s.Games()
	if !slices.Equal(ids(after), ids(before)) {
		t.Fatalf("order changed: %v -> %v", ids(before), ids(after))
	}
	for i := range after {
		if after[i].ID == 2 {
			if after[i].Name != "Halo Infinite" || after[i].Status != model.StatusPlaying {
				t.Errorf("target not updated: %+v", after[i])
			}
			continue
		}
		if !reflect.DeepEqual(after[i], before[i]) {
			t.Errorf("record %d changed: %+v -> %+v", after[i].ID, before[i], after[i])
		}
	}
}

func TestUpdateFailureLeavesRecordAndEditOpen(t *testing.T) {
	remote := newFakeRemote(model.Game{ID: 42, Name: "Halo", Platform: "PC", Status: model.StatusBacklog})
	s := newLoaded(t, remote)
	before, _ := s.Find(42)

	remote.failOn("update", errStoreDown)
	e, _ := s.Edit(42)
	e.Name = "Changed"
	if _, err := s.Update(context.Background(), e); !isRemoteFailure(err) {
		t.Fatalf("expected remote failure, got %v", err)
	}

	after, _ := s.Find(42)
	if !reflect.DeepEqual(after, before) {
		t.Errorf("record 42 changed after failed update: %+v", after)
	}
	if !e.IsOpen() {
		t.Error("expected edit surface to stay open on failure")
	}
}

func TestEditUnknownGame(t *testing.T) {
	s := newLoaded(t, newFakeRemote())
	if _, err := s.Edit(7); !errors.Is(err, ErrUnknownGame) {
		t.Errorf("expected ErrUnknownGame, got %v", err)
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	s := newLoaded(t, newFakeRemote(seedGames()...))
	before := s.Len()

	if err := s.Delete(context.Background(), 3); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Len() != before-1 {
		t.Errorf("expected size %d, got %d", before-1, s.Len())
	}
	if _, ok := s.Find(3); ok {
		t.Error("deleted record still present")
	}
	if got := ids(s.Games()); !slices.Equal(got, []int64{4, 2, 1}) {
		t.Errorf("expected remaining order preserved, got %v", got)
	}
}

func TestDeleteFailureLeavesCollection(t *testing.T) {
	remote := newFakeRemote(seedGames()...)
	s := newLoaded(t, remote)
	before := s.Games()

	remote.failOn("delete", errStoreDown)
	if err := s.Delete(context.Background(), 3); !isRemoteFailure(err) {
		t.Fatalf("expected remote failure, got %v", err)
	}
	if !reflect.DeepEqual(s.Games(), before) {
		t.Error("collection changed after failed delete")
	}
	if remote.count("delete") != 1 {
		t.Errorf("expected exactly one attempt, got %d", remote.count("delete"))
	}
}

func TestRemoveCoverImage(t *testing.T) {
	s := newLoaded(t, newFakeRemote(seedGames()...))

	g, err := s.RemoveCoverImage(context.Background(), 3)
	if err != nil {
		t.Fatalf("RemoveCoverImage: %v", err)
	}
	if g.HasCover() {
		t.Error("expected returned record without cover")
	}
	local, _ := s.Find(3)
	if local.CoverImage != nil {
		t.Errorf("expected local cover cleared, got %v", *local.CoverImage)
	}
}

func TestRemoveCoverImageWithoutCover(t *testing.T) {
	s := newLoaded(t, newFakeRemote(seedGames()...))
	before := s.Games()

	if _, err := s.RemoveCoverImage(context.Background(), 1); err != nil {
		t.Fatalf("RemoveCoverImage: %v", err)
	}
	if !reflect.DeepEqual(s.Games(), before) {
		t.Error("collection shape changed when removing a cover that was not there")
	}
}

func TestReplaceDoesNotResurrect(t *testing.T) {
	s := newLoaded(t, newFakeRemote(seedGames()...))
	s.replace(model.Game{ID: 99, Name: "Ghost"})
	if _, ok := s.Find(99); ok {
		t.Error("replace must not resurrect a record missing from the view")
	}
}

func TestEndToEndScenario(t *testing.T) {
	remote := newFakeRemote(model.Game{ID: 1, Name: "Dead Space", Platform: "PC", Status: model.StatusPlaying})
	s := newLoaded(t, remote)

	d := NewDraft()
	d.Name, d.Platform, d.Status = "Halo", "PC", model.StatusBacklog
	g, err := s.Create(context.Background(), d)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if g.ID != 2 {
		t.Fatalf("expected store to assign id 2, got %d", g.ID)
	}

	if got := ids(s.Games()); !slices.Equal(got, []int64{2, 1}) {
		t.Errorf("expected [2 1], got %v", got)
	}
	backlog := s.Group(model.StatusBacklog)
	if len(backlog) != 1 || backlog[0].ID != 2 {
		t.Errorf("expected backlog to hold only id 2, got %v", ids(backlog))
	}
	playing := s.Group(model.StatusPlaying)
	if len(playing) != 1 || playing[0].ID != 1 {
		t.Errorf("expected playing to hold only id 1, got %v", ids(playing))
	}
}

// serialRemote records whether two updates of one game overlapped, and
// whether updates of different games could run side by side.
type serialRemote struct {
	*fakeRemote
	inFlight  map[int64]*atomic.Int32
	overlap   atomic.Bool
	arrived   chan int64
	release   chan struct{}
	holdFirst bool
}

func (r *serialRemote) UpdateGame(ctx context.Context, id int64, sub client.Submission) (*model.Game, error) {
	if r.inFlight[id].Add(1) > 1 {
		r.overlap.Store(true)
	}
	defer r.inFlight[id].Add(-1)

	if r.holdFirst {
		r.arrived <- id
		<-r.release
	} else {
		time.Sleep(5 * time.Millisecond)
	}
	return r.fakeRemote.UpdateGame(ctx, id, sub)
}

func TestSameGameUpdatesAreSerialized(t *testing.T) {
	remote := &serialRemote{
		fakeRemote: newFakeRemote(seedGames()...),
		inFlight:   map[int64]*atomic.Int32{2: {}},
	}
	s := New(remote, quietLogger())
	s.Load(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, _ := s.Edit(2)
			e.Status = model.StatusCompleted
			s.Update(context.Background(), e)
		}()
	}
	wg.Wait()

	if remote.overlap.Load() {
		t.Error("two updates of the same game were in flight at once")
	}
	if g, _ := s.Find(2); g.Status != model.StatusCompleted {
		t.Errorf("expected final status completed, got %q", g.Status)
	}
}

func TestDifferentGamesUpdateConcurrently(t *testing.T) {
	remote := &serialRemote{
		fakeRemote: newFakeRemote(seedGames()...),
		inFlight:   map[int64]*atomic.Int32{1: {}, 2: {}},
		arrived:    make(chan int64, 2),
		release:    make(chan struct{}),
		holdFirst:  true,
	}
	s := New(remote, quietLogger())
	s.Load(context.Background())

	var wg sync.WaitGroup
	for _, id := range []int64{1, 2} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, _ := s.Edit(id)
			s.Update(context.Background(), e)
		}()
	}

	timeout := time.After(2 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case <-remote.arrived:
		case <-timeout:
			close(remote.release)
			t.Fatal("updates of different games did not run concurrently")
		}
	}
	close(remote.release)
	wg.Wait()
}
