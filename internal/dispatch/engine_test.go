package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"puzzle_webapp/internal/domain"
	"puzzle_webapp/internal/puzzle"
	"puzzle_webapp/internal/store"
)

const (
	genBackRank = 0
	genScholars = 1
	genRuyLopez = 2
)

const chess = domain.GameTypeChessPuzzle

type recordingSink struct {
	mu      sync.Mutex
	results []domain.PuzzleState
}

func (s *recordingSink) Record(_ context.Context, _ string, st domain.PuzzleState) error {
	s.mu.Lock()
	s.results = append(s.results, st)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

type testEnv struct {
	engine *Engine
	store  *store.MemoryPuzzleStore
	sink   *recordingSink
	gen    atomic.Int64
}

func newTestEnv(t *testing.T, mode HouseMode, gen int64, opts puzzle.Options) *testEnv {
	t.Helper()
	if opts.MinesweeperMines == 0 {
		opts.MinesweeperMines = 10
	}
	reg, err := puzzle.NewDefaultRegistry(opts)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	env := &testEnv{store: store.NewMemoryPuzzleStore(), sink: &recordingSink{}}
	env.gen.Store(gen)
	env.engine = NewEngine(reg, env.store, Options{
		HouseMode:  mode,
		Generation: func(time.Time) int64 { return env.gen.Load() },
		Sink:       env.sink,
	})
	return env
}

func (env *testEnv) snapshot(t *testing.T, sid string, game domain.GameType) []byte {
	t.Helper()
	st, err := env.store.Get(context.Background(), store.PuzzleKey{SessionID: sid, Game: game})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	b, _ := json.Marshal(st)
	return b
}

func uci(s string) domain.Action { return domain.Action{UCI: s} }

func TestDispatchScenario(t *testing.T) {
	env := newTestEnv(t, HouseExplicit, genScholars, puzzle.Options{})
	ctx := context.Background()
	e := env.engine

	p0, err := e.Start(ctx, "s1", chess)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if p0.Epoch != 0 || p0.ContentID != "scholars-mate" {
		t.Fatalf("unexpected start %+v", p0)
	}

	res, err := e.Dispatch(ctx, "s1", chess, 0, uci("d1f3"))
	if err != nil {
		t.Fatalf("wrong move: %v", err)
	}
	if !res.Wrong || res.Position != p0.Position || res.Epoch != 0 || res.Mistakes != 1 {
		t.Fatalf("wrong move should revert: %+v", res)
	}

	res, err = e.Dispatch(ctx, "s1", chess, 0, uci("d1h5"))
	if err != nil {
		t.Fatalf("correct move: %v", err)
	}
	if res.Wrong || res.Illegal || res.Position == p0.Position || res.Epoch != 0 || !res.HousePending {
		t.Fatalf("correct move should commit: %+v", res)
	}
	p1 := res.Position

	rotated, err := e.RotateAll(ctx, genScholars+1)
	if err != nil || len(rotated) != 1 || rotated[0].Epoch != 1 {
		t.Fatalf("rotate: %v %+v", err, rotated)
	}
	env.gen.Store(genScholars + 1)

	before := env.snapshot(t, "s1", chess)
	_, err = e.Dispatch(ctx, "s1", chess, 0, uci("h5f7"))
	var ce *domain.ConflictError
	if !errors.As(err, &ce) || ce.CurrentEpoch != 1 || !ce.Started {
		t.Fatalf("expected conflict at epoch 1, got %v", err)
	}
	if after := env.snapshot(t, "s1", chess); string(before) != string(after) {
		t.Fatalf("conflict mutated state:\n%s\n%s", before, after)
	}

	restarted, err := e.Start(ctx, "s1", chess)
	if err != nil {
		t.Fatalf("start after rotation: %v", err)
	}
	if restarted.Epoch != 1 || restarted.Position == p1 || restarted.ContentID != "ruy-lopez" {
		t.Fatalf("unexpected restarted puzzle %+v", restarted)
	}

	reset, err := e.Reset(ctx, "s1", chess)
	if err != nil || reset.Epoch != 2 || reset.Moves == nil || len(reset.Moves) != 0 {
		t.Fatalf("reset: %+v %v", reset, err)
	}
}

func TestDispatchWithoutPuzzleConflicts(t *testing.T) {
	env := newTestEnv(t, HouseExplicit, genBackRank, puzzle.Options{})
	_, err := env.engine.Dispatch(context.Background(), "nobody", chess, 0, uci("a1a8"))
	var ce *domain.ConflictError
	if !errors.As(err, &ce) || ce.Started {
		t.Fatalf("expected not-started conflict, got %v", err)
	}
	if _, err := env.engine.HouseTurn(context.Background(), "nobody", chess, nil); !domain.IsConflict(err) {
		t.Fatalf("house turn on missing puzzle should conflict, got %v", err)
	}
}

func TestDispatchUnknownGame(t *testing.T) {
	env := newTestEnv(t, HouseExplicit, 0, puzzle.Options{})
	if _, err := env.engine.Dispatch(context.Background(), "s", "go", 0, uci("a1a2")); !errors.Is(err, domain.ErrUnknownGame) {
		t.Fatalf("expected ErrUnknownGame, got %v", err)
	}
}

func TestDispatchIllegalLeavesPositionUnchanged(t *testing.T) {
	env := newTestEnv(t, HouseExplicit, genRuyLopez, puzzle.Options{})
	ctx := context.Background()
	st, _ := env.engine.Start(ctx, "s1", chess)

	for _, a := range []domain.Action{uci("e2e5"), uci("e7e5"), {From: "x9", To: "e4"}, {}} {
		before := env.snapshot(t, "s1", chess)
		res, err := env.engine.Dispatch(ctx, "s1", chess, 0, a)
		if err != nil {
			t.Fatalf("dispatch %+v: %v", a, err)
		}
		if !res.Illegal || res.Position != st.Position {
			t.Fatalf("expected illegal with unchanged position for %+v: %+v", a, res)
		}
		if after := env.snapshot(t, "s1", chess); string(before) != string(after) {
			t.Fatalf("illegal move mutated state")
		}
	}
}

func TestHouseTurnExplicit(t *testing.T) {
	env := newTestEnv(t, HouseExplicit, genScholars, puzzle.Options{})
	ctx := context.Background()
	e := env.engine
	e.Start(ctx, "s1", chess)

	// nothing owed yet: no-op
	before := env.snapshot(t, "s1", chess)
	noop, err := e.HouseTurn(ctx, "s1", chess, nil)
	if err != nil || noop.HouseMove != "" {
		t.Fatalf("house turn with nothing pending: %+v %v", noop, err)
	}
	if after := env.snapshot(t, "s1", chess); string(before) != string(after) {
		t.Fatalf("no-op house turn mutated state")
	}

	e.Dispatch(ctx, "s1", chess, 0, uci("d1h5"))

	// player may not move while the reply is owed
	res, _ := e.Dispatch(ctx, "s1", chess, 0, uci("h5f7"))
	if !res.Illegal {
		t.Fatalf("out of turn move should be illegal: %+v", res)
	}

	hr, err := e.HouseTurn(ctx, "s1", chess, nil)
	if err != nil {
		t.Fatalf("house turn: %v", err)
	}
	if hr.HouseMove != "g8f6" || hr.HousePending || hr.Ply != 2 || hr.Epoch != 0 {
		t.Fatalf("unexpected house result %+v", hr)
	}

	// second call is a no-op
	again, _ := e.HouseTurn(ctx, "s1", chess, nil)
	if again.HouseMove != "" || again.Ply != 2 {
		t.Fatalf("second house turn should be a no-op: %+v", again)
	}

	won, err := e.Dispatch(ctx, "s1", chess, 0, uci("h5f7"))
	if err != nil || !won.Gameover || won.Result != domain.GameResultWon || won.Score != 2 {
		t.Fatalf("mate should win: %+v %v", won, err)
	}
	e.Wait()
	if env.sink.count() != 1 {
		t.Fatalf("expected one recorded result, got %d", env.sink.count())
	}
}

func TestHouseTurnChecksEpochUnderLock(t *testing.T) {
	env := newTestEnv(t, HouseExplicit, genScholars, puzzle.Options{})
	ctx := context.Background()
	e := env.engine
	e.Start(ctx, "s1", chess)
	e.Dispatch(ctx, "s1", chess, 0, uci("d1h5"))

	// content rotates between the client's view and its house_turn
	env.gen.Store(genRuyLopez)
	stale := int64(0)
	_, err := e.HouseTurn(ctx, "s1", chess, &stale)
	var ce *domain.ConflictError
	if !errors.As(err, &ce) || ce.CurrentEpoch != 1 || !ce.Started {
		t.Fatalf("expected conflict at epoch 1, got %v", err)
	}
	before := env.snapshot(t, "s1", chess)
	if _, err := e.HouseTurn(ctx, "s1", chess, &stale); !domain.IsConflict(err) {
		t.Fatalf("stale epoch must keep conflicting: %v", err)
	}
	if after := env.snapshot(t, "s1", chess); string(before) != string(after) {
		t.Fatalf("conflicting house turn mutated state")
	}

	current := int64(1)
	res, err := e.HouseTurn(ctx, "s1", chess, &current)
	if err != nil || res.Epoch != 1 || res.HouseMove != "" {
		t.Fatalf("matching epoch with nothing owed should be a no-op: %+v %v", res, err)
	}
}

func TestHouseTurnAuto(t *testing.T) {
	env := newTestEnv(t, HouseAuto, genScholars, puzzle.Options{})
	ctx := context.Background()
	env.engine.Start(ctx, "s1", chess)

	res, err := env.engine.Dispatch(ctx, "s1", chess, 0, uci("d1h5"))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.HouseMove != "g8f6" || res.HousePending || len(res.Moves) != 2 {
		t.Fatalf("auto mode should reply in the same dispatch: %+v", res)
	}
}

func TestGameoverIsIdempotent(t *testing.T) {
	env := newTestEnv(t, HouseExplicit, genBackRank, puzzle.Options{})
	ctx := context.Background()
	env.engine.Start(ctx, "s1", chess)

	won, err := env.engine.Dispatch(ctx, "s1", chess, 0, uci("a1a8"))
	if err != nil || !won.Gameover {
		t.Fatalf("back rank mate should end the puzzle: %+v %v", won, err)
	}

	before := env.snapshot(t, "s1", chess)
	for _, a := range []domain.Action{uci("a8a1"), uci("a1a8"), {}} {
		res, err := env.engine.Dispatch(ctx, "s1", chess, 0, a)
		if err != nil {
			t.Fatalf("dispatch after gameover: %v", err)
		}
		if res.Illegal || res.Wrong || !res.Gameover || res.Position != won.Position {
			t.Fatalf("terminal state should be returned unchanged: %+v", res)
		}
	}
	if after := env.snapshot(t, "s1", chess); string(before) != string(after) {
		t.Fatalf("gameover dispatch mutated state")
	}
	env.engine.Wait()
	if env.sink.count() != 1 {
		t.Fatalf("result should be recorded once, got %d", env.sink.count())
	}
}

func TestMaxMistakesEndsPuzzle(t *testing.T) {
	env := newTestEnv(t, HouseExplicit, genBackRank, puzzle.Options{ChessMaxMistakes: 2})
	ctx := context.Background()
	env.engine.Start(ctx, "s1", chess)

	res, _ := env.engine.Dispatch(ctx, "s1", chess, 0, uci("a1a2"))
	if !res.Wrong || res.Gameover {
		t.Fatalf("first mistake: %+v", res)
	}
	res, _ = env.engine.Dispatch(ctx, "s1", chess, 0, uci("a1b1"))
	if !res.Wrong || !res.Gameover || res.Result != domain.GameResultLost || res.Mistakes != 2 {
		t.Fatalf("second mistake should lose: %+v", res)
	}
}

func TestMinesweeperMineLosesAndReveals(t *testing.T) {
	env := newTestEnv(t, HouseExplicit, 5, puzzle.Options{})
	ctx := context.Background()
	st, err := env.engine.Start(ctx, "s1", domain.GameTypeMinesweeper)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	var last *domain.DispatchResult
	for cell := 0; cell < puzzle.MinesweeperCells; cell++ {
		res, err := env.engine.Dispatch(ctx, "s1", domain.GameTypeMinesweeper, st.Epoch, domain.Action{To: puzzle.CellName(cell)})
		if err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		last = res
		if res.Gameover {
			break
		}
	}
	if !last.Gameover {
		t.Fatalf("sweeping every cell must end the game")
	}
	if last.Result == domain.GameResultLost {
		if !last.Wrong || last.Mistakes != 1 {
			t.Fatalf("mine hit should be a wrong move: %+v", last)
		}
		mines := 0
		for _, c := range last.Position {
			if c == '*' {
				mines++
			}
		}
		if mines != 10 {
			t.Fatalf("finished board should reveal 10 mines, got %d", mines)
		}
	}
}

func TestConcurrentDispatchAppliesOnce(t *testing.T) {
	env := newTestEnv(t, HouseExplicit, genBackRank, puzzle.Options{})
	ctx := context.Background()
	env.engine.Start(ctx, "s1", chess)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.engine.Dispatch(ctx, "s1", chess, 0, uci("a1a8")); err != nil {
				t.Errorf("dispatch: %v", err)
			}
		}()
	}
	wg.Wait()
	env.engine.Wait()

	st, _ := env.store.Get(ctx, store.PuzzleKey{SessionID: "s1", Game: chess})
	if len(st.Moves) != 1 || st.Score != 1 {
		t.Fatalf("move applied more than once: %+v", st)
	}
	if env.sink.count() != 1 {
		t.Fatalf("expected one result, got %d", env.sink.count())
	}
	if n := env.engine.locks.size(); n != 0 {
		t.Fatalf("lock table should drain, has %d", n)
	}
}

func TestEpochsNeverDecrease(t *testing.T) {
	env := newTestEnv(t, HouseAuto, genScholars, puzzle.Options{})
	ctx := context.Background()
	e := env.engine

	st, _ := e.Start(ctx, "s1", chess)
	epoch := st.Epoch
	steps := []func() (int64, error){
		func() (int64, error) { r, err := e.Dispatch(ctx, "s1", chess, epoch, uci("d1h5")); return epochOf(r, err) },
		func() (int64, error) { r, err := e.Reset(ctx, "s1", chess); return stateEpoch(r, err) },
		func() (int64, error) { r, err := e.Dispatch(ctx, "s1", chess, epoch, uci("d1f3")); return epochOf(r, err) },
		func() (int64, error) { r, err := e.Start(ctx, "s1", chess); return stateEpoch(r, err) },
		func() (int64, error) { r, err := e.Reset(ctx, "s1", chess); return stateEpoch(r, err) },
	}
	for i, step := range steps {
		got, err := step()
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got < epoch {
			t.Fatalf("step %d: epoch went from %d to %d", i, epoch, got)
		}
		epoch = got
	}
	if epoch != 2 {
		t.Fatalf("expected two resets, epoch=%d", epoch)
	}
}

func epochOf(r *domain.DispatchResult, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return r.Epoch, nil
}

func stateEpoch(st *domain.PuzzleState, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return st.Epoch, nil
}

func TestDropSession(t *testing.T) {
	env := newTestEnv(t, HouseExplicit, 0, puzzle.Options{})
	ctx := context.Background()
	env.engine.Start(ctx, "s1", chess)
	env.engine.Start(ctx, "s1", domain.GameTypeMinesweeper)
	env.engine.Start(ctx, "s2", chess)

	if err := env.engine.DropSession(ctx, "s1"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if _, ok, _ := env.engine.CurrentEpoch(ctx, "s1", chess); ok {
		t.Fatalf("s1 chess should be gone")
	}
	if _, ok, _ := env.engine.CurrentEpoch(ctx, "s2", chess); !ok {
		t.Fatalf("s2 must survive")
	}
}

func TestStartForDestroyedSessionLeavesNothing(t *testing.T) {
	reg, _ := puzzle.NewDefaultRegistry(puzzle.Options{MinesweeperMines: 10})
	sessions := store.NewMemorySessionStore()
	puzzles := store.NewMemoryPuzzleStore()
	e := NewEngine(reg, puzzles, Options{Sessions: sessions})
	ctx := context.Background()

	sessions.Create(ctx, &domain.Session{ID: "s1", UserID: "u1"})
	if _, err := e.Start(ctx, "s1", chess); err != nil {
		t.Fatalf("start: %v", err)
	}

	// destroy: record first, then the cascade
	sessions.Delete(ctx, "s1")
	if err := e.DropSession(ctx, "s1"); err != nil {
		t.Fatalf("drop: %v", err)
	}

	// requests that passed auth before the destroy
	if _, err := e.Start(ctx, "s1", chess); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("start after destroy: expected ErrSessionExpired, got %v", err)
	}
	if _, err := e.Reset(ctx, "s1", domain.GameTypeMinesweeper); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("reset after destroy: expected ErrSessionExpired, got %v", err)
	}
	keys, _ := puzzles.Keys(ctx)
	if len(keys) != 0 {
		t.Fatalf("puzzle state outlived its session: %v", keys)
	}
}

type failingStore struct {
	*store.MemoryPuzzleStore
	fail bool
}

func (f *failingStore) Put(ctx context.Context, key store.PuzzleKey, st *domain.PuzzleState) error {
	if f.fail {
		return errors.New("store down")
	}
	return f.MemoryPuzzleStore.Put(ctx, key, st)
}

func TestStoreFailureIsAnError(t *testing.T) {
	reg, _ := puzzle.NewDefaultRegistry(puzzle.Options{MinesweeperMines: 10})
	fs := &failingStore{MemoryPuzzleStore: store.NewMemoryPuzzleStore()}
	e := NewEngine(reg, fs, Options{})
	ctx := context.Background()
	e.Start(ctx, "s1", chess)

	fs.fail = true
	if _, err := e.Dispatch(ctx, "s1", chess, 0, uci("a1a8")); err == nil || domain.IsConflict(err) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
	fs.fail = false
	if ep, ok, _ := e.CurrentEpoch(ctx, "s1", chess); !ok || ep != 0 {
		t.Fatalf("failed dispatch must not change the epoch")
	}
}
