package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"puzzle_webapp/internal/domain"
	"puzzle_webapp/internal/logger"
	"puzzle_webapp/internal/metrics"
	"puzzle_webapp/internal/puzzle"
	"puzzle_webapp/internal/store"
)

// HouseMode selects who triggers the automated counter-move.
type HouseMode string

const (
	// HouseExplicit waits for a separate house_turn request.
	HouseExplicit HouseMode = "explicit"
	// HouseAuto plays the counter-move inside the dispatch that earned it.
	HouseAuto HouseMode = "auto"
)

// ResultSink receives every puzzle that reaches game over.
type ResultSink interface {
	Record(ctx context.Context, sessionID string, st domain.PuzzleState) error
}

// SessionChecker reports whether a session record still exists. A missing
// record yields store.ErrSessionNotFound.
type SessionChecker interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
}

type Options struct {
	HouseMode HouseMode
	// Sessions, when set, keeps Start and Reset from creating puzzles for
	// sessions that were destroyed while the request was in flight.
	Sessions SessionChecker
	// Generation maps wall time to the content rotation generation.
	Generation func(time.Time) int64
	Now        func() time.Time
	Sink       ResultSink
}

// Rotated describes a puzzle replaced by RotateAll.
type Rotated struct {
	Key   store.PuzzleKey
	Epoch int64
}

// Engine owns every read-check-mutate of puzzle state. All operations on
// one (session, game) key run under that key's lock.
type Engine struct {
	games      *puzzle.Registry
	store      store.PuzzleStore
	locks      *keyedMutex
	houseMode  HouseMode
	generation func(time.Time) int64
	now        func() time.Time
	sink       ResultSink
	sessions   SessionChecker
	recording  sync.WaitGroup
}

func NewEngine(games *puzzle.Registry, st store.PuzzleStore, opts Options) *Engine {
	e := &Engine{
		games:      games,
		store:      st,
		locks:      newKeyedMutex(),
		houseMode:  opts.HouseMode,
		generation: opts.Generation,
		now:        opts.Now,
		sink:       opts.Sink,
		sessions:   opts.Sessions,
	}
	if e.houseMode == "" {
		e.houseMode = HouseExplicit
	}
	if e.generation == nil {
		e.generation = func(time.Time) int64 { return 0 }
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

func (e *Engine) HouseMode() HouseMode { return e.houseMode }

func (e *Engine) Games() *puzzle.Registry { return e.games }

// Start returns the current puzzle, creating epoch 0 when there is none.
// A puzzle built from an older generation is rotated in place first.
func (e *Engine) Start(ctx context.Context, sessionID string, game domain.GameType) (*domain.PuzzleState, error) {
	g, err := e.games.Get(game)
	if err != nil {
		return nil, err
	}
	key := store.PuzzleKey{SessionID: sessionID, Game: game}
	unlock := e.locks.Lock(key.String())
	defer unlock()

	st, err := e.store.Get(ctx, key)
	if errors.Is(err, store.ErrPuzzleNotFound) {
		fresh, err := e.fresh(g, 0, e.generation(e.now()))
		if err != nil {
			return nil, err
		}
		if err := e.putOwned(ctx, key, fresh); err != nil {
			return nil, err
		}
		logger.Debug("puzzle started", "session", sessionID, "game", game, "content", fresh.ContentID)
		return fresh, nil
	}
	if err != nil {
		return nil, err
	}

	st, err = e.rotateIfStale(ctx, g, key, st)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Reset replaces the puzzle with a fresh one from the current generation
// and bumps the epoch (0 when nothing was stored).
func (e *Engine) Reset(ctx context.Context, sessionID string, game domain.GameType) (*domain.PuzzleState, error) {
	g, err := e.games.Get(game)
	if err != nil {
		return nil, err
	}
	key := store.PuzzleKey{SessionID: sessionID, Game: game}
	unlock := e.locks.Lock(key.String())
	defer unlock()

	epoch := int64(0)
	st, err := e.store.Get(ctx, key)
	switch {
	case err == nil:
		epoch = st.Epoch + 1
	case !errors.Is(err, store.ErrPuzzleNotFound):
		return nil, err
	}

	fresh, err := e.fresh(g, epoch, e.generation(e.now()))
	if err != nil {
		return nil, err
	}
	if err := e.putOwned(ctx, key, fresh); err != nil {
		return nil, err
	}
	if epoch > 0 {
		metrics.Rotations.WithLabelValues(string(game), "reset").Inc()
	}
	logger.Debug("puzzle reset", "session", sessionID, "game", game, "epoch", epoch)
	return fresh, nil
}

// CurrentEpoch reports the stored epoch; ok is false when nothing is stored.
func (e *Engine) CurrentEpoch(ctx context.Context, sessionID string, game domain.GameType) (int64, bool, error) {
	st, err := e.store.Get(ctx, store.PuzzleKey{SessionID: sessionID, Game: game})
	if errors.Is(err, store.ErrPuzzleNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return st.Epoch, true, nil
}

// Dispatch applies one player action against the epoch the client last saw.
// Illegal and wrong moves are results, not errors; a stale epoch is a
// *domain.ConflictError and leaves the stored puzzle untouched.
func (e *Engine) Dispatch(ctx context.Context, sessionID string, game domain.GameType, clientEpoch int64, action domain.Action) (*domain.DispatchResult, error) {
	g, err := e.games.Get(game)
	if err != nil {
		return nil, err
	}
	key := store.PuzzleKey{SessionID: sessionID, Game: game}
	unlock := e.locks.Lock(key.String())
	defer unlock()

	started := time.Now()
	defer func() {
		metrics.DispatchDuration.WithLabelValues(string(game)).Observe(time.Since(started).Seconds())
	}()

	res, outcome, err := e.dispatchLocked(ctx, g, key, clientEpoch, action.Normalize())
	metrics.Dispatches.WithLabelValues(string(game), outcome).Inc()
	if err != nil {
		if outcome == metrics.OutcomeError {
			logger.Warn("dispatch failed", "session", sessionID, "game", game, "error", err)
		}
		return nil, err
	}
	return res, nil
}

func (e *Engine) dispatchLocked(ctx context.Context, g puzzle.Game, key store.PuzzleKey, clientEpoch int64, a domain.Action) (*domain.DispatchResult, string, error) {
	st, err := e.store.Get(ctx, key)
	if errors.Is(err, store.ErrPuzzleNotFound) {
		return nil, metrics.OutcomeConflict, &domain.ConflictError{}
	}
	if err != nil {
		return nil, metrics.OutcomeError, err
	}

	st, err = e.rotateIfStale(ctx, g, key, st)
	if err != nil {
		return nil, metrics.OutcomeError, err
	}
	if clientEpoch != st.Epoch {
		return nil, metrics.OutcomeConflict, &domain.ConflictError{CurrentEpoch: st.Epoch, Started: true}
	}

	if st.Gameover {
		return &domain.DispatchResult{PuzzleState: *st}, metrics.OutcomeNoop, nil
	}
	// the counter-move is owed first
	if st.HousePending {
		return &domain.DispatchResult{PuzzleState: *st, Illegal: true}, metrics.OutcomeIllegal, nil
	}

	candidate, err := g.Apply(*st, a)
	if errors.Is(err, puzzle.ErrIllegal) {
		return &domain.DispatchResult{PuzzleState: *st, Illegal: true}, metrics.OutcomeIllegal, nil
	}
	if err != nil {
		return nil, metrics.OutcomeError, fmt.Errorf("oracle: %w", err)
	}

	v, err := g.Judge(*st, a, candidate)
	if err != nil {
		return nil, metrics.OutcomeError, fmt.Errorf("judge: %w", err)
	}

	rules := g.Rules()
	next := st.Clone()
	next.Score = v.Score
	res := &domain.DispatchResult{}

	if v.Correct {
		next.Position = v.Position
		next.Ply++
		next.Moves = append(next.Moves, a.String())
		if v.Terminal {
			finish(&next, v.Won)
		} else {
			next.HousePending = rules.HouseTurn
		}
	} else {
		res.Wrong = true
		next.Mistakes++
		if rules.Wrong == puzzle.WrongKeep {
			next.Position = v.Position
			next.Moves = append(next.Moves, a.String())
		}
		if rules.MaxMistakes > 0 && next.Mistakes >= rules.MaxMistakes {
			finish(&next, false)
		}
	}

	if next.HousePending && e.houseMode == HouseAuto {
		hm, err := e.applyHouse(g, &next)
		if err != nil {
			return nil, metrics.OutcomeError, err
		}
		res.HouseMove = hm
	}

	if next.Gameover {
		if f, ok := g.(puzzle.Finisher); ok {
			next.Position = f.Finish(next)
		}
	}
	next.UpdatedAt = e.now()

	if err := e.store.Put(ctx, key, &next); err != nil {
		return nil, metrics.OutcomeError, err
	}
	if next.Gameover {
		e.record(key.SessionID, next)
	}

	res.PuzzleState = next
	switch {
	case next.Gameover:
		return res, metrics.OutcomeGameover, nil
	case res.Wrong:
		return res, metrics.OutcomeWrong, nil
	default:
		return res, metrics.OutcomeAccepted, nil
	}
}

// HouseTurn plays the automated counter-move owed after a correct player
// move. With nothing owed it returns the stored state unchanged, so repeated
// calls are harmless. A non-nil expectEpoch is checked against the stored
// epoch under the key lock; nil skips the check.
func (e *Engine) HouseTurn(ctx context.Context, sessionID string, game domain.GameType, expectEpoch *int64) (*domain.DispatchResult, error) {
	g, err := e.games.Get(game)
	if err != nil {
		return nil, err
	}
	key := store.PuzzleKey{SessionID: sessionID, Game: game}
	unlock := e.locks.Lock(key.String())
	defer unlock()

	st, err := e.store.Get(ctx, key)
	if errors.Is(err, store.ErrPuzzleNotFound) {
		return nil, &domain.ConflictError{}
	}
	if err != nil {
		return nil, err
	}
	st, err = e.rotateIfStale(ctx, g, key, st)
	if err != nil {
		return nil, err
	}
	if expectEpoch != nil && *expectEpoch != st.Epoch {
		return nil, &domain.ConflictError{CurrentEpoch: st.Epoch, Started: true}
	}
	if !st.HousePending || st.Gameover {
		return &domain.DispatchResult{PuzzleState: *st}, nil
	}

	next := st.Clone()
	hm, err := e.applyHouse(g, &next)
	if err != nil {
		logger.Error("house turn failed", "session", sessionID, "game", game, "error", err)
		return nil, err
	}
	if next.Gameover {
		if f, ok := g.(puzzle.Finisher); ok {
			next.Position = f.Finish(next)
		}
	}
	next.UpdatedAt = e.now()
	if err := e.store.Put(ctx, key, &next); err != nil {
		return nil, err
	}
	if next.Gameover {
		e.record(sessionID, next)
	}
	return &domain.DispatchResult{PuzzleState: next, HouseMove: hm}, nil
}

// RotateAll moves every stored puzzle older than generation onto it.
func (e *Engine) RotateAll(ctx context.Context, generation int64) ([]Rotated, error) {
	keys, err := e.store.Keys(ctx)
	if err != nil {
		return nil, err
	}

	var out []Rotated
	for _, key := range keys {
		g, err := e.games.Get(key.Game)
		if err != nil {
			logger.Warn("skipping puzzle of unregistered game", "key", key.String())
			continue
		}
		r, ok, err := e.rotateKey(ctx, g, key, generation)
		if err != nil {
			return out, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (e *Engine) rotateKey(ctx context.Context, g puzzle.Game, key store.PuzzleKey, generation int64) (Rotated, bool, error) {
	unlock := e.locks.Lock(key.String())
	defer unlock()

	st, err := e.store.Get(ctx, key)
	if errors.Is(err, store.ErrPuzzleNotFound) {
		// dropped while we were scanning
		return Rotated{}, false, nil
	}
	if err != nil {
		return Rotated{}, false, err
	}
	if st.Generation >= generation {
		return Rotated{}, false, nil
	}
	fresh, err := e.fresh(g, st.Epoch+1, generation)
	if err != nil {
		return Rotated{}, false, err
	}
	if err := e.store.Put(ctx, key, fresh); err != nil {
		return Rotated{}, false, err
	}
	metrics.Rotations.WithLabelValues(string(key.Game), "rotation").Inc()
	return Rotated{Key: key, Epoch: fresh.Epoch}, true, nil
}

// DropSession deletes every puzzle a session owns.
func (e *Engine) DropSession(ctx context.Context, sessionID string) error {
	games, err := e.store.Games(ctx, sessionID)
	if err != nil {
		return err
	}
	var errs []error
	for _, game := range games {
		key := store.PuzzleKey{SessionID: sessionID, Game: game}
		unlock := e.locks.Lock(key.String())
		if err := e.store.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
		unlock()
	}
	return errors.Join(errs...)
}

// putOwned stores a newly created puzzle and then confirms its session still
// exists. The check follows the write so that a concurrent destroy either
// sees the key in its cascade or is seen here; in the latter case the
// puzzle is removed again. Caller holds the key lock.
func (e *Engine) putOwned(ctx context.Context, key store.PuzzleKey, st *domain.PuzzleState) error {
	if err := e.store.Put(ctx, key, st); err != nil {
		return err
	}
	if e.sessions == nil {
		return nil
	}
	_, err := e.sessions.Get(ctx, key.SessionID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrSessionNotFound) {
		return err
	}
	if derr := e.store.Delete(ctx, key); derr != nil {
		logger.Warn("failed to remove puzzle of destroyed session", "key", key.String(), "error", derr)
	}
	return domain.ErrSessionExpired
}

// Wait blocks until in-flight result recordings finish.
func (e *Engine) Wait() {
	e.recording.Wait()
}

func (e *Engine) rotateIfStale(ctx context.Context, g puzzle.Game, key store.PuzzleKey, st *domain.PuzzleState) (*domain.PuzzleState, error) {
	gen := e.generation(e.now())
	if st.Generation >= gen {
		return st, nil
	}
	fresh, err := e.fresh(g, st.Epoch+1, gen)
	if err != nil {
		return nil, err
	}
	if err := e.store.Put(ctx, key, fresh); err != nil {
		return nil, err
	}
	metrics.Rotations.WithLabelValues(string(key.Game), "rotation").Inc()
	logger.Debug("puzzle rotated", "key", key.String(), "generation", gen, "epoch", fresh.Epoch)
	return fresh, nil
}

func (e *Engine) fresh(g puzzle.Game, epoch, generation int64) (*domain.PuzzleState, error) {
	s, err := g.Setup(generation)
	if err != nil {
		return nil, fmt.Errorf("setup %s: %w", g.Type(), err)
	}
	return &domain.PuzzleState{
		Game:        g.Type(),
		Epoch:       epoch,
		ContentID:   s.ContentID,
		Generation:  generation,
		Position:    s.Position,
		Orientation: s.Orientation,
		Moves:       []string{},
		UpdatedAt:   e.now(),
	}, nil
}

func (e *Engine) applyHouse(g puzzle.Game, st *domain.PuzzleState) (string, error) {
	hm, err := g.House(*st)
	if err != nil {
		return "", fmt.Errorf("house turn: %w", err)
	}
	st.Position = hm.Position
	st.Ply++
	st.Moves = append(st.Moves, hm.Move)
	st.HousePending = false
	if hm.Terminal {
		finish(st, hm.Won)
	}
	metrics.HouseTurns.WithLabelValues(string(g.Type())).Inc()
	return hm.Move, nil
}

func (e *Engine) record(sessionID string, st domain.PuzzleState) {
	if e.sink == nil {
		return
	}
	e.recording.Add(1)
	go func() {
		defer e.recording.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.sink.Record(ctx, sessionID, st); err != nil {
			logger.Error("failed to record puzzle result", "session", sessionID, "game", st.Game, "error", err)
		}
	}()
}

func finish(st *domain.PuzzleState, won bool) {
	st.Gameover = true
	st.HousePending = false
	if won {
		st.Result = domain.GameResultWon
	} else {
		st.Result = domain.GameResultLost
	}
}
