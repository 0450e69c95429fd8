package client

import (
	"context"
	"errors"
	"sync"

	"puzzle_webapp/internal/domain"
)

var (
	// ErrResetRequired blocks moves until Restart re-synchronises the epoch.
	ErrResetRequired = errors.New("reset required")
	// ErrBusy means a previous action has not resolved yet.
	ErrBusy = errors.New("action in flight")
)

// GameAPI is the game half of the transport.
type GameAPI interface {
	Start(ctx context.Context, game domain.GameType) (*domain.PuzzleState, error)
	Reset(ctx context.Context, game domain.GameType) (*domain.PuzzleState, error)
	Update(ctx context.Context, game domain.GameType, epoch int64, action domain.Action) (*domain.DispatchResult, error)
	HouseTurn(ctx context.Context, game domain.GameType, epoch int64) (*domain.DispatchResult, error)
}

// Recreator re-opens an expired session.
type Recreator interface {
	Recreate(ctx context.Context) error
}

// Facade is the client's view of one game. The model it holds is only ever
// replaced by a server response; the only local state it keeps is the
// transient selection.
type Facade struct {
	api        GameAPI
	sessions   Recreator
	game       domain.GameType
	houseTurns bool

	mu            sync.Mutex
	model         *domain.PuzzleState
	resetRequired bool
	busy          bool
	selection     string
}

// NewFacade builds a façade. sessions may be nil, in which case an expired
// session is surfaced instead of re-created.
func NewFacade(api GameAPI, sessions Recreator, game domain.GameType, houseTurns bool) *Facade {
	return &Facade{api: api, sessions: sessions, game: game, houseTurns: houseTurns}
}

func (f *Facade) Game() domain.GameType { return f.game }

// Model returns a copy of the last authoritative state.
func (f *Facade) Model() (domain.PuzzleState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.model == nil {
		return domain.PuzzleState{}, false
	}
	return f.model.Clone(), true
}

func (f *Facade) ResetRequired() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resetRequired
}

func (f *Facade) Select(square string) {
	f.mu.Lock()
	f.selection = square
	f.mu.Unlock()
}

func (f *Facade) Selection() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selection
}

// Load binds the façade to the server's current puzzle.
func (f *Facade) Load(ctx context.Context) (*domain.PuzzleState, error) {
	return f.sync(ctx, f.api.Start)
}

// Restart throws the current puzzle away and starts over. It is the only
// way out of the reset-required state.
func (f *Facade) Restart(ctx context.Context) (*domain.PuzzleState, error) {
	return f.sync(ctx, f.api.Reset)
}

func (f *Facade) sync(ctx context.Context, call func(context.Context, domain.GameType) (*domain.PuzzleState, error)) (*domain.PuzzleState, error) {
	if err := f.acquire(false); err != nil {
		return nil, err
	}
	defer f.release()

	st, err := call(ctx, f.game)
	if errors.Is(err, domain.ErrSessionExpired) && f.sessions != nil {
		if err = f.sessions.Recreate(ctx); err != nil {
			return nil, err
		}
		st, err = call(ctx, f.game)
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.model = st
	f.resetRequired = false
	f.selection = ""
	f.mu.Unlock()
	out := st.Clone()
	return &out, nil
}

// Move submits one complete action. A conflict or an expired session puts
// the façade into reset-required; transport errors are returned as-is and
// never retried.
func (f *Facade) Move(ctx context.Context, action domain.Action) (*domain.DispatchResult, error) {
	if err := f.acquire(true); err != nil {
		return nil, err
	}
	defer f.release()

	f.mu.Lock()
	model := f.model.Clone()
	f.mu.Unlock()

	if model.Gameover {
		return &domain.DispatchResult{PuzzleState: model}, nil
	}

	res, err := f.api.Update(ctx, f.game, model.Epoch, action)
	if err != nil {
		f.fail(err)
		return nil, err
	}
	if res.Epoch != model.Epoch {
		f.requireReset()
		return nil, ErrResetRequired
	}
	f.commit(&res.PuzzleState)

	if !f.houseTurns || res.Illegal || res.Wrong || res.Gameover || !res.HousePending {
		return res, nil
	}

	house, err := f.api.HouseTurn(ctx, f.game, model.Epoch)
	if err != nil {
		f.fail(err)
		return nil, err
	}
	if house.Epoch != model.Epoch {
		f.requireReset()
		return nil, ErrResetRequired
	}
	f.commit(&house.PuzzleState)
	return house, nil
}

// OnNotice applies a server push. A rotation of this game to another epoch
// or an expired session means the held model is stale.
func (f *Facade) OnNotice(n Notice) {
	switch n.Type {
	case NoticeRotated:
		if n.Game != f.game {
			return
		}
		f.mu.Lock()
		if f.model != nil && f.model.Epoch != n.Epoch {
			f.resetRequired = true
		}
		f.mu.Unlock()
	case NoticeExpired:
		f.requireReset()
	}
}

func (f *Facade) acquire(needModel bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return ErrBusy
	}
	if needModel && (f.resetRequired || f.model == nil) {
		return ErrResetRequired
	}
	f.busy = true
	return nil
}

func (f *Facade) release() {
	f.mu.Lock()
	f.busy = false
	f.mu.Unlock()
}

func (f *Facade) commit(st *domain.PuzzleState) {
	f.mu.Lock()
	f.model = st
	f.selection = ""
	f.mu.Unlock()
}

func (f *Facade) fail(err error) {
	if domain.IsConflict(err) || errors.Is(err, domain.ErrSessionExpired) {
		f.requireReset()
	}
}

func (f *Facade) requireReset() {
	f.mu.Lock()
	f.resetRequired = true
	f.selection = ""
	f.mu.Unlock()
}
