package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"puzzle_webapp/internal/domain"
)

// TransportError is any failure that is neither a conflict nor an expired
// session. The request may or may not have been applied, so callers must
// not retry it blindly.
type TransportError struct {
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return "transport: " + e.Err.Error()
	}
	return fmt.Sprintf("transport: status %d: %s", e.Status, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SessionInfo is the server's answer to session creation.
type SessionInfo struct {
	SessionID         string `json:"session_id"`
	UserID            string `json:"user_id"`
	ExpiresIn         int    `json:"expires_in"`
	HeartbeatInterval int    `json:"heartbeat_interval"`
}

// API is the HTTP transport for the session and game endpoints. It keeps
// the session cookie in a jar and mirrors the id into X-Session-ID for
// hosts that drop third-party cookies. It never retries.
type API struct {
	base   *url.URL
	client *http.Client

	mu        sync.RWMutex
	sessionID string
}

func NewAPI(baseURL string, client *http.Client) (*API, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if client == nil {
		client = &http.Client{}
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		client.Jar = jar
	}
	return &API{base: base, client: client}, nil
}

func (a *API) SessionID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sessionID
}

func (a *API) setSessionID(id string) {
	a.mu.Lock()
	a.sessionID = id
	a.mu.Unlock()
}

func (a *API) CreateSession(ctx context.Context, identity string) (*SessionInfo, error) {
	var info SessionInfo
	if err := a.do(ctx, http.MethodPost, "/api/session", map[string]string{"identity": identity}, &info); err != nil {
		return nil, err
	}
	a.setSessionID(info.SessionID)
	return &info, nil
}

func (a *API) Heartbeat(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/api/session/heartbeat", nil, nil)
}

func (a *API) DestroySession(ctx context.Context) error {
	err := a.do(ctx, http.MethodDelete, "/api/session", nil, nil)
	a.setSessionID("")
	return err
}

func (a *API) Start(ctx context.Context, game domain.GameType) (*domain.PuzzleState, error) {
	var st domain.PuzzleState
	if err := a.do(ctx, http.MethodPost, gamePath(game, "start"), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (a *API) Reset(ctx context.Context, game domain.GameType) (*domain.PuzzleState, error) {
	var st domain.PuzzleState
	if err := a.do(ctx, http.MethodPost, gamePath(game, "reset"), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

type stateRef struct {
	Epoch int64 `json:"epoch"`
}

func (a *API) Update(ctx context.Context, game domain.GameType, epoch int64, action domain.Action) (*domain.DispatchResult, error) {
	body := struct {
		State  stateRef      `json:"state"`
		Action domain.Action `json:"action"`
	}{stateRef{epoch}, action}

	var res domain.DispatchResult
	if err := a.do(ctx, http.MethodPost, gamePath(game, "update"), body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *API) HouseTurn(ctx context.Context, game domain.GameType, epoch int64) (*domain.DispatchResult, error) {
	body := struct {
		State stateRef `json:"state"`
	}{stateRef{epoch}}

	var res domain.DispatchResult
	if err := a.do(ctx, http.MethodPost, gamePath(game, "house_turn"), body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func gamePath(game domain.GameType, op string) string {
	return "/games/" + url.PathEscape(string(game)) + "/" + op
}

func (a *API) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base.String()+path, body)
	if err != nil {
		return &TransportError{Err: err}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := a.SessionID(); id != "" {
		req.Header.Set("X-Session-ID", id)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &TransportError{Status: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusConflict:
		var c struct {
			CurrentEpoch int64 `json:"current_epoch"`
			Started      bool  `json:"started"`
		}
		_ = json.Unmarshal(raw, &c)
		return &domain.ConflictError{CurrentEpoch: c.CurrentEpoch, Started: c.Started}
	case resp.StatusCode == http.StatusUnauthorized:
		return domain.ErrSessionExpired
	case resp.StatusCode == http.StatusBadRequest && bytes.Contains(raw, []byte(`"identity_invalid"`)):
		return domain.ErrIdentityInvalid
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &TransportError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &TransportError{Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
