package client

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"puzzle_webapp/internal/domain"
	"puzzle_webapp/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	NoticeReady   = "ready"
	NoticeRotated = "rotated"
	NoticeExpired = "expired"
)

// Notice is a server push received over /ws.
type Notice struct {
	Type  string          `json:"type"`
	Game  domain.GameType `json:"game,omitempty"`
	Epoch int64           `json:"epoch,omitempty"`
}

// Watcher subscribes to the notice socket of one session.
type Watcher struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
}

func NewWatcher(baseURL, sessionID string) *Watcher {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	h := http.Header{}
	h.Set("X-Session-ID", sessionID)
	return &Watcher{url: u + "/ws", header: h, dialer: websocket.DefaultDialer}
}

// Run delivers notices to fn until ctx is done or the server closes the
// socket. Pings are answered by the default handler, which keeps the
// session alive while the socket is open.
func (w *Watcher) Run(ctx context.Context, fn func(Notice)) error {
	conn, _, err := w.dialer.DialContext(ctx, w.url, w.header)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return &TransportError{Err: err}
		}
		var n Notice
		if err := json.Unmarshal(msg, &n); err != nil {
			logger.Debug("ignoring malformed notice", "error", err)
			continue
		}
		fn(n)
		if n.Type == NoticeExpired {
			return nil
		}
	}
}
