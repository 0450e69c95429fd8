package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"strings"
	"time"

	"puzzle_webapp/internal/client"
	"puzzle_webapp/internal/domain"
	"puzzle_webapp/internal/logger"
	"puzzle_webapp/internal/service"

	"github.com/joho/godotenv"
)

// Plays a few moves against a running server through the client façade and
// prints every notice pushed over /ws.
func main() {
	_ = godotenv.Load()

	baseURL := flag.String("url", "http://127.0.0.1:8080", "server base url")
	game := flag.String("game", string(domain.GameTypeChessPuzzle), "game type")
	moves := flag.String("moves", "", "comma separated moves in UCI or cell form")
	userID := flag.String("user", "3001", "user id")
	flag.Parse()

	api, err := client.NewAPI(*baseURL, &http.Client{Timeout: 10 * time.Second})
	if err != nil {
		logger.Fatal("bad url", "error", err)
	}

	identity := func(context.Context) (string, error) {
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			// dev mode servers accept a bare user id
			return *userID, nil
		}
		svc, err := service.NewIdentityService(secret, time.Hour, false)
		if err != nil {
			return "", err
		}
		return svc.Issue(*userID, "smoke")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	lifecycle := client.NewLifecycle(api, identity, 5*time.Second)
	info, err := lifecycle.Start(ctx)
	if err != nil {
		logger.Fatal("create session", "error", err)
	}
	defer lifecycle.Stop(context.Background())
	logger.Info("session opened", "user_id", info.UserID, "expires_in", info.ExpiresIn)

	facade := client.NewFacade(api, lifecycle, domain.GameType(*game), true)

	go func() {
		w := client.NewWatcher(*baseURL, api.SessionID())
		err := w.Run(ctx, func(n client.Notice) {
			logger.Info("notice", "type", n.Type, "game", n.Game, "epoch", n.Epoch)
			facade.OnNotice(n)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("watcher stopped", "error", err)
		}
	}()

	st, err := facade.Load(ctx)
	if err != nil {
		logger.Fatal("start", "error", err)
	}
	logger.Info("puzzle", "content", st.ContentID, "epoch", st.Epoch, "position", st.Position)

	for _, m := range strings.Split(*moves, ",") {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		res, err := facade.Move(ctx, actionFor(m))
		if errors.Is(err, client.ErrResetRequired) || domain.IsConflict(err) {
			logger.Warn("puzzle changed under us, restarting", "error", err)
			if st, err = facade.Restart(ctx); err != nil {
				logger.Fatal("restart", "error", err)
			}
			logger.Info("puzzle", "content", st.ContentID, "epoch", st.Epoch)
			continue
		}
		if err != nil {
			logger.Fatal("move", "move", m, "error", err)
		}
		logger.Info("move", "move", m, "illegal", res.Illegal, "wrong", res.Wrong,
			"house", res.HouseMove, "gameover", res.Gameover, "result", res.Result)
		if res.Gameover {
			break
		}
	}
}

// actionFor accepts UCI for board games and a bare cell name otherwise.
func actionFor(m string) domain.Action {
	if len(m) >= 4 {
		return domain.Action{UCI: m}
	}
	return domain.Action{To: m}
}
