package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"puzzle_webapp/internal/domain"
	"puzzle_webapp/internal/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Reporter is the read side of the result service.
type Reporter interface {
	Leaderboard(ctx context.Context, game domain.GameType, limit int) (int64, []domain.Ranking, error)
	DailyStats(ctx context.Context, game domain.GameType) (*domain.DailyStats, error)
}

// Rotator forces a rotation pass for the given generation.
type Rotator interface {
	RunOnce(ctx context.Context, generation int64) error
}

// Ops bundles what the bot reports on and acts upon.
type Ops struct {
	Reporter    Reporter
	Rotator     Rotator
	Generation  func(time.Time) int64
	Sessions    func(ctx context.Context) (int, error)
	Connections func() int
	Games       []domain.GameType
}

// AdminBot handles admin commands via Telegram
type AdminBot struct {
	bot      *tgbotapi.BotAPI
	ops      Ops
	adminIDs []int64 // Telegram user IDs who can use admin commands
	stopCh   chan struct{}
	wg       sync.WaitGroup
	log      *slog.Logger
}

// NewAdminBot creates a new admin bot
func NewAdminBot(token string, ops Ops, adminIDs []int64) (*AdminBot, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log := logger.With("component", "admin_bot")
	log.Info("admin bot authorized", "username", bot.Self.UserName)

	return newAdminBot(bot, ops, adminIDs, log), nil
}

func newAdminBot(bot *tgbotapi.BotAPI, ops Ops, adminIDs []int64, log *slog.Logger) *AdminBot {
	if ops.Generation == nil {
		ops.Generation = func(time.Time) int64 { return 0 }
	}
	return &AdminBot{
		bot:      bot,
		ops:      ops,
		adminIDs: adminIDs,
		stopCh:   make(chan struct{}),
		log:      log,
	}
}

// Start starts listening for commands
func (b *AdminBot) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.bot.GetUpdatesChan(u)
	b.log.Info("starting bot update loop")

	for {
		select {
		case <-b.stopCh:
			b.log.Info("stopping bot update loop")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}

			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}

			// Check if user is admin
			if update.Message.From == nil || !b.isAdmin(update.Message.From.ID) {
				continue
			}

			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				b.handleCommand(msg)
			}(update.Message)
		}
	}
}

// Stop gracefully stops the bot
func (b *AdminBot) Stop() {
	b.log.Info("stopping admin bot...")
	close(b.stopCh)
	b.bot.StopReceivingUpdates()

	// Wait for pending handlers with timeout
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("admin bot stopped gracefully")
	case <-time.After(10 * time.Second):
		b.log.Warn("admin bot shutdown timeout, some handlers may not have completed")
	}
}

// isAdmin checks if user is an admin
func (b *AdminBot) isAdmin(userID int64) bool {
	for _, id := range b.adminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (b *AdminBot) handleCommand(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reply := tgbotapi.NewMessage(msg.Chat.ID, b.respond(ctx, msg.Command(), msg.CommandArguments()))
	reply.ParseMode = "HTML"
	reply.ReplyToMessageID = msg.MessageID

	if _, err := b.bot.Send(reply); err != nil {
		b.log.Error("error sending message", "error", err)
	}
}

func (b *AdminBot) respond(ctx context.Context, command, args string) string {
	switch command {
	case "start", "help":
		return b.helpMessage()
	case "stats":
		return b.handleStats(ctx, args)
	case "top":
		return b.handleTop(ctx, args)
	case "sessions":
		return b.handleSessions(ctx)
	case "rotate":
		return b.handleRotate(ctx)
	default:
		return "❌ Неизвестная команда. Используйте /help для списка команд."
	}
}

func (b *AdminBot) helpMessage() string {
	return `<b>🤖 Команды администратора</b>

<b>📊 Статистика:</b>
/stats [игра] - Итоги последней ротации
/top [игра] [лимит] - Таблица текущей ротации
/sessions - Активные сессии и сокеты

<b>🔄 Ротация:</b>
/rotate - Принудительно перевести все головоломки на текущую ротацию`
}

// parseGame picks the game named in args, or the first registered one.
func (b *AdminBot) parseGame(args string) (domain.GameType, []string) {
	fields := strings.Fields(args)
	if len(fields) > 0 {
		for _, g := range b.ops.Games {
			if string(g) == fields[0] {
				return g, fields[1:]
			}
		}
	}
	if len(b.ops.Games) == 0 {
		return "", fields
	}
	return b.ops.Games[0], fields
}

func (b *AdminBot) handleStats(ctx context.Context, args string) string {
	game, _ := b.parseGame(args)
	st, err := b.ops.Reporter.DailyStats(ctx, game)
	if err != nil {
		return fmt.Sprintf("❌ Нет данных по %s: %v", game, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>📊 %s, ротация %d</b>\n\n", game, st.Generation))
	sb.WriteString(fmt.Sprintf("• Дата: %s\n", st.Date.UTC().Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("• Лучший результат: %d\n", st.MaxScore))
	sb.WriteString(fmt.Sprintf("• Серия: %d\n", st.Streak))
	sb.WriteString(fmt.Sprintf("• Игроков в таблице: %d\n", len(st.Rankings)))
	return sb.String()
}

func (b *AdminBot) handleTop(ctx context.Context, args string) string {
	game, rest := b.parseGame(args)
	limit := 10
	if len(rest) > 0 {
		if n, err := strconv.Atoi(rest[0]); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}

	gen, top, err := b.ops.Reporter.Leaderboard(ctx, game, limit)
	if err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	if len(top) == 0 {
		return fmt.Sprintf("❌ В ротации %d по %s ещё никто не играл", gen, game)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>🏆 %s, ротация %d</b>\n\n", game, gen))
	for i, r := range top {
		sb.WriteString(fmt.Sprintf("%d. %s — %d\n", i+1, r.UserID, r.Score))
	}
	return sb.String()
}

func (b *AdminBot) handleSessions(ctx context.Context) string {
	sessions := -1
	if b.ops.Sessions != nil {
		if n, err := b.ops.Sessions(ctx); err == nil {
			sessions = n
		}
	}
	conns := 0
	if b.ops.Connections != nil {
		conns = b.ops.Connections()
	}
	if sessions < 0 {
		return fmt.Sprintf("<b>👥 Сессии</b>\n\n• Сессий: недоступно\n• Сокетов: %d", conns)
	}
	return fmt.Sprintf("<b>👥 Сессии</b>\n\n• Сессий: %d\n• Сокетов: %d", sessions, conns)
}

func (b *AdminBot) handleRotate(ctx context.Context) string {
	if b.ops.Rotator == nil {
		return "❌ Ротация недоступна"
	}
	gen := b.ops.Generation(time.Now())
	if err := b.ops.Rotator.RunOnce(ctx, gen); err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	b.log.Info("manual rotation", "generation", gen)
	return fmt.Sprintf("✅ Ротация %d применена", gen)
}
