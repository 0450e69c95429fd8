package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"puzzle_webapp/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort     string
	DatabaseURL string // пусто = без Postgres, история и статистика в памяти
	BotToken    string
	JWTSecret   string
	DevMode     bool

	AdminTelegramIDs []int64 // добавить в env tg id админов бота
	AdminBotEnabled  bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Sessions
	SessionTTL   time.Duration
	Heartbeat    time.Duration
	ReapInterval time.Duration

	// Puzzle rotation
	RotationHour   int
	RotationPeriod time.Duration

	HouseTurnMode    string // explicit | auto
	ChessMaxMistakes int
	MinesweeperMines int

	// Rate limits
	APIRateLimit   int
	APIRateWindow  time.Duration
	AuthRateLimit  int
	AuthRateWindow time.Duration
	GameRateLimit  int
	GameRateWindow time.Duration

	AllowedOrigin string
	LogLevel      string
	LogJSON       bool
}

// Загрузка конфига из env
func Load() *Config {
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	devMode := os.Getenv("DEV_MODE") == "true"

	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" && !devMode {
		logger.Fatal("BOT_TOKEN is not set")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	var adminIDs []int64
	adminIDsStr := os.Getenv("ADMIN_TELEGRAM_IDS")
	if adminIDsStr != "" {
		for _, idStr := range strings.Split(adminIDsStr, ",") {
			idStr = strings.TrimSpace(idStr)
			if id, err := strconv.ParseInt(idStr, 10, 64); err == nil {
				adminIDs = append(adminIDs, id)
			}
		}
	}

	houseMode := strings.ToLower(os.Getenv("HOUSE_TURN_MODE"))
	if houseMode != "auto" {
		houseMode = "explicit"
	}

	cfg := &Config{
		AppPort:       port,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		BotToken:      botToken,
		JWTSecret:     jwtSecret,
		DevMode:       devMode,

		AdminTelegramIDs: adminIDs,
		AdminBotEnabled:  os.Getenv("ADMIN_BOT_ENABLED") == "true",

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       intEnv("REDIS_DB", 0, 0),

		SessionTTL:   secondsEnv("SESSION_TTL_SECONDS", 300),
		Heartbeat:    secondsEnv("HEARTBEAT_SECONDS", 25),
		ReapInterval: secondsEnv("REAP_INTERVAL_SECONDS", 30),

		RotationHour:   intEnv("ROTATION_HOUR", 0, 0),
		RotationPeriod: secondsEnv("ROTATION_PERIOD_SECONDS", 86400),

		HouseTurnMode:    houseMode,
		ChessMaxMistakes: intEnv("CHESS_MAX_MISTAKES", 0, 0),
		MinesweeperMines: intEnv("MINESWEEPER_MINES", 10, 1),

		APIRateLimit:   intEnv("API_RATE_LIMIT", 120, 1),
		APIRateWindow:  secondsEnv("API_RATE_WINDOW_SECONDS", 60),
		AuthRateLimit:  intEnv("AUTH_RATE_LIMIT", 10, 1),
		AuthRateWindow: secondsEnv("AUTH_RATE_WINDOW_SECONDS", 60),
		GameRateLimit:  intEnv("GAME_RATE_LIMIT", 120, 1), // макс действий за ->
		GameRateWindow: secondsEnv("GAME_RATE_WINDOW", 60), // -> 60 секунд

		AllowedOrigin: os.Getenv("ALLOWED_ORIGIN"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		LogJSON:       os.Getenv("LOG_JSON") == "true",
	}

	if cfg.RotationHour > 23 {
		logger.Fatal("ROTATION_HOUR must be between 0 and 23", "value", cfg.RotationHour)
	}
	if cfg.ReapInterval >= cfg.SessionTTL {
		logger.Warn("REAP_INTERVAL_SECONDS should be well below SESSION_TTL_SECONDS",
			"reap", cfg.ReapInterval.String(), "ttl", cfg.SessionTTL.String())
	}
	if cfg.Heartbeat >= cfg.SessionTTL {
		logger.Warn("HEARTBEAT_SECONDS should be below SESSION_TTL_SECONDS",
			"heartbeat", cfg.Heartbeat.String(), "ttl", cfg.SessionTTL.String())
	}

	return cfg
}

// intEnv reads a non-negative integer, falling back to def when the value is
// missing, malformed or below atLeast.
func intEnv(key string, def, atLeast int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < atLeast {
		logger.Warn("ignoring invalid env value", "key", key, "value", v)
		return def
	}
	return n
}

func secondsEnv(key string, def int) time.Duration {
	return time.Duration(intEnv(key, def, 1)) * time.Second
}
