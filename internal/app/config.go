package app

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds all process settings, built once at startup and treated as
// immutable afterwards. Constructors receive it explicitly instead of
// reading the environment themselves.
type Config struct {
	SpreadsheetIDs  []string
	CredentialsFile string
	WorksheetName   string

	BaseURL        string
	Backend        string // chromedp, static or hybrid
	Headless       bool
	BrowserTimeout time.Duration
	ChallengeWait  time.Duration
	MaxPosition    int
	UserDataDir    string
	CookiesFile    string
	ProxyURL       string
	GeoCity        string

	RunInterval time.Duration

	TelegramToken  string
	TelegramChatID string

	RuCaptchaKey     string
	CaptchaSolveWait time.Duration
}

// Load reads .env, configures zerolog and builds the Config. Missing
// required settings are fatal.
func Load() *Config {
	setupEnvironment()

	cfg := &Config{
		SpreadsheetIDs:   splitIDs(getRequiredEnv("GOOGLE_SPREADSHEET_IDS")),
		CredentialsFile:  getEnvWithDefault("GOOGLE_CREDENTIALS_PATH", "credentials.json"),
		WorksheetName:    getEnvWithDefault("WORKSHEET_NAME", "Позиции"),
		BaseURL:          getEnvWithDefault("BASE_URL", "https://www.ozon.ru"),
		Backend:          getEnvWithDefault("PARSER_BACKEND", "chromedp"),
		Headless:         getEnvWithDefault("BROWSER_HEADLESS", "true") == "true",
		BrowserTimeout:   getDurationEnv("BROWSER_TIMEOUT", 30*time.Second),
		ChallengeWait:    getDurationEnv("CHALLENGE_WAIT", 60*time.Second),
		MaxPosition:      getIntEnv("MAX_POSITION", 1000),
		UserDataDir:      getEnvWithDefault("USER_DATA_DIR", defaultUserDataDir()),
		CookiesFile:      getEnvWithDefault("COOKIES_FILE", "cookies.json"),
		ProxyURL:         os.Getenv("PROXY_URL"),
		GeoCity:          getEnvWithDefault("GEO_CITY", "Москва"),
		RunInterval:      getDurationEnv("RUN_INTERVAL", 2*time.Hour),
		TelegramToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		RuCaptchaKey:     os.Getenv("RUCAPTCHA_API_KEY"),
		CaptchaSolveWait: getDurationEnv("CAPTCHA_SOLVE_WAIT", 120*time.Second),
	}

	if _, err := os.Stat(cfg.CredentialsFile); err != nil {
		log.Fatal().Str("path", cfg.CredentialsFile).Msg("Google credentials file not found")
	}

	switch cfg.Backend {
	case "chromedp", "static", "hybrid":
	default:
		log.Fatal().Str("backend", cfg.Backend).Msg("Unknown PARSER_BACKEND (want chromedp, static or hybrid)")
	}

	return cfg
}

// setupEnvironment loads .env and configures zerolog output and log level.
// Every run also gets its own log file under logs/, teed with the console.
func setupEnvironment() {
	// Load .env file if it exists
	err := godotenv.Load()

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if os.Getenv("ENV") == "production" {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	if runLog := openRunLog(); runLog != nil {
		log.Logger = log.Output(zerolog.MultiLevelWriter(console, runLog))
	} else {
		log.Logger = log.Output(console)
	}

	levelStr := strings.ToLower(os.Getenv("LOGLEVEL"))
	switch levelStr {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "disabled":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	case "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Warn().Msgf("Unknown LOGLEVEL '%s', defaulting to info.", levelStr)
	}

	// wait until now to report on the .env file so we have the chance to set up logging first
	if err == nil {
		log.Debug().Msg("Loaded environment variables from .env file.")
	} else {
		log.Debug().Msg("No .env file found; proceeding with existing environment variables.")
	}
}

func openRunLog() *os.File {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return nil
	}
	name := filepath.Join("logs", "run-"+time.Now().Format("20060102-150405")+".log")
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil
	}
	return f
}

func defaultUserDataDir() string {
	base, err := os.UserHomeDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, ".local", "share", "ozon-parser", "chromium-profile")
}

func splitIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		log.Fatal().Msg("GOOGLE_SPREADSHEET_IDS contains no spreadsheet IDs")
	}
	return ids
}

// getRequiredEnv fetches a required environment variable or exits if not set.
func getRequiredEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatal().Msgf("%s environment variable is required", key)
	}
	return value
}

// getEnvWithDefault fetches an environment variable with a default fallback.
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntEnv(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("Not an integer, using default")
		return defaultValue
	}
	return value
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("Not a duration, using default")
		return defaultValue
	}
	return value
}
