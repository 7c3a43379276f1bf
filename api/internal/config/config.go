package config

import (
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port       string
	DSN        string
	UploadPath string

	OCREngine      string
	OCRConcurrency int
	OCRTimeout     time.Duration

	AzureEndpoint string
	AzureKey      string
	AzureModel    string

	YCOAuthToken string
	YCFolderID   string

	GeminiAPIKey string
	GeminiModel  string

	OpenAIAPIKey string
	OpenAIModel  string

	TesseractLangs []string

	ProfilesFile string

	TelegramBotToken string
	WebhookURL       string
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing required env %s", k)
	}
	return v
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	if v, err := strconv.Atoi(getEnv(k, "")); err == nil && v > 0 {
		return v
	}
	return def
}

func getDuration(k string, def time.Duration) time.Duration {
	v := getEnv(k, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	// голое число: секунды
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func getList(k, def string) []string {
	var out []string
	for _, s := range strings.Split(getEnv(k, def), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Load reads the service configuration from the environment.
func Load() *Config {
	return &Config{
		Port:       getEnv("PORT", "8000"),
		DSN:        ResolveDSN(),
		UploadPath: getEnv("UPLOAD_PATH", "./uploads"),

		OCREngine:      strings.ToLower(getEnv("OCR_ENGINE", "azure")),
		OCRConcurrency: getInt("OCR_CONCURRENCY", 4),
		OCRTimeout:     getDuration("OCR_TIMEOUT", 180*time.Second),

		AzureEndpoint: getEnv("AZURE_DI_ENDPOINT", ""),
		AzureKey:      getEnv("AZURE_DI_KEY", ""),
		AzureModel:    getEnv("AZURE_DI_MODEL", "prebuilt-layout"),

		YCOAuthToken: getEnv("YC_OAUTH_TOKEN", ""),
		YCFolderID:   getEnv("YC_FOLDER_ID", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o"),

		TesseractLangs: getList("TESSERACT_LANGS", "eng,deu"),

		ProfilesFile: getEnv("PROFILES_FILE", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
	}
}

// LoadBot is Load plus the settings the Telegram bot cannot run without.
func LoadBot() *Config {
	cfg := Load()
	cfg.TelegramBotToken = mustEnv("TELEGRAM_BOT_TOKEN")
	return cfg
}

// ResolveDSN prefers DATABASE_URL and falls back to POSTGRES_* / PG* vars.
func ResolveDSN() string {
	if v := getEnv("DATABASE_URL", ""); v != "" {
		return v
	}
	user := getEnv("POSTGRES_USER", "drawocr")
	pass := os.Getenv("POSTGRES_PASSWORD")
	host := getEnv("PGHOST", "db")
	port := getEnv("PGPORT", "5432")
	db := getEnv("POSTGRES_DB", "drawocr")

	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, pass),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + db,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
