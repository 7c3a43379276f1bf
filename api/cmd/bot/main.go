package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"drawing-ocr/api/internal/config"
	"drawing-ocr/api/internal/extract"
	"drawing-ocr/api/internal/httpserver"
	"drawing-ocr/api/internal/logger"
	"drawing-ocr/api/internal/ocr"
	"drawing-ocr/api/internal/ocr/engines"
	"drawing-ocr/api/internal/store"
	"drawing-ocr/api/internal/telegram"
)

var Logger = logger.GetLogger("bot")

func fatal(msg string, err error) {
	Logger.Error(msg, "err", err)
	os.Exit(1)
}

func main() {
	cfg := config.LoadBot()
	ctx := context.Background()

	profiles, err := config.LoadProfiles(cfg.ProfilesFile)
	if err != nil {
		fatal("load profiles", err)
	}

	r := &telegram.Router{
		EngManager: ocr.NewManager(engines.FromConfig(cfg)),
		Profiles:   profiles,
		Pipe:       extract.New(cfg.OCRConcurrency, cfg.OCRTimeout),
		Cache:      extract.NewResultCache(64),
	}

	// --- Postgres: результаты сохраняем, если база доступна ---
	db, err := store.Open(ctx, cfg.DSN)
	if err != nil {
		Logger.Warn("results will not be persisted", "err", err)
	} else {
		defer db.Close()
		if err := store.Migrate(ctx, db); err != nil {
			fatal("migrate", err)
		}
		r.Results = store.NewResultRepo(db)
	}

	// --- Telegram bot ---
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		fatal("telegram", err)
	}
	bot.Debug = false
	r.Bot = bot

	// DefaultServeMux: ListenForWebhook регистрирует обработчик именно там
	http.HandleFunc("/healthz", healthz(db))

	addr := "0.0.0.0:" + cfg.Port

	// --- Choose mode: Webhook vs Polling ---
	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		startWebhookMode(ctx, addr, bot, r, webhookURL)
	} else {
		startPollingMode(ctx, addr, bot, r)
	}
}

func healthz(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// ---------------- Modes -----------------

func startWebhookMode(ctx context.Context, addr string, bot *tgbotapi.BotAPI, r *telegram.Router, baseURL string) {
	// секретный путь вебхука
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		fatal("webhook", err)
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		fatal("set webhook", err)
	}

	updates := bot.ListenForWebhook(path)
	go func() {
		for upd := range updates {
			r.HandleUpdate(upd)
		}
		Logger.Info("webhook updates channel closed")
	}()

	Logger.Info("webhook listening", "addr", addr, "path", path)
	if err := httpserver.ListenAndServe(ctx, addr, http.DefaultServeMux); err != nil {
		fatal("http server", err)
	}
}

func startPollingMode(ctx context.Context, addr string, bot *tgbotapi.BotAPI, r *telegram.Router) {
	// healthz нужен платформе и в режиме polling
	go func() {
		Logger.Info("health server listening", "addr", addr)
		if err := httpserver.ListenAndServe(ctx, addr, http.DefaultServeMux); err != nil {
			fatal("http server", err)
		}
	}()
	runPolling(ctx, bot, r.HandleUpdate)
}

// ---------------- Polling loop -----------------

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 от Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, handle func(tgbotapi.Update)) {
	offset := 0
	baseDelay := 1 * time.Second
	maxDelay := 15 * time.Second

	for {
		select {
		case <-ctx.Done():
			Logger.Info("polling: context cancelled")
			return
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30 // long polling timeout (sec)

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelayFromError(err), baseDelay), maxDelay)
			Logger.Warn("polling error", "err", err, "retry_in", d)
			time.Sleep(d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			// OCR идёт минутами: не держим цикл
			go handle(upd)
		}

		if len(updates) == 0 {
			time.Sleep(200 * time.Millisecond)
		}
	}
}

// ---------------- Helpers -----------------

func shortHash(s string) string {
	// FNV-1a: стабильный путь вебхука без утечки токена
	h := uint64(1469598103934665603)
	const prime = 1099511628211
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	return strconv.FormatUint(h|1<<63, 16)
}
