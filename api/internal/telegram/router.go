package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"drawing-ocr/api/internal/config"
	"drawing-ocr/api/internal/extract"
	"drawing-ocr/api/internal/logger"
	"drawing-ocr/api/internal/ocr"
	"drawing-ocr/api/internal/reconcile"
	"drawing-ocr/api/internal/source"
)

var Logger = logger.GetLogger("telegram")

// ResultSaver persists processed documents; nil disables persistence.
type ResultSaver interface {
	Upsert(ctx context.Context, res *extract.Result) error
}

type Router struct {
	Bot        *tgbotapi.BotAPI
	EngManager *ocr.Manager
	Profiles   config.Profiles
	Pipe       *extract.Pipeline
	Cache      *extract.ResultCache
	Results    ResultSaver
}

func (r *Router) HandleCommand(upd tgbotapi.Update) {
	cid := upd.Message.Chat.ID
	switch upd.Message.Command() {
	case "start", "help":
		r.send(cid, "Пришли скан чертежа (фото, PNG/JPEG/TIFF или PDF) — верну таблицы в xlsx.\n"+
			"Несколько фото одним альбомом — несколько листов.\nКоманды: /engine, /profile, /health")
	case "health":
		r.send(cid, "✅ OK")
	case "engine":
		r.handleEngineCommand(cid, upd.Message.CommandArguments())
	case "profile":
		r.handleProfileCommand(cid, upd.Message.CommandArguments())
	default:
		r.send(cid, "Неизвестная команда")
	}
}

func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	// callback-кнопки
	if upd.CallbackQuery != nil {
		r.handleCallback(*upd.CallbackQuery)
		return
	}
	if upd.Message == nil {
		return
	}
	switch m := upd.Message; {
	case m.IsCommand():
		r.HandleCommand(upd)
	case len(m.Photo) > 0:
		r.acceptPhoto(*m)
	case m.Document != nil:
		r.acceptDocument(*m)
	}
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		Logger.Warn("send failed", "chat", chatID, "err", err)
	}
}

func (r *Router) SendError(chatID int64, err error) {
	r.send(chatID, errorText(err))
}

func errorText(err error) string {
	switch {
	case errors.Is(err, ocr.ErrTransient):
		return "⏳ Сервис распознавания временно недоступен, попробуйте позже."
	case errors.Is(err, ocr.ErrInvalidCredentials):
		return "❌ Движок распознавания не настроен (ключ доступа). Выберите другой: /engine"
	case errors.Is(err, reconcile.ErrCellOutOfBounds), errors.Is(err, reconcile.ErrCellOverlap):
		return "⚠️ Движок вернул некорректную таблицу: " + err.Error()
	case errors.Is(err, source.ErrNoPages):
		return "📄 В PDF нет сканированных листов (векторный чертёж). Пришлите лист как PNG/TIFF или скан в PDF."
	}
	return fmt.Sprintf("Ошибка OCR: %v", err)
}

// handleEngineCommand: /engine без аргументов показывает кнопки, /engine <name> переключает.
func (r *Router) handleEngineCommand(chatID int64, args string) {
	name := strings.ToLower(strings.TrimSpace(args))
	if name == "" {
		msg := tgbotapi.NewMessage(chatID, "Текущий движок: "+r.EngManager.Get(chatID).Name())
		msg.ReplyMarkup = choiceKeyboard(cbEngine, r.EngManager.Engines().Names())
		_, _ = r.Bot.Send(msg)
		return
	}
	if err := r.EngManager.Set(chatID, name); err != nil {
		r.send(chatID, err.Error())
		return
	}
	r.send(chatID, "✅ Движок: "+name)
}

func (r *Router) handleProfileCommand(chatID int64, args string) {
	name := strings.ToLower(strings.TrimSpace(args))
	if name == "" {
		msg := tgbotapi.NewMessage(chatID, "Текущий профиль: "+r.profile(chatID).Name)
		msg.ReplyMarkup = choiceKeyboard(cbProfile, r.Profiles.Names())
		_, _ = r.Bot.Send(msg)
		return
	}
	if _, err := r.Profiles.Get(name); err != nil {
		r.send(chatID, err.Error())
		return
	}
	setProfile(chatID, name)
	r.send(chatID, "✅ Профиль: "+name)
}

func (r *Router) profile(chatID int64) config.Profile {
	p, err := r.Profiles.Get(getProfile(chatID))
	if err != nil {
		p, _ = r.Profiles.Get("")
	}
	return p
}
