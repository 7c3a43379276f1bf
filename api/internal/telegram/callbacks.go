package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (r *Router) handleCallback(cb tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	cid := cb.Message.Chat.ID
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cb.ID, "")) // ack

	prefix, value, ok := parseChoice(cb.Data)
	if !ok {
		return
	}
	var text string
	switch prefix {
	case cbEngine:
		if err := r.EngManager.Set(cid, value); err != nil {
			r.send(cid, err.Error())
			return
		}
		text = "✅ Движок: " + value
	case cbProfile:
		if _, err := r.Profiles.Get(value); err != nil {
			r.send(cid, err.Error())
			return
		}
		setProfile(cid, value)
		text = "✅ Профиль: " + value
	}
	// заменяем сообщение с кнопками
	edit := tgbotapi.NewEditMessageText(cid, cb.Message.MessageID, text)
	_, _ = r.Bot.Send(edit)
}
