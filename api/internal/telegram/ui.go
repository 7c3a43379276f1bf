package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cbEngine  = "engine:"
	cbProfile = "profile:"
)

// choiceKeyboard: по кнопке на вариант, по три в ряд.
func choiceKeyboard(prefix string, names []string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, n := range names {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(n, prefix+n))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// parseChoice splits callback data into its prefix and value.
func parseChoice(data string) (prefix, value string, ok bool) {
	for _, p := range []string{cbEngine, cbProfile} {
		if v, found := strings.CutPrefix(data, p); found && v != "" {
			return p, v, true
		}
	}
	return "", "", false
}
