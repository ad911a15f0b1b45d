package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	btnImport = "📥 Importer"
	btnExport = "📤 Exporter"
	btnPurge  = "🗑 Vider le stock"
)

func navKeyboard(back bool, cancel bool) tgbotapi.InlineKeyboardMarkup {
	row := []tgbotapi.InlineKeyboardButton{}
	if back {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("⬅️ Retour", "nav:back"))
	}
	if cancel {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("✖️ Annuler", "nav:cancel"))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func purgeConfirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Oui, tout supprimer", "purge:confirm"),
		),
		navKeyboard(false, true).InlineKeyboard[0],
	)
}

// mainReplyKeyboard нижняя панель
func mainReplyKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.ReplyKeyboardMarkup{
		ResizeKeyboard: true,
		Keyboard: [][]tgbotapi.KeyboardButton{
			{tgbotapi.NewKeyboardButton(btnImport), tgbotapi.NewKeyboardButton(btnExport)},
			{tgbotapi.NewKeyboardButton(btnPurge)},
		},
	}
}
