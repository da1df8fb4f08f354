package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	btnReports = "Signalements"
	btnStats   = "Statistiques"
	btnExport  = "Exporter"
	btnImport  = "Importer"
	btnPurge   = "Suppression par auteur"
)

func reportKeyboard(exerciseID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👀 Examiné", "rep:rev:"+exerciseID),
			tgbotapi.NewInlineKeyboardButtonData("✅ Résolu", "rep:res:"+exerciseID),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Supprimer l'exercice", "rep:del:"+exerciseID),
		),
	)
}

func confirmPurgeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Confirmer", "purge:ok"),
		),
		navKeyboard(),
	)
}

func navKeyboard() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✖️ Annuler", "nav:cancel"),
	)
}

// adminReplyKeyboard Нижняя панель модератора
func adminReplyKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.ReplyKeyboardMarkup{
		ResizeKeyboard: true,
		Keyboard: [][]tgbotapi.KeyboardButton{
			{tgbotapi.NewKeyboardButton(btnReports), tgbotapi.NewKeyboardButton(btnStats)},
			{tgbotapi.NewKeyboardButton(btnExport), tgbotapi.NewKeyboardButton(btnImport)},
			{tgbotapi.NewKeyboardButton(btnPurge)},
		},
	}
}
