package bot

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Spok95/iteach/internal/domain/exercises"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const maxDownloadSize = 10 << 20

func (b *Bot) answerCallback(cb *tgbotapi.CallbackQuery, text string, alert bool) error {
	resp := tgbotapi.NewCallback(cb.ID, text)
	resp.ShowAlert = alert
	_, err := b.api.Request(resp)
	return err
}

func (b *Bot) send(msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send failed", "err", err)
	}
}

// downloadTelegramFile скачивает файл по FileID через Telegram API.
func (b *Bot) downloadTelegramFile(fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file url: %w", err)
	}

	resp, err := b.http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram returned status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

func (b *Bot) editTextAndClear(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(
		chatID, messageID, text,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}},
	)
	b.send(edit)
}

func exerciseLine(e *exercises.Exercise) string {
	title := e.Title
	if title == "" {
		title = "Exercice sans titre"
	}
	return fmt.Sprintf("«%s» par %s (%s, %s)", title, e.AuthorName, e.Subject, e.Level)
}

func reasonLabel(r exercises.ReportReason) string {
	switch r {
	case exercises.ReasonInappropriate:
		return "contenu inapproprié"
	case exercises.ReasonUnsuitable:
		return "inadapté au niveau"
	case exercises.ReasonIncorrect:
		return "contenu incorrect"
	default:
		return "autre"
	}
}

func statusBadge(s exercises.ReportStatus) string {
	switch s {
	case exercises.ReportReviewed:
		return "👀"
	case exercises.ReportResolved:
		return "✅"
	default:
		return "🕒"
	}
}

// splitNames разбирает список авторов: по строке или через запятую.
func splitNames(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == '\n' || r == ';' })
	out := make([]string, 0, len(fields))
	seen := map[string]bool{}
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
