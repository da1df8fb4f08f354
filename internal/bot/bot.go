package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Spok95/iteach/internal/dialog"
	"github.com/Spok95/iteach/internal/domain/exercises"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramAPI — часть *tgbotapi.BotAPI, которой пользуется бот.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Moderation — админские операции над упражнениями.
type Moderation interface {
	ListReported(ctx context.Context, actor exercises.Actor) ([]exercises.Exercise, error)
	SetReportStatus(ctx context.Context, actor exercises.Actor, id, reportID string, status exercises.ReportStatus) (*exercises.Report, error)
	Delete(ctx context.Context, actor exercises.Actor, id string) error
	DeleteByAuthors(ctx context.Context, actor exercises.Actor, names []string) (int, error)
	GlobalStats(ctx context.Context, actor exercises.Actor) (exercises.GlobalStats, error)
	Export(ctx context.Context, actor exercises.Actor) ([]exercises.Exercise, error)
	Import(ctx context.Context, actor exercises.Actor, rows []exercises.Exercise) (int, error)
}

type States interface {
	Get(ctx context.Context, chatID int64) (*dialog.Item, error)
	Set(ctx context.Context, chatID int64, state dialog.State, payload dialog.Payload) error
	Reset(ctx context.Context, chatID int64) error
}

type Bot struct {
	api       telegramAPI
	log       *slog.Logger
	mod       Moderation
	states    States
	adminChat int64
	http      *http.Client
}

func New(api *tgbotapi.BotAPI, log *slog.Logger, mod Moderation, states States, adminChatID int64) *Bot {
	return newBot(api, log, mod, states, adminChatID)
}

func newBot(api telegramAPI, log *slog.Logger, mod Moderation, states States, adminChatID int64) *Bot {
	return &Bot{
		api:       api,
		log:       log,
		mod:       mod,
		states:    states,
		adminChat: adminChatID,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (b *Bot) Run(ctx context.Context, timeoutSec int) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeoutSec
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, upd)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil:
		b.onMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		b.onCallback(ctx, upd.CallbackQuery)
	}
}

// actor — от имени бота действует администратор платформы.
func (b *Bot) actor(fromID int64) exercises.Actor {
	return exercises.Actor{UserID: "telegram:" + strconv.FormatInt(fromID, 10), IsAdmin: true}
}

func (b *Bot) onMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil || msg.Chat.ID != b.adminChat {
		if msg.Chat != nil {
			b.send(tgbotapi.NewMessage(msg.Chat.ID, "Accès refusé."))
		}
		return
	}
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	b.handleStateMessage(ctx, msg)
}

func (b *Bot) onCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil || cb.Message.Chat.ID != b.adminChat {
		_ = b.answerCallback(cb, "Accès refusé", true)
		return
	}
	b.handleCallback(ctx, cb)
}

// ExerciseReported отправляет новую жалобу в админский чат.
func (b *Bot) ExerciseReported(_ context.Context, e *exercises.Exercise, r exercises.Report) {
	text := fmt.Sprintf("🚩 Nouveau signalement\n\n%s\nMotif : %s", exerciseLine(e), reasonLabel(r.Reason))
	if r.Details != "" {
		text += "\nDétails : " + r.Details
	}
	m := tgbotapi.NewMessage(b.adminChat, text)
	m.ReplyMarkup = reportKeyboard(e.ID)
	b.send(m)
}
