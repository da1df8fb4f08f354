package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Spok95/iteach/internal/dialog"
	"github.com/Spok95/iteach/internal/domain/apperr"
	"github.com/Spok95/iteach/internal/domain/exercises"
	"github.com/Spok95/iteach/internal/infra/sheets"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxRowErrors — сколько ошибок импорта показывать в ответе.
const maxRowErrors = 10

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		_ = b.states.Reset(ctx, chatID)
		m := tgbotapi.NewMessage(chatID, "Bonjour ! Modération iteach : utilisez le menu ci-dessous.")
		m.ReplyMarkup = adminReplyKeyboard()
		b.send(m)
	case "help":
		b.send(tgbotapi.NewMessage(chatID,
			"Commandes :\n/reports — signalements\n/stats — statistiques\n/export — export xlsx\n/import — import xlsx\n/purge — suppression par auteur\n/cancel — annuler"))
	case "reports":
		b.showReports(ctx, chatID, msg.From)
	case "stats":
		b.showStats(ctx, chatID, msg.From)
	case "export":
		b.exportExercises(ctx, chatID, msg.From)
	case "import":
		b.startImport(ctx, chatID)
	case "purge":
		b.startPurge(ctx, chatID)
	case "cancel":
		_ = b.states.Reset(ctx, chatID)
		b.send(tgbotapi.NewMessage(chatID, "Action annulée."))
	default:
		b.send(tgbotapi.NewMessage(chatID, "Commande inconnue. Tapez /help"))
	}
}

func (b *Bot) handleStateMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch strings.TrimSpace(msg.Text) {
	case btnReports:
		b.showReports(ctx, chatID, msg.From)
		return
	case btnStats:
		b.showStats(ctx, chatID, msg.From)
		return
	case btnExport:
		b.exportExercises(ctx, chatID, msg.From)
		return
	case btnImport:
		b.startImport(ctx, chatID)
		return
	case btnPurge:
		b.startPurge(ctx, chatID)
		return
	}

	st, err := b.states.Get(ctx, chatID)
	if err != nil {
		b.log.Error("load dialog state failed", "chat_id", chatID, "err", err)
		b.send(tgbotapi.NewMessage(chatID, "Erreur interne, réessayez plus tard."))
		return
	}

	switch st.State {
	case dialog.StateAwaitImportFile:
		if msg.Document == nil {
			b.send(tgbotapi.NewMessage(chatID, "Envoyez un fichier .xlsx ou /cancel."))
			return
		}
		b.importDocument(ctx, chatID, msg.From, msg.Document)
	case dialog.StateAwaitPurgeNames:
		names := splitNames(msg.Text)
		if len(names) == 0 {
			b.send(tgbotapi.NewMessage(chatID, "Indiquez au moins un nom d'auteur."))
			return
		}
		if err := b.states.Set(ctx, chatID, dialog.StateAwaitPurgeAccept, dialog.Payload{"names": names}); err != nil {
			b.log.Error("save dialog state failed", "chat_id", chatID, "err", err)
			return
		}
		m := tgbotapi.NewMessage(chatID, "Supprimer tous les exercices de :\n• "+strings.Join(names, "\n• ")+"\n?")
		m.ReplyMarkup = confirmPurgeKeyboard()
		b.send(m)
	default:
		b.send(tgbotapi.NewMessage(chatID, "Utilisez le menu ou /help."))
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	msgID := cb.Message.MessageID
	data := cb.Data

	switch {
	case data == "nav:cancel":
		_ = b.states.Reset(ctx, chatID)
		b.editTextAndClear(chatID, msgID, "Action annulée.")
		_ = b.answerCallback(cb, "", false)

	case data == "purge:ok":
		st, err := b.states.Get(ctx, chatID)
		if err != nil || st.State != dialog.StateAwaitPurgeAccept {
			_ = b.answerCallback(cb, "Action expirée", true)
			return
		}
		names := dialog.GetStrings(st.Payload, "names")
		n, err := b.mod.DeleteByAuthors(ctx, b.actor(cb.From.ID), names)
		_ = b.states.Reset(ctx, chatID)
		if err != nil {
			b.log.Error("purge by authors failed", "authors", names, "err", err)
			b.editTextAndClear(chatID, msgID, "Échec de la suppression.")
			_ = b.answerCallback(cb, "", false)
			return
		}
		b.editTextAndClear(chatID, msgID, fmt.Sprintf("%d exercice(s) supprimé(s).", n))
		_ = b.answerCallback(cb, "Supprimé", false)

	case strings.HasPrefix(data, "rep:"):
		b.handleReportAction(ctx, cb)

	default:
		_ = b.answerCallback(cb, "Action inconnue", false)
	}
}

func (b *Bot) handleReportAction(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	msgID := cb.Message.MessageID
	parts := strings.SplitN(cb.Data, ":", 3)
	if len(parts) != 3 || parts[2] == "" {
		_ = b.answerCallback(cb, "Action inconnue", false)
		return
	}
	action, id := parts[1], parts[2]
	actor := b.actor(cb.From.ID)

	if action == "del" {
		err := b.mod.Delete(ctx, actor, id)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			b.editTextAndClear(chatID, msgID, "Exercice déjà supprimé.")
		case err != nil:
			b.log.Error("delete reported exercise failed", "id", id, "err", err)
			_ = b.answerCallback(cb, "Erreur", true)
			return
		default:
			b.log.Info("reported exercise deleted", "id", id, "by", actor.UserID)
			b.editTextAndClear(chatID, msgID, "🗑 Exercice supprimé.")
		}
		_ = b.answerCallback(cb, "", false)
		return
	}

	status := exercises.ReportReviewed
	if action == "res" {
		status = exercises.ReportResolved
	} else if action != "rev" {
		_ = b.answerCallback(cb, "Action inconnue", false)
		return
	}

	n, err := b.markReports(ctx, actor, id, status)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			b.editTextAndClear(chatID, msgID, "Exercice introuvable.")
			_ = b.answerCallback(cb, "", false)
			return
		}
		b.log.Error("update report status failed", "id", id, "status", status, "err", err)
		_ = b.answerCallback(cb, "Erreur", true)
		return
	}
	b.editTextAndClear(chatID, msgID, fmt.Sprintf("%s %d signalement(s) mis à jour.", statusBadge(status), n))
	_ = b.answerCallback(cb, "", false)
}

// markReports переводит все незакрытые жалобы упражнения в status.
// Решённые жалобы не откатываются в «просмотрено».
func (b *Bot) markReports(ctx context.Context, actor exercises.Actor, id string, status exercises.ReportStatus) (int, error) {
	list, err := b.mod.ListReported(ctx, actor)
	if err != nil {
		return 0, err
	}
	for _, e := range list {
		if e.ID != id {
			continue
		}
		n := 0
		for _, r := range e.Reports {
			if r.Status == exercises.ReportResolved || r.Status == status {
				continue
			}
			if _, err := b.mod.SetReportStatus(ctx, actor, id, r.ID, status); err != nil {
				return n, err
			}
			n++
		}
		return n, nil
	}
	return 0, apperr.ErrNotFound
}

func (b *Bot) showReports(ctx context.Context, chatID int64, from *tgbotapi.User) {
	list, err := b.mod.ListReported(ctx, b.actor(from.ID))
	if err != nil {
		b.log.Error("list reported failed", "err", err)
		b.send(tgbotapi.NewMessage(chatID, "Impossible de charger les signalements."))
		return
	}

	pending := 0
	for i := range list {
		e := &list[i]
		var sb strings.Builder
		open := 0
		for _, r := range e.Reports {
			if r.Status != exercises.ReportResolved {
				open++
			}
			fmt.Fprintf(&sb, "\n%s %s", statusBadge(r.Status), reasonLabel(r.Reason))
			if r.Details != "" {
				sb.WriteString(" — " + r.Details)
			}
		}
		if open == 0 {
			continue
		}
		pending++
		m := tgbotapi.NewMessage(chatID, exerciseLine(e)+sb.String())
		m.ReplyMarkup = reportKeyboard(e.ID)
		b.send(m)
	}
	if pending == 0 {
		b.send(tgbotapi.NewMessage(chatID, "Aucun signalement en attente."))
	}
}

func (b *Bot) showStats(ctx context.Context, chatID int64, from *tgbotapi.User) {
	st, err := b.mod.GlobalStats(ctx, b.actor(from.ID))
	if err != nil {
		b.log.Error("global stats failed", "err", err)
		b.send(tgbotapi.NewMessage(chatID, "Impossible de charger les statistiques."))
		return
	}
	b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"📊 Statistiques\n\nExercices : %d\nSignalés : %d\nUtilisateurs : %d (enseignants %d, élèves %d)",
		st.TotalExercises, st.TotalReported, st.TotalUsers, st.TotalTeachers, st.TotalStudents)))
}

func (b *Bot) exportExercises(ctx context.Context, chatID int64, from *tgbotapi.User) {
	list, err := b.mod.Export(ctx, b.actor(from.ID))
	if err != nil {
		b.log.Error("export failed", "err", err)
		b.send(tgbotapi.NewMessage(chatID, "Échec de l'export."))
		return
	}
	data, err := sheets.Export(list)
	if err != nil {
		b.log.Error("build xlsx failed", "err", err)
		b.send(tgbotapi.NewMessage(chatID, "Échec de l'export."))
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  "exercices-" + time.Now().Format("2006-01-02") + ".xlsx",
		Bytes: data,
	})
	doc.Caption = fmt.Sprintf("%d exercice(s)", len(list))
	b.send(doc)
}

func (b *Bot) startImport(ctx context.Context, chatID int64) {
	if err := b.states.Set(ctx, chatID, dialog.StateAwaitImportFile, nil); err != nil {
		b.log.Error("save dialog state failed", "chat_id", chatID, "err", err)
		return
	}
	m := tgbotapi.NewMessage(chatID, "Envoyez le fichier .xlsx à importer.")
	m.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(navKeyboard())
	b.send(m)
}

func (b *Bot) startPurge(ctx context.Context, chatID int64) {
	if err := b.states.Set(ctx, chatID, dialog.StateAwaitPurgeNames, nil); err != nil {
		b.log.Error("save dialog state failed", "chat_id", chatID, "err", err)
		return
	}
	m := tgbotapi.NewMessage(chatID, "Noms des auteurs (un par ligne ou séparés par des virgules) :")
	m.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(navKeyboard())
	b.send(m)
}

func (b *Bot) importDocument(ctx context.Context, chatID int64, from *tgbotapi.User, doc *tgbotapi.Document) {
	if !strings.HasSuffix(strings.ToLower(doc.FileName), ".xlsx") {
		b.send(tgbotapi.NewMessage(chatID, "Seuls les fichiers .xlsx sont acceptés."))
		return
	}
	data, err := b.downloadTelegramFile(doc.FileID)
	if err != nil {
		b.log.Error("download import file failed", "err", err)
		b.send(tgbotapi.NewMessage(chatID, "Impossible de télécharger le fichier."))
		return
	}
	res, err := sheets.Import(data)
	if err != nil {
		b.send(tgbotapi.NewMessage(chatID, "Fichier invalide : "+err.Error()))
		return
	}

	n := 0
	if len(res.Exercises) > 0 {
		n, err = b.mod.Import(ctx, b.actor(from.ID), res.Exercises)
		if err != nil {
			b.log.Error("import failed", "err", err)
			b.send(tgbotapi.NewMessage(chatID, "Échec de l'import."))
			return
		}
	}
	_ = b.states.Reset(ctx, chatID)

	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ %d exercice(s) importé(s).", n)
	if len(res.Errors) > 0 {
		fmt.Fprintf(&sb, "\n%d ligne(s) ignorée(s) :", len(res.Errors))
		for i, re := range res.Errors {
			if i == maxRowErrors {
				sb.WriteString("\n…")
				break
			}
			fmt.Fprintf(&sb, "\nligne %d : %s", re.Row, re.Reason)
		}
	}
	b.send(tgbotapi.NewMessage(chatID, sb.String()))
}
