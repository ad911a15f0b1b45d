package bot

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/Spok95/stone-stock/internal/dialog"
	"github.com/Spok95/stone-stock/internal/importer"
)

// Telegram ограничивает частоту правок одного сообщения.
const progressEditInterval = 1500 * time.Millisecond

func (b *Bot) askImportFile(ctx context.Context, chatID int64) {
	b.clearPrevStep(ctx, chatID)
	m := tgbotapi.NewMessage(chatID, "Envoyez le fichier Excel (.xlsx) des tranches.\n"+
		"Colonnes obligatoires : Réf, Matière, Allée, Longueur, Largeur, Épaisseur.")
	m.ReplyMarkup = navKeyboard(false, true)
	sent, err := b.api.Send(m)
	if err != nil {
		b.log.Error("send failed", "err", err)
		return
	}
	b.saveLastStep(ctx, chatID, dialog.StateImportAwaitFile, dialog.Payload{}, sent.MessageID)
}

func (b *Bot) handleImportDocument(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	doc := msg.Document

	if !strings.HasSuffix(strings.ToLower(doc.FileName), ".xlsx") {
		b.sendText(chatID, "❌ Seuls les fichiers .xlsx sont acceptés.")
		return
	}
	if doc.FileSize > maxImportFileSize {
		b.sendText(chatID, "❌ Fichier trop volumineux (20 Mo maximum).")
		return
	}

	u, err := b.currentUser(ctx, msg.From)
	if err != nil {
		b.log.Error("upsert user failed", "tg_id", msg.From.ID, "err", err)
		b.sendText(chatID, "Erreur interne, réessayez plus tard.")
		return
	}

	data, err := b.downloadTelegramFile(ctx, doc.FileID)
	if err != nil {
		b.log.Error("download import file failed", "chat_id", chatID, "err", err)
		b.sendText(chatID, "❌ Impossible de télécharger le fichier.")
		return
	}
	b.archive.SaveImport(ctx, u.ID, doc.FileName, data)

	status, err := b.api.Send(tgbotapi.NewMessage(chatID, "⏳ Import : préparation…"))
	if err != nil {
		b.log.Error("send failed", "err", err)
		return
	}

	// импорт может идти минутами; цикл обновлений не блокируем
	go func() {
		updates, unsubscribe := b.importer.Tracker().Subscribe()
		done := make(chan struct{})
		go func() {
			defer close(done)
			b.followProgress(chatID, status.MessageID, u.ID, updates)
		}()

		res, err := b.importer.Import(ctx, u.ID, data)
		unsubscribe()
		<-done

		if err != nil {
			b.log.Warn("telegram import failed", "user_id", u.ID, "err", err)
			b.editTextAndClear(chatID, status.MessageID, importErrorText(err))
			return
		}
		b.log.Info("telegram import done", "user_id", u.ID, "added", res.Added, "skipped", res.Skipped, "errors", len(res.Errors))
		b.editTextAndClear(chatID, status.MessageID, formatResult(res))
	}()
}

// followProgress правит статусное сообщение до закрытия канала подписки;
// снимки чужих прогонов пропускаются.
func (b *Bot) followProgress(chatID int64, messageID int, owner uuid.UUID, updates <-chan importer.Progress) {
	var (
		lastText  string
		lastPhase importer.Phase
		lastEdit  time.Time
	)
	for p := range updates {
		if p.UserID != owner || p.Phase == importer.PhaseIdle {
			continue
		}
		text := formatProgress(p)
		if text == lastText {
			continue
		}
		if p.Phase == lastPhase && time.Since(lastEdit) < progressEditInterval {
			continue
		}
		b.editTextAndClear(chatID, messageID, text)
		lastText, lastPhase, lastEdit = text, p.Phase, time.Now()
	}
}

func (b *Bot) handleExport(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	u, err := b.currentUser(ctx, msg.From)
	if err != nil {
		b.log.Error("upsert user failed", "tg_id", msg.From.ID, "err", err)
		b.sendText(chatID, "Erreur interne, réessayez plus tard.")
		return
	}

	exp, err := b.exporter.Export(ctx, u.ID)
	if err != nil {
		b.log.Error("export failed", "user_id", u.ID, "err", err)
		b.sendText(chatID, "❌ Échec de l'export.")
		return
	}
	b.archive.SaveExport(ctx, u.ID, exp.FileName, exp.Data)

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: exp.FileName, Bytes: exp.Data})
	doc.Caption = "Stock de tranches"
	if exp.Slabs == 0 {
		doc.Caption = "Stock vide"
	}
	b.send(doc)
}

func (b *Bot) handleMatch(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	req, err := parseMatchArgs(msg.CommandArguments())
	if err != nil {
		b.sendText(chatID, "❌ "+err.Error()+"\nExemple : /match 300 150 3 5 Granit Noir")
		return
	}

	u, err := b.currentUser(ctx, msg.From)
	if err != nil {
		b.log.Error("upsert user failed", "tg_id", msg.From.ID, "err", err)
		b.sendText(chatID, "Erreur interne, réessayez plus tard.")
		return
	}

	results, err := b.matcher.Find(ctx, u.ID, req)
	if err != nil {
		b.log.Error("find compatible failed", "user_id", u.ID, "err", err)
		b.sendText(chatID, "❌ Recherche impossible pour le moment.")
		return
	}
	b.sendText(chatID, formatMatches(results))
}

func (b *Bot) askPurgeConfirm(ctx context.Context, chatID int64) {
	b.clearPrevStep(ctx, chatID)
	m := tgbotapi.NewMessage(chatID, "⚠️ Supprimer TOUTES vos tranches ? Cette action est irréversible.")
	m.ReplyMarkup = purgeConfirmKeyboard()
	sent, err := b.api.Send(m)
	if err != nil {
		b.log.Error("send failed", "err", err)
		return
	}
	b.saveLastStep(ctx, chatID, dialog.StatePurgeConfirm, dialog.Payload{}, sent.MessageID)
}

func (b *Bot) handlePurge(ctx context.Context, from *tgbotapi.User, chatID int64, msgID int) {
	u, err := b.currentUser(ctx, from)
	if err != nil {
		b.log.Error("upsert user failed", "tg_id", from.ID, "err", err)
		b.editTextAndClear(chatID, msgID, "Erreur interne, réessayez plus tard.")
		return
	}
	res, err := b.slabs.DeleteAll(ctx, u.ID)
	if err != nil {
		b.log.Error("delete all failed", "user_id", u.ID, "err", err)
		b.editTextAndClear(chatID, msgID, "❌ Échec de la suppression.")
		return
	}
	b.log.Info("stock purged", "user_id", u.ID, "deleted", res.DeletedCount)
	if !res.Success {
		b.editTextAndClear(chatID, msgID, "❌ "+res.Message)
		return
	}
	b.editTextAndClear(chatID, msgID, "✅ "+res.Message)
}
