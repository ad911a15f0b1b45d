package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/stone-stock/internal/dialog"
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.resetState(ctx, chatID)
		if _, err := b.currentUser(ctx, msg.From); err != nil {
			b.log.Error("upsert user failed", "tg_id", msg.From.ID, "err", err)
			b.sendText(chatID, "Erreur interne, réessayez plus tard.")
			return
		}
		m := tgbotapi.NewMessage(chatID, "Bienvenue dans la gestion du stock de tranches.\n\n"+helpText)
		m.ReplyMarkup = mainReplyKeyboard()
		b.send(m)

	case "help":
		b.sendText(chatID, helpText)

	case "import":
		b.askImportFile(ctx, chatID)

	case "export":
		b.handleExport(ctx, msg)

	case "match":
		b.handleMatch(ctx, msg)

	case "purge":
		b.askPurgeConfirm(ctx, chatID)

	case "cancel":
		b.clearPrevStep(ctx, chatID)
		b.resetState(ctx, chatID)
		b.sendText(chatID, "Action annulée.")

	default:
		b.sendText(chatID, "Commande inconnue. /help pour la liste des commandes.")
	}
}

func (b *Bot) handleStateMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch strings.TrimSpace(msg.Text) {
	case btnImport:
		b.askImportFile(ctx, chatID)
		return
	case btnExport:
		b.handleExport(ctx, msg)
		return
	case btnPurge:
		b.askPurgeConfirm(ctx, chatID)
		return
	}

	st, err := b.states.Get(ctx, chatID)
	if err != nil {
		b.log.Error("load dialog state failed", "chat_id", chatID, "err", err)
		return
	}

	switch st.State {
	case dialog.StateImportAwaitFile:
		if msg.Document == nil {
			b.sendText(chatID, "Envoyez un fichier Excel (.xlsx) ou /cancel.")
			return
		}
		b.clearPrevStep(ctx, chatID)
		b.resetState(ctx, chatID)
		b.handleImportDocument(ctx, msg)

	default:
		if msg.Document != nil {
			b.sendText(chatID, "Pour importer ce fichier, lancez d'abord /import.")
			return
		}
		b.sendText(chatID, helpText)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		_ = b.answerCallback(cb, "", false)
		return
	}
	chatID := cb.Message.Chat.ID
	msgID := cb.Message.MessageID

	switch cb.Data {
	case "nav:cancel", "nav:back":
		b.resetState(ctx, chatID)
		b.editTextAndClear(chatID, msgID, "Action annulée.")
		_ = b.answerCallback(cb, "Annulé", false)

	case "purge:confirm":
		st, err := b.states.Get(ctx, chatID)
		if err != nil || st.State != dialog.StatePurgeConfirm {
			_ = b.answerCallback(cb, "Demande expirée", false)
			b.editTextAndClear(chatID, msgID, "Demande expirée, relancez /purge.")
			return
		}
		b.resetState(ctx, chatID)
		_ = b.answerCallback(cb, "Suppression…", false)
		b.handlePurge(ctx, cb.From, chatID, msgID)

	default:
		_ = b.answerCallback(cb, "", false)
	}
}
