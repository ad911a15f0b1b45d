package bot

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/stone-stock/internal/dialog"
	"github.com/Spok95/stone-stock/internal/domain/slabs"
	"github.com/Spok95/stone-stock/internal/domain/users"
	"github.com/Spok95/stone-stock/internal/importer"
	"github.com/Spok95/stone-stock/internal/infra/archive"
	"github.com/Spok95/stone-stock/internal/report"
)

// Максимальный размер файла, который Bot API отдаёт на скачивание.
const maxImportFileSize = 20 << 20

type Deps struct {
	Users    *users.Repo
	States   *dialog.Repo
	Importer *importer.Importer
	Exporter *report.Composer
	Matcher  *slabs.Matcher
	Slabs    *slabs.Repo
	Archive  *archive.Store // может быть nil
}

type Bot struct {
	api      *tgbotapi.BotAPI
	log      *slog.Logger
	users    *users.Repo
	states   *dialog.Repo
	importer *importer.Importer
	exporter *report.Composer
	matcher  *slabs.Matcher
	slabs    *slabs.Repo
	archive  *archive.Store
}

func New(api *tgbotapi.BotAPI, log *slog.Logger, d Deps) *Bot {
	return &Bot{
		api: api, log: log.With("component", "bot"),
		users: d.Users, states: d.States,
		importer: d.Importer, exporter: d.Exporter,
		matcher: d.Matcher, slabs: d.Slabs, archive: d.Archive,
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
		case upd := <-updates:
			if upd.Message != nil {
				b.onMessage(ctx, upd)
			} else if upd.CallbackQuery != nil {
				b.onCallback(ctx, upd)
			}
		}
	}
}

func (b *Bot) onMessage(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	b.handleStateMessage(ctx, msg)
}

func (b *Bot) onCallback(ctx context.Context, upd tgbotapi.Update) {
	b.handleCallback(ctx, upd.CallbackQuery)
}

// currentUser связывает аккаунт Telegram с владельцем склада.
func (b *Bot) currentUser(ctx context.Context, from *tgbotapi.User) (*users.User, error) {
	return b.users.UpsertFromTelegram(ctx, users.Telegram{
		ID:        from.ID,
		Username:  from.UserName,
		FirstName: from.FirstName,
		LastName:  from.LastName,
	})
}
