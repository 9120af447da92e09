package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/mlipovsky/lettermill/app/ingest"
)

// TelegramNotifier pushes a short summary to the operator's chat after ingest
// runs that queued something new. Send-only: no handlers, no polling.
type TelegramNotifier struct {
	bot    *bot.Bot
	chatID int64
}

func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	if token == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram notifier not configured")
	}

	tgBot, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramNotifier{
		bot:    tgBot,
		chatID: chatID,
	}, nil
}

func (n *TelegramNotifier) NotifyIngestRun(ctx context.Context, result ingest.Result) {
	text := fmt.Sprintf("<b>New newsletters queued</b>\n%d new, %d skipped (of %d found)",
		result.New, result.Skipped, result.Found)
	if len(result.Errors) > 0 {
		text += fmt.Sprintf("\n%d errors during the run", len(result.Errors))
	}

	// A stuck Telegram API call must not block the worker
	apiCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := n.bot.SendMessage(apiCtx, &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		slog.Warn("Failed to send telegram notification", "error", err)
	}
}
