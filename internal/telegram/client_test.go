package telegram

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Harry10012003/decision-support-tool/internal/config"
)

func TestHandleMessage_IgnoresChatsOutsideAllowList(t *testing.T) {
	cfg := config.TelegramConfig{AllowedChatIDs: []int64{42}}
	// no bot and no handler: answering the message would panic
	c := &Client{allowChat: cfg.ChatAllowed}

	c.handleMessage(context.Background(), &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 7},
		Text: "/help",
	})
}
