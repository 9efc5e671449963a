// Package telegram is the chat front-end of the decision-support tool.
// It long-polls the Telegram Bot API, answers commands and pasted payoff tables with a
// MarkdownV2 report, and delivers replies with retry logic for reliability.
//
// Message handling lives in Handler so it can be exercised without a bot token; Client owns
// the Bot API connection.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Harry10012003/decision-support-tool/internal/logger"
)

// maxConcurrentUpdates bounds how many messages are handled at once.
const maxConcurrentUpdates = 8

// ClientConfig configures the bot connection.
type ClientConfig struct {
	BotToken       string
	MaxRetries     int
	RetryDelayBase time.Duration
	UpdateTimeout  time.Duration
	// AllowChat filters incoming chats. Nil answers every chat.
	AllowChat func(chatID int64) bool
}

// Client handles the Telegram Bot API side of the bot
type Client struct {
	bot            *tgbotapi.BotAPI
	handler        *Handler
	fetcher        Fetcher
	maxRetries     int
	retryDelayBase time.Duration
	updateTimeout  int
	allowChat      func(chatID int64) bool
}

// NewClient creates a new Telegram client
func NewClient(cfg ClientConfig, handler *Handler, fetcher Fetcher) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	if cfg.UpdateTimeout <= 0 {
		cfg.UpdateTimeout = 60 * time.Second
	}

	logger.Info("Authorized on Telegram account %s", bot.Self.UserName)

	return &Client{
		bot:            bot,
		handler:        handler,
		fetcher:        fetcher,
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
		updateTimeout:  int(cfg.UpdateTimeout / time.Second),
		allowChat:      cfg.AllowChat,
	}, nil
}

// ListenForCommands long-polls for updates and answers them until ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.updateTimeout
	updates := c.bot.GetUpdatesChan(u)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUpdates)

	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			_ = g.Wait()
			return nil
		case update, ok := <-updates:
			if !ok {
				return g.Wait()
			}
			if update.Message == nil {
				continue
			}
			msg := update.Message
			g.Go(func() error {
				c.handleMessage(gctx, msg)
				return nil
			})
		}
	}
}

func (c *Client) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if c.allowChat != nil && !c.allowChat(chatID) {
		logger.Debug("ignoring message from chat %d: not in allowed_chat_ids", chatID)
		return
	}

	requestID := uuid.NewString()
	start := time.Now()
	logger.Info("[%s] chat %d: message received", requestID, chatID)

	var (
		reply string
		err   error
	)
	if msg.Document != nil {
		reply, err = c.handleDocument(ctx, requestID, chatID, msg.Document)
	} else {
		text := msg.Text
		if text == "" {
			text = msg.Caption
		}
		reply, err = c.handler.HandleText(ctx, chatID, text)
	}
	if err != nil {
		logger.Error("[%s] chat %d: %v", requestID, chatID, err)
		reply = escapeMarkdownV2("Something went wrong, please try again later.")
	}

	if err := c.Send(chatID, reply); err != nil {
		logger.Error("[%s] chat %d: %v", requestID, chatID, err)
		return
	}
	logger.Info("[%s] chat %d: replied in %s", requestID, chatID, time.Since(start).Round(time.Millisecond))
}

func (c *Client) handleDocument(ctx context.Context, requestID string, chatID int64, doc *tgbotapi.Document) (string, error) {
	fileURL, err := c.bot.GetFileDirectURL(doc.FileID)
	if err != nil {
		return "", fmt.Errorf("resolve file %s: %w", doc.FileName, c.redact(err))
	}

	downloaded, err := c.fetcher.Fetch(ctx, fileURL)
	if err != nil {
		logger.Warn("[%s] chat %d: download of %s failed: %v", requestID, chatID, doc.FileName, c.redact(err))
		return escapeMarkdownV2("Could not download that file. Send a small .xlsx, .csv or .txt file."), nil
	}
	return c.handler.HandleDocument(ctx, chatID, doc.FileName, downloaded.Data)
}

// Send delivers a MarkdownV2 reply, split into several messages when it is too long.
func (c *Client) Send(chatID int64, text string) error {
	for _, chunk := range splitMessage(text, maxMessageLength) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = tgbotapi.ModeMarkdownV2

		if err := c.sendWithRetry(msg); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) sendWithRetry(msg tgbotapi.MessageConfig) error {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// redact removes the bot token from errors that carry a file URL.
func (c *Client) redact(err error) error {
	if c.bot.Token == "" || !strings.Contains(err.Error(), c.bot.Token) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), c.bot.Token, "<token>"))
}
