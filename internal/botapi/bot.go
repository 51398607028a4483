// Package botapi implements tg.Client on the Telegram Bot API. Updates come
// from long polling; history and search are served from the local archive
// because the Bot API exposes neither.
package botapi

import (
	"errors"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/matheus3301/tgtriage/internal/apperr"
)

// Bot is the subset of the Bot API the adapter uses.
type Bot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetSelf() tgbotapi.User
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
	GetChatMembersCount(config tgbotapi.ChatMemberCountConfig) (int, error)
}

type botWrapper struct {
	bot *tgbotapi.BotAPI
}

// NewBot authorizes token against the Bot API.
func NewBot(token string, client *http.Client) (Bot, error) {
	if token == "" {
		return nil, apperr.New(apperr.NotConfigured, "botapi.new", errors.New("bot token is empty"))
	}
	if client == nil {
		client = http.DefaultClient
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, mapError("botapi.new", err)
	}
	return &botWrapper{bot: bot}, nil
}

func (w *botWrapper) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return w.bot.GetUpdatesChan(config)
}

func (w *botWrapper) StopReceivingUpdates() { w.bot.StopReceivingUpdates() }

func (w *botWrapper) GetSelf() tgbotapi.User { return w.bot.Self }

func (w *botWrapper) GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error) {
	return w.bot.GetFile(config)
}

func (w *botWrapper) GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error) {
	return w.bot.GetChat(config)
}

func (w *botWrapper) GetChatMembersCount(config tgbotapi.ChatMemberCountConfig) (int, error) {
	return w.bot.GetChatMembersCount(config)
}

// mapError turns Bot API failures into HTTP-kind errors so 401/403 stop
// retries and 429/5xx are retried.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return apperr.HTTPStatus(op, apiErr.Code, apiErr.Message)
	}
	return err
}
