package telegram

import (
	"encoding/json"
	"fmt"
	"slices"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Commands is the command menu registered with Telegram.
var Commands = []tgbotapi.BotCommand{
	{Command: "settz", Description: "Set your time zone"},
	{Command: "times", Description: "Local time for everyone here"},
	{Command: "time", Description: "Current UTC time and yours"},
	{Command: "whenis", Description: "Reply to someone: their local time"},
	{Command: "whois", Description: "Reply to someone: their settings"},
	{Command: "aboutme", Description: "Set locale or color"},
	{Command: "digest", Description: "Daily roster at HH:MM UTC, or off"},
	{Command: "start", Description: "Help"},
}

// InstallCommands registers Commands unless Telegram already has exactly
// that list. It reports whether anything was written.
func InstallCommands(bot Bot, log *zap.Logger) (bool, error) {
	resp, err := bot.Request(tgbotapi.GetMyCommandsConfig{})
	if err != nil {
		return false, fmt.Errorf("get commands: %w", err)
	}
	var installed []tgbotapi.BotCommand
	if err := json.Unmarshal(resp.Result, &installed); err != nil {
		return false, fmt.Errorf("decode commands: %w", err)
	}
	if slices.Equal(installed, Commands) {
		log.Info("bot commands already installed", zap.Int("count", len(installed)))
		return false, nil
	}

	if _, err := bot.Request(tgbotapi.NewSetMyCommands(Commands...)); err != nil {
		return false, fmt.Errorf("set commands: %w", err)
	}
	log.Info("bot commands installed", zap.Int("count", len(Commands)))
	return true, nil
}
