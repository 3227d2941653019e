// Package minecraft manages the Minecraft server over RCON: whitelisting from
// Discord and kicking players whose bridged chat contains a banned word.
package minecraft

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"cogbot/backend/internal/constants"
	"cogbot/backend/internal/discord"
	"cogbot/backend/pkg/config"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)

// ValidUsername reports whether name is a possible Minecraft account name
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

// Cog is the minecraft cog
type Cog struct {
	rcon    Executor
	kicker  config.KickerConfig
	timeout time.Duration
	logger  *zap.Logger
}

// New creates the minecraft cog
func New(rcon Executor, kicker config.KickerConfig, timeout time.Duration, logger *zap.Logger) *Cog {
	return &Cog{
		rcon:    rcon,
		kicker:  kicker,
		timeout: timeout,
		logger:  logger.Named(constants.CogMinecraft),
	}
}

func (c *Cog) Name() string { return constants.CogMinecraft }

func (c *Cog) Commands() []discord.Command {
	return []discord.Command{{
		Name:  "whitelistadd",
		Usage: "whitelistadd <username>",
		Help:  "Add a player to the server whitelist",
		Run:   c.whitelistAdd,
	}}
}

func (c *Cog) whitelistAdd(ctx *discord.Context) error {
	args := ctx.Fields()
	if len(args) != 1 || !ValidUsername(args[0]) {
		return ctx.Send("Usage: whitelistadd <username>")
	}
	username := args[0]
	ctx.Typing()

	reqCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	resp, err := c.rcon.Execute(reqCtx, "whitelist add "+username)
	if err != nil {
		ctx.Logger.Error("Whitelist command failed", zap.String("username", username), zap.Error(err))
		return ctx.React("❌")
	}

	if strings.TrimSpace(resp) != fmt.Sprintf("Added %s to the whitelist", username) {
		ctx.Logger.Info("Whitelist add rejected", zap.String("username", username), zap.String("response", resp))
		return ctx.React("❌")
	}
	return ctx.React("✅")
}

// OnMessage kicks players whose bridged chat line ("name: text") contains the needle
func (c *Cog) OnMessage(ctx *discord.Context) {
	m := ctx.Message
	if c.kicker.WatchChannelID == "" || m.ChannelID != c.kicker.WatchChannelID {
		return
	}
	if !strings.Contains(m.Content, c.kicker.Needle) {
		return
	}
	username, _, ok := strings.Cut(m.Content, ":")
	if !ok {
		return
	}
	username = strings.TrimSpace(username)
	if !ValidUsername(username) {
		c.logger.Debug("Not kicking, prefix is not a username", zap.String("prefix", username))
		return
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	resp, err := c.rcon.Execute(reqCtx, fmt.Sprintf("kick %s %s", username, c.kicker.Reason))
	if err != nil {
		c.logger.Error("Kick failed", zap.String("username", username), zap.Error(err))
		return
	}
	c.logger.Info("Kicked player", zap.String("username", username), zap.String("response", resp))

	if c.kicker.ReportChannelID == "" || resp == "" {
		return
	}
	if _, err := ctx.Session.ChannelMessageSend(c.kicker.ReportChannelID, resp); err != nil {
		c.logger.Warn("Failed to report kick", zap.Error(err))
	}
}
