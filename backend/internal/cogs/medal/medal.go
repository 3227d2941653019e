// Package medal removes one user's medal.tv share links from one channel.
package medal

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"cogbot/backend/internal/constants"
	"cogbot/backend/internal/discord"
	"cogbot/backend/pkg/config"
)

// Cog deletes the banned link
type Cog struct {
	cfg    config.MedalConfig
	logger *zap.Logger
}

// New creates the medal cog
func New(cfg config.MedalConfig, logger *zap.Logger) *Cog {
	return &Cog{cfg: cfg, logger: logger.Named(constants.CogMedal)}
}

func (c *Cog) Name() string { return constants.CogMedal }
func (c *Cog) Commands() []discord.Command { return nil }

func (c *Cog) OnMessage(ctx *discord.Context) {
	m := ctx.Message
	if m.Author.ID != c.cfg.UserID || m.ChannelID != c.cfg.ChannelID {
		return
	}
	if !strings.Contains(m.Content, c.cfg.BannedURL) {
		return
	}

	err := ctx.Session.ChannelMessageDelete(m.ChannelID, m.ID)
	if err == nil {
		c.logger.Info("Deleted banned link", zap.String("message_id", m.ID))
		return
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusForbidden:
			c.logger.Warn("Missing permission to delete message", zap.String("message_id", m.ID))
			return
		case http.StatusNotFound:
			c.logger.Debug("Message was already deleted", zap.String("message_id", m.ID))
			return
		}
	}
	c.logger.Error("Failed to delete message", zap.String("message_id", m.ID), zap.Error(err))
}
