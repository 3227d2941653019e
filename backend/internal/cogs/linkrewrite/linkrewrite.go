// Package linkrewrite answers x.com links with their xcancel.com mirror.
package linkrewrite

import (
	"regexp"

	"go.uber.org/zap"

	"cogbot/backend/internal/constants"
	"cogbot/backend/internal/discord"
)

var (
	xLinkPattern = regexp.MustCompile(`https?://(?:www\.)?x\.com\S+`)
	xHostPattern = regexp.MustCompile(`^(https?://(?:www\.)?)x\.com`)
)

// Rewrite returns the xcancel.com form of every x.com link in content
func Rewrite(content string) []string {
	links := xLinkPattern.FindAllString(content, -1)
	out := make([]string, 0, len(links))
	for _, link := range links {
		out = append(out, xHostPattern.ReplaceAllString(link, "${1}xcancel.com"))
	}
	return out
}

// Cog replies to x.com links
type Cog struct {
	logger *zap.Logger
}

// New creates the link rewrite cog
func New(logger *zap.Logger) *Cog {
	return &Cog{logger: logger.Named(constants.CogLinkRewrite)}
}

func (c *Cog) Name() string { return constants.CogLinkRewrite }
func (c *Cog) Commands() []discord.Command { return nil }

func (c *Cog) OnMessage(ctx *discord.Context) {
	if ctx.FromBot() {
		return
	}
	for _, link := range Rewrite(ctx.Message.Content) {
		if err := ctx.Reply(link); err != nil {
			c.logger.Warn("Failed to reply with rewritten link", zap.String("link", link), zap.Error(err))
		}
	}
}
