package discord

import (
	"io"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Context is what a command or listener sees of one incoming message
type Context struct {
	Session   Session
	BotID     string
	Prefix    string
	Message   *discordgo.Message
	Command   string // empty for listeners
	Args      string
	Logger    *zap.Logger
	RequestID string
}

// Fields splits Args on whitespace
func (c *Context) Fields() []string {
	return strings.Fields(c.Args)
}

// FromBot reports whether the message author is a bot account
func (c *Context) FromBot() bool {
	return c.Message.Author != nil && c.Message.Author.Bot
}

// Send posts content to the message's channel
func (c *Context) Send(content string) error {
	_, err := c.Session.ChannelMessageSend(c.Message.ChannelID, content)
	return err
}

// Reply posts content as a reply to the message
func (c *Context) Reply(content string) error {
	_, err := c.Session.ChannelMessageSendReply(c.Message.ChannelID, content, c.Message.Reference())
	return err
}

// SendLong splits content into message-sized chunks and sends them in order
func (c *Context) SendLong(content string) error {
	return SendChunks(c.Session, c.Message.ChannelID, content, nil)
}

// ReplyLong is SendLong with the first chunk sent as a reply
func (c *Context) ReplyLong(content string) error {
	return SendChunks(c.Session, c.Message.ChannelID, content, c.Message.Reference())
}

// SendEmbed posts an embed to the message's channel
func (c *Context) SendEmbed(embed *discordgo.MessageEmbed) error {
	_, err := c.Session.ChannelMessageSendEmbed(c.Message.ChannelID, embed)
	return err
}

// SendFile uploads a file with an optional text message
func (c *Context) SendFile(name, contentType string, r io.Reader, content string) error {
	_, err := c.Session.ChannelMessageSendComplex(c.Message.ChannelID, &discordgo.MessageSend{
		Content: content,
		Files: []*discordgo.File{{
			Name:        name,
			ContentType: contentType,
			Reader:      r,
		}},
	})
	return err
}

// React adds a reaction to the message. emoji is a unicode emoji or a
// custom emoji in "name:id" form.
func (c *Context) React(emoji string) error {
	return c.Session.MessageReactionAdd(c.Message.ChannelID, c.Message.ID, emoji)
}

// Typing shows the typing indicator; failures are only logged
func (c *Context) Typing() {
	if err := c.Session.ChannelTyping(c.Message.ChannelID); err != nil {
		c.Logger.Debug("Failed to send typing indicator", zap.Error(err))
	}
}
