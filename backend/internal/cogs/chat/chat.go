// Package chat relays messages to a Perplexity chat model and posts the answer.
package chat

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"cogbot/backend/internal/adapter"
	"cogbot/backend/internal/constants"
	"cogbot/backend/internal/discord"
	"cogbot/backend/internal/store"
)

// Setting keys
const (
	KeyModel        = "model"
	KeyMaxTokens    = "max_tokens"
	KeyMention      = "mention"
	KeyReply        = "reply"
	KeyPromptInsert = "prompt_insert"
	KeyAPIKey       = "api_key"
)

// Defaults
const (
	DefaultModel     = "llama-3.1-70b-instruct"
	DefaultMaxTokens = 400
)

// Completer answers a conversation. *adapter.ChatAdapter implements it.
type Completer interface {
	Complete(ctx context.Context, model string, maxTokens int, messages []adapter.Message) (string, error)
}

// ClientFactory builds a Completer for an API key
type ClientFactory func(apiKey string) Completer

// Cog is the chat relay cog
type Cog struct {
	settings  *store.Settings
	envAPIKey string
	newClient ClientFactory
	timeout   time.Duration
	logger    *zap.Logger

	mu        sync.Mutex
	client    Completer
	clientKey string
}

// New creates the chat cog. envAPIKey is used unless a key was stored with pplxset.
func New(st store.Store, envAPIKey string, newClient ClientFactory, timeout time.Duration, logger *zap.Logger) *Cog {
	return &Cog{
		settings:  store.Scoped(st, constants.ScopeChat),
		envAPIKey: envAPIKey,
		newClient: newClient,
		timeout:   timeout,
		logger:    logger.Named(constants.CogChat),
	}
}

func (c *Cog) Name() string { return constants.CogChat }

func (c *Cog) Commands() []discord.Command {
	return []discord.Command{
		{
			Name:    "pplx",
			Aliases: []string{"chat"},
			Usage:   "pplx <message>",
			Help:    "Send a message to Perplexity AI",
			Run:     c.pplx,
		},
		{
			Name:  "pplxset",
			Usage: "pplxset <model|tokens|mention|reply|prompt|key|show> [value]",
			Help:  "Configure the Perplexity relay",
			Run:   c.pplxSet,
		},
	}
}

func (c *Cog) pplx(ctx *discord.Context) error {
	if ctx.Args == "" {
		return ctx.Send("Usage: pplx <message>")
	}
	return c.relay(ctx, ctx.Args)
}

// OnMessage answers messages that start with a mention of the bot, or that
// reply to the bot and mention it.
func (c *Cog) OnMessage(ctx *discord.Context) {
	m := ctx.Message
	if ctx.FromBot() || (ctx.Prefix != "" && strings.HasPrefix(m.Content, ctx.Prefix)) {
		return
	}

	bg := context.Background()
	mention, err := c.settings.Bool(bg, KeyMention, true)
	c.readFailed(KeyMention, err)
	reply, err := c.settings.Bool(bg, KeyReply, true)
	c.readFailed(KeyReply, err)
	if !mention && !reply {
		return
	}

	isMention := mention && mentionPattern(ctx.BotID).MatchString(m.Content)
	isReply := reply && repliesToBot(ctx)
	if !isMention && !isReply {
		return
	}

	content := StripTrigger(m.Content, ctx.BotID)
	if content == "" {
		return
	}
	if err := c.relay(ctx, content); err != nil {
		ctx.Logger.Error("Chat relay failed", zap.Error(err))
	}
}

func mentionPattern(botID string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^<@!?` + regexp.QuoteMeta(botID) + `>\s*`)
}

func repliesToBot(ctx *discord.Context) bool {
	ref := ctx.Message.ReferencedMessage
	if ref == nil || ref.Author == nil || ref.Author.ID != ctx.BotID {
		return false
	}
	for _, u := range ctx.Message.Mentions {
		if u.ID == ctx.BotID {
			return true
		}
	}
	return false
}

// StripTrigger removes line-start mentions of the bot and a leading
// "pplx " or "chat " from content.
func StripTrigger(content, botID string) string {
	content = mentionPattern(botID).ReplaceAllString(content, "")
	lower := strings.ToLower(content)
	if strings.HasPrefix(lower, "pplx ") || strings.HasPrefix(lower, "chat ") {
		content = content[5:]
	}
	return strings.TrimSpace(content)
}

// BuildMessages returns the conversation sent to the model
func BuildMessages(promptInsert, content string) []adapter.Message {
	var messages []adapter.Message
	if promptInsert != "" {
		messages = append(messages, adapter.Message{Role: "system", Content: promptInsert})
	}
	return append(messages, adapter.Message{Role: "user", Content: strings.TrimSpace(content)})
}

func (c *Cog) relay(ctx *discord.Context, content string) error {
	ctx.Typing()
	bg := context.Background()

	client, ok := c.currentClient(bg)
	if !ok {
		return ctx.Send(fmt.Sprintf("Perplexity API key not set. Use `%spplxset key <api_key>`.", ctx.Prefix))
	}

	model, err := c.settings.String(bg, KeyModel, DefaultModel)
	c.readFailed(KeyModel, err)
	maxTokens, err := c.settings.Int(bg, KeyMaxTokens, DefaultMaxTokens)
	c.readFailed(KeyMaxTokens, err)
	promptInsert, err := c.settings.String(bg, KeyPromptInsert, "")
	c.readFailed(KeyPromptInsert, err)

	reqCtx, cancel := context.WithTimeout(bg, c.timeout)
	defer cancel()

	answer, err := client.Complete(reqCtx, model, maxTokens, BuildMessages(promptInsert, content))
	if err != nil {
		ctx.Logger.Warn("Completion failed", zap.String("model", model), zap.Error(err))
		return ctx.Send(fmt.Sprintf("An error occurred: %v", err))
	}

	return ctx.ReplyLong(discord.FormatMarkdown(answer))
}

// currentClient returns a client for the stored key, or the environment key
func (c *Cog) currentClient(ctx context.Context) (Completer, bool) {
	key, err := c.settings.String(ctx, KeyAPIKey, "")
	if err != nil {
		c.logger.Warn("Failed to read stored API key", zap.Error(err))
	}
	if key == "" {
		key = c.envAPIKey
	}
	if key == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil || c.clientKey != key {
		c.client = c.newClient(key)
		c.clientKey = key
	}
	return c.client, true
}

// readFailed logs a settings read error; the caller keeps the default
func (c *Cog) readFailed(key string, err error) {
	if err != nil {
		c.logger.Warn("Failed to read chat setting", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cog) pplxSet(ctx *discord.Context) error {
	sub, value, _ := strings.Cut(ctx.Args, " ")
	value = strings.TrimSpace(value)
	bg := context.Background()

	switch strings.ToLower(sub) {
	case "model":
		if value == "" {
			return ctx.Send("Usage: pplxset model <model>")
		}
		if err := c.settings.Set(bg, KeyModel, value); err != nil {
			return err
		}
		return ctx.Send(fmt.Sprintf("Model set to `%s`", value))

	case "tokens":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return ctx.Send("Max tokens must be a positive number")
		}
		if err := c.settings.SetInt(bg, KeyMaxTokens, n); err != nil {
			return err
		}
		return ctx.Send(fmt.Sprintf("Max tokens set to %d", n))

	case "mention", "reply":
		key, label := KeyMention, "mentions"
		if strings.EqualFold(sub, "reply") {
			key, label = KeyReply, "replies"
		}
		current, err := c.settings.Bool(bg, key, true)
		if err != nil && value == "" {
			return err
		}
		next := !current
		if value != "" {
			b, err := strconv.ParseBool(value)
			if err != nil {
				return ctx.Send(fmt.Sprintf("Usage: pplxset %s [true|false]", key))
			}
			next = b
		}
		if err := c.settings.SetBool(bg, key, next); err != nil {
			return err
		}
		return ctx.Send(fmt.Sprintf("Responding to %s is now %s", label, enabled(next)))

	case "prompt":
		if err := c.settings.Set(bg, KeyPromptInsert, value); err != nil {
			return err
		}
		if value == "" {
			return ctx.Send("Prompt insert cleared")
		}
		return ctx.Send("Prompt insert set")

	case "key":
		if value == "" {
			return ctx.Send("Usage: pplxset key <api_key>")
		}
		if err := c.settings.Set(bg, KeyAPIKey, value); err != nil {
			return err
		}
		// The key should not stay visible in the channel
		if err := ctx.Session.ChannelMessageDelete(ctx.Message.ChannelID, ctx.Message.ID); err != nil {
			ctx.Logger.Warn("Failed to delete message containing API key", zap.Error(err))
		}
		return ctx.Send("API key set")

	case "show", "":
		return c.show(ctx)
	}

	return ctx.Send("Unknown setting. Use one of: model, tokens, mention, reply, prompt, key, show")
}

func (c *Cog) show(ctx *discord.Context) error {
	bg := context.Background()
	model, err := c.settings.String(bg, KeyModel, DefaultModel)
	c.readFailed(KeyModel, err)
	tokens, err := c.settings.Int(bg, KeyMaxTokens, DefaultMaxTokens)
	c.readFailed(KeyMaxTokens, err)
	mention, err := c.settings.Bool(bg, KeyMention, true)
	c.readFailed(KeyMention, err)
	reply, err := c.settings.Bool(bg, KeyReply, true)
	c.readFailed(KeyReply, err)
	prompt, err := c.settings.String(bg, KeyPromptInsert, "")
	c.readFailed(KeyPromptInsert, err)
	_, hasKey := c.currentClient(bg)

	if prompt == "" {
		prompt = "(none)"
	}
	return ctx.SendLong(fmt.Sprintf(
		"Model: `%s`\nMax tokens: %d\nMentions: %s\nReplies: %s\nAPI key: %s\nPrompt insert: %s",
		model, tokens, enabled(mention), enabled(reply), setOrNot(hasKey), prompt,
	))
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func setOrNot(b bool) string {
	if b {
		return "set"
	}
	return "not set"
}
