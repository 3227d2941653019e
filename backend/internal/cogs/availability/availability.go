// Package availability watches a web page for a search string and announces
// when it appears or disappears.
package availability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"cogbot/backend/internal/constants"
	"cogbot/backend/internal/discord"
	"cogbot/backend/internal/store"
	apperrors "cogbot/backend/pkg/errors"
)

// Setting keys
const (
	KeyURL             = "url"
	KeyChannelID       = "channel_id"
	KeySearch          = "search"
	KeyFoundMessage    = "found_message"
	KeyNotFoundMessage = "not_found_message"
	KeyInterval        = "interval"
	KeySelector        = "selector"
)

// Defaults
const (
	DefaultFoundMessage    = "found"
	DefaultNotFoundMessage = "not found"
	DefaultInterval        = 12 * time.Hour
)

const notConfiguredMessage = "URL, search string, or channel ID not set."

var channelMention = regexp.MustCompile(`^<#(\d+)>$`)

// Result of one check
type Result int

const (
	NotConfigured Result = iota
	Found
	NotFound
	Failed
)

// Checker is the availability cog
type Checker struct {
	session  discord.Session
	settings *store.Settings
	client   *http.Client
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.Mutex
	found     bool
	lastCheck time.Time
	lastErr   error

	reset  chan time.Duration
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates the availability cog
func New(session discord.Session, st store.Store, client *http.Client, logger *zap.Logger) *Checker {
	return &Checker{
		session:  session,
		settings: store.Scoped(st, constants.ScopeAvailability),
		client:   client,
		logger:   logger.Named(constants.CogAvailability),
		now:      time.Now,
		reset:    make(chan time.Duration, 1),
	}
}

func (c *Checker) Name() string { return constants.CogAvailability }

// Start runs the first check right away and then one per interval
func (c *Checker) Start(ctx context.Context) error {
	interval, err := c.settings.Duration(ctx, KeyInterval, DefaultInterval)
	if err != nil {
		c.logger.Warn("Failed to read interval, using default", zap.Error(err))
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.loop(ctx, interval)
	return nil
}

// Stop ends the poll loop and waits for it
func (c *Checker) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

func (c *Checker) loop(ctx context.Context, interval time.Duration) {
	defer close(c.done)

	c.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-c.reset:
			c.logger.Info("Check interval changed", zap.Duration("interval", d))
			ticker.Reset(d)
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check fetches the page once and posts a message when the found state flips
func (c *Checker) Check(ctx context.Context) Result {
	url, urlErr := c.settings.String(ctx, KeyURL, "")
	search, searchErr := c.settings.String(ctx, KeySearch, "")
	channelID, channelErr := c.settings.String(ctx, KeyChannelID, "")
	if err := errors.Join(urlErr, searchErr, channelErr); err != nil {
		c.logger.Warn("Failed to read availability settings", zap.Error(err))
		return Failed
	}
	if url == "" || search == "" || channelID == "" {
		return NotConfigured
	}
	selector, err := c.settings.String(ctx, KeySelector, "")
	c.readFailed(KeySelector, err)

	ok, err := Search(ctx, c.client, url, search, selector)

	c.mu.Lock()
	c.lastCheck = c.now()
	c.lastErr = err
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("Availability check failed", zap.String("url", url), zap.Error(err))
		return Failed
	}
	wasFound := c.found
	c.found = ok
	c.mu.Unlock()

	c.logger.Debug("Availability checked", zap.String("url", url), zap.Bool("found", ok))

	switch {
	case ok && !wasFound:
		msg, err := c.settings.String(ctx, KeyFoundMessage, DefaultFoundMessage)
		c.readFailed(KeyFoundMessage, err)
		c.announce(channelID, msg)
	case !ok && wasFound:
		msg, err := c.settings.String(ctx, KeyNotFoundMessage, DefaultNotFoundMessage)
		c.readFailed(KeyNotFoundMessage, err)
		c.announce(channelID, msg)
	}

	if ok {
		return Found
	}
	return NotFound
}

// readFailed logs a settings read error; the caller keeps the default
func (c *Checker) readFailed(key string, err error) {
	if err != nil {
		c.logger.Warn("Failed to read availability setting", zap.String("key", key), zap.Error(err))
	}
}

func (c *Checker) announce(channelID, msg string) {
	if _, err := c.session.ChannelMessageSend(channelID, msg); err != nil {
		var notFound *apperrors.ErrDiscordChannelNotFound
		if errors.As(discord.SendError(channelID, 1, err), &notFound) {
			c.logger.Warn("Availability channel not found, set a new one with setChannel",
				zap.String("channel_id", channelID),
			)
			return
		}
		c.logger.Error("Failed to send availability message",
			zap.String("channel_id", channelID),
			zap.Error(err),
		)
	}
}

func (c *Checker) Commands() []discord.Command {
	return []discord.Command{
		{Name: "setChannel", Usage: "setChannel <channel id>", Help: "Set the notification channel", Run: c.setChannel},
		{Name: "channel", Help: "Show the notification channel", Run: c.showChannel},
		{Name: "setUrl", Usage: "setUrl <url>", Help: "Set the page to check", Run: c.setter(KeyURL, "URL set")},
		{Name: "url", Help: "Show the page being checked", Run: c.show(KeyURL, "")},
		{Name: "setInterval", Usage: "setInterval <n> <seconds|minutes|hours>", Help: "Set the check interval", Run: c.setInterval},
		{Name: "interval", Help: "Show the check interval", Run: c.showInterval},
		{Name: "setFoundMessage", Aliases: []string{"setAvailableMessage"}, Usage: "setFoundMessage <message>", Help: "Message to send when the search string appears", Run: c.setter(KeyFoundMessage, "Message set")},
		{Name: "foundMessage", Help: "Show the found message", Run: c.show(KeyFoundMessage, DefaultFoundMessage)},
		{Name: "setNotFoundMessage", Aliases: []string{"setUnavailableMessage"}, Usage: "setNotFoundMessage <message>", Help: "Message to send when the search string disappears", Run: c.setter(KeyNotFoundMessage, "Message set")},
		{Name: "notFoundMessage", Help: "Show the not found message", Run: c.show(KeyNotFoundMessage, DefaultNotFoundMessage)},
		{Name: "setSearchString", Usage: "setSearchString <text>", Help: "Text to look for in the page", Run: c.setter(KeySearch, "Search string set")},
		{Name: "searchString", Help: "Show the search string", Run: c.show(KeySearch, "")},
		{Name: "setSelector", Usage: "setSelector [css selector]", Help: "Only search inside matching elements; empty clears", Run: c.setSelector},
		{Name: "checkNow", Help: "Run a check right away", Run: c.checkNow},
		{Name: "acInfo", Help: "Show the current setup", Run: c.info},
		{Name: "acPing", Help: "Check that the cog is alive", Run: c.ping},
	}
}

func (c *Checker) setter(key, confirmation string) func(*discord.Context) error {
	return func(ctx *discord.Context) error {
		if ctx.Args == "" {
			return ctx.Send("Missing value.")
		}
		if err := c.settings.Set(context.Background(), key, ctx.Args); err != nil {
			return err
		}
		return ctx.Send(confirmation)
	}
}

func (c *Checker) show(key, def string) func(*discord.Context) error {
	return func(ctx *discord.Context) error {
		v, err := c.settings.String(context.Background(), key, def)
		if err != nil {
			return err
		}
		return ctx.Send(orNotSet(v))
	}
}

func (c *Checker) setChannel(ctx *discord.Context) error {
	id := ctx.Args
	if m := channelMention.FindStringSubmatch(id); m != nil {
		id = m[1]
	}
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return ctx.Send("Usage: setChannel <channel id>")
	}
	if err := c.settings.Set(context.Background(), KeyChannelID, id); err != nil {
		return err
	}
	return ctx.Send(fmt.Sprintf("Notifications will be sent to <#%s>", id))
}

func (c *Checker) showChannel(ctx *discord.Context) error {
	id, err := c.settings.String(context.Background(), KeyChannelID, "")
	if err != nil {
		return err
	}
	if id == "" {
		return ctx.Send("Not set")
	}
	return ctx.Send(fmt.Sprintf("<#%s>", id))
}

// ParseInterval turns "<n> <seconds|minutes|hours>" arguments into a duration
func ParseInterval(amount, unit string) (time.Duration, bool) {
	n, err := strconv.Atoi(amount)
	if err != nil || n <= 0 {
		return 0, false
	}
	switch strings.ToLower(unit) {
	case "seconds":
		return time.Duration(n) * time.Second, true
	case "minutes":
		return time.Duration(n) * time.Minute, true
	case "hours":
		return time.Duration(n) * time.Hour, true
	}
	return 0, false
}

func (c *Checker) setInterval(ctx *discord.Context) error {
	args := ctx.Fields()
	if len(args) != 2 {
		return ctx.Send("error")
	}
	d, ok := ParseInterval(args[0], args[1])
	if !ok {
		return ctx.Send("error")
	}

	if err := c.settings.SetDuration(context.Background(), KeyInterval, d); err != nil {
		return err
	}

	// Drop a pending change nobody picked up yet
	select {
	case <-c.reset:
	default:
	}
	select {
	case c.reset <- d:
	default:
	}

	return ctx.Send(fmt.Sprintf("Message will be sent every %s %s", args[0], strings.ToLower(args[1])))
}

func (c *Checker) showInterval(ctx *discord.Context) error {
	d, err := c.settings.Duration(context.Background(), KeyInterval, DefaultInterval)
	if err != nil {
		return err
	}
	return ctx.Send(d.String())
}

func (c *Checker) setSelector(ctx *discord.Context) error {
	if err := c.settings.Set(context.Background(), KeySelector, ctx.Args); err != nil {
		return err
	}
	if ctx.Args == "" {
		return ctx.Send("Selector cleared")
	}
	return ctx.Send("Selector set")
}

func (c *Checker) checkNow(ctx *discord.Context) error {
	switch c.Check(context.Background()) {
	case NotConfigured:
		return ctx.Send(notConfiguredMessage)
	case Found:
		return ctx.Send("Search string found.")
	case NotFound:
		return ctx.Send("Search string not found.")
	default:
		c.mu.Lock()
		err := c.lastErr
		c.mu.Unlock()
		return ctx.Send(fmt.Sprintf("Check failed: %v", err))
	}
}

func (c *Checker) info(ctx *discord.Context) error {
	values, err := c.settings.All(context.Background())
	if err != nil {
		return err
	}
	get := func(key, def string) string {
		if v, ok := values[key]; ok && v != "" {
			return v
		}
		return orNotSet(def)
	}

	interval, err := c.settings.Duration(context.Background(), KeyInterval, DefaultInterval)
	if err != nil {
		return err
	}

	c.mu.Lock()
	lastCheck, found, lastErr := c.lastCheck, c.found, c.lastErr
	c.mu.Unlock()

	status := "Never checked"
	if !lastCheck.IsZero() {
		status = fmt.Sprintf("%s (found: %t)", humanize.RelTime(lastCheck, c.now(), "ago", "from now"), found)
		if lastErr != nil {
			status += fmt.Sprintf("\nLast error: %v", lastErr)
		}
	}

	channel := get(KeyChannelID, "")
	if channel != "Not set" {
		channel = fmt.Sprintf("<#%s>", channel)
	}

	return ctx.SendEmbed(&discordgo.MessageEmbed{
		Title: "Current AvailabilityChecker values",
		Color: 0x3498db,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "URL", Value: get(KeyURL, "")},
			{Name: "Channel", Value: channel},
			{Name: "Search String", Value: get(KeySearch, "")},
			{Name: "Selector", Value: get(KeySelector, "")},
			{Name: "Found Message", Value: get(KeyFoundMessage, DefaultFoundMessage)},
			{Name: "Not Found Message", Value: get(KeyNotFoundMessage, DefaultNotFoundMessage)},
			{Name: "Interval", Value: interval.String()},
			{Name: "Last Check", Value: status},
		},
	})
}

func (c *Checker) ping(ctx *discord.Context) error {
	ctx.Logger.Info("Pong")
	return ctx.Send("Pong")
}

func orNotSet(v string) string {
	if v == "" {
		return "Not set"
	}
	return v
}
