package discord

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler routes Discord messages to the registered cogs
type Handler struct {
	prefix    string
	logger    *zap.Logger
	cogs      []Cog
	commands  map[string]*route
	listeners []Listener
	starters  []Starter

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
}

type route struct {
	cog     string
	command Command
}

// NewHandler creates a handler for commands starting with prefix
func NewHandler(prefix string, logger *zap.Logger) *Handler {
	h := &Handler{
		prefix:   prefix,
		logger:   logger,
		commands: make(map[string]*route),
	}
	h.addCommand("core", Command{
		Name:  "help",
		Usage: "help",
		Help:  "List all commands",
		Run:   h.runHelp,
	})
	return h
}

// Register adds cogs to the handler. Command names and aliases are case-insensitive;
// a later registration of the same name replaces the earlier one.
func (h *Handler) Register(cogs ...Cog) {
	for _, cog := range cogs {
		h.cogs = append(h.cogs, cog)
		for _, cmd := range cog.Commands() {
			h.addCommand(cog.Name(), cmd)
		}
		if l, ok := cog.(Listener); ok {
			h.listeners = append(h.listeners, l)
		}
		if s, ok := cog.(Starter); ok {
			h.starters = append(h.starters, s)
		}
		h.logger.Info("Registered cog",
			zap.String("cog", cog.Name()),
			zap.Int("commands", len(cog.Commands())),
		)
	}
}

func (h *Handler) addCommand(cog string, cmd Command) {
	r := &route{cog: cog, command: cmd}
	for _, name := range append([]string{cmd.Name}, cmd.Aliases...) {
		key := strings.ToLower(name)
		if prev, ok := h.commands[key]; ok {
			h.logger.Warn("Command name registered twice",
				zap.String("command", key),
				zap.String("previous_cog", prev.cog),
				zap.String("cog", cog),
			)
		}
		h.commands[key] = r
	}
}

// Cogs returns the registered cogs in registration order
func (h *Handler) Cogs() []Cog {
	return h.cogs
}

// Start runs every Starter cog. It is safe to call more than once; only the
// first call starts anything, which matters because Ready fires on reconnects.
func (h *Handler) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return nil
	}

	ctx, h.cancel = context.WithCancel(ctx)
	for _, s := range h.starters {
		if err := s.Start(ctx); err != nil {
			h.cancel()
			return err
		}
	}
	h.started = true
	return nil
}

// Stop stops every Starter cog
func (h *Handler) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return
	}
	h.cancel()
	for _, s := range h.starters {
		s.Stop()
	}
	h.started = false
}

// HandleMessage is the discordgo MessageCreate callback
func (h *Handler) HandleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if s.State == nil || s.State.User == nil {
		return
	}
	h.Dispatch(s, s.State.User.ID, m.Message)
}

// Dispatch runs the matching command, if any, and then every listener.
// Messages authored by the bot itself are ignored.
func (h *Handler) Dispatch(s Session, botID string, m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.ID == botID {
		return
	}

	base := Context{
		Session: s,
		BotID:   botID,
		Prefix:  h.prefix,
		Message: m,
	}

	if name, args, ok := h.parseCommand(m.Content); ok {
		if r, found := h.commands[name]; found {
			c := base
			c.Command = name
			c.Args = args
			c.RequestID = uuid.New().String()
			c.Logger = h.logger.With(
				zap.String("cog", r.cog),
				zap.String("command", r.command.Name),
				zap.String("request_id", c.RequestID),
			)
			h.runCommand(&c, r)
		}
	}

	var wg sync.WaitGroup
	for _, l := range h.listeners {
		wg.Add(1)
		go func(l Listener) {
			defer wg.Done()
			c := base
			c.Logger = h.logger.With(zap.String("message_id", m.ID))
			defer h.recoverPanic(c.Logger)
			l.OnMessage(&c)
		}(l)
	}
	wg.Wait()
}

func (h *Handler) parseCommand(content string) (name, args string, ok bool) {
	content = strings.TrimSpace(content)
	if h.prefix == "" || !strings.HasPrefix(content, h.prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(content, h.prefix)
	name, args, _ = strings.Cut(rest, " ")
	if name == "" {
		return "", "", false
	}
	return strings.ToLower(name), strings.TrimSpace(args), true
}

func (h *Handler) runCommand(c *Context, r *route) {
	defer h.recoverPanic(c.Logger)

	c.Logger.Info("Running command",
		zap.String("user_id", c.Message.Author.ID),
		zap.String("channel_id", c.Message.ChannelID),
	)

	if err := r.command.Run(c); err != nil {
		c.Logger.Error("Command failed", zap.Error(err))
		if replyErr := c.Reply("Sorry, something went wrong running that command."); replyErr != nil {
			c.Logger.Error("Failed to send error reply", zap.Error(replyErr))
		}
	}
}

func (h *Handler) recoverPanic(log *zap.Logger) {
	if r := recover(); r != nil {
		log.Error("Recovered from panic in cog",
			zap.Any("panic", r),
			zap.ByteString("stack", debug.Stack()),
		)
	}
}

func (h *Handler) runHelp(c *Context) error {
	byCog := make(map[string][]Command)
	seen := make(map[string]bool)
	for _, r := range h.commands {
		if seen[r.cog+"/"+r.command.Name] {
			continue
		}
		seen[r.cog+"/"+r.command.Name] = true
		byCog[r.cog] = append(byCog[r.cog], r.command)
	}

	cogs := make([]string, 0, len(byCog))
	for name := range byCog {
		cogs = append(cogs, name)
	}
	sort.Strings(cogs)

	var b strings.Builder
	for _, cog := range cogs {
		cmds := byCog[cog]
		sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })

		fmt.Fprintf(&b, "**%s**\n", cog)
		for _, cmd := range cmds {
			usage := cmd.Usage
			if usage == "" {
				usage = cmd.Name
			}
			fmt.Fprintf(&b, "`%s%s` %s\n", h.prefix, usage, cmd.Help)
		}
		b.WriteString("\n")
	}

	return c.SendLong(b.String())
}
