// Package greeting reacts to the channel's time-of-day greetings and counts
// the morning "gumo" streak.
package greeting

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ReneKroon/ttlcache/v2"
	"go.uber.org/zap"

	"cogbot/backend/internal/constants"
	"cogbot/backend/internal/discord"
	"cogbot/backend/pkg/config"
)

const (
	streakWord = "gumo"
	minStreak  = 3
	maxStreak  = 33
)

// Window is the part of the day, in local hours [Start, End), a greeting belongs to.
// Windows with Start > End wrap past midnight.
type Window struct {
	Greeting   string
	Start, End int
}

// Windows in the order messages are checked
var Windows = []Window{
	{"gumo", 6, 10},
	{"guvomi", 10, 12},
	{"gumi", 12, 14},
	{"gunami", 14, 18},
	{"guab", 18, 22},
	{"guna", 22, 6},
}

// Contains reports whether hour falls inside the window
func (w Window) Contains(hour int) bool {
	if w.Start > w.End {
		return hour >= w.Start || hour < w.End
	}
	return w.Start <= hour && hour < w.End
}

var keycaps = [...]string{"0️⃣", "1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣"}

// StreakEmojis returns the reactions announcing streak n, or nil when n is
// outside the announced range. Discord rejects the same reaction twice on one
// message, so 11 and 22 get stand-ins.
func StreakEmojis(n int) []string {
	if n < minStreak || n >= maxStreak {
		return nil
	}
	switch n {
	case 10:
		return []string{"🔟"}
	case 11:
		return []string{"⏸️"}
	case 22:
		return []string{"2️⃣", "🥈"}
	}

	var out []string
	for _, d := range strconv.Itoa(n) {
		out = append(out, keycaps[d-'0'])
	}
	return out
}

// Watcher is the greeting cog
type Watcher struct {
	cfg    config.GreetingConfig
	loc    *time.Location
	now    func() time.Time
	pause  time.Duration
	emojis *ttlcache.Cache
	logger *zap.Logger

	mu     sync.Mutex
	streak int
	users  map[string]bool
}

// New creates the greeting cog for the configured channel
func New(cfg config.GreetingConfig, logger *zap.Logger) (*Watcher, error) {
	loc := time.Local
	if cfg.Timezone != "" && cfg.Timezone != "Local" {
		var err error
		if loc, err = time.LoadLocation(cfg.Timezone); err != nil {
			return nil, fmt.Errorf("greeting timezone %q: %w", cfg.Timezone, err)
		}
	}

	emojis := ttlcache.NewCache()
	_ = emojis.SetTTL(time.Hour)

	return &Watcher{
		cfg:    cfg,
		loc:    loc,
		now:    time.Now,
		pause:  constants.ReactionDelay,
		emojis: emojis,
		logger: logger.Named(constants.CogGreeting),
		users:  make(map[string]bool),
	}, nil
}

// Close releases the emoji cache
func (w *Watcher) Close() error {
	return w.emojis.Close()
}

func (w *Watcher) Name() string { return constants.CogGreeting }

func (w *Watcher) Commands() []discord.Command {
	return []discord.Command{{
		Name: "gumostreak",
		Help: "Show the current gumo streak",
		Run: func(c *discord.Context) error {
			return c.Send(fmt.Sprintf("Current gumo streak: %d", w.Streak()))
		},
	}}
}

// Streak returns the current streak length
func (w *Watcher) Streak() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.streak
}

func (w *Watcher) OnMessage(c *discord.Context) {
	if c.Message.ChannelID != w.cfg.ChannelID || c.FromBot() {
		return
	}
	content := strings.ToLower(c.Message.Content)

	w.updateStreak(c, content)
	w.checkGreetings(c, content)
}

func (w *Watcher) updateStreak(c *discord.Context, content string) {
	authorID := c.Message.Author.ID

	w.mu.Lock()
	var streak, broken int
	if strings.Contains(content, streakWord) && !w.users[authorID] {
		w.streak++
		w.users[authorID] = true
		streak = w.streak
	} else {
		broken = w.streak
		w.streak = 0
		w.users = make(map[string]bool)
	}
	w.mu.Unlock()

	if broken >= minStreak {
		w.logger.Info("Gumo streak broken", zap.Int("streak", broken), zap.String("user_id", authorID))
		w.react(c, w.cfg.StreakBreak)
		return
	}

	emojis := StreakEmojis(streak)
	for _, e := range emojis {
		time.Sleep(w.pause)
		w.react(c, e)
	}
	if len(emojis) > 0 {
		time.Sleep(w.pause)
	}
}

func (w *Watcher) checkGreetings(c *discord.Context, content string) {
	hour := w.now().In(w.loc).Hour()
	for _, win := range Windows {
		if !strings.Contains(content, win.Greeting) {
			continue
		}
		switch {
		case !win.Contains(hour):
			w.react(c, w.cfg.WarnEmoji)
		case win.Greeting == "guna":
			w.react(c, w.cfg.NightEmoji)
		default:
			w.react(c, w.cfg.OKEmoji)
		}
	}
}

// react adds emoji, resolving numeric custom emoji IDs through the guild first
func (w *Watcher) react(c *discord.Context, emoji string) {
	name, err := w.resolve(c, emoji)
	if err != nil {
		w.logger.Warn("Failed to resolve emoji", zap.String("emoji", emoji), zap.Error(err))
		return
	}
	if err := c.React(name); err != nil {
		w.logger.Warn("Failed to add reaction", zap.String("emoji", name), zap.Error(err))
	}
}

func (w *Watcher) resolve(c *discord.Context, emoji string) (string, error) {
	if _, err := strconv.ParseUint(emoji, 10, 64); err != nil {
		return emoji, nil
	}

	key := c.Message.GuildID + "/" + emoji
	if v, err := w.emojis.Get(key); err == nil {
		return v.(string), nil
	}

	e, err := c.Session.GuildEmoji(c.Message.GuildID, emoji)
	if err != nil {
		return "", err
	}
	name := e.APIName()
	_ = w.emojis.Set(key, name)
	return name, nil
}
