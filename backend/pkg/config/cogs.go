package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	apperrors "cogbot/backend/pkg/errors"
)

// CogsConfig holds the channel, user and emoji IDs each cog works with
type CogsConfig struct {
	Disabled []string       `yaml:"disabled"`
	Greeting GreetingConfig `yaml:"greeting"`
	Medal    MedalConfig    `yaml:"medal"`
	Kicker   KickerConfig   `yaml:"kicker"`
}

// GreetingConfig configures the greeting watcher
type GreetingConfig struct {
	ChannelID string `yaml:"channel_id"`
	Timezone  string `yaml:"timezone"`
	// Emoji values are custom emoji IDs or unicode emoji
	OKEmoji     string `yaml:"ok_emoji"`
	NightEmoji  string `yaml:"night_emoji"`
	WarnEmoji   string `yaml:"warn_emoji"`
	StreakBreak string `yaml:"streak_break_emoji"`
}

// MedalConfig configures the banned link remover
type MedalConfig struct {
	UserID    string `yaml:"user_id"`
	ChannelID string `yaml:"channel_id"`
	BannedURL string `yaml:"banned_url"`
}

// KickerConfig configures the chat-bridge kicker
type KickerConfig struct {
	WatchChannelID  string `yaml:"watch_channel_id"`
	ReportChannelID string `yaml:"report_channel_id"`
	Needle          string `yaml:"needle"`
	Reason          string `yaml:"reason"`
}

// DefaultCogs returns the settings the bot shipped with before they were configurable
func DefaultCogs() *CogsConfig {
	return &CogsConfig{
		Greeting: GreetingConfig{
			ChannelID:   "1218208566817587362",
			Timezone:    "Local",
			OKEmoji:     "1240917116329263135",
			NightEmoji:  "1311619322187223120",
			WarnEmoji:   "1304388231835422780",
			StreakBreak: "1298594465497354260",
		},
		Medal: MedalConfig{
			UserID:    "307998818547531777",
			ChannelID: "1349869798103842866",
			BannedURL: "https://medal.tv/?utm_source=discord&utm_content=share_message",
		},
		Kicker: KickerConfig{
			WatchChannelID:  "793150452430274601",
			ReportChannelID: "707383988200800358",
			Needle:          "sex",
			Reason:          "wir bleiben hier mal christlich",
		},
	}
}

// LoadCogs reads the cog file at path on top of DefaultCogs.
// A missing file is not an error.
func LoadCogs(path string) (*CogsConfig, error) {
	cfg := DefaultCogs()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, apperrors.NewBaseError(apperrors.ErrorTypeConfig, fmt.Sprintf("failed to read cog file: %s", path), err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, apperrors.NewBaseError(apperrors.ErrorTypeConfig, fmt.Sprintf("failed to parse cog file: %s", path), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the cog settings
func (c *CogsConfig) Validate() error {
	if c.Kicker.WatchChannelID != "" && c.Kicker.Needle == "" {
		return apperrors.NewConfigValidationFailed("kicker.needle", "required when watch_channel_id is set")
	}
	if c.Medal.ChannelID != "" && c.Medal.BannedURL == "" {
		return apperrors.NewConfigValidationFailed("medal.banned_url", "required when channel_id is set")
	}
	return nil
}

// Enabled reports whether the named cog is not listed under disabled
func (c *CogsConfig) Enabled(name string) bool {
	for _, d := range c.Disabled {
		if d == name {
			return false
		}
	}
	return true
}
