package constants

import "time"

// Discord constants
const (
	// DiscordMaxMessageLength is the maximum character limit for Discord messages
	DiscordMaxMessageLength = 2000

	// DefaultChunkLimit leaves headroom under DiscordMaxMessageLength for reply
	// mentions and fence markers
	DefaultChunkLimit = 1950

	// ChunkSendDelay is the pause between consecutive chunks of one response
	ChunkSendDelay = 100 * time.Millisecond

	// ReactionDelay is the pause between consecutive reactions on one message
	ReactionDelay = 250 * time.Millisecond
)

// Settings scopes
const (
	ScopeAvailability = "availability"
	ScopeChat         = "chat"
)

// Cog names, as used in the cog file's disabled list
const (
	CogAvailability = "availability"
	CogNFO          = "nfo"
	CogGreeting     = "greeting"
	CogLinkRewrite  = "linkrewrite"
	CogMedal        = "medal"
	CogMinecraft    = "minecraft"
	CogChat         = "chat"
)
