package discord

import (
	"context"
)

// Cog is a named group of commands and, optionally, message listeners
type Cog interface {
	Name() string
	Commands() []Command
}

// Listener is implemented by cogs that look at every message
type Listener interface {
	OnMessage(c *Context)
}

// Starter is implemented by cogs that run background work while the bot is connected
type Starter interface {
	Start(ctx context.Context) error
	Stop()
}

// Command is a prefix command such as "!nfo <dirname>"
type Command struct {
	Name    string
	Aliases []string
	Usage   string
	Help    string
	Run     func(c *Context) error
}
