// Package discordtest provides a recording fake of discord.Session for tests.
package discordtest

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// ErrUnknownEmoji is returned by GuildEmoji for IDs missing from Emojis
var ErrUnknownEmoji = errors.New("unknown emoji")

// Sent is one outgoing message recorded by Session
type Sent struct {
	ChannelID string
	Content   string
	Reference *discordgo.MessageReference
	Embed     *discordgo.MessageEmbed
	Files     map[string][]byte
}

// Reaction is one reaction recorded by Session
type Reaction struct {
	ChannelID string
	MessageID string
	Emoji     string
}

// Session records every call. Set the *Err fields to make calls fail.
type Session struct {
	mu sync.Mutex

	Sent      []Sent
	Reactions []Reaction
	Deleted   []string
	Typing    int
	Emojis    map[string]*discordgo.Emoji

	SendErr   error
	DeleteErr error
	ReactErr  error

	emojiLookups int
	nextID       int
}

// NewSession returns an empty fake session
func NewSession() *Session {
	return &Session{Emojis: make(map[string]*discordgo.Emoji)}
}

func (s *Session) record(sent Sent) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SendErr != nil {
		return nil, s.SendErr
	}
	s.Sent = append(s.Sent, sent)
	s.nextID++
	return &discordgo.Message{
		ID:        fmt.Sprintf("sent-%d", s.nextID),
		ChannelID: sent.ChannelID,
		Content:   sent.Content,
	}, nil
}

func (s *Session) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	return s.record(Sent{ChannelID: channelID, Content: content})
}

func (s *Session) ChannelMessageSendReply(channelID, content string, reference *discordgo.MessageReference, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	return s.record(Sent{ChannelID: channelID, Content: content, Reference: reference})
}

func (s *Session) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	sent := Sent{ChannelID: channelID, Content: data.Content, Reference: data.Reference}
	if len(data.Embeds) > 0 {
		sent.Embed = data.Embeds[0]
	}
	if len(data.Files) > 0 {
		sent.Files = make(map[string][]byte, len(data.Files))
		for _, f := range data.Files {
			body, err := io.ReadAll(f.Reader)
			if err != nil {
				return nil, err
			}
			sent.Files[f.Name] = body
		}
	}
	return s.record(sent)
}

func (s *Session) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	return s.record(Sent{ChannelID: channelID, Embed: embed})
}

func (s *Session) ChannelMessageDelete(channelID, messageID string, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.Deleted = append(s.Deleted, messageID)
	return nil
}

func (s *Session) MessageReactionAdd(channelID, messageID, emojiID string, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReactErr != nil {
		return s.ReactErr
	}
	s.Reactions = append(s.Reactions, Reaction{ChannelID: channelID, MessageID: messageID, Emoji: emojiID})
	return nil
}

func (s *Session) ChannelTyping(channelID string, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Typing++
	return nil
}

func (s *Session) GuildEmoji(guildID, emojiID string, _ ...discordgo.RequestOption) (*discordgo.Emoji, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emojiLookups++
	if e, ok := s.Emojis[emojiID]; ok {
		return e, nil
	}
	return nil, ErrUnknownEmoji
}

// EmojiLookups returns how many times GuildEmoji was called
func (s *Session) EmojiLookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emojiLookups
}

// Contents returns the text of every sent message in order
func (s *Session) Contents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.Sent))
	for _, m := range s.Sent {
		out = append(out, m.Content)
	}
	return out
}

// ReactionEmojis returns the reactions added so far, in order
func (s *Session) ReactionEmojis() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.Reactions))
	for _, r := range s.Reactions {
		out = append(out, r.Emoji)
	}
	return out
}

// Message builds an incoming message for tests
func Message(id, channelID, authorID, content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        id,
		ChannelID: channelID,
		GuildID:   "guild",
		Content:   content,
		Author:    &discordgo.User{ID: authorID, Username: "user-" + authorID},
	}
}
