package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"cogbot/backend/internal/adapter"
	"cogbot/backend/internal/discord"
	"cogbot/backend/internal/discord/discordtest"
	"cogbot/backend/internal/store"
)

type fakeCompleter struct {
	mu       sync.Mutex
	key      string
	model    string
	tokens   int
	messages [][]adapter.Message
	answer   string
	err      error
}

func (f *fakeCompleter) Complete(_ context.Context, model string, maxTokens int, messages []adapter.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.model = model
	f.tokens = maxTokens
	f.messages = append(f.messages, messages)
	return f.answer, f.err
}

type harness struct {
	h       *discord.Handler
	s       *discordtest.Session
	st      *store.Memory
	clients []*fakeCompleter
	answer  string
	err     error
}

func newHarness(envKey string) *harness {
	hs := &harness{s: discordtest.NewSession(), st: store.NewMemory(), answer: "The answer."}
	factory := func(key string) Completer {
		f := &fakeCompleter{key: key, answer: hs.answer, err: hs.err}
		hs.clients = append(hs.clients, f)
		return f
	}
	hs.h = discord.NewHandler("!", zap.NewNop())
	hs.h.Register(New(hs.st, envKey, factory, time.Second, zap.NewNop()))
	return hs
}

func (hs *harness) post(m *discordgo.Message) {
	hs.h.Dispatch(hs.s, "bot", m)
}

func (hs *harness) say(content string) {
	hs.post(discordtest.Message("m1", "c1", "u1", content))
}

func TestStripTrigger(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"<@bot> what is go?", "what is go?"},
		{"<@!bot> what is go?", "what is go?"},
		{"<@bot> pplx what is go?", "what is go?"},
		{"CHAT hello", "hello"},
		{"hey <@bot> there", "hey <@bot> there"},
		{"line one\n<@bot> line two", "line one\nline two"},
		{"<@other> hi", "<@other> hi"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripTrigger(tt.content, "bot"), tt.content)
	}
}

func TestBuildMessages(t *testing.T) {
	assert.Equal(t, []adapter.Message{{Role: "user", Content: "hi"}}, BuildMessages("", " hi "))
	assert.Equal(t, []adapter.Message{
		{Role: "system", Content: "Answer in German."},
		{Role: "user", Content: "hi"},
	}, BuildMessages("Answer in German.", "hi"))
}

func TestPplxCommand(t *testing.T) {
	hs := newHarness("env-key")
	hs.say("!pplx what is go?")

	require.Len(t, hs.clients, 1)
	f := hs.clients[0]
	assert.Equal(t, "env-key", f.key)
	assert.Equal(t, DefaultModel, f.model)
	assert.Equal(t, DefaultMaxTokens, f.tokens)
	assert.Equal(t, []adapter.Message{{Role: "user", Content: "what is go?"}}, f.messages[0])

	require.Len(t, hs.s.Sent, 1)
	assert.Equal(t, "The answer.", hs.s.Sent[0].Content)
	assert.Equal(t, "m1", hs.s.Sent[0].Reference.MessageID)
	assert.Equal(t, 1, hs.s.Typing)
}

func TestPplx_NoKey(t *testing.T) {
	hs := newHarness("")
	hs.say("!chat hello")

	assert.Equal(t, []string{"Perplexity API key not set. Use `!pplxset key <api_key>`."}, hs.s.Contents())
	assert.Empty(t, hs.clients)
}

func TestPplx_Error(t *testing.T) {
	hs := newHarness("k")
	hs.err = errors.New("rate limited")
	hs.say("!pplx hello")

	assert.Equal(t, []string{"An error occurred: rate limited"}, hs.s.Contents())
}

type unreadableStore struct{ *store.Memory }

func (unreadableStore) Get(context.Context, string, string) (string, bool, error) {
	return "", false, errors.New("store down")
}

func TestRelay_UnreadableSettingsUseDefaultsAndLog(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := discordtest.NewSession()
	f := &fakeCompleter{answer: "ok"}
	h := discord.NewHandler("!", zap.NewNop())
	h.Register(New(unreadableStore{store.NewMemory()}, "env-key", func(string) Completer { return f }, time.Second, zap.New(core)))

	h.Dispatch(s, "bot", discordtest.Message("m1", "c1", "u1", "<@bot> hi"))

	assert.Equal(t, DefaultModel, f.model)
	assert.Equal(t, DefaultMaxTokens, f.tokens)
	assert.Equal(t, []string{"ok"}, s.Contents())

	keys := map[string]bool{}
	for _, e := range logs.FilterMessage("Failed to read chat setting").All() {
		keys[e.ContextMap()["key"].(string)] = true
	}
	for _, k := range []string{KeyMention, KeyReply, KeyModel, KeyMaxTokens, KeyPromptInsert} {
		assert.True(t, keys[k], "no warning for %s", k)
	}
	assert.Equal(t, 1, logs.FilterMessage("Failed to read stored API key").Len())
}

func TestPplx_LongAnswerIsChunked(t *testing.T) {
	hs := newHarness("k")
	hs.answer = strings.Repeat("Sentence number one. ", 300)
	hs.say("!pplx tell me a lot")

	require.Greater(t, len(hs.s.Sent), 1)
	assert.NotNil(t, hs.s.Sent[0].Reference)
	for _, m := range hs.s.Sent[1:] {
		assert.Nil(t, m.Reference)
	}
	for _, m := range hs.s.Sent {
		assert.LessOrEqual(t, len([]rune(m.Content)), 2000)
		assert.False(t, strings.HasSuffix(m.Content, "..."))
	}
}

func TestListener_Triggers(t *testing.T) {
	botMessage := &discordgo.Message{ID: "b1", Author: &discordgo.User{ID: "bot", Bot: true}}

	tests := []struct {
		name     string
		settings map[string]string
		msg      func() *discordgo.Message
		want     string // expected user content, empty for no call
	}{
		{
			name: "mention at start",
			msg:  func() *discordgo.Message { return discordtest.Message("m1", "c1", "u1", "<@bot> hi there") },
			want: "hi there",
		},
		{
			name: "mention not at line start",
			msg:  func() *discordgo.Message { return discordtest.Message("m1", "c1", "u1", "hi <@bot>") },
		},
		{
			name:     "mentions disabled",
			settings: map[string]string{KeyMention: "false"},
			msg:      func() *discordgo.Message { return discordtest.Message("m1", "c1", "u1", "<@bot> hi") },
		},
		{
			name: "reply to bot that mentions it",
			msg: func() *discordgo.Message {
				m := discordtest.Message("m1", "c1", "u1", "and then?")
				m.ReferencedMessage = botMessage
				m.Mentions = []*discordgo.User{{ID: "bot"}}
				return m
			},
			want: "and then?",
		},
		{
			name: "reply without mention",
			msg: func() *discordgo.Message {
				m := discordtest.Message("m1", "c1", "u1", "and then?")
				m.ReferencedMessage = botMessage
				return m
			},
		},
		{
			name:     "replies disabled",
			settings: map[string]string{KeyReply: "false"},
			msg: func() *discordgo.Message {
				m := discordtest.Message("m1", "c1", "u1", "and then?")
				m.ReferencedMessage = botMessage
				m.Mentions = []*discordgo.User{{ID: "bot"}}
				return m
			},
		},
		{
			name: "from a bot",
			msg: func() *discordgo.Message {
				m := discordtest.Message("m1", "c1", "u1", "<@bot> hi")
				m.Author.Bot = true
				return m
			},
		},
		{
			name: "commands are left to the command path",
			msg:  func() *discordgo.Message { return discordtest.Message("m1", "c1", "u1", "!help <@bot>") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := newHarness("k")
			for k, v := range tt.settings {
				require.NoError(t, hs.st.Set(context.Background(), "chat", k, v))
			}
			hs.post(tt.msg())

			if tt.want == "" {
				for _, c := range hs.clients {
					assert.Empty(t, c.messages)
				}
				return
			}
			require.Len(t, hs.clients, 1)
			require.Len(t, hs.clients[0].messages, 1)
			assert.Equal(t, tt.want, hs.clients[0].messages[0][0].Content)
		})
	}
}

func TestPplxSet(t *testing.T) {
	hs := newHarness("")

	hs.say("!pplxset model sonar-pro")
	hs.say("!pplxset tokens 800")
	hs.say("!pplxset tokens lots")
	hs.say("!pplxset mention")
	hs.say("!pplxset reply false")
	hs.say("!pplxset prompt Be brief.")
	hs.say("!pplxset nonsense")

	assert.Equal(t, []string{
		"Model set to `sonar-pro`",
		"Max tokens set to 800",
		"Max tokens must be a positive number",
		"Responding to mentions is now disabled",
		"Responding to replies is now disabled",
		"Prompt insert set",
		"Unknown setting. Use one of: model, tokens, mention, reply, prompt, key, show",
	}, hs.s.Contents())

	hs.s.Sent = nil
	hs.h.Dispatch(hs.s, "bot", discordtest.Message("secret-msg", "c1", "u1", "!pplxset key pplx-123"))
	assert.Equal(t, []string{"secret-msg"}, hs.s.Deleted)

	hs.say("!pplx hi")
	require.Len(t, hs.clients, 1)
	f := hs.clients[0]
	assert.Equal(t, "pplx-123", f.key)
	assert.Equal(t, "sonar-pro", f.model)
	assert.Equal(t, 800, f.tokens)
	assert.Equal(t, adapter.Message{Role: "system", Content: "Be brief."}, f.messages[0][0])

	hs.s.Sent = nil
	hs.say("!pplxset show")
	out := strings.Join(hs.s.Contents(), "\n")
	assert.Contains(t, out, "Model: `sonar-pro`")
	assert.Contains(t, out, "Max tokens: 800")
	assert.Contains(t, out, "Mentions: disabled")
	assert.Contains(t, out, "API key: set")
	assert.Contains(t, out, "Prompt insert: Be brief.")
}
