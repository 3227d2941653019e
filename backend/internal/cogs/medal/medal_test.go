package medal

import (
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"cogbot/backend/internal/discord"
	"cogbot/backend/internal/discord/discordtest"
	"cogbot/backend/pkg/config"
)

const banned = "https://medal.tv/?utm_source=discord&utm_content=share_message"

func setup() (*discord.Handler, *discordtest.Session) {
	h := discord.NewHandler("!", zap.NewNop())
	h.Register(New(config.MedalConfig{UserID: "target", ChannelID: "clips", BannedURL: banned}, zap.NewNop()))
	return h, discordtest.NewSession()
}

func TestOnMessage_DeletesBannedLink(t *testing.T) {
	h, s := setup()

	h.Dispatch(s, "bot", discordtest.Message("m1", "clips", "target", "check this "+banned+"/clip"))
	assert.Equal(t, []string{"m1"}, s.Deleted)
}

func TestOnMessage_LeavesOthersAlone(t *testing.T) {
	tests := []struct {
		name, channel, author, content string
	}{
		{"other user", "clips", "someone", banned},
		{"other channel", "general", "target", banned},
		{"other link", "clips", "target", "https://medal.tv/clips/123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, s := setup()
			h.Dispatch(s, "bot", discordtest.Message("m1", tt.channel, tt.author, tt.content))
			assert.Empty(t, s.Deleted)
		})
	}
}

func TestOnMessage_DeleteErrorsAreSwallowed(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusNotFound, http.StatusInternalServerError} {
		h, s := setup()
		s.DeleteErr = &discordgo.RESTError{
			Response:     &http.Response{StatusCode: status, Status: http.StatusText(status)},
			ResponseBody: []byte(`{}`),
		}

		assert.NotPanics(t, func() {
			h.Dispatch(s, "bot", discordtest.Message("m1", "clips", "target", banned))
		})
		assert.Empty(t, s.Sent, "deletion failures are never reported in chat")
	}
}
