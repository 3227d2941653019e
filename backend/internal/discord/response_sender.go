package discord

import (
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"cogbot/backend/internal/chunker"
	"cogbot/backend/internal/constants"
	apperrors "cogbot/backend/pkg/errors"
)

// chunkDelay is a variable so tests can drop the pause
var chunkDelay = constants.ChunkSendDelay

// SendChunks splits content with the chunker and sends one message per chunk,
// pausing between sends to stay clear of rate limits. When reference is set
// the first chunk is sent as a reply to it.
func SendChunks(s Session, channelID, content string, reference *discordgo.MessageReference) error {
	chunks, err := chunker.Split(content, constants.DefaultChunkLimit)
	if err != nil {
		return err
	}

	for i, chunk := range chunks {
		if i > 0 {
			time.Sleep(chunkDelay)
		}

		var sendErr error
		if i == 0 && reference != nil {
			_, sendErr = s.ChannelMessageSendReply(channelID, chunk, reference)
		} else {
			_, sendErr = s.ChannelMessageSend(channelID, chunk)
		}
		if sendErr != nil {
			return SendError(channelID, i+1, sendErr)
		}
	}

	return nil
}

// SendError wraps a failed send of the given chunk. A 404 or an unknown
// channel code from Discord becomes ErrDiscordChannelNotFound.
func SendError(channelID string, chunk int, err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		notFound := restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
		unknown := restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownChannel
		if notFound || unknown {
			return apperrors.NewDiscordChannelNotFound(channelID, err)
		}
	}
	return apperrors.NewDiscordMessageSendFailed(channelID, chunk, err)
}
