// Package nfo posts NFO files for scene and P2P releases, as an image from
// xrel.to or as text from srrDB.
package nfo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ReneKroon/ttlcache/v2"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"cogbot/backend/internal/constants"
	"cogbot/backend/internal/discord"
	apperrors "cogbot/backend/pkg/errors"
)

const cacheTTL = 10 * time.Minute

// ImageSource renders NFOs as images. *XrelClient implements it.
type ImageSource interface {
	Lookup(ctx context.Context, dirname string) (*Release, error)
	Image(ctx context.Context, rel *Release) ([]byte, error)
}

// TextSource returns NFOs as text. *SrrdbClient implements it.
type TextSource interface {
	Text(ctx context.Context, release string) (string, error)
}

// Cog is the NFO cog
type Cog struct {
	images  ImageSource // nil without xrel.to credentials
	texts   TextSource
	cache   *ttlcache.Cache
	timeout time.Duration
	logger  *zap.Logger
}

type cachedImage struct {
	release *Release
	png     []byte
}

// New creates the NFO cog. images may be nil, in which case every lookup goes
// to the text source.
func New(images ImageSource, texts TextSource, timeout time.Duration, logger *zap.Logger) *Cog {
	cache := ttlcache.NewCache()
	_ = cache.SetTTL(cacheTTL)
	cache.SkipTTLExtensionOnHit(true)

	return &Cog{
		images:  images,
		texts:   texts,
		cache:   cache,
		timeout: timeout,
		logger:  logger.Named(constants.CogNFO),
	}
}

// Close releases the lookup cache
func (c *Cog) Close() error {
	return c.cache.Close()
}

func (c *Cog) Name() string { return constants.CogNFO }

func (c *Cog) Commands() []discord.Command {
	return []discord.Command{
		{
			Name:    "nfo",
			Aliases: []string{"getnfo"},
			Usage:   "nfo <dirname>",
			Help:    "Post the NFO of a release as an image, falling back to text",
			Run:     c.nfo,
		},
		{
			Name:  "nfotxt",
			Usage: "nfotxt <release>",
			Help:  "Post the NFO of a release as text",
			Run:   c.nfoText,
		},
	}
}

func (c *Cog) nfo(ctx *discord.Context) error {
	dirname := ctx.Args
	if dirname == "" {
		return ctx.Send("Usage: nfo <dirname>")
	}
	ctx.Typing()

	reqCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if c.images != nil {
		img, err := c.image(reqCtx, dirname)
		var notFound *apperrors.ErrNotFound
		switch {
		case err == nil:
			return ctx.SendFile(
				img.release.ID+"_nfo.png",
				"image/png",
				bytes.NewReader(img.png),
				fmt.Sprintf("%s (%s)", dirname, humanize.Bytes(uint64(len(img.png)))),
			)
		case errors.As(err, &notFound) && img != nil:
			return ctx.Send(fmt.Sprintf("NFO not found for release ID %s.", img.release.ID))
		case errors.As(err, &notFound):
			ctx.Logger.Debug("Release unknown to xrel.to, trying srrDB", zap.String("dirname", dirname))
		default:
			ctx.Logger.Warn("xrel.to lookup failed, trying srrDB", zap.String("dirname", dirname), zap.Error(err))
		}
	}

	return c.sendText(reqCtx, ctx, dirname)
}

// image returns the release with a nil png when the release exists but has no NFO
func (c *Cog) image(ctx context.Context, dirname string) (*cachedImage, error) {
	key := "img:" + dirname
	if v, err := c.cache.Get(key); err == nil {
		return v.(*cachedImage), nil
	}

	rel, err := c.images.Lookup(ctx, dirname)
	if err != nil {
		return nil, err
	}
	png, err := c.images.Image(ctx, rel)
	if err != nil {
		return &cachedImage{release: rel}, err
	}

	img := &cachedImage{release: rel, png: png}
	_ = c.cache.Set(key, img)
	return img, nil
}

func (c *Cog) nfoText(ctx *discord.Context) error {
	if ctx.Args == "" {
		return ctx.Send("Usage: nfotxt <release>")
	}
	ctx.Typing()

	reqCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.sendText(reqCtx, ctx, ctx.Args)
}

func (c *Cog) sendText(reqCtx context.Context, ctx *discord.Context, release string) error {
	key := "txt:" + release

	var text string
	if v, err := c.cache.Get(key); err == nil {
		text = v.(string)
	} else {
		text, err = c.texts.Text(reqCtx, release)
		var notFound *apperrors.ErrNotFound
		var status *apperrors.ErrFetchStatus
		switch {
		case errors.As(err, &notFound):
			return ctx.Send("No NFO could be found.")
		case errors.As(err, &status):
			return ctx.Send(fmt.Sprintf("Failed to retrieve NFO for release %s. Status Code: %d", release, status.StatusCode))
		case err != nil:
			return err
		}
		_ = c.cache.Set(key, text)
	}

	return ctx.SendLong(discord.FormatCodeBlock(text, ""))
}
