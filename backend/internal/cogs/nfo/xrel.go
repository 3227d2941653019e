package nfo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/errgroup"

	apperrors "cogbot/backend/pkg/errors"
)

// Release kinds, matching xrel.to's NFO endpoints
const (
	KindScene = "release"
	KindP2P   = "p2p_rls"
)

// Release is the part of an xrel.to release we need
type Release struct {
	ID      string `json:"id"`
	Dirname string `json:"dirname"`
	Kind    string `json:"-"`
}

// XrelClient queries the xrel.to API with client-credential tokens
type XrelClient struct {
	http    *http.Client
	baseURL string
}

// NewXrelClient creates a client whose token is fetched and refreshed by oauth2
func NewXrelClient(baseURL, clientID, clientSecret string, timeout time.Duration) *XrelClient {
	baseURL = strings.TrimRight(baseURL, "/")
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     baseURL + "/oauth2/token",
		Scopes:       []string{"viewnfo"},
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
	client := cfg.Client(ctx)
	client.Timeout = timeout

	return &XrelClient{http: client, baseURL: baseURL}
}

// Lookup finds dirname among scene and P2P releases, asking both at once.
// Scene releases win when both know the name. A failure on one side does not
// hide a hit on the other; an error is returned only when neither found it.
func (x *XrelClient) Lookup(ctx context.Context, dirname string) (*Release, error) {
	var scene, p2p *Release

	// No shared cancellation: one endpoint failing must not abort the other.
	var g errgroup.Group
	g.Go(func() (err error) {
		scene, err = x.releaseInfo(ctx, "/release/info.json", dirname)
		return err
	})
	g.Go(func() (err error) {
		p2p, err = x.releaseInfo(ctx, "/p2p/rls_info.json", dirname)
		return err
	})
	err := g.Wait()

	switch {
	case scene != nil:
		scene.Kind = KindScene
		return scene, nil
	case p2p != nil:
		p2p.Kind = KindP2P
		return p2p, nil
	case err != nil:
		return nil, err
	}
	return nil, apperrors.NewNotFound("release " + dirname)
}

// releaseInfo returns nil without error when xrel.to does not know the release
func (x *XrelClient) releaseInfo(ctx context.Context, path, dirname string) (*Release, error) {
	endpoint := x.baseURL + path + "?" + url.Values{"dirname": {dirname}}.Encode()
	body, status, err := x.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, apperrors.NewFetchStatus(endpoint, status, string(body))
	}

	var rel Release
	if err := json.Unmarshal(body, &rel); err != nil {
		return nil, apperrors.NewFetchFailed(endpoint, err)
	}
	if rel.ID == "" {
		return nil, nil
	}
	return &rel, nil
}

// Image fetches the rendered NFO of rel as PNG bytes
func (x *XrelClient) Image(ctx context.Context, rel *Release) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/nfo/%s.json?%s", x.baseURL, rel.Kind, url.Values{"id": {rel.ID}}.Encode())
	body, status, err := x.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, apperrors.NewNotFound("nfo " + rel.ID)
	}
	return nil, apperrors.NewFetchStatus(endpoint, status, string(body))
}

func (x *XrelClient) get(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, apperrors.NewFetchFailed(endpoint, err)
	}

	resp, err := x.http.Do(req)
	if err != nil {
		return nil, 0, apperrors.NewFetchFailed(endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, apperrors.NewFetchFailed(endpoint, err)
	}
	return body, resp.StatusCode, nil
}
