package nfo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	apperrors "cogbot/backend/pkg/errors"
)

// SrrdbClient fetches plain-text NFOs from srrDB
type SrrdbClient struct {
	http    *http.Client
	baseURL string
}

// NewSrrdbClient creates a client for the srrDB API at baseURL
func NewSrrdbClient(baseURL string, client *http.Client) *SrrdbClient {
	return &SrrdbClient{http: client, baseURL: strings.TrimRight(baseURL, "/")}
}

type srrdbNFO struct {
	Release  *string  `json:"release"`
	NFO      []string `json:"nfo"`
	NFOLinks []string `json:"nfolink"`
}

// Text returns the first NFO of release decoded as UTF-8, or as Latin-1
// when the file is not valid UTF-8.
func (s *SrrdbClient) Text(ctx context.Context, release string) (string, error) {
	endpoint := s.baseURL + "/nfo/" + url.PathEscape(release)
	body, err := s.fetch(ctx, endpoint)
	if err != nil {
		return "", err
	}

	var info srrdbNFO
	if err := json.Unmarshal(body, &info); err != nil {
		return "", apperrors.NewFetchFailed(endpoint, err)
	}
	if len(info.NFOLinks) == 0 {
		return "", apperrors.NewNotFound("nfo for " + release)
	}

	raw, err := s.fetch(ctx, info.NFOLinks[0])
	if err != nil {
		return "", err
	}
	return decode(raw)
}

func decode(raw []byte) (string, error) {
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	text, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(text), nil
}

func (s *SrrdbClient) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewFetchFailed(endpoint, err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, apperrors.NewFetchFailed(endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewFetchFailed(endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewFetchStatus(endpoint, resp.StatusCode, string(body))
	}
	return body, nil
}
