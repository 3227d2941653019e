package availability

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	apperrors "cogbot/backend/pkg/errors"
)

const maxBodySize = 5 << 20

// Search fetches url and reports whether search occurs in the page. With a
// non-empty CSS selector only the text of the matching elements is searched.
func Search(ctx context.Context, client *http.Client, url, search, selector string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, apperrors.NewInvalidArgument("url", url, err.Error())
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; cogbot availability check)")

	resp, err := client.Do(req)
	if err != nil {
		return false, apperrors.NewFetchFailed(url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return false, apperrors.NewFetchFailed(url, err)
	}
	if resp.StatusCode >= 400 {
		return false, apperrors.NewFetchStatus(url, resp.StatusCode, truncate(string(body), 200))
	}

	if selector == "" {
		return strings.Contains(string(body), search), nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return false, apperrors.NewFetchFailed(url, err)
	}
	return strings.Contains(doc.Find(selector).Text(), search), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
