package panda

import (
	"context"
	"net/url"
	"strings"

	"galleryvault/internal/provider"
)

// generate lists the galleries on the front listing, narrowed by the
// feed_query option when set.
func generate(ctx context.Context, pc provider.Context) ([]string, error) {
	s, err := newSite(pc)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	if query := strings.TrimSpace(pc.Settings.Options["feed_query"]); query != "" {
		params.Set("f_search", query)
	}
	return s.searchPage(ctx, params)
}
