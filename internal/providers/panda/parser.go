package panda

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"galleryvault/internal/gallery"
	"galleryvault/internal/provider"
)

var galleryPath = regexp.MustCompile(`^/g/(\d+)/([0-9a-f]{10})/?$`)

type parser struct {
	site *site
}

func (p *parser) Provider() string { return Name }

func (p *parser) BatchSize() int { return apiBatchSize }

func (p *parser) Accepts(raw string) bool {
	_, ok := p.parse(raw)
	return ok
}

func (p *parser) Key(raw string) (gallery.Key, bool) {
	r, ok := p.parse(raw)
	if !ok {
		return gallery.Key{}, false
	}
	return gallery.Key{GID: r.gid, Provider: Name}, true
}

func (p *parser) FetchOne(ctx context.Context, raw string) (*gallery.Record, error) {
	records, err := p.FetchMany(ctx, []string{raw})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, provider.Wrap(provider.ErrNotFound, Name, "fetch", raw, nil)
	}
	return &records[0], nil
}

func (p *parser) FetchMany(ctx context.Context, urls []string) ([]gallery.Record, error) {
	refs := make([]ref, 0, len(urls))
	for _, raw := range urls {
		if r, ok := p.parse(raw); ok {
			refs = append(refs, r)
		}
	}
	return p.site.gdata(ctx, refs)
}

// parse extracts gid, token and site root from a gallery URL on either the
// public site or the fjord mirror.
func (p *parser) parse(raw string) (ref, bool) {
	return p.site.parseGalleryURL(raw)
}

func (s *site) parseGalleryURL(raw string) (ref, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ref{}, false
	}
	var root string
	for _, candidate := range []string{s.base, s.fjord} {
		cu, err := url.Parse(candidate)
		if err == nil && strings.EqualFold(cu.Host, u.Host) {
			root = candidate
			break
		}
	}
	if root == "" {
		return ref{}, false
	}
	m := galleryPath.FindStringSubmatch(u.Path)
	if m == nil {
		return ref{}, false
	}
	return ref{gid: m[1], token: m[2], root: root}, true
}
