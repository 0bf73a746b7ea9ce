package panda

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"galleryvault/internal/config"
	"galleryvault/internal/gallery"
	"galleryvault/internal/logging"
	"galleryvault/internal/provider"
)

// Name is the provider identifier.
const Name = "panda"

const (
	defaultBaseURL  = "https://e-hentai.org"
	defaultFjordURL = "https://exhentai.org"
	defaultAPIURL   = "https://api.e-hentai.org/api.php"

	// apiBatchSize is the gdata limit per request.
	apiBatchSize = 25

	cookieMemberID = "member_id"
	cookiePassHash = "pass_hash"
)

// Registration returns the provider descriptor.
func Registration() provider.Registration {
	return provider.Registration{
		Name: Name,
		NewParser: func(pc provider.Context) (provider.Parser, error) {
			s, err := newSite(pc)
			if err != nil {
				return nil, err
			}
			return &parser{site: s}, nil
		},
		Matchers: []provider.MatcherSpec{
			{Type: "title", DefaultPriority: 1, New: newTitleMatcher},
			{Type: "hash", DefaultPriority: 2, New: newHashMatcher},
		},
		Downloaders: []provider.DownloaderSpec{
			{Type: "archive", DefaultPriority: 1, Redownload: true, New: newArchiveDownloader},
			{Type: "torrent", DefaultPriority: 2, New: newTorrentDownloader},
			{Type: "info", DefaultPriority: 3, InfoOnly: true, New: newInfoDownloader},
		},
		Resolve:     resolve,
		CheckConfig: checkConfig,
		Generate:    generate,
	}
}

// site holds the endpoints and credentials shared by every strategy.
type site struct {
	pc      provider.Context
	base    string
	fjord   string
	api     string
	cookies map[string]string
}

func newSite(pc provider.Context) (*site, error) {
	if pc.HTTP == nil {
		return nil, provider.Wrap(provider.ErrConfiguration, Name, "init", "http client missing", nil)
	}
	if pc.Logger == nil {
		pc.Logger = logging.NewNop()
	}
	opt := func(key, fallback string) string {
		if v := strings.TrimSpace(pc.Settings.Options[key]); v != "" {
			return strings.TrimRight(v, "/")
		}
		return fallback
	}
	s := &site{
		pc:    pc,
		base:  opt("base_url", defaultBaseURL),
		fjord: opt("fjord_url", defaultFjordURL),
		api:   opt("api_url", defaultAPIURL),
	}
	if member, hash := pc.Settings.Cookies[cookieMemberID], pc.Settings.Cookies[cookiePassHash]; member != "" && hash != "" {
		s.cookies = map[string]string{
			"ipb_member_id": member,
			"ipb_pass_hash": hash,
		}
	}
	return s, nil
}

// authenticated reports whether member cookies are configured.
func (s *site) authenticated() bool { return len(s.cookies) > 0 }

// root picks the site a record is served from.
func (s *site) root(rec gallery.Record) string {
	if rec.Root != "" {
		return strings.TrimRight(rec.Root, "/")
	}
	if rec.Fjord && s.authenticated() {
		return s.fjord
	}
	return s.base
}

func (s *site) galleryURL(root, gid, token string) string {
	return fmt.Sprintf("%s/g/%s/%s/", root, gid, token)
}

func resolve(rec gallery.Record) string {
	if rec.GID == "" || rec.Token == "" {
		return rec.Link
	}
	root := strings.TrimRight(rec.Root, "/")
	if root == "" {
		root = defaultBaseURL
		if rec.Fjord {
			root = defaultFjordURL
		}
	}
	return fmt.Sprintf("%s/g/%s/%s/", root, rec.GID, rec.Token)
}

func checkConfig(settings config.Provider) error {
	member := strings.TrimSpace(settings.Cookies[cookieMemberID])
	hash := strings.TrimSpace(settings.Cookies[cookiePassHash])
	if (member == "") != (hash == "") {
		return errors.New("cookies member_id and pass_hash must be set together")
	}
	for _, key := range []string{"base_url", "fjord_url", "api_url"} {
		raw := strings.TrimSpace(settings.Options[key])
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("option %s must be an http(s) url, got %q", key, raw)
		}
	}
	return nil
}
