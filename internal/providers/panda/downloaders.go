package panda

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"galleryvault/internal/fileutil"
	"galleryvault/internal/gallery"
	"galleryvault/internal/logging"
	"galleryvault/internal/provider"
	"galleryvault/internal/textutil"
	"galleryvault/internal/transport"
)

const transferMethod = "transmission"

func archiveName(rec gallery.Record) string {
	name := textutil.SanitizeFileName(rec.DisplayTitle())
	if name == "" {
		name = Name + "-" + rec.GID
	}
	return name + ".zip"
}

// archiveDownloader fetches the original archive through the archiver page.
type archiveDownloader struct {
	site *site
}

func newArchiveDownloader(pc provider.Context) (provider.Downloader, error) {
	s, err := newSite(pc)
	if err != nil {
		return nil, err
	}
	if pc.Config == nil || pc.Config.Paths.ArchiveDir == "" {
		return nil, provider.Wrap(provider.ErrConfiguration, Name, "archive downloader", "archive directory not configured", nil)
	}
	return &archiveDownloader{site: s}, nil
}

func (d *archiveDownloader) Provider() string { return Name }
func (d *archiveDownloader) Type() string     { return "archive" }

func (d *archiveDownloader) Download(ctx context.Context, rec gallery.Record) (provider.Attempt, error) {
	logger := d.site.pc.Logger.With(logging.String(logging.FieldGID, rec.GID))
	if !d.site.authenticated() {
		logger.Debug("archive download needs member cookies")
		return provider.Attempt{}, nil
	}
	if rec.Token == "" || rec.ArchiverKey == "" {
		logger.Debug("record has no archiver key")
		return provider.Attempt{}, nil
	}

	root := d.site.root(rec)
	archiver := fmt.Sprintf("%s/archiver.php?%s", root, url.Values{
		"gid":   {rec.GID},
		"token": {rec.Token},
		"or":    {rec.ArchiverKey},
	}.Encode())
	form := url.Values{"dltype": {"org"}, "dlcheck": {"Download Original Archive"}}
	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := d.site.pc.HTTP.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		URL:     archiver,
		Header:  header,
		Cookies: d.site.cookies,
		Body:    []byte(form.Encode()),
	})
	if err != nil {
		return provider.Attempt{}, provider.Wrap(provider.ErrTransient, Name, "archiver", "", err)
	}
	link, err := continueLink(resp.Body)
	if err != nil {
		return provider.Attempt{}, provider.Wrap(provider.ErrTransient, Name, "archiver", "", err)
	}
	if link == "" {
		logger.Debug("archiver page offered no download link")
		return provider.Attempt{}, nil
	}

	dest := fileutil.UniquePath(filepath.Join(d.site.pc.Config.Paths.ArchiveDir, archiveName(rec)))
	if _, err := d.site.pc.HTTP.Download(ctx, link, dest, d.site.cookies); err != nil {
		return provider.Attempt{}, provider.Wrap(provider.ErrTransient, Name, "archive download", "", err)
	}
	return provider.FileAttempt(Name, dest)
}

// continueLink finds the download link on an archiver response page. The
// returned URL asks the host to start the transfer.
func continueLink(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse archiver page: %w", err)
	}
	href, ok := doc.Find("#continue a[href]").First().Attr("href")
	if !ok {
		return "", nil
	}
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse download link: %w", err)
	}
	q := u.Query()
	if q.Get("start") == "" {
		q.Set("start", "1")
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// torrentDownloader hands the gallery torrent to the transfer transport.
type torrentDownloader struct {
	site     *site
	transfer transport.Transfer
	dir      string
}

func newTorrentDownloader(pc provider.Context) (provider.Downloader, error) {
	s, err := newSite(pc)
	if err != nil {
		return nil, err
	}
	t, ok := pc.Transfer(transferMethod)
	if !ok {
		return nil, provider.Wrap(provider.ErrConfiguration, Name, "torrent downloader", "transmission transport not enabled", nil)
	}
	dir := ""
	if pc.Config != nil {
		dir = pc.Config.Transmission.DownloadDir
		if dir == "" {
			dir = pc.Config.Paths.TorrentDir
		}
	}
	return &torrentDownloader{site: s, transfer: t, dir: dir}, nil
}

func (d *torrentDownloader) Provider() string { return Name }
func (d *torrentDownloader) Type() string     { return "torrent" }

func (d *torrentDownloader) Download(ctx context.Context, rec gallery.Record) (provider.Attempt, error) {
	logger := d.site.pc.Logger.With(logging.String(logging.FieldGID, rec.GID))
	if rec.Token == "" {
		return provider.Attempt{}, nil
	}
	root := d.site.root(rec)
	page := fmt.Sprintf("%s/gallerytorrents.php?%s", root, url.Values{"gid": {rec.GID}, "t": {rec.Token}}.Encode())
	body, err := d.site.pc.HTTP.Get(ctx, page, d.site.cookies)
	if err != nil {
		return provider.Attempt{}, provider.Wrap(provider.ErrTransient, Name, "torrent list", "", err)
	}
	link, name, err := firstTorrent(body)
	if err != nil {
		return provider.Attempt{}, provider.Wrap(provider.ErrTransient, Name, "torrent list", "", err)
	}
	if link == "" {
		logger.Debug("gallery has no torrents")
		return provider.Attempt{}, nil
	}
	payload, err := d.site.pc.HTTP.Get(ctx, link, d.site.cookies)
	if err != nil {
		return provider.Attempt{}, provider.Wrap(provider.ErrTransient, Name, "torrent fetch", "", err)
	}
	id, err := d.transfer.AddByPayload(ctx, payload, d.dir)
	if err != nil {
		return provider.Attempt{}, provider.Wrap(provider.ErrTransient, Name, "torrent add", "", err)
	}
	if name == "" {
		name = archiveName(rec)
	}
	dest := filepath.Join(d.dir, name)
	return provider.Attempt{
		Succeeded: true,
		Filename:  dest,
		Filecount: rec.Filecount,
		Ticket: &provider.Ticket{
			Method:      transferMethod,
			TransferID:  id,
			Destination: dest,
		},
	}, nil
}

// firstTorrent returns the first torrent link of a torrent list page and the
// payload name it announces.
func firstTorrent(body []byte) (link, name string, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("parse torrent page: %w", err)
	}
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if !strings.HasSuffix(strings.ToLower(strings.SplitN(href, "?", 2)[0]), ".torrent") {
			return true
		}
		link = href
		name = textutil.SanitizeFileName(sel.Text())
		return false
	})
	if name != "" && !strings.EqualFold(filepath.Ext(name), ".zip") {
		name += ".zip"
	}
	return link, name, nil
}

// infoDownloader stores metadata only.
type infoDownloader struct{}

func newInfoDownloader(provider.Context) (provider.Downloader, error) {
	return infoDownloader{}, nil
}

func (infoDownloader) Provider() string { return Name }
func (infoDownloader) Type() string     { return "info" }

func (infoDownloader) Download(context.Context, gallery.Record) (provider.Attempt, error) {
	return provider.Attempt{Succeeded: true}, nil
}
