package panda

import (
	"archive/zip"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"time"

	"galleryvault/internal/fileutil"
	"galleryvault/internal/gallery"
	"galleryvault/internal/provider"
	"galleryvault/internal/textutil"
)

// matcherBase carries what both matchers share.
type matcherBase struct {
	site *site
	typ  string
}

func (m *matcherBase) Provider() string { return Name }
func (m *matcherBase) Type() string     { return m.typ }

// Wait spaces the listing request from the API call.
func (m *matcherBase) Wait() time.Duration { return m.site.pc.Wait() }

func (m *matcherBase) FormatCompareKey(q provider.Query) string {
	return textutil.FoldTitle(q.Text())
}

func (m *matcherBase) Fetch(ctx context.Context, links []string) ([]gallery.Record, error) {
	refs := make([]ref, 0, len(links))
	for _, link := range links {
		if r, ok := m.site.parseGalleryURL(link); ok {
			refs = append(refs, r)
		}
	}
	return m.site.gdata(ctx, refs)
}

// titleMatcher searches by the cleaned title.
type titleMatcher struct{ matcherBase }

func newTitleMatcher(pc provider.Context) (provider.Matcher, error) {
	s, err := newSite(pc)
	if err != nil {
		return nil, err
	}
	return &titleMatcher{matcherBase{site: s, typ: "title"}}, nil
}

func (m *titleMatcher) Exact() bool            { return false }
func (m *titleMatcher) DefaultCutoff() float64 { return 0.6 }

func (m *titleMatcher) FormatSearchKey(q provider.Query) (string, error) {
	key := textutil.SearchTitle(q.Text())
	if key == "" {
		return "", provider.Wrap(provider.ErrUnsupported, Name, "title search", "empty title", nil)
	}
	return key, nil
}

func (m *titleMatcher) Search(ctx context.Context, key string) ([]string, error) {
	return m.site.searchPage(ctx, url.Values{"f_search": {key}})
}

// hashMatcher searches by the SHA-1 of the first image of a local archive.
type hashMatcher struct{ matcherBase }

func newHashMatcher(pc provider.Context) (provider.Matcher, error) {
	s, err := newSite(pc)
	if err != nil {
		return nil, err
	}
	return &hashMatcher{matcherBase{site: s, typ: "hash"}}, nil
}

func (m *hashMatcher) Exact() bool            { return true }
func (m *hashMatcher) DefaultCutoff() float64 { return 0 }

func (m *hashMatcher) FormatSearchKey(q provider.Query) (string, error) {
	if q.Path == "" {
		return "", provider.Wrap(provider.ErrUnsupported, Name, "hash search", "no local file", nil)
	}
	return firstImageSHA1(q.Path)
}

func (m *hashMatcher) Search(ctx context.Context, key string) ([]string, error) {
	return m.site.searchPage(ctx, url.Values{"f_shash": {key}, "fs_similar": {"0"}})
}

// firstImageSHA1 hashes the first image member of a zip in name order.
func firstImageSHA1(filename string) (string, error) {
	r, err := zip.OpenReader(filename)
	if err != nil {
		return "", fmt.Errorf("%w: %w", provider.ErrCorruptArchive, err)
	}
	defer r.Close()

	var images []*zip.File
	for _, f := range r.File {
		if !f.FileInfo().IsDir() && fileutil.IsImage(f.Name) {
			images = append(images, f)
		}
	}
	if len(images) == 0 {
		return "", errors.New("archive has no images")
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Name < images[j].Name })

	rc, err := images[0].Open()
	if err != nil {
		return "", fmt.Errorf("%w: %w", provider.ErrCorruptArchive, err)
	}
	defer rc.Close()
	h := sha1.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", fmt.Errorf("%w: %w", provider.ErrCorruptArchive, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
