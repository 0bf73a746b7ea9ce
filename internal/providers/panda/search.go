package panda

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"galleryvault/internal/provider"
)

// maxSearchResults caps the links taken from one result page.
const maxSearchResults = 25

// searchPage fetches a listing page and returns the gallery URLs on it in
// page order without duplicates.
func (s *site) searchPage(ctx context.Context, params url.Values) ([]string, error) {
	root := s.base
	if s.authenticated() {
		root = s.fjord
	}
	target := root + "/"
	if encoded := params.Encode(); encoded != "" {
		target += "?" + encoded
	}
	body, err := s.pc.HTTP.Get(ctx, target, s.cookies)
	if err != nil {
		return nil, provider.Wrap(provider.ErrTransient, Name, "search", "", err)
	}
	links, err := s.galleryLinks(body)
	if err != nil {
		return nil, provider.Wrap(provider.ErrTransient, Name, "search", "parse listing", err)
	}
	return links, nil
}

func (s *site) galleryLinks(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		r, ok := s.parseGalleryURL(href)
		if !ok {
			return true
		}
		link := s.galleryURL(r.root, r.gid, r.token)
		if _, dup := seen[link]; dup {
			return true
		}
		seen[link] = struct{}{}
		links = append(links, link)
		return len(links) < maxSearchResults
	})
	return links, nil
}
