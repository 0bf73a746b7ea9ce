package panda

import (
	"context"
	"encoding/json"
	"html"
	"strconv"
	"strings"
	"time"

	"galleryvault/internal/gallery"
	"galleryvault/internal/logging"
	"galleryvault/internal/provider"
)

type gdataRequest struct {
	Method    string  `json:"method"`
	GIDList   [][]any `json:"gidlist"`
	Namespace int     `json:"namespace"`
}

type gdataResponse struct {
	GMetadata []gdataEntry `json:"gmetadata"`
	Error     string       `json:"error"`
}

type gdataEntry struct {
	GID         json.Number `json:"gid"`
	Token       string      `json:"token"`
	ArchiverKey string      `json:"archiver_key"`
	Title       string      `json:"title"`
	TitleJpn    string      `json:"title_jpn"`
	Category    string      `json:"category"`
	Thumb       string      `json:"thumb"`
	Uploader    string      `json:"uploader"`
	Posted      string      `json:"posted"`
	Filecount   string      `json:"filecount"`
	Filesize    int64       `json:"filesize"`
	Expunged    bool        `json:"expunged"`
	Rating      string      `json:"rating"`
	Tags        []string    `json:"tags"`
	Error       string      `json:"error"`
}

// ref identifies one gallery for the API.
type ref struct {
	gid   string
	token string
	root  string
}

// gdata fetches metadata for refs in API-sized batches. Entries the API
// reports as errors are skipped.
func (s *site) gdata(ctx context.Context, refs []ref) ([]gallery.Record, error) {
	roots := make(map[string]string, len(refs))
	var out []gallery.Record
	for start := 0; start < len(refs); start += apiBatchSize {
		end := min(start+apiBatchSize, len(refs))
		req := gdataRequest{Method: "gdata", Namespace: 1}
		for _, r := range refs[start:end] {
			gid, err := strconv.ParseInt(r.gid, 10, 64)
			if err != nil {
				continue
			}
			req.GIDList = append(req.GIDList, []any{gid, r.token})
			roots[r.gid] = r.root
		}
		if len(req.GIDList) == 0 {
			continue
		}
		var resp gdataResponse
		if err := s.pc.HTTP.PostJSON(ctx, s.api, req, &resp, s.cookies); err != nil {
			return out, provider.Wrap(provider.ErrTransient, Name, "gdata", "", err)
		}
		if resp.Error != "" {
			return out, provider.Wrap(provider.ErrTransient, Name, "gdata", resp.Error, nil)
		}
		for _, entry := range resp.GMetadata {
			if entry.Error != "" {
				s.pc.Logger.Debug("gdata entry rejected",
					logging.String(logging.FieldGID, entry.GID.String()),
					logging.String("reason", entry.Error),
				)
				continue
			}
			rec := entry.record()
			rec.Root = roots[rec.GID]
			if rec.Root == "" {
				rec.Root = s.base
			}
			rec.Fjord = rec.Root == s.fjord
			rec.Link = s.galleryURL(rec.Root, rec.GID, rec.Token)
			out = append(out, rec)
		}
	}
	return out, nil
}

func (e gdataEntry) record() gallery.Record {
	rec := gallery.Record{
		GID:          e.GID.String(),
		Provider:     Name,
		Token:        e.Token,
		Title:        html.UnescapeString(e.Title),
		TitleJpn:     html.UnescapeString(e.TitleJpn),
		Category:     e.Category,
		ThumbnailURL: e.Thumb,
		Uploader:     e.Uploader,
		Filesize:     e.Filesize,
		Expunged:     e.Expunged,
		Public:       !e.Expunged,
		ArchiverKey:  e.ArchiverKey,
	}
	if posted, err := strconv.ParseInt(e.Posted, 10, 64); err == nil {
		rec.Posted = time.Unix(posted, 0).UTC()
	}
	if count, err := strconv.Atoi(e.Filecount); err == nil {
		rec.Filecount = count
	}
	if rating, err := strconv.ParseFloat(e.Rating, 64); err == nil {
		rec.Rating = rating
	}
	for _, tag := range e.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			rec.Tags = append(rec.Tags, strings.ReplaceAll(tag, "_", " "))
		}
	}
	return rec
}
