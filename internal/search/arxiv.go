// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/xml"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/article-harvester/internal/httputil"
	"github.com/pdiddy/article-harvester/internal/ident"
	"github.com/pdiddy/article-harvester/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

const arxivPerPage = 100

// ArxivAdapter queries the arXiv Atom API for title or abstract matches.
// Records use the published DOI when arXiv has one and "arxiv:<id>"
// otherwise.
type ArxivAdapter struct {
	Client *httputil.Client
}

func (a *ArxivAdapter) Name() types.Source { return types.SourceArxiv }

func (a *ArxivAdapter) Search(ctx context.Context, keywords []string, maxPerKeyword int) *RecordSet {
	return collect(ctx, keywords, maxPerKeyword, a.searchKeyword)
}

func (a *ArxivAdapter) searchKeyword(ctx context.Context, keyword string, max int, set *RecordSet) {
	logger := zerolog.Ctx(ctx).With().Str("source", string(a.Name())).Str("keyword", keyword).Logger()
	query := "(ti:" + quoted(keyword) + " OR abs:" + quoted(keyword) + ")"
	added := 0
	for start := 0; start < max; start += arxivPerPage {
		size := min(arxivPerPage, max-start)
		params := url.Values{
			"search_query": {query},
			"start":        {strconv.Itoa(start)},
			"max_results":  {strconv.Itoa(size)},
			"sortBy":       {"submittedDate"},
			"sortOrder":    {"descending"},
		}
		body, err := a.Client.GetBody(ctx, arxivAPIBase+"?"+params.Encode(), nil)
		if err != nil {
			logger.Warn().Err(err).Msg("stopping arXiv paging")
			return
		}
		var feed arxivFeed
		if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&feed); err != nil {
			logger.Warn().Err(err).Msg("unparsable arXiv feed")
			return
		}
		if len(feed.Entries) == 0 {
			return
		}
		for _, entry := range feed.Entries {
			rec, ok := entry.record()
			if !ok {
				continue
			}
			if set.Add(rec) {
				added++
				if added >= max {
					return
				}
			}
		}
	}
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID      string      `xml:"id"`
	Title   string      `xml:"title"`
	Summary string      `xml:"summary"`
	DOI     string      `xml:"http://arxiv.org/schemas/atom doi"`
	Links   []arxivLink `xml:"link"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

func (e arxivEntry) record() (types.ArticleRecord, bool) {
	arxivID := extractArxivID(strings.TrimSpace(e.ID))
	doi := ident.Normalize(e.DOI)
	id := doi
	if id == "" {
		if arxivID == "" {
			return types.ArticleRecord{}, false
		}
		id = "arxiv:" + arxivID
	}
	rec := types.ArticleRecord{
		Identifier:   id,
		NormalizedID: ident.Normalize(id),
		Title:        strings.TrimSpace(e.Title),
		Abstract:     strings.TrimSpace(e.Summary),
		Source:       types.SourceArxiv,
	}
	for _, l := range e.Links {
		if l.Type == "application/pdf" || l.Title == "pdf" {
			rec.PDFURL = l.Href
			break
		}
	}
	if arxivID != "" {
		rec.Raw = map[string]string{"arxiv_id": arxivID}
	}
	return rec, true
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" becomes "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
