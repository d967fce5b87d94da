// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/pdiddy/article-harvester/internal/httputil"
	"github.com/pdiddy/article-harvester/internal/ident"
	"github.com/pdiddy/article-harvester/pkg/types"
)

// crossrefAPIBase is the Crossref works endpoint. Declared as a var so
// tests can substitute an httptest server.
var crossrefAPIBase = "https://api.crossref.org/works"

const crossrefRows = 100

// CrossrefAdapter queries Crossref. Abstracts arrive as JATS markup and are
// flattened to text. With an Elsevier key configured every record gets
// Elsevier content API links for PDF and XML.
type CrossrefAdapter struct {
	Client         *httputil.Client
	Email          string
	ElsevierAPIKey string
}

func (a *CrossrefAdapter) Name() types.Source { return types.SourceCrossref }

func (a *CrossrefAdapter) Search(ctx context.Context, keywords []string, maxPerKeyword int) *RecordSet {
	return collect(ctx, keywords, maxPerKeyword, a.searchKeyword)
}

func (a *CrossrefAdapter) searchKeyword(ctx context.Context, keyword string, max int, set *RecordSet) {
	logger := zerolog.Ctx(ctx).With().Str("source", string(a.Name())).Str("keyword", keyword).Logger()
	cursor := "*"
	added := 0
	for added < max {
		params := url.Values{
			"query":  {keyword},
			"rows":   {strconv.Itoa(crossrefRows)},
			"cursor": {cursor},
		}
		if a.Email != "" {
			params.Set("mailto", a.Email)
		}
		var page crossrefResponse
		if err := a.Client.GetJSON(ctx, crossrefAPIBase+"?"+params.Encode(), nil, &page); err != nil {
			logger.Warn().Err(err).Msg("stopping Crossref paging")
			return
		}
		if len(page.Message.Items) == 0 {
			return
		}
		for _, item := range page.Message.Items {
			id := ident.Normalize(item.DOI)
			if id == "" {
				continue
			}
			rec := types.ArticleRecord{
				Identifier:   id,
				NormalizedID: id,
				Title:        strings.Join(item.Title, " "),
				Abstract:     markupText(item.Abstract),
				Source:       types.SourceCrossref,
			}
			if a.ElsevierAPIKey != "" {
				rec.PDFURL = elsevierContentURL(id, "application/pdf", a.ElsevierAPIKey)
				rec.XMLURL = elsevierContentURL(id, "application/xml", a.ElsevierAPIKey)
			}
			if set.Add(rec) {
				added++
				if added >= max {
					return
				}
			}
		}
		if page.Message.NextCursor == "" {
			return
		}
		cursor = page.Message.NextCursor
	}
}

// markupText returns the text nodes of an HTML or JATS fragment in
// document order, joined by single spaces.
func markupText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	var parts []string
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				if t := strings.TrimSpace(c.Text()); t != "" {
					parts = append(parts, t)
				}
				return
			}
			walk(c)
		})
	}
	walk(doc.Selection)
	return strings.Join(parts, " ")
}

// Crossref JSON structures.
type crossrefResponse struct {
	Message struct {
		NextCursor string         `json:"next-cursor"`
		Items      []crossrefItem `json:"items"`
	} `json:"message"`
}

type crossrefItem struct {
	DOI      string   `json:"DOI"`
	Title    []string `json:"title"`
	Abstract string   `json:"abstract"`
}
