// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"

	"github.com/pdiddy/article-harvester/internal/ident"
)

// PDFResolver finds an open-access PDF link for a DOI. It returns "" when
// none is known.
type PDFResolver interface {
	ResolvePDF(ctx context.Context, doi string) (string, error)
}

// OpenAlexStrategy asks OpenAlex for the best open-access PDF location of a
// DOI and downloads it. It runs between the direct link and the mirror
// when enabled.
type OpenAlexStrategy struct {
	Resolver PDFResolver
	Fetcher  *Fetcher
}

func (s *OpenAlexStrategy) Name() string     { return "openalex" }
func (s *OpenAlexStrategy) OpenAccess() bool { return true }

func (s *OpenAlexStrategy) Attempt(ctx context.Context, t Target) (Outcome, error) {
	if !ident.IsDOI(t.ID) {
		return skipped(s.Name(), "identifier is not a DOI"), nil
	}
	pdfURL, err := s.Resolver.ResolvePDF(ctx, t.ID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		return failed(s.Name(), "%v", err), nil
	}
	if pdfURL == "" {
		return failed(s.Name(), "no open-access PDF location"), nil
	}
	if pdfURL == t.URL {
		return skipped(s.Name(), "open-access location is the direct link"), nil
	}
	return fetchValidated(ctx, s.Fetcher, s.Name(), pdfURL, t.Dest, nil,
		func(path string) (bool, error) { return ValidateSignature(path, PDFMagic) },
		"downloaded from OpenAlex open-access location")
}
