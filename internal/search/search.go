// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries bibliographic APIs per keyword and merges their
// records into one insertion-ordered set keyed by normalized identifier.
package search

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/article-harvester/internal/ident"
	"github.com/pdiddy/article-harvester/pkg/types"
)

// Adapter searches a single bibliographic API. Adapters never fail: a
// transport or parse error stops paging and the records gathered so far
// are returned. Loggers are taken from ctx (zerolog.Ctx).
type Adapter interface {
	Name() types.Source
	Search(ctx context.Context, keywords []string, maxPerKeyword int) *RecordSet
}

// RecordSet is an insertion-ordered set of records keyed by normalized id.
type RecordSet struct {
	order []string
	byID  map[string]*types.ArticleRecord
}

// NewRecordSet returns an empty set.
func NewRecordSet() *RecordSet {
	return &RecordSet{byID: make(map[string]*types.ArticleRecord)}
}

// Add inserts rec unless its id is empty or already present. The
// NormalizedID is derived from Identifier when unset. Add reports whether
// the record was inserted.
func (s *RecordSet) Add(rec types.ArticleRecord) bool {
	if rec.NormalizedID == "" {
		rec.NormalizedID = ident.Normalize(rec.Identifier)
	}
	if rec.NormalizedID == "" {
		return false
	}
	if _, ok := s.byID[rec.NormalizedID]; ok {
		return false
	}
	s.byID[rec.NormalizedID] = &rec
	s.order = append(s.order, rec.NormalizedID)
	return true
}

// Has reports whether id (already normalized) is in the set.
func (s *RecordSet) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Get returns the record stored under the normalized id.
func (s *RecordSet) Get(id string) (types.ArticleRecord, bool) {
	rec, ok := s.byID[id]
	if !ok {
		return types.ArticleRecord{}, false
	}
	return *rec, true
}

func (s *RecordSet) Len() int { return len(s.order) }

// IDs returns the normalized ids in insertion order.
func (s *RecordSet) IDs() []string {
	return append([]string(nil), s.order...)
}

// Records returns copies of the records in insertion order.
func (s *RecordSet) Records() []types.ArticleRecord {
	out := make([]types.ArticleRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out
}

// backfill copies retrieval URLs from src into the stored record when the
// stored one lacks them. Nothing else is touched.
func (s *RecordSet) backfill(src types.ArticleRecord) {
	dst, ok := s.byID[src.NormalizedID]
	if !ok {
		return
	}
	if dst.PDFURL == "" && src.PDFURL != "" {
		dst.PDFURL = src.PDFURL
	}
	if dst.XMLURL == "" && src.XMLURL != "" {
		dst.XMLURL = src.XMLURL
	}
}

// Merge folds sets left to right. The first occurrence of an id wins for
// every field except PDFURL and XMLURL, which later sets fill in when the
// earlier record has none. Insertion order follows first-seen order.
func Merge(sets ...*RecordSet) *RecordSet {
	merged := NewRecordSet()
	for _, set := range sets {
		if set == nil {
			continue
		}
		for _, rec := range set.Records() {
			if !merged.Add(rec) {
				merged.backfill(rec)
			}
		}
	}
	return merged
}

// SourceCount is the number of records one adapter returned for a keyword.
type SourceCount struct {
	Source   types.Source
	Records  int
	Duration time.Duration
}

// Aggregate runs the adapters one after another for keyword and merges
// their results in adapter order.
func Aggregate(ctx context.Context, adapters []Adapter, keyword string, maxPerKeyword int) (*RecordSet, []SourceCount) {
	logger := zerolog.Ctx(ctx)
	sets := make([]*RecordSet, 0, len(adapters))
	counts := make([]SourceCount, 0, len(adapters))
	for _, a := range adapters {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		set := a.Search(ctx, []string{keyword}, maxPerKeyword)
		if set == nil {
			set = NewRecordSet()
		}
		sc := SourceCount{Source: a.Name(), Records: set.Len(), Duration: time.Since(start)}
		logger.Info().
			Str("source", string(sc.Source)).
			Str("keyword", keyword).
			Int("records", sc.Records).
			Dur("took", sc.Duration).
			Msg("search finished")
		sets = append(sets, set)
		counts = append(counts, sc)
	}
	return Merge(sets...), counts
}

// collect runs one paging function per keyword, each bounded by max new
// records, into a shared set. Keywords are processed in order.
func collect(ctx context.Context, keywords []string, max int, page func(ctx context.Context, keyword string, max int, set *RecordSet)) *RecordSet {
	if max <= 0 {
		max = types.UnlimitedRecords
	}
	set := NewRecordSet()
	for _, kw := range keywords {
		if ctx.Err() != nil {
			break
		}
		page(ctx, kw, max, set)
	}
	return set
}

// quoted wraps a keyword in double quotes for phrase search.
func quoted(keyword string) string {
	return `"` + keyword + `"`
}
