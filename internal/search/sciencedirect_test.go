// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sdEntries(n int, openAccess string) string {
	var parts []string
	for i := 0; i < n; i++ {
		parts = append(parts, fmt.Sprintf(`{"prism:doi": "10.1016/sd.%d", "dc:title": "T%d", "dc:description": "D%d", "openaccess": %s}`, i, i, i, openAccess))
	}
	return `{"search-results": {"entry": [` + strings.Join(parts, ",") + `]}}`
}

func TestScienceDirectAdapter_NoKeyNoRequests(t *testing.T) {
	var calls int32
	withBase(t, &scienceDirectAPIBase, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	a := &ScienceDirectAdapter{Client: testClient()}
	assert.Equal(t, 0, a.Search(context.Background(), []string{"x"}, 10).Len())
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestScienceDirectAdapter_OpenAccessOnly(t *testing.T) {
	withBase(t, &scienceDirectAPIBase, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `"radiolysis"`, r.URL.Query().Get("query"))
		assert.Equal(t, "KEY", r.URL.Query().Get("apiKey"))
		fmt.Fprint(w, `{"search-results": {"entry": [
			{"prism:doi": "10.1016/a", "dc:title": "A", "openaccess": true},
			{"prism:doi": "10.1016/b", "dc:title": "B", "openaccess": "false"},
			{"prism:doi": "10.1016/c", "dc:title": "C", "openaccess": "1"},
			{"prism:doi": "10.1016/d", "dc:title": "D"}
		]}}`)
	})
	a := &ScienceDirectAdapter{Client: testClient(), APIKey: "KEY"}
	set := a.Search(context.Background(), []string{"radiolysis"}, 100)

	assert.Equal(t, []string{"10.1016/a", "10.1016/c"}, set.IDs())
	rec, _ := set.Get("10.1016/a")
	assert.Contains(t, rec.PDFURL, "httpAccept=application%2Fpdf")
	assert.Contains(t, rec.XMLURL, "httpAccept=application%2Fxml")
}

func TestScienceDirectAdapter_PagesUntilShortPage(t *testing.T) {
	var starts []string
	withBase(t, &scienceDirectAPIBase, func(w http.ResponseWriter, r *http.Request) {
		start := r.URL.Query().Get("start")
		starts = append(starts, start)
		if start == "0" {
			fmt.Fprint(w, sdEntries(25, "true"))
			return
		}
		fmt.Fprint(w, strings.Replace(sdEntries(3, "true"), "sd.", "sd2.", -1))
	})
	a := &ScienceDirectAdapter{Client: testClient(), APIKey: "KEY"}
	set := a.Search(context.Background(), []string{"x"}, 1000)

	assert.Equal(t, 28, set.Len())
	assert.Equal(t, []string{"0", "25"}, starts)
}

func TestScienceDirectAdapter_RetriesFailedPage(t *testing.T) {
	var calls int32
	withBase(t, &scienceDirectAPIBase, func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, sdEntries(2, "true"))
	})
	a := &ScienceDirectAdapter{Client: testClient(), APIKey: "KEY"}
	set := a.Search(context.Background(), []string{"x"}, 10)

	require.Equal(t, 2, set.Len())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestScienceDirectAdapter_GivesUpAfterRetries(t *testing.T) {
	var calls int32
	withBase(t, &scienceDirectAPIBase, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})
	a := &ScienceDirectAdapter{Client: testClient(), APIKey: "KEY"}
	assert.Equal(t, 0, a.Search(context.Background(), []string{"x"}, 10).Len())
	assert.Equal(t, int32(scienceDirectMaxRetries), atomic.LoadInt32(&calls))
}
