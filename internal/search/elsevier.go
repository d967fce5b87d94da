// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import "net/url"

// elsevierContentBase is the Elsevier article retrieval endpoint.
var elsevierContentBase = "https://api.elsevier.com/content/article/doi/"

// elsevierContentURL builds the Elsevier content API link for a DOI in the
// given representation (application/pdf or application/xml).
func elsevierContentURL(doi, accept, apiKey string) string {
	params := url.Values{"httpAccept": {accept}}
	if apiKey != "" {
		params.Set("apiKey", apiKey)
	}
	return elsevierContentBase + url.QueryEscape(doi) + "?" + params.Encode()
}
