// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ident canonicalizes article identifiers. The normalized form is the
// deduplication key of the whole pipeline and the stem of every artifact file.
package ident

import (
	"regexp"
	"strings"
)

// resolverPrefix matches DOI resolver URLs: "https://doi.org/", "http://dx.doi.org/", "doi.org/".
var resolverPrefix = regexp.MustCompile(`(?i)^(?:https?://)?(?:dx\.)?doi\.org/`)

// doiPattern matches bare DOIs: "10.1145/1234567.1234568".
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

// filenameReplacer maps characters that are unsafe in file names.
var filenameReplacer = strings.NewReplacer("/", "_", ":", "_", " ", "_")

// Normalize returns the canonical key for raw: resolver URL and "doi:" prefixes
// stripped, whitespace trimmed, lower-cased. It returns "" for empty input.
// Identifiers that are not DOIs (e.g. "arxiv:1234.5678") keep their shape.
func Normalize(raw string) string {
	id := strings.TrimSpace(raw)
	id = resolverPrefix.ReplaceAllString(id, "")
	for _, p := range []string{"doi:", "DOI:"} {
		id = strings.TrimPrefix(id, p)
	}
	return strings.ToLower(strings.TrimSpace(id))
}

// Filename returns the filesystem-safe stem for an identifier. PDF, XML, and
// text artifacts all derive their names from it.
func Filename(id string) string {
	clean := Normalize(id)
	if clean == "" {
		clean = id
	}
	return filenameReplacer.Replace(clean)
}

// IsDOI reports whether the normalized identifier has DOI shape.
func IsDOI(id string) bool {
	return doiPattern.MatchString(Normalize(id))
}
