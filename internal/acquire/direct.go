// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"errors"
)

// DirectStrategy fetches the record's known link. Elsevier content hosts
// receive the API key header.
type DirectStrategy struct {
	Fetcher        *Fetcher
	ElsevierAPIKey string
	// Accept is sent to Elsevier hosts, e.g. "application/pdf".
	Accept string
	// Validate checks the downloaded file. Nil accepts any file.
	Validate func(path string) (bool, error)
}

// NewDirectPDF returns the direct strategy for PDFs.
func NewDirectPDF(f *Fetcher, elsevierKey string) *DirectStrategy {
	return &DirectStrategy{
		Fetcher:        f,
		ElsevierAPIKey: elsevierKey,
		Accept:         "application/pdf",
		Validate:       func(path string) (bool, error) { return ValidateSignature(path, PDFMagic) },
	}
}

// NewDirectXML returns the direct strategy for XML full text.
func NewDirectXML(f *Fetcher, elsevierKey string) *DirectStrategy {
	return &DirectStrategy{
		Fetcher:        f,
		ElsevierAPIKey: elsevierKey,
		Accept:         "application/xml",
		Validate:       ValidateXML,
	}
}

func (s *DirectStrategy) Name() string     { return "direct" }
func (s *DirectStrategy) OpenAccess() bool { return true }

func (s *DirectStrategy) Attempt(ctx context.Context, t Target) (Outcome, error) {
	if t.URL == "" {
		return skipped(s.Name(), "%s", ErrNoDirectLink), nil
	}
	headers := ElsevierHeaders(t.URL, s.Accept, s.ElsevierAPIKey)
	return fetchValidated(ctx, s.Fetcher, s.Name(), t.URL, t.Dest, headers, s.Validate, "downloaded from direct link")
}

// fetchValidated downloads url to dest and checks it. A failed or invalid
// download is removed before returning.
func fetchValidated(ctx context.Context, f *Fetcher, name, url, dest string, headers map[string]string, validate func(string) (bool, error), okMessage string) (Outcome, error) {
	if err := f.Fetch(ctx, url, dest, headers); err != nil {
		if errors.Is(err, ErrLocalIO) {
			return Outcome{}, err
		}
		if rmErr := removeArtifact(dest); rmErr != nil {
			return Outcome{}, rmErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		return failed(name, "%s", err.Error()), nil
	}
	if validate != nil {
		ok, err := validate(dest)
		if err != nil {
			return Outcome{}, errors.Join(ErrLocalIO, err)
		}
		if !ok {
			if err := removeArtifact(dest); err != nil {
				return Outcome{}, err
			}
			return failed(name, "%s", ErrInvalidSignature), nil
		}
	}
	return succeeded(name, "%s", okMessage), nil
}
