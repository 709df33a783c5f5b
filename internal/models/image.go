package models

import "strings"

type ImageKind int

const (
	ImageNone ImageKind = iota
	ImageFile
	ImageURL
)

// ImageRef points at an uploaded file, an external URL, or nothing.
// An uploaded file wins over a URL when both are set.
type ImageRef struct {
	File string `json:"file,omitempty" yaml:"file"`
	URL  string `json:"url,omitempty" yaml:"url"`
}

func (r ImageRef) Kind() ImageKind {
	switch {
	case strings.TrimSpace(r.File) != "":
		return ImageFile
	case strings.TrimSpace(r.URL) != "":
		return ImageURL
	default:
		return ImageNone
	}
}

// Resolve returns the public location of the image, or nil.
// File paths are served under mediaPrefix.
func (r ImageRef) Resolve(mediaPrefix string) *string {
	var out string
	switch r.Kind() {
	case ImageFile:
		out = strings.TrimRight(mediaPrefix, "/") + "/" + strings.TrimLeft(strings.TrimSpace(r.File), "/")
	case ImageURL:
		out = strings.TrimSpace(r.URL)
	default:
		return nil
	}
	return &out
}
