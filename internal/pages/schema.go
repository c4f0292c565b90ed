package pages

import (
	"encoding/json"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/obiwac/obiwac.github.io/internal/content"
)

const schemaContext = "http://schema.org"

type personSchema struct {
	Context     string   `json:"@context"`
	Type        string   `json:"@type"`
	Name        string   `json:"name"`
	AlternateOf string   `json:"alternateName,omitempty"`
	URL         string   `json:"url,omitempty"`
	Image       string   `json:"image,omitempty"`
	Description string   `json:"description,omitempty"`
	SameAs      []string `json:"sameAs,omitempty"`
}

type articleSchema struct {
	Context       string `json:"@context"`
	Type          string `json:"@type"`
	ID            string `json:"@id"`
	Name          string `json:"name"`
	Headline      string `json:"headline"`
	Author        string `json:"author"`
	Description   string `json:"description,omitempty"`
	Image         string `json:"image,omitempty"`
	URL           string `json:"url,omitempty"`
	DatePublished string `json:"datePublished,omitempty"`
	TimeRequired  string `json:"timeRequired,omitempty"`
}

// marshalSchema encodes v for a ld+json script element. encoding/json escapes
// <, > and & so the payload cannot close the script early.
func marshalSchema(v any) (template.JS, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	//nolint:gosec // HTML-escaped JSON
	return template.JS(data), nil
}

func homeSchema(site content.Site) (template.JS, error) {
	return marshalSchema(personSchema{
		Context:     schemaContext,
		Type:        "Person",
		Name:        site.Author,
		URL:         site.BaseURL,
		Image:       absolute(site.BaseURL, site.Avatar),
		Description: site.Description,
		SameAs:      site.SameAs,
	})
}

func projectSchema(site content.Site, p *content.Project) (template.JS, error) {
	return marshalSchema(articleSchema{
		Context:     schemaContext,
		Type:        "Article",
		ID:          "#article",
		Name:        p.Title,
		Headline:    p.Title,
		Author:      site.Author,
		Description: p.Description,
		Image:       absolute(site.BaseURL, p.Thumbnail),
		URL:         absolute(site.BaseURL, "/"+p.Slug),
	})
}

func postSchema(site content.Site, p *content.Post) (template.JS, error) {
	s := articleSchema{
		Context:     schemaContext,
		Type:        "Article",
		ID:          "#article",
		Name:        p.Title,
		Headline:    p.Title,
		Author:      site.Author,
		Description: p.Description,
		URL:         absolute(site.BaseURL, "/"+p.Slug),
	}
	if !p.Date.IsZero() {
		s.DatePublished = p.Date.Format(time.DateOnly)
	}
	if p.ReadingTime > 0 {
		s.TimeRequired = "PT" + strconv.Itoa(p.ReadingTime) + "M"
	}
	return marshalSchema(s)
}

// absolute prefixes root-relative paths with base.
func absolute(base, p string) string {
	if p == "" || base == "" || !strings.HasPrefix(p, "/") {
		return p
	}
	return strings.TrimSuffix(base, "/") + p
}
