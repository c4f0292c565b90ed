package pages

import (
	"encoding/json"
	"fmt"

	"github.com/obiwac/obiwac.github.io/internal/appicon"
	"github.com/obiwac/obiwac.github.io/internal/content"
)

// IconPath is where the app icon of a given size is served.
func IconPath(size int) string {
	return "/public/icons/" + appicon.Name(size)
}

type manifestIcon struct {
	Src     string `json:"src"`
	Sizes   string `json:"sizes"`
	Type    string `json:"type"`
	Purpose string `json:"purpose,omitempty"`
}

type manifest struct {
	Name            string         `json:"name"`
	ShortName       string         `json:"short_name"`
	Description     string         `json:"description,omitempty"`
	Lang            string         `json:"lang,omitempty"`
	StartURL        string         `json:"start_url"`
	Scope           string         `json:"scope"`
	Display         string         `json:"display"`
	BackgroundColor string         `json:"background_color"`
	ThemeColor      string         `json:"theme_color"`
	Icons           []manifestIcon `json:"icons"`
}

// Manifest builds the web app manifest for site.
func Manifest(site content.Site) ([]byte, error) {
	m := manifest{
		Name:            site.Title,
		ShortName:       site.Title,
		Description:     site.Description,
		Lang:            site.Language,
		StartURL:        "/",
		Scope:           "/",
		Display:         "standalone",
		BackgroundColor: site.BackgroundColor,
		ThemeColor:      site.ThemeColor,
	}
	for _, size := range appicon.Sizes {
		m.Icons = append(m.Icons, manifestIcon{
			Src:     IconPath(size),
			Sizes:   fmt.Sprintf("%dx%d", size, size),
			Type:    "image/png",
			Purpose: "any",
		})
	}
	return json.MarshalIndent(m, "", "  ")
}
