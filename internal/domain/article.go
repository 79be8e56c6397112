package domain

import (
	"strings"
	"time"
)

// Localized holds one value per site language.
type Localized struct {
	PL string `json:"pl"`
	EN string `json:"en"`
}

// Get returns the raw value for lang without fallback.
func (l Localized) Get(lang Language) string {
	if lang == LanguageEN {
		return l.EN
	}
	return l.PL
}

// Resolve returns the value for lang, falling back to Polish and then English
// when the requested value is blank.
func (l Localized) Resolve(lang Language) string {
	if v := strings.TrimSpace(l.Get(lang)); v != "" {
		return v
	}
	if v := strings.TrimSpace(l.PL); v != "" {
		return v
	}
	return strings.TrimSpace(l.EN)
}

type Article struct {
	ID          string     `json:"id"`
	Title       Localized  `json:"title"`
	Excerpt     Localized  `json:"excerpt"`
	Slug        Localized  `json:"slug"`
	CoverImage  string     `json:"cover_image,omitempty"`
	IsPublished bool       `json:"is_published"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// ArticleView is an article resolved for a single language.
type ArticleView struct {
	ID         string
	Title      string
	Excerpt    string
	Slug       string
	CoverImage string
}

// View resolves every bilingual field for lang.
func (a *Article) View(lang Language) ArticleView {
	return ArticleView{
		ID:         a.ID,
		Title:      a.Title.Resolve(lang),
		Excerpt:    a.Excerpt.Resolve(lang),
		Slug:       a.Slug.Resolve(lang),
		CoverImage: strings.TrimSpace(a.CoverImage),
	}
}
