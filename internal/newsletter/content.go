package newsletter

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"regexp"
	"strings"
	texttemplate "text/template"
	"unicode/utf8"

	"github.com/Priya8975/newsletter-service/internal/domain"
)

const previewMaxRunes = 150

//go:embed templates/*.tmpl
var templateFS embed.FS

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Message is a rendered email ready for any delivery path.
type Message struct {
	Subject     string
	PreviewText string
	HTML        string
	Text        string
}

// Content renders newsletter and confirmation emails.
type Content struct {
	siteURL string
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

func NewContent(siteURL string) (*Content, error) {
	html, err := htmltemplate.ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing html templates: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing text templates: %w", err)
	}
	return &Content{
		siteURL: strings.TrimRight(siteURL, "/"),
		html:    html,
		text:    text,
	}, nil
}

type newsletterData struct {
	Lang           string
	Subject        string
	Preview        string
	Greeting       string
	Intro          string
	Title          string
	Excerpt        string
	CoverImage     string
	ArticleURL     string
	ReadMore       string
	Footer         string
	Unsubscribe    string
	UnsubscribeURL string
}

type confirmationData struct {
	Lang       string
	Subject    string
	Greeting   string
	Intro      string
	Button     string
	ConfirmURL string
	Expiry     string
	Ignore     string
}

// Newsletter renders the announcement for an article in one language.
func (c *Content) Newsletter(view domain.ArticleView, lang domain.Language) (*Message, error) {
	t := copyFor(lang)
	data := newsletterData{
		Lang:           lang.String(),
		Subject:        fmt.Sprintf(t.NewsletterSubject, view.Title),
		Preview:        PreviewText(view.Excerpt, t.PreviewFallback),
		Greeting:       t.Greeting,
		Intro:          t.NewsletterIntro,
		Title:          view.Title,
		Excerpt:        view.Excerpt,
		CoverImage:     c.absoluteURL(view.CoverImage),
		ArticleURL:     c.ArticleURL(lang, view.Slug),
		ReadMore:       t.ReadMore,
		Footer:         t.Footer,
		Unsubscribe:    t.Unsubscribe,
		UnsubscribeURL: c.UnsubscribeURL(lang),
	}

	html, text, err := c.render("newsletter", data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Subject:     data.Subject,
		PreviewText: data.Preview,
		HTML:        html,
		Text:        text,
	}, nil
}

// Confirmation renders the double opt-in email.
func (c *Content) Confirmation(token string, lang domain.Language) (*Message, error) {
	t := copyFor(lang)
	data := confirmationData{
		Lang:       lang.String(),
		Subject:    t.ConfirmSubject,
		Greeting:   t.Greeting,
		Intro:      t.ConfirmIntro,
		Button:     t.ConfirmButton,
		ConfirmURL: c.ConfirmURL(lang, token),
		Expiry:     t.ConfirmExpiry,
		Ignore:     t.ConfirmIgnore,
	}

	html, text, err := c.render("confirmation", data)
	if err != nil {
		return nil, err
	}
	return &Message{Subject: data.Subject, HTML: html, Text: text}, nil
}

func (c *Content) render(name string, data any) (string, string, error) {
	var html, text bytes.Buffer
	if err := c.html.ExecuteTemplate(&html, name+".html.tmpl", data); err != nil {
		return "", "", fmt.Errorf("rendering %s html: %w", name, err)
	}
	if err := c.text.ExecuteTemplate(&text, name+".txt.tmpl", data); err != nil {
		return "", "", fmt.Errorf("rendering %s text: %w", name, err)
	}
	return html.String(), text.String(), nil
}

func (c *Content) ArticleURL(lang domain.Language, slug string) string {
	return fmt.Sprintf("%s/%s/blog/%s", c.siteURL, lang, url.PathEscape(slug))
}

func (c *Content) UnsubscribeURL(lang domain.Language) string {
	return fmt.Sprintf("%s/%s/newsletter/unsubscribe", c.siteURL, lang)
}

func (c *Content) ConfirmURL(lang domain.Language, token string) string {
	return fmt.Sprintf("%s/%s/newsletter/confirm?token=%s", c.siteURL, lang, url.QueryEscape(token))
}

func (c *Content) absoluteURL(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return c.siteURL + "/" + strings.TrimLeft(ref, "/")
}

// PreviewText strips markup from an excerpt and truncates it for the inbox
// preview line. An empty result falls back to the given sentence.
func PreviewText(excerpt, fallback string) string {
	plain := tagPattern.ReplaceAllString(excerpt, " ")
	plain = strings.Join(strings.Fields(plain), " ")
	if plain == "" {
		return fallback
	}
	if utf8.RuneCountInString(plain) <= previewMaxRunes {
		return plain
	}
	runes := []rune(plain)
	cut := strings.TrimRight(string(runes[:previewMaxRunes-1]), " ,.;:-")
	return cut + "…"
}
