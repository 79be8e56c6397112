package newsletter

import "github.com/Priya8975/newsletter-service/internal/domain"

type copyText struct {
	NewsletterSubject string
	Greeting          string
	NewsletterIntro   string
	ReadMore          string
	PreviewFallback   string
	Footer            string
	Unsubscribe       string

	ConfirmSubject string
	ConfirmIntro   string
	ConfirmButton  string
	ConfirmExpiry  string
	ConfirmIgnore  string
}

var copyByLanguage = map[domain.Language]copyText{
	domain.LanguagePL: {
		NewsletterSubject: "Nowy wpis na blogu: %s",
		Greeting:          "Cześć!",
		NewsletterIntro:   "Na blogu pojawił się nowy artykuł, który może Cię zainteresować.",
		ReadMore:          "Czytaj artykuł",
		PreviewFallback:   "Na blogu właśnie pojawił się nowy artykuł.",
		Footer:            "Otrzymujesz tę wiadomość, ponieważ zapisałeś się do newslettera.",
		Unsubscribe:       "Wypisz się",

		ConfirmSubject: "Potwierdź zapis do newslettera",
		ConfirmIntro:   "Dziękuję za zapis do newslettera. Kliknij przycisk poniżej, aby potwierdzić adres e-mail.",
		ConfirmButton:  "Potwierdzam zapis",
		ConfirmExpiry:  "Link jest ważny przez 24 godziny.",
		ConfirmIgnore:  "Jeśli to nie Ty, po prostu zignoruj tę wiadomość.",
	},
	domain.LanguageEN: {
		NewsletterSubject: "New blog post: %s",
		Greeting:          "Hi there!",
		NewsletterIntro:   "A new article has just been published on the blog.",
		ReadMore:          "Read the article",
		PreviewFallback:   "A new article has just been published on the blog.",
		Footer:            "You are receiving this email because you subscribed to the newsletter.",
		Unsubscribe:       "Unsubscribe",

		ConfirmSubject: "Confirm your newsletter subscription",
		ConfirmIntro:   "Thanks for subscribing. Click the button below to confirm your email address.",
		ConfirmButton:  "Confirm subscription",
		ConfirmExpiry:  "The link is valid for 24 hours.",
		ConfirmIgnore:  "If this wasn't you, just ignore this email.",
	},
}

func copyFor(lang domain.Language) copyText {
	if c, ok := copyByLanguage[lang]; ok {
		return c
	}
	return copyByLanguage[domain.LanguagePL]
}
