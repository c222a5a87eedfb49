package compose

import (
	"context"
	"html"
	"strings"
	"time"
)

// DateLayout formats generated dates.
const DateLayout = "January 2, 2006"

// CoverPage is the metadata shown on a prepended cover page. Empty fields
// are left out.
type CoverPage struct {
	LogoURL        string
	LogoText       string
	Title          string
	Authors        string
	Citation       string
	DOI            string
	AdditionalLink string
	IncludeDate    bool
}

// BuildFrontPage returns the cover page markup: logo and title on the
// first row, date and bibliographic details on the second.
func BuildFrontPage(c CoverPage, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8"/></head>`)
	sb.WriteString(`<body style="margin: 50px; font-family: 'Times New Roman', Times, serif;">`)
	sb.WriteString(`<table style="width: 100%; border-collapse: collapse; table-layout: fixed;">`)

	sb.WriteString(`<tr><td style="width: 25%; vertical-align: top; padding-right: 20px;">`)
	switch {
	case strings.TrimSpace(c.LogoURL) != "":
		sb.WriteString(`<img src="` + html.EscapeString(c.LogoURL) + `" style="max-width: 100%;" />`)
	case strings.TrimSpace(c.LogoText) != "":
		sb.WriteString(`<h1 style="color: #002D62; font-family: Arial, sans-serif; font-size: 64px; margin-top: 0; font-weight: bold;">`)
		sb.WriteString(html.EscapeString(c.LogoText) + `</h1>`)
	}
	sb.WriteString(`</td><td style="width: 75%; vertical-align: top;">`)
	if strings.TrimSpace(c.Title) != "" {
		sb.WriteString(`<h2 style="font-size: 24px; font-weight: bold; margin-top: 5px; line-height: 1.2;">`)
		sb.WriteString(multiline(c.Title) + `</h2>`)
	}
	sb.WriteString(`</td></tr>`)

	sb.WriteString(`<tr><td style="width: 25%; vertical-align: top; padding-right: 20px; padding-top: 40px;">`)
	if c.IncludeDate {
		sb.WriteString(`<p style="font-size: 16px;">This information is current as<br/>of `)
		sb.WriteString(now.Format(DateLayout) + `.</p>`)
	}
	sb.WriteString(`</td><td style="width: 75%; vertical-align: top; padding-top: 40px;">`)
	if strings.TrimSpace(c.Authors) != "" {
		sb.WriteString(`<p style="font-size: 18px; line-height: 1.5; margin-top: 0;">` + html.EscapeString(c.Authors) + `</p>`)
	}
	sb.WriteString(`<div style="margin-top: 40px; font-size: 16px;">`)
	if strings.TrimSpace(c.Citation) != "" {
		sb.WriteString(`<p style="margin-bottom: 5px;"><i>` + html.EscapeString(c.Citation) + `</i></p>`)
	}
	if doi := strings.TrimSpace(c.DOI); doi != "" {
		sb.WriteString(`<p style="margin: 0; color: blue;">doi: ` + anchor(doiURL(doi)) + `</p>`)
	}
	if link := strings.TrimSpace(c.AdditionalLink); link != "" {
		if !strings.HasPrefix(link, "http") {
			link = "https://" + link
		}
		sb.WriteString(`<p style="margin: 0; color: blue;">` + anchor(link) + `</p>`)
	}
	sb.WriteString(`</div></td></tr></table></body></html>`)
	return sb.String()
}

// CoverPage renders c at the size of doc's first page and prepends it.
func (p *Pipeline) CoverPage(ctx context.Context, doc []byte, c CoverPage) (out []byte, err error) {
	if len(doc) == 0 {
		return nil, errEmptyDocument
	}
	defer p.logTiming("cover page prepended", time.Now(), &err)
	return p.prependMarkup(ctx, doc, BuildFrontPage(c, p.now()))
}

func anchor(url string) string {
	u := html.EscapeString(url)
	return `<a href="` + u + `" style="color: blue; text-decoration: none;">` + u + `</a>`
}

// multiline escapes s and turns newlines into line breaks.
func multiline(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br/>")
}
