package compose

import "strings"

// rewriteLinks resolves root-relative src and href attributes against the
// ad-system base URL.
func (p *Pipeline) rewriteLinks(markup string) string {
	base := p.baseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return strings.NewReplacer(`src="/`, `src="`+base, `href="/`, `href="`+base).Replace(markup)
}

// ensureHTML wraps a fragment in a minimal document unless it already is one.
func ensureHTML(markup string) string {
	head := strings.ToLower(strings.TrimSpace(markup))
	if strings.HasPrefix(head, "<!doctype") || strings.HasPrefix(head, "<html") {
		return markup
	}
	return "<!DOCTYPE html>\n<html>\n<head><meta charset=\"UTF-8\"/></head>\n<body>\n" + markup + "\n</body>\n</html>"
}

func doiURL(doi string) string {
	if strings.HasPrefix(doi, "http") {
		return doi
	}
	return "https://doi.org/" + doi
}
