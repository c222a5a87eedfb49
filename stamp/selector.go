package stamp

import (
	"sort"
	"strconv"
	"strings"
)

// Page selector keywords.
const (
	PagesAll   = "ALL"
	PagesFirst = "FIRST"
	PagesLast  = "LAST"
)

// ResolvePages turns a selector into sorted, distinct zero-based page
// indices. The selector is ALL (or blank), FIRST, LAST, or a comma-separated
// list of one-based page numbers and a-b ranges.
func ResolvePages(expr string, pageCount int) ([]int, error) {
	if pageCount <= 0 {
		return []int{}, nil
	}
	expr = strings.TrimSpace(expr)
	switch strings.ToUpper(expr) {
	case "", PagesAll:
		all := make([]int, pageCount)
		for i := range all {
			all[i] = i
		}
		return all, nil
	case PagesFirst:
		return []int{0}, nil
	case PagesLast:
		return []int{pageCount - 1}, nil
	}

	seen := make(map[int]bool)
	for _, raw := range strings.Split(expr, ",") {
		token := strings.TrimSpace(raw)
		if token == "" {
			continue
		}
		if strings.Contains(token, "-") {
			from, to, err := parseRange(token, pageCount)
			if err != nil {
				return nil, err
			}
			for p := from; p <= to; p++ {
				seen[p-1] = true
			}
			continue
		}
		n, err := strconv.Atoi(token)
		if err != nil {
			return nil, &PageNumberError{Token: token, PageCount: pageCount, NotNumber: true}
		}
		if n < 1 || n > pageCount {
			return nil, &PageNumberError{Token: token, Page: n, PageCount: pageCount}
		}
		seen[n-1] = true
	}
	out := make([]int, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Ints(out)
	return out, nil
}

func parseRange(token string, pageCount int) (int, int, error) {
	parts := strings.Split(token, "-")
	if len(parts) != 2 {
		return 0, 0, &PageRangeError{Token: token, Reason: "expected exactly two bounds"}
	}
	from, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	to, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	switch {
	case err1 != nil || err2 != nil:
		return 0, 0, &PageRangeError{Token: token, Reason: "bounds must be numbers"}
	case from < 1:
		return 0, 0, &PageRangeError{Token: token, Reason: "start must be at least 1"}
	case from > to:
		return 0, 0, &PageRangeError{Token: token, Reason: "start is after end"}
	case to > pageCount:
		return 0, 0, &PageRangeError{
			Token:  token,
			Reason: "end is past the last page",
			Err:    &PageNumberError{Token: parts[1], Page: to, PageCount: pageCount},
		}
	}
	return from, to, nil
}
