// Package view joins the three cached reads into display rows and applies
// the search, sort and rating filters. Assembly is pure: all state comes in
// as arguments and the output is fully determined by them.
package view

import (
	"strings"

	"github.com/yogeshchauhan3103-code/prompt-manager/internal/recordstore"
)

type Sort string

const (
	SortNewestFirst Sort = "newest"
	SortOldestFirst Sort = "oldest"
)

type RatingFilter string

const (
	FilterAll      RatingFilter = "all"
	FilterLiked    RatingFilter = "liked"
	FilterDisliked RatingFilter = "disliked"
	FilterUnrated  RatingFilter = "unrated"
)

const (
	RatingUp   = "up"
	RatingDown = "down"
)

// Query is the viewer's current search/sort/filter state.
type Query struct {
	Viewer string
	Search string
	Sort   Sort
	Rating RatingFilter
}

func NormalizeSort(raw string) Sort {
	switch Sort(strings.ToLower(strings.TrimSpace(raw))) {
	case SortOldestFirst:
		return SortOldestFirst
	default:
		return SortNewestFirst
	}
}

func NormalizeRatingFilter(raw string) RatingFilter {
	switch RatingFilter(strings.ToLower(strings.TrimSpace(raw))) {
	case FilterLiked, FilterDisliked, FilterUnrated:
		return RatingFilter(strings.ToLower(strings.TrimSpace(raw)))
	default:
		return FilterAll
	}
}

// Row is one rendered prompt: the record, the viewer's own rating (empty
// when unrated) and the prompt's note thread in creation order.
type Row struct {
	Prompt recordstore.Prompt `json:"prompt"`
	Rating string             `json:"rating,omitempty"`
	Notes  []recordstore.Note `json:"notes,omitempty"`
}

// Page is the assembled main view.
type Page struct {
	Viewer  string `json:"viewer"`
	IsAdmin bool   `json:"isAdmin"`
	Total   int    `json:"total"`
	Rows    []Row  `json:"rows"`
}

// Result is the outcome of rendering a protected view: either a redirect
// to another view or a page to render. Never both.
type Result struct {
	Location string
	Page     *Page
}

func Redirect(location string) Result {
	return Result{Location: location}
}

func Render(page Page) Result {
	return Result{Page: &page}
}

func (r Result) IsRedirect() bool { return r.Location != "" }

type ratingKey struct {
	promptID string
	email    string
}

// Assemble builds the display rows. Order of operations matters for
// determinism: rating lookup, notes grouping, rating filter, search, sort.
func Assemble(prompts []recordstore.Prompt, ratings []recordstore.Rating, notes []recordstore.Note, q Query) Page {
	ratingMap := make(map[ratingKey]string, len(ratings))
	for _, r := range ratings {
		ratingMap[ratingKey{r.PromptID, strings.ToLower(r.UserEmail)}] = r.Rating
	}

	notesMap := make(map[string][]recordstore.Note)
	for _, n := range notes {
		notesMap[n.PromptID] = append(notesMap[n.PromptID], n)
	}

	viewer := strings.ToLower(q.Viewer)
	search := strings.ToLower(strings.TrimSpace(q.Search))

	rows := make([]Row, 0, len(prompts))
	for _, p := range prompts {
		rating, rated := ratingMap[ratingKey{p.ID, viewer}]

		switch q.Rating {
		case FilterLiked:
			if rating != RatingUp {
				continue
			}
		case FilterDisliked:
			if rating != RatingDown {
				continue
			}
		case FilterUnrated:
			if rated {
				continue
			}
		}

		if search != "" {
			text := strings.ToLower(p.Prompt + " " + p.Query + " " + p.Response)
			if !strings.Contains(text, search) {
				continue
			}
		}

		rows = append(rows, Row{Prompt: p, Rating: rating, Notes: notesMap[p.ID]})
	}

	// "Oldest First" reverses the already-filtered sequence. The store
	// order is newest-first; reversal is only equal to an ascending sort
	// when timestamps are unique, and that reversal semantics is what the
	// view has always shown.
	if q.Sort == SortOldestFirst {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}

	return Page{
		Viewer: q.Viewer,
		Total:  len(rows),
		Rows:   rows,
	}
}
