package listing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TemirB/freight-portal/internal/domain"
)

const dayLayout = "2006-01-02"

var ErrInvalidFilter = errors.New("invalid search filter")

// itemDateLayouts are the date shapes the upstream APIs have been seen to send.
var itemDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	dayLayout,
	"01/02/2006",
}

// Filter narrows an already loaded collection. The zero Filter matches everything.
type Filter struct {
	Term        string `json:"term,omitempty"`
	Date        string `json:"date,omitempty"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Origin      string `json:"origin,omitempty"`
	Destination string `json:"destination,omitempty"`
}

func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Term) == "" && f.Date == "" && f.From == "" && f.To == "" &&
		strings.TrimSpace(f.Origin) == "" && strings.TrimSpace(f.Destination) == ""
}

// Validate checks the date fields are YYYY-MM-DD and the range is not inverted.
func (f Filter) Validate() error {
	for name, v := range map[string]string{"date": f.Date, "from": f.From, "to": f.To} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(dayLayout, v); err != nil {
			return fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrInvalidFilter, name)
		}
	}
	if f.From != "" && f.To != "" && f.From > f.To {
		return fmt.Errorf("%w: from is after to", ErrInvalidFilter)
	}
	return nil
}

// Search returns the items matching f, in their original order. A zero filter
// returns items itself. Matching is case-insensitive; the term is looked up in
// the identifier, origin, destination and date of every item.
func Search[T domain.ListItem](items []T, f Filter) []T {
	if f.IsZero() {
		return items
	}

	term := strings.ToLower(strings.TrimSpace(f.Term))
	origin := strings.TrimSpace(f.Origin)
	dest := strings.TrimSpace(f.Destination)
	dated := f.Date != "" || f.From != "" || f.To != ""

	out := make([]T, 0, len(items))
	for _, it := range items {
		sf := it.SearchFields()

		if term != "" && !containsFold(term, sf.Identifier, sf.Origin, sf.Destination, sf.Date) {
			continue
		}
		if origin != "" && !strings.EqualFold(origin, strings.TrimSpace(sf.Origin)) {
			continue
		}
		if dest != "" && !strings.EqualFold(dest, strings.TrimSpace(sf.Destination)) {
			continue
		}
		if dated {
			day, ok := itemDay(sf.Date)
			if !ok {
				continue
			}
			if f.Date != "" && day != f.Date {
				continue
			}
			if f.From != "" && day < f.From {
				continue
			}
			if f.To != "" && day > f.To {
				continue
			}
		}
		out = append(out, it)
	}
	return out
}

func containsFold(term string, fields ...string) bool {
	for _, v := range fields {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}

func itemDay(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, layout := range itemDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dayLayout), true
		}
	}
	return "", false
}
