package domain

// SearchFields are the values a free-text search is matched against.
type SearchFields struct {
	Identifier  string
	Origin      string
	Destination string
	Date        string
}

// ListItem is a record of a paginated upstream collection.
type ListItem interface {
	// ItemKey is the business identifier used to deduplicate pages.
	ItemKey() string
	// ItemNumber is the human-readable number the collection is ordered by.
	ItemNumber() string
	SearchFields() SearchFields
}
