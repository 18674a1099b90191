package domain

// Category is an announcement type label produced by classification.
type Category string

const (
	CategoryNewListing     Category = "new-listing"
	CategoryPreMarket      Category = "pre-market"
	CategoryFutures        Category = "futures"
	CategoryDelisting      Category = "delisting"
	CategoryLaunchPool     Category = "launch-pool"
	CategoryInnovationZone Category = "innovation-zone"
	CategoryUncategorized  Category = "uncategorized"
)

// All is the wildcard used by subscriptions for exchange and type filters.
const All = "all"

// KnownCategories lists every category in display order.
var KnownCategories = []Category{
	CategoryNewListing,
	CategoryPreMarket,
	CategoryFutures,
	CategoryDelisting,
	CategoryLaunchPool,
	CategoryInnovationZone,
	CategoryUncategorized,
}

var categoryLabels = map[Category]string{
	CategoryNewListing:     "New Listing",
	CategoryPreMarket:      "Pre-Market",
	CategoryFutures:        "Futures",
	CategoryDelisting:      "Delisting",
	CategoryLaunchPool:     "Launchpool",
	CategoryInnovationZone: "Innovation Zone",
	CategoryUncategorized:  "Uncategorized",
}

// String returns the string representation of Category.
func (c Category) String() string {
	return string(c)
}

// Label returns a human readable label, falling back to the raw value.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// IsValid checks if the category is one of the known values.
func (c Category) IsValid() bool {
	_, ok := categoryLabels[c]
	return ok
}
