package filters

// Filter is one saved "want" search: what to look for, the price ceiling and
// where. Price and Location are raw user text; Price is only treated as a
// numeric ceiling downstream when it parses as digits.
type Filter struct {
	Item     string `json:"item"`
	Price    string `json:"price"`
	Location string `json:"location"`
}

// Repository abstracts persistence of the per-user filter lists.
// Implementations must be safe for concurrent use. Reads against a missing or
// unreadable store degrade to empty results, never errors.
type Repository interface {
	ForUser(userID int64) ([]Filter, error)
	Append(userID int64, f Filter) error
	UserIDs() ([]int64, error)
}
