package promptplace

import "math"

const (
	// PlaceholderImage is served for listings without an uploaded image.
	PlaceholderImage = "/demo/seed/prompt-placeholder.svg"

	// UnknownSeller stands in for listings whose shop cannot be resolved.
	UnknownSeller = "Unknown"

	// MaxRating is the upper bound of the review scale.
	MaxRating = 5.0
)

// SearchResult is the uniform shape every tier maps its records into.
type SearchResult struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	SellerName  string  `json:"sellerName"`
	Image       string  `json:"image"`
	Rating      float64 `json:"rating"`
}

// Results represents a collection of search results with metadata.
type Results struct {
	// Items contains the individual search results.
	Items []SearchResult

	// Total is the number of items the answering backend reported.
	Total int64

	// Took is the time taken to execute the search in milliseconds.
	Took int64

	// Query is the original query string for reference.
	Query string

	// Tier names the backend that produced Items. Empty for blank queries.
	Tier string
}

// Normalize fills the defaults a record may lack: placeholder image,
// unknown seller, and a rating clamped to [0, MaxRating].
func Normalize(r SearchResult) SearchResult {
	if r.Image == "" {
		r.Image = PlaceholderImage
	}
	if r.SellerName == "" {
		r.SellerName = UnknownSeller
	}
	r.Rating = clampRating(r.Rating)
	if math.IsNaN(r.Price) || r.Price < 0 {
		r.Price = 0
	}
	return r
}

// AverageRating returns the mean of the given review ratings, or 0 when
// there are none.
func AverageRating(ratings []float64) float64 {
	if len(ratings) == 0 {
		return 0
	}
	var sum float64
	for _, r := range ratings {
		sum += r
	}
	return clampRating(sum / float64(len(ratings)))
}

func clampRating(r float64) float64 {
	switch {
	case math.IsNaN(r), r < 0:
		return 0
	case r > MaxRating:
		return MaxRating
	default:
		return r
	}
}
