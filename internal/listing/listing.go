package listing

import "errors"

// ErrInvalidListing is returned when a listing's floor price exceeds its
// asking price. Negotiations must refuse to start on such a listing rather
// than clamp it.
var ErrInvalidListing = errors.New("listing: floor price exceeds asking price")

// Listing is the negotiable view of a vehicle sale. The floor price is the
// seller's minimum and is never disclosed to the buyer.
type Listing struct {
	ID          int64
	Vehicle     Vehicle
	AskingPrice float64
	FloorPrice  float64
	Features    []string
}

// Vehicle identifies the car being sold, for prompt context only.
type Vehicle struct {
	Year  int
	Make  string
	Model string
}

// Validate checks the listing invariant floor <= asking.
func (l Listing) Validate() error {
	if l.FloorPrice > l.AskingPrice {
		return ErrInvalidListing
	}
	return nil
}
