package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/autoguardian/negotiator/internal/listing"
)

// GetListing loads the negotiable view of an active vehicle listing.
func (s *Store) GetListing(ctx context.Context, id int64) (listing.Listing, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, asking_price, floor_price, features, vehicle_year, vehicle_make, vehicle_model
		FROM vehicle_listings
		WHERE id = $1 AND status = 'active'`, id)

	var l listing.Listing
	err := row.Scan(&l.ID, &l.AskingPrice, &l.FloorPrice, &l.Features,
		&l.Vehicle.Year, &l.Vehicle.Make, &l.Vehicle.Model)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return listing.Listing{}, ErrNotFound
		}
		return listing.Listing{}, fmt.Errorf("load listing: %w", err)
	}
	return l, nil
}
