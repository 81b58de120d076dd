package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/autoguardian/negotiator/internal/negotiation"
)

// Save upserts the whole session in one statement, so a turn's mutations
// (round, offer, status, history, contact) land atomically or not at all.
func (s *Store) Save(ctx context.Context, sess *negotiation.Session) error {
	history, err := json.Marshal(sess.History)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	var name, email, phone string
	if sess.BuyerContact != nil {
		name = sess.BuyerContact.Name
		email = sess.BuyerContact.Email
		phone = sess.BuyerContact.Phone
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO negotiations (id, listing_id, round, current_offer, final_offer, status, style, history, buyer_name, buyer_email, buyer_phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			round = EXCLUDED.round,
			current_offer = EXCLUDED.current_offer,
			final_offer = EXCLUDED.final_offer,
			status = EXCLUDED.status,
			style = EXCLUDED.style,
			history = EXCLUDED.history,
			buyer_name = EXCLUDED.buyer_name,
			buyer_email = EXCLUDED.buyer_email,
			buyer_phone = EXCLUDED.buyer_phone,
			updated_at = EXCLUDED.updated_at`,
		sess.ID, sess.ListingID, sess.Round, sess.CurrentOffer, sess.FinalOffer,
		string(sess.Status), string(sess.Style), history, name, email, phone,
		sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert negotiation: %w", err)
	}
	return nil
}

// Load fetches a session by id, returning ErrNotFound for unknown ids.
func (s *Store) Load(ctx context.Context, id uuid.UUID) (*negotiation.Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, listing_id, round, current_offer, final_offer, status, style, history, buyer_name, buyer_email, buyer_phone, created_at, updated_at
		FROM negotiations WHERE id = $1`, id)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load negotiation: %w", err)
	}
	return sess, nil
}

// ListingNegotiations returns the sessions for a listing that captured
// buyer contact details, newest first. Anonymous sessions that never
// finalized are the buyer's business, not the owner's.
func (s *Store) ListingNegotiations(ctx context.Context, listingID int64) ([]*negotiation.Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, listing_id, round, current_offer, final_offer, status, style, history, buyer_name, buyer_email, buyer_phone, created_at, updated_at
		FROM negotiations
		WHERE listing_id = $1 AND buyer_name <> ''
		ORDER BY updated_at DESC`, listingID)
	if err != nil {
		return nil, fmt.Errorf("query negotiations: %w", err)
	}
	defer rows.Close()

	var sessions []*negotiation.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan negotiation: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate negotiations: %w", err)
	}
	return sessions, nil
}

func scanSession(row pgx.Row) (*negotiation.Session, error) {
	var (
		sess              negotiation.Session
		status, style     string
		historyJSON       []byte
		name, email, tele string
	)
	err := row.Scan(&sess.ID, &sess.ListingID, &sess.Round, &sess.CurrentOffer, &sess.FinalOffer,
		&status, &style, &historyJSON, &name, &email, &tele, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}

	sess.Status = negotiation.Status(status)
	sess.Style = negotiation.Style(style)
	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &sess.History); err != nil {
			return nil, fmt.Errorf("unmarshal history: %w", err)
		}
	}
	if name != "" || email != "" || tele != "" {
		sess.BuyerContact = &negotiation.Contact{Name: name, Email: email, Phone: tele}
	}
	return &sess, nil
}
