package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/autoguardian/negotiator/internal/listing"
	"github.com/autoguardian/negotiator/internal/negotiation"
	"github.com/autoguardian/negotiator/internal/store"
)

type negotiateRequest struct {
	Message       string     `json:"message"`
	NegotiationID *uuid.UUID `json:"negotiation_id,omitempty"`
}

type negotiateResponse struct {
	Reply         string                `json:"reply"`
	CurrentOffer  float64               `json:"current_offer"`
	IsFinal       bool                  `json:"is_final"`
	NegotiationID string                `json:"negotiation_id"`
	Status        string                `json:"status"`
	ChatHistory   []negotiation.Message `json:"chat_history"`
}

func (s *Server) negotiate(w http.ResponseWriter, r *http.Request) {
	listingID, err := strconv.ParseInt(chi.URLParam(r, "listingID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid listing id")
		return
	}

	var req negotiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	l, err := s.listings.GetListing(r.Context(), listingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "listing not found")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "listing lookup failed, try again")
		return
	}

	result, err := s.engine.Negotiate(r.Context(), negotiation.NegotiateRequest{
		SessionID: req.NegotiationID,
		Listing:   l,
		Message:   req.Message,
	})
	if err != nil {
		switch {
		case errors.Is(err, negotiation.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, "message is required")
		case errors.Is(err, store.ErrNotFound), errors.Is(err, negotiation.ErrListingMismatch):
			writeError(w, http.StatusNotFound, "negotiation not found")
		case errors.Is(err, listing.ErrInvalidListing):
			writeError(w, http.StatusInternalServerError, "listing is not negotiable")
		default:
			writeError(w, http.StatusServiceUnavailable, "negotiation temporarily unavailable, try again")
		}
		return
	}

	writeJSON(w, http.StatusOK, negotiateResponse{
		Reply:         result.Reply,
		CurrentOffer:  result.CurrentOffer,
		IsFinal:       result.IsFinal,
		NegotiationID: result.SessionID.String(),
		Status:        string(result.Status),
		ChatHistory:   result.RecentHistory,
	})
}

type negotiationSummary struct {
	NegotiationID string    `json:"negotiation_id"`
	BuyerName     string    `json:"buyer_name"`
	BuyerEmail    string    `json:"buyer_email,omitempty"`
	BuyerPhone    string    `json:"buyer_phone,omitempty"`
	FinalPrice    float64   `json:"final_price"`
	Status        string    `json:"status"`
	Rounds        int       `json:"rounds"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (s *Server) listNegotiations(w http.ResponseWriter, r *http.Request) {
	listingID, err := strconv.ParseInt(chi.URLParam(r, "listingID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid listing id")
		return
	}

	sessions, err := s.negotiations.ListingNegotiations(r.Context(), listingID)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "could not list negotiations, try again")
		return
	}

	summaries := make([]negotiationSummary, 0, len(sessions))
	for _, sess := range sessions {
		summary := negotiationSummary{
			NegotiationID: sess.ID.String(),
			FinalPrice:    sess.FinalOffer,
			Status:        string(sess.Status),
			Rounds:        sess.Round,
			UpdatedAt:     sess.UpdatedAt,
		}
		if sess.BuyerContact != nil {
			summary.BuyerName = sess.BuyerContact.Name
			summary.BuyerEmail = sess.BuyerContact.Email
			summary.BuyerPhone = sess.BuyerContact.Phone
		}
		summaries = append(summaries, summary)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"listing_id":   listingID,
		"negotiations": summaries,
		"count":        len(summaries),
	})
}

type transitionResponse struct {
	NegotiationID string  `json:"negotiation_id"`
	Status        string  `json:"status"`
	FinalPrice    float64 `json:"final_price"`
}

func (s *Server) accept(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.engine.Accept)
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.engine.Reject)
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id uuid.UUID) (*negotiation.Session, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "negotiationID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid negotiation id")
		return
	}

	sess, err := apply(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "negotiation not found")
		case errors.Is(err, negotiation.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "negotiation is not in a state that allows this")
		default:
			writeError(w, http.StatusServiceUnavailable, "negotiation temporarily unavailable, try again")
		}
		return
	}

	writeJSON(w, http.StatusOK, transitionResponse{
		NegotiationID: sess.ID.String(),
		Status:        string(sess.Status),
		FinalPrice:    sess.FinalOffer,
	})
}
