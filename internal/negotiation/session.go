package negotiation

import (
	"time"

	"github.com/google/uuid"

	"github.com/autoguardian/negotiator/internal/listing"
)

// Sender identifies who wrote a chat message.
type Sender string

const (
	SenderBuyer  Sender = "buyer"
	SenderSeller Sender = "seller"
)

// Status is the lifecycle state of a negotiation session. Transitions are
// one-directional: open -> final_offer_made -> finalized, with rejected as
// an alternative terminal state reachable from either non-terminal state.
type Status string

const (
	StatusOpen           Status = "open"
	StatusFinalOfferMade Status = "final_offer_made"
	StatusFinalized      Status = "finalized"
	StatusRejected       Status = "rejected"
)

// Message is one turn of the negotiation chat. History is append-only.
type Message struct {
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Contact holds buyer details captured at finalization.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Session is the unit of state for one buyer's negotiation over one listing.
type Session struct {
	ID           uuid.UUID
	ListingID    int64
	Round        int
	CurrentOffer float64
	FinalOffer   float64
	Status       Status
	Style        Style
	History      []Message
	BuyerContact *Contact
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewSession creates an open session for a listing, refusing listings that
// violate the floor <= asking invariant.
func NewSession(l listing.Listing) (*Session, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Session{
		ID:           uuid.New(),
		ListingID:    l.ID,
		CurrentOffer: l.AskingPrice,
		Status:       StatusOpen,
		Style:        StyleStandard,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Append adds a message to the history. History is never mutated or
// reordered otherwise.
func (s *Session) Append(sender Sender, text string) {
	s.History = append(s.History, Message{
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
}

// Terminal reports whether the session has reached a terminal state.
func (s *Session) Terminal() bool {
	return s.Status == StatusFinalized || s.Status == StatusRejected
}

// LastSellerOffer scans the history backwards for the most recent price the
// seller agent put on the table.
func (s *Session) LastSellerOffer() (float64, bool) {
	for i := len(s.History) - 1; i >= 0; i-- {
		msg := s.History[i]
		if msg.Sender != SenderSeller {
			continue
		}
		if price, ok := ExtractSellerPrice(msg.Text); ok {
			return price, true
		}
	}
	return 0, false
}

// RecentHistory returns the last n messages without copying the rest.
func (s *Session) RecentHistory(n int) []Message {
	if len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// Clone returns a deep copy, so stores can hand out sessions without
// sharing mutable history.
func (s *Session) Clone() *Session {
	cp := *s
	cp.History = make([]Message, len(s.History))
	copy(cp.History, s.History)
	if s.BuyerContact != nil {
		contact := *s.BuyerContact
		cp.BuyerContact = &contact
	}
	return &cp
}
