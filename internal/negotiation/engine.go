package negotiation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/autoguardian/negotiator/internal/listing"
)

var (
	ErrEmptyMessage      = errors.New("negotiation: empty buyer message")
	ErrListingMismatch   = errors.New("negotiation: session does not belong to this listing")
	ErrInvalidTransition = errors.New("negotiation: invalid status transition")
)

// SessionStore persists sessions with read-your-writes consistency per
// session id. Load returns the store's not-found error for unknown ids.
type SessionStore interface {
	Load(ctx context.Context, id uuid.UUID) (*Session, error)
	Save(ctx context.Context, sess *Session) error
}

// Publisher notifies the marketplace module of lifecycle transitions. It is
// optional; publish failures are logged, never surfaced to the buyer.
type Publisher interface {
	SessionStarted(sess *Session) error
	FinalOfferMade(sess *Session) error
	SessionFinalized(sess *Session) error
	SessionRejected(sess *Session) error
}

const recentHistoryTurns = 10

// Engine owns per-listing-per-buyer negotiation state and sequences the
// extractors, the style profiler, the counter-offer policy and the response
// generator for each inbound buyer message.
type Engine struct {
	store      SessionStore
	intents    *IntentClassifier
	contacts   *ContactExtractor
	responder  *ResponseGenerator
	publisher  Publisher
	logger     *slog.Logger
	llmTimeout time.Duration

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewEngine wires the components around one Generator. gen and publisher
// may be nil: the engine then runs entirely on its deterministic paths.
func NewEngine(store SessionStore, gen Generator, publisher Publisher, logger *slog.Logger, llmTimeout time.Duration) *Engine {
	if llmTimeout <= 0 {
		llmTimeout = 8 * time.Second
	}
	return &Engine{
		store:      store,
		intents:    NewIntentClassifier(gen, logger),
		contacts:   NewContactExtractor(gen, logger),
		responder:  NewResponseGenerator(gen, logger),
		publisher:  publisher,
		logger:     logger,
		llmTimeout: llmTimeout,
		locks:      make(map[uuid.UUID]*sync.Mutex),
	}
}

// NegotiateRequest is one inbound buyer message. A nil SessionID starts a
// new session for the listing.
type NegotiateRequest struct {
	SessionID *uuid.UUID
	Listing   listing.Listing
	Message   string
}

// NegotiateResult is the engine's reply to the caller. IsFinal signals that
// the agent is holding at its final offer or has asked for contact details.
type NegotiateResult struct {
	Reply         string
	CurrentOffer  float64
	IsFinal       bool
	SessionID     uuid.UUID
	Status        Status
	RecentHistory []Message
}

// Negotiate runs one turn. Operations on the same session are serialized;
// sessions for different buyers proceed in parallel. All mutations are
// persisted once, at the end of the turn, so an abandoned or failed turn
// leaves no partial state behind.
func (e *Engine) Negotiate(ctx context.Context, req NegotiateRequest) (*NegotiateResult, error) {
	if err := req.Listing.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	var (
		sess    *Session
		created bool
	)
	if req.SessionID != nil {
		unlock := e.lockSession(*req.SessionID)
		defer unlock()

		loaded, err := e.store.Load(ctx, *req.SessionID)
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		if loaded.ListingID != req.Listing.ID {
			return nil, ErrListingMismatch
		}
		sess = loaded
	} else {
		fresh, err := NewSession(req.Listing)
		if err != nil {
			return nil, err
		}
		unlock := e.lockSession(fresh.ID)
		defer unlock()
		sess = fresh
		created = true
	}

	if sess.Terminal() {
		return e.closedResult(sess), nil
	}

	sess.Append(SenderBuyer, req.Message)

	llmCtx, cancel := context.WithTimeout(ctx, e.llmTimeout)
	defer cancel()

	// Contact details short-circuit the turn, but only once a price is on
	// the table: either an agreed final offer or a recoverable seller offer
	// from the history. A first message containing contact details never
	// finalizes.
	if len(sess.History) > 1 {
		if contact, ok := e.contacts.Extract(llmCtx, req.Message); ok {
			price := sess.FinalOffer
			if price <= 0 {
				price, _ = sess.LastSellerOffer()
			}
			if price > 0 {
				return e.finalize(ctx, sess, contact, price)
			}
			e.logger.Warn("contact details before any seller offer, continuing negotiation",
				"negotiation_id", sess.ID,
			)
		}
	}

	// Intent classification and price extraction have no ordering
	// dependency; the classifier is the one that blocks on I/O.
	verdictCh := make(chan IntentResult, 1)
	go func(message string, history []Message) {
		verdictCh <- e.intents.Classify(llmCtx, message, history)
	}(req.Message, append([]Message(nil), sess.History...))
	buyerOffer, _ := ExtractPrice(req.Message)
	verdict := <-verdictCh

	sess.Style = ProfileStyle(sess.History)
	style := sess.Style
	asking := req.Listing.AskingPrice
	floor := req.Listing.FloorPrice

	isFinal := verdict.ShouldMoveToFinal || verdict.WantsFinalPrice || sess.Round >= MaxRounds(style)
	intent := verdict.Intent
	offer := sess.CurrentOffer

	// A neutral verdict with a price in the message still negotiates: the
	// extractor's number drives the counter even when the classifier is
	// running on its fallback.
	if intent == IntentGeneral && buyerOffer > 0 {
		intent = IntentPriceReduction
	}

	if verdict.ReadyToFinalize && verdict.ProposedFinalPrice > 0 {
		if verdict.ProposedFinalPrice >= floor {
			offer = verdict.ProposedFinalPrice
			intent = IntentAgreement
		} else {
			offer = floor
		}
		isFinal = true
	} else {
		switch intent {
		case IntentPriceInquiry:
			if sess.Round == 0 {
				offer = asking
			} else {
				offer = CounterOffer(asking, floor, sess.Round, style, 0)
			}
		case IntentPriceReduction:
			offer = CounterOffer(asking, floor, sess.Round, style, buyerOffer)
			if IsFinalOffer(offer, floor, sess.Round, style) {
				isFinal = true
				offer = floor
			}
		case IntentAgreement:
			if last, ok := sess.LastSellerOffer(); ok {
				offer = last
			} else {
				offer = asking
			}
			isFinal = true
		case IntentRejection:
			if isFinal {
				offer = floor
			} else {
				offer = CounterOffer(asking, floor, sess.Round+1, style, 0)
			}
		default:
			if sess.Round == 0 {
				offer = asking
			} else {
				offer = CounterOffer(asking, floor, sess.Round, style, 0)
			}
		}
	}

	// A round is a seller counter-offer, not a message: pure inquiries that
	// repeat the same number don't advance it.
	if offer != sess.CurrentOffer {
		sess.Round++
	}
	sess.CurrentOffer = offer

	reply := e.responder.Reply(llmCtx, ReplyContext{
		Listing:      req.Listing,
		Message:      req.Message,
		Intent:       intent,
		CurrentOffer: offer,
		Round:        sess.Round,
		IsFinal:      isFinal,
		Style:        style,
		BuyerOffer:   buyerOffer,
	})
	// Safety net: once the agent has asked for contact details the session
	// must be at its final offer, whatever branch produced the reply.
	if RequestsContact(reply) {
		isFinal = true
	}

	if isFinal || sess.FinalOffer == 0 || offer < sess.FinalOffer {
		sess.FinalOffer = offer
	}

	wasFinal := sess.Status == StatusFinalOfferMade
	if isFinal && sess.Status == StatusOpen {
		sess.Status = StatusFinalOfferMade
	}

	sess.Append(SenderSeller, reply)
	sess.UpdatedAt = time.Now().UTC()

	if err := e.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	if created {
		e.emit("started", sess)
	}
	if isFinal && !wasFinal {
		e.emit("final_offer", sess)
	}

	e.logger.Info("negotiation turn",
		"negotiation_id", sess.ID,
		"listing_id", sess.ListingID,
		"intent", string(intent),
		"style", string(style),
		"round", sess.Round,
		"current_offer", offer,
		"is_final", isFinal,
	)

	return &NegotiateResult{
		Reply:         reply,
		CurrentOffer:  offer,
		IsFinal:       isFinal,
		SessionID:     sess.ID,
		Status:        sess.Status,
		RecentHistory: sess.RecentHistory(recentHistoryTurns),
	}, nil
}

// Accept is the marketplace-side transition final_offer_made -> finalized,
// taken when the seller's counterpart system approves the sale.
func (e *Engine) Accept(ctx context.Context, id uuid.UUID) (*Session, error) {
	unlock := e.lockSession(id)
	defer unlock()

	sess, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.Status != StatusFinalOfferMade {
		return nil, ErrInvalidTransition
	}

	sess.Status = StatusFinalized
	sess.UpdatedAt = time.Now().UTC()
	if err := e.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	e.emit("finalized", sess)
	return sess, nil
}

// Reject closes the session from either non-terminal state.
func (e *Engine) Reject(ctx context.Context, id uuid.UUID) (*Session, error) {
	unlock := e.lockSession(id)
	defer unlock()

	sess, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.Terminal() {
		return nil, ErrInvalidTransition
	}

	sess.Status = StatusRejected
	sess.UpdatedAt = time.Now().UTC()
	if err := e.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	e.emit("rejected", sess)
	return sess, nil
}

// finalize captures the buyer's contact details against an agreed price and
// closes the session.
func (e *Engine) finalize(ctx context.Context, sess *Session, contact Contact, price float64) (*NegotiateResult, error) {
	sess.FinalOffer = price
	sess.CurrentOffer = price
	sess.BuyerContact = &contact

	reply := fmt.Sprintf(
		"Thank you %s! Your details have been recorded. The vehicle owner will contact you soon regarding the final price of %s.",
		contact.Name, FormatPrice(price),
	)
	sess.Append(SenderSeller, reply)
	sess.Status = StatusFinalized
	sess.UpdatedAt = time.Now().UTC()

	if err := e.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	e.emit("finalized", sess)

	e.logger.Info("negotiation finalized",
		"negotiation_id", sess.ID,
		"listing_id", sess.ListingID,
		"final_price", price,
		"buyer", contact.Name,
	)

	return &NegotiateResult{
		Reply:         reply,
		CurrentOffer:  price,
		IsFinal:       true,
		SessionID:     sess.ID,
		Status:        sess.Status,
		RecentHistory: sess.RecentHistory(recentHistoryTurns),
	}, nil
}

// closedResult answers turns against terminal sessions without mutating
// anything: terminal sessions are read-only history.
func (e *Engine) closedResult(sess *Session) *NegotiateResult {
	reply := "This negotiation has ended."
	if sess.Status == StatusFinalized {
		reply = fmt.Sprintf("This negotiation is already finalized at %s. The vehicle owner will be in touch.", FormatPrice(sess.FinalOffer))
	}
	return &NegotiateResult{
		Reply:         reply,
		CurrentOffer:  sess.CurrentOffer,
		IsFinal:       true,
		SessionID:     sess.ID,
		Status:        sess.Status,
		RecentHistory: sess.RecentHistory(recentHistoryTurns),
	}
}

func (e *Engine) emit(event string, sess *Session) {
	if e.publisher == nil {
		return
	}
	var err error
	switch event {
	case "started":
		err = e.publisher.SessionStarted(sess)
	case "final_offer":
		err = e.publisher.FinalOfferMade(sess)
	case "finalized":
		err = e.publisher.SessionFinalized(sess)
	case "rejected":
		err = e.publisher.SessionRejected(sess)
	}
	if err != nil {
		e.logger.Error("failed to publish negotiation event",
			"event", event,
			"negotiation_id", sess.ID,
			"error", err,
		)
	}
}

// lockSession serializes turns on a single session id.
func (e *Engine) lockSession(id uuid.UUID) func() {
	e.mu.Lock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}
