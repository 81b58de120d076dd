package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/autoguardian/negotiator/internal/negotiation"
)

// NATS subjects the marketplace module subscribes to. On "finalized" it
// marks the vehicle sold and hands the buyer contact to the owner.
const (
	SubjectStarted    = "marketplace.negotiation.started"
	SubjectFinalOffer = "marketplace.negotiation.final_offer"
	SubjectFinalized  = "marketplace.negotiation.finalized"
	SubjectRejected   = "marketplace.negotiation.rejected"
)

// Publisher emits negotiation lifecycle events over NATS.
type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewPublisher(url, token string, logger *slog.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Publisher{conn: nc, logger: logger}, nil
}

func (p *Publisher) Close() {
	p.conn.Close()
}

func (p *Publisher) SessionStarted(sess *negotiation.Session) error {
	return p.publish(SubjectStarted, basePayload(sess))
}

func (p *Publisher) FinalOfferMade(sess *negotiation.Session) error {
	return p.publish(SubjectFinalOffer, basePayload(sess))
}

func (p *Publisher) SessionFinalized(sess *negotiation.Session) error {
	payload := basePayload(sess)
	payload["final_price"] = sess.FinalOffer
	if sess.BuyerContact != nil {
		payload["buyer_name"] = sess.BuyerContact.Name
		payload["buyer_email"] = sess.BuyerContact.Email
		payload["buyer_phone"] = sess.BuyerContact.Phone
	}
	return p.publish(SubjectFinalized, payload)
}

func (p *Publisher) SessionRejected(sess *negotiation.Session) error {
	return p.publish(SubjectRejected, basePayload(sess))
}

func (p *Publisher) publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return p.conn.Publish(subject, payload)
}

func basePayload(sess *negotiation.Session) map[string]any {
	return map[string]any{
		"negotiation_id": sess.ID.String(),
		"listing_id":     sess.ListingID,
		"current_offer":  sess.CurrentOffer,
		"round":          sess.Round,
		"status":         string(sess.Status),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}
}
