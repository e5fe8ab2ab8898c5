package server

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
)

// msgSubscriber is the part of *nats.Conn the ingest needs.
type msgSubscriber interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// SubscribeNATS ingests event documents published on subject.
// A message may hold one document or an array of them. When the message has
// a reply subject the IngestResult is sent back.
func (s *Server) SubscribeNATS(conn *nats.Conn, subject string) (*nats.Subscription, error) {
	return s.subscribeNATS(conn, subject)
}

func (s *Server) subscribeNATS(conn msgSubscriber, subject string) (*nats.Subscription, error) {
	sub, err := conn.Subscribe(subject, s.handleNATSMessage)
	if err != nil {
		return nil, err
	}
	s.logger.Info("subscribed to events", "subject", subject)
	return sub, nil
}

func (s *Server) handleNATSMessage(msg *nats.Msg) {
	events, invalid, err := s.decoder.DecodeEach(msg.Data)
	if err != nil {
		s.metrics.Invalid()
		s.logger.Warn("rejected event message", "subject", msg.Subject, "error", err)
		return
	}
	ctx := context.Background()
	s.skipInvalid(ctx, invalid)

	result := s.Ingest(ctx, events)
	result.Invalid = len(invalid)
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Debug("failed to reply to event message", "subject", msg.Subject, "error", err)
	}
}
