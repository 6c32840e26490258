/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
)

// NATSSink publishes requests on a subject. The request id travels in the
// Nats-Msg-Id header so a JetStream consumer can drop redeliveries.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

// NewNATSSink creates a sink on an open connection.
func NewNATSSink(conn *nats.Conn, subject string) *NATSSink {
	return &NATSSink{conn: conn, subject: subject}
}

func (s *NATSSink) Name() string { return "nats" }

// Deliver publishes req and waits for the server to acknowledge the flush.
func (s *NATSSink) Deliver(ctx context.Context, req models.OrderRequest) error {
	msg := nats.NewMsg(s.subject)
	msg.Header.Set(nats.MsgIdHdr, req.ID)
	msg.Header.Set("Kfsh-Reservation-Id", req.ReservationID)
	msg.Data = []byte(req.Payload)

	if err := s.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish order request: %w", err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := s.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush order request: %w", err)
	}
	return nil
}
