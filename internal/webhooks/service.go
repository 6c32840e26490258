/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package webhooks delivers order-creation requests to the order service
// over signed HTTP.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
)

// Header names set on every delivery.
const (
	HeaderEvent     = "X-KFSH-Event"
	HeaderDelivery  = "X-KFSH-Delivery"
	HeaderTimestamp = "X-KFSH-Timestamp"
	HeaderSignature = "X-KFSH-Signature"

	EventOrderRequest = "order.request"
)

// Sink posts requests to a single endpoint.
type Sink struct {
	url    string
	secret string
	client *http.Client
	now    func() time.Time
	logger zerolog.Logger
}

// NewSink creates a webhook sink. An empty secret disables signing.
func NewSink(url, secret string, logger zerolog.Logger) *Sink {
	return &Sink{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
		logger: logger.With().Str("component", "webhooks").Logger(),
	}
}

func (s *Sink) Name() string { return "webhook" }

// Deliver posts the stored payload. Any non-2xx answer is a failure so the
// outbox retries it; the order service dedupes on the order id.
func (s *Sink) Deliver(ctx context.Context, req models.OrderRequest) error {
	body := []byte(req.Payload)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "KFSH-Scheduler-Webhook/1.0")
	httpReq.Header.Set(HeaderEvent, EventOrderRequest)
	httpReq.Header.Set(HeaderDelivery, req.ID)
	httpReq.Header.Set(HeaderTimestamp, strconv.FormatInt(s.now().Unix(), 10))
	if s.secret != "" {
		httpReq.Header.Set(HeaderSignature, signPayload(body, s.secret))
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	s.logger.Debug().
		Str("request_id", req.ID).
		Str("order_id", req.OrderID).
		Int("status", resp.StatusCode).
		Msg("order request delivered")
	return nil
}

// signPayload creates an HMAC-SHA256 signature.
func signPayload(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// Verify checks a signature header produced by signPayload.
func Verify(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(signPayload(payload, secret)), []byte(signature))
}
