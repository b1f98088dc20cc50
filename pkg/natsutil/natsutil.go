// Package natsutil provides typed NATS publish/subscribe helpers with
// OpenTelemetry trace propagation and a retry-count header.
package natsutil

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// RetryHeader carries how many times a message has been redelivered.
const RetryHeader = "X-Retry-Count"

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
}

// headerCarrier adapts nats.Msg headers for the OTel TextMapCarrier.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// NewMsg encodes v as JSON and injects the trace context from ctx.
func NewMsg[T any](ctx context.Context, subject string, v T) (*nats.Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("natsutil: encode %s: %w", subject, err)
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	return msg, nil
}

// Publish serializes v as JSON and publishes it to subject.
func Publish[T any](ctx context.Context, p Publisher, subject string, v T) error {
	msg, err := NewMsg(ctx, subject, v)
	if err != nil {
		return err
	}
	return p.PublishMsg(msg)
}

// Republish sends data back to subject with the retry header set to retries.
func Republish(p Publisher, subject string, data []byte, retries int) error {
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(RetryHeader, strconv.Itoa(retries))
	return p.PublishMsg(msg)
}

// Retries reads the retry header; absent or malformed means zero.
func Retries(msg *nats.Msg) int {
	if msg.Header == nil {
		return 0
	}
	n, err := strconv.Atoi(msg.Header.Get(RetryHeader))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Handler receives a decoded message together with the raw message.
type Handler[T any] func(ctx context.Context, v T, msg *nats.Msg)

// MsgHandler decodes JSON into T, restores the trace context and calls h.
// Messages that fail to decode go to onBad when it is non-nil.
func MsgHandler[T any](h Handler[T], onBad func(msg *nats.Msg, err error)) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			if onBad != nil {
				onBad(msg, err)
			}
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*headerCarrier)(msg))
		h(ctx, v, msg)
	}
}

// Subscribe registers h for subject.
func Subscribe[T any](nc *nats.Conn, subject string, h Handler[T], onBad func(msg *nats.Msg, err error)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, MsgHandler(h, onBad))
}
