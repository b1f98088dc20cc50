package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/docgraph/docgraph/engine/document"
	"github.com/docgraph/docgraph/engine/domain"
	"github.com/docgraph/docgraph/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

const (
	// Subject is the NATS subject for documents awaiting ingestion.
	Subject = "docgraph.ingest"
	// DLQSubject is the dead letter queue subject for failed messages.
	DLQSubject = "docgraph.ingest.dlq"
	// MaxRetries before sending to DLQ.
	MaxRetries = 3
)

// Job is one queued document.
type Job struct {
	Document domain.Document `json:"document"`
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Job     Job    `json:"job"`
	Error   string `json:"error"`
	Retries int    `json:"retries"`
}

// Publish enqueues documents for asynchronous ingestion.
func Publish(ctx context.Context, p natsutil.Publisher, docs []domain.Document) error {
	for _, d := range docs {
		if err := natsutil.Publish(ctx, p, Subject, Job{Document: d}); err != nil {
			return fmt.Errorf("ingest: publish %s: %w", d.ID, err)
		}
	}
	return nil
}

// ProcessDocument chunks one document and runs every chunk through the
// pipeline. Errors from individual chunks are joined.
func (in *Ingester) ProcessDocument(ctx context.Context, d domain.Document) (Report, error) {
	chunks := document.Split([]domain.Document{d}, in.deps.ChunkSize, in.deps.Overlap)
	rep, err := in.Run(ctx, chunks, Options{Limit: -1})
	if err != nil {
		return rep, err
	}
	return rep, errors.Join(rep.Errors...)
}

// StartConsumer subscribes to Subject and ingests queued documents with
// retry and DLQ support.
func (in *Ingester) StartConsumer(nc *nats.Conn) (*nats.Subscription, error) {
	return natsutil.Subscribe(nc, Subject, in.handler(nc), func(msg *nats.Msg, err error) {
		in.log.Error("ingest: unmarshal failed", "error", err, "subject", msg.Subject)
	})
}

// Draining is satisfied by *nats.Subscription.
type Draining interface {
	Drain() error
	IsValid() bool
}

// Drain stops delivery on sub and waits until handlers already holding a
// message have returned, or until timeout passes.
func Drain(sub Draining, timeout time.Duration) error {
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("ingest: drain: %w", err)
	}
	deadline := time.Now().Add(timeout)
	for sub.IsValid() {
		if time.Now().After(deadline) {
			return fmt.Errorf("ingest: drain: still busy after %s", timeout)
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

func (in *Ingester) handler(p natsutil.Publisher) natsutil.Handler[Job] {
	return func(ctx context.Context, job Job, msg *nats.Msg) {
		rep, err := in.ProcessDocument(ctx, job.Document)
		if err == nil {
			in.log.Info("ingest: success", "doc_id", job.Document.ID, "ingested", rep.Ingested, "skipped", rep.Skipped)
			in.ack(msg)
			return
		}

		retries := natsutil.Retries(msg) + 1
		in.log.Error("ingest: document failed", "error", err, "doc_id", job.Document.ID, "retry", retries)
		if retries >= MaxRetries {
			data, _ := json.Marshal(dlqMessage{Job: job, Error: err.Error(), Retries: retries})
			if perr := p.PublishMsg(&nats.Msg{Subject: DLQSubject, Data: data}); perr != nil {
				in.log.Error("ingest: DLQ publish failed", "error", perr)
			}
		} else if perr := natsutil.Republish(p, Subject, msg.Data, retries); perr != nil {
			in.log.Error("ingest: retry publish failed", "error", perr)
		}
		in.ack(msg)
	}
}

// ack acknowledges JetStream deliveries; core NATS messages have no reply.
func (in *Ingester) ack(msg *nats.Msg) {
	if msg.Reply == "" {
		return
	}
	if err := msg.Ack(); err != nil {
		in.log.Warn("ingest: ack failed", "error", err, "subject", msg.Subject)
	}
}
