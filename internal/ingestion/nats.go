package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"PoolOracle/internal/common"
	"PoolOracle/internal/verify"
)

const (
	reportStream   = "ORACLE_REPORTS"
	reportSubjects = "oracle.reports.>"
	txStream       = "ORACLE_TXS"
	txSubject      = "oracle.txs.inbound"
)

// Connect dials NATS and returns a JetStream handle.
func Connect(url string) (jetstream.JetStream, error) {
	nc, err := nats.Connect(url, nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return js, nil
}

// ReportPublisher publishes divergence reports to JetStream so dashboards
// and alerting pick them up without polling the results table.
type ReportPublisher struct {
	js  jetstream.JetStream
	log zerolog.Logger
}

// NewReportPublisher ensures the report stream exists and returns a
// publisher over it.
func NewReportPublisher(ctx context.Context, js jetstream.JetStream, logger zerolog.Logger) (*ReportPublisher, error) {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      reportStream,
		Subjects:  []string{reportSubjects},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return nil, fmt.Errorf("create report stream: %w", err)
	}
	return &ReportPublisher{
		js:  js,
		log: logger.With().Str("component", "reports").Logger(),
	}, nil
}

// PublishReport pushes one divergent result, subject-keyed by its terminal
// state so consumers can filter failures from settled-with-findings.
func (p *ReportPublisher) PublishReport(ctx context.Context, res verify.ReconcileResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	subject := fmt.Sprintf("oracle.reports.%s", res.State)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}
	p.log.Debug().Str("tx", res.TxID).Str("subject", subject).Msg("report published")
	return nil
}

// TxSubscriber consumes inbound transactions from JetStream, for runs fed
// by an external producer instead of a fixture file. Messages are acked
// only after the runner takes delivery.
type TxSubscriber struct {
	js      jetstream.JetStream
	out     chan<- InboundTx
	log     zerolog.Logger
	consume jetstream.ConsumeContext
}

// InboundTx is one delivered transaction plus its acknowledgement hooks.
type InboundTx struct {
	Tx  common.Transaction
	Ack func()
	Nak func()
}

// NewTxSubscriber ensures the transaction stream exists and returns a
// subscriber delivering into out.
func NewTxSubscriber(ctx context.Context, js jetstream.JetStream, out chan<- InboundTx, logger zerolog.Logger) (*TxSubscriber, error) {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      txStream,
		Subjects:  []string{txSubject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		Replicas:  1,
	})
	if err != nil {
		return nil, fmt.Errorf("create tx stream: %w", err)
	}
	return &TxSubscriber{
		js:  js,
		out: out,
		log: logger.With().Str("component", "ingest").Logger(),
	}, nil
}

// Subscribe starts consuming. Explicit ack, bounded redelivery. The context
// also bounds delivery handoff: once it is done, in-flight messages are
// nak'd instead of blocking on a receiver that has gone away.
func (s *TxSubscriber) Subscribe(ctx context.Context) error {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, txStream, jetstream.ConsumerConfig{
		Durable:       "oracle-txs",
		FilterSubject: txSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create tx consumer: %w", err)
	}

	s.consume, err = consumer.Consume(func(msg jetstream.Msg) {
		var tx common.Transaction
		if err := json.Unmarshal(msg.Data(), &tx); err != nil {
			s.log.Warn().Err(err).Msg("undecodable transaction message")
			msg.Term()
			return
		}
		select {
		case s.out <- InboundTx{
			Tx:  tx,
			Ack: func() { msg.Ack() },
			Nak: func() { msg.Nak() },
		}:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	return nil
}

// Stop halts consumption.
func (s *TxSubscriber) Stop() {
	if s.consume != nil {
		s.consume.Stop()
	}
}
