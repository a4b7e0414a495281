// Package consumer adapts inbound Kafka topics to the ingest service. Each
// topic gets a decoder that unmarshals the payload and applies it; decode
// failures are logged and skipped so a malformed message cannot wedge a
// partition.
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"lifelink/internal/matching/events"
	"lifelink/internal/matching/metrics"
	"lifelink/internal/matching/service/ingest"
	platformconsumer "lifelink/internal/platform/kafka/consumer"
)

// NewRouter registers a handler per inbound topic against the ingest
// service.
func NewRouter(svc *ingest.Service, m *metrics.Metrics, logger *slog.Logger) *platformconsumer.Router {
	router := platformconsumer.NewRouter(logger)
	d := dispatcher{svc: svc, metrics: m, logger: logger}

	router.Register(events.TopicDonorEvents, decode(d, svc.ApplyDonor))
	router.Register(events.TopicRecipientEvents, decode(d, svc.ApplyRecipient))
	router.Register(events.TopicDonorLocationEvents, decode(d, svc.ApplyLocation))
	router.Register(events.TopicRecipientLocationEvents, decode(d, svc.ApplyLocation))
	router.Register(events.TopicDonorHLAEvents, decode(d, svc.ApplyHLA))
	router.Register(events.TopicRecipientHLAEvents, decode(d, svc.ApplyHLA))
	router.Register(events.TopicDonationEvents, decode(d, svc.ApplyDonation))
	router.Register(events.TopicReceiveRequestEvents, decode(d, svc.ApplyRequest))
	router.Register(events.TopicDonationCancelled, decode(d, svc.ApplyDonationCancelled))
	router.Register(events.TopicRequestCancelled, decode(d, svc.ApplyRequestCancelled))
	return router
}

type dispatcher struct {
	svc     *ingest.Service
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// decode wraps an ingest apply func with JSON decoding and outcome
// accounting.
func decode[E any](d dispatcher, apply func(context.Context, E) error) platformconsumer.TopicHandler {
	return platformconsumer.TopicHandlerFunc(func(ctx context.Context, msg *platformconsumer.Message) error {
		var ev E
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			d.metrics.IncrementConsumed(msg.Topic, "failed")
			d.logger.Error("malformed event payload, skipping",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			return nil
		}
		if err := apply(ctx, ev); err != nil {
			d.metrics.IncrementConsumed(msg.Topic, "failed")
			return err
		}
		d.metrics.IncrementConsumed(msg.Topic, "applied")
		return nil
	})
}
