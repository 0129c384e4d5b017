// Package notify delivers alerts to the configured destinations. Sinks are
// independent: each one applies its own retry policy and a failure in one
// never prevents attempts on the others.
package notify

import (
	"context"
	"sync"

	"github.com/maxbolgarin/gitshield/internal/model"
	"github.com/maxbolgarin/gitshield/internal/model/interfaces"
	"github.com/maxbolgarin/logze/v2"
)

// Dispatcher fans one alert out to every enabled sink.
type Dispatcher struct {
	sinks []interfaces.AlertSink
	log   logze.Logger
}

// NewDispatcher creates a dispatcher over the given sinks.
func NewDispatcher(sinks ...interfaces.AlertSink) *Dispatcher {
	return &Dispatcher{
		sinks: sinks,
		log:   logze.With("module", "notify"),
	}
}

// Dispatch sends the alert to all sinks concurrently and returns one result
// per sink. There is no ordering guarantee between sinks; within a sink,
// retries for the same alert are sequential and never reordered. Delivery
// failures are visible only in logs and the returned results, never to the
// commit-event submitter.
func (d *Dispatcher) Dispatch(ctx context.Context, alert model.AlertRecord) []model.SinkResult {
	results := make([]model.SinkResult, len(d.sinks))

	var wg sync.WaitGroup
	for i, sink := range d.sinks {
		wg.Add(1)
		go func(i int, sink interfaces.AlertSink) {
			defer wg.Done()
			err := sink.Send(ctx, alert)
			results[i] = model.SinkResult{
				Sink:      sink.Name(),
				Delivered: err == nil,
				Err:       err,
			}
			if err != nil {
				d.log.Warn("alert delivery failed",
					"sink", sink.Name(), "alert_id", alert.ID, "error", err.Error())
			} else {
				d.log.Info("alert delivered", "sink", sink.Name(), "alert_id", alert.ID)
			}
		}(i, sink)
	}
	wg.Wait()

	return results
}
