// Package metrics defines the gadget's local counters and gauges, in the
// same go-kit metrics vocabulary the real Tendermint uses for its own
// consensus/mempool metrics (github.com/go-kit/kit/metrics), rather than
// rolling a bespoke counter type. The teacher's go.mod already carries
// go-kit/kit as a direct dependency; this finishes wiring it.
//
// The Prometheus HTTP exporter itself is out of scope (spec.md §1, §6): the
// host is expected to adapt these Counter/Gauge values to whatever
// telemetry surface it runs. Nop returns discard implementations so the
// gadget never pays for metrics it isn't asked to keep.
package metrics

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
)

// Metrics holds every counter/gauge the gadget's components report.
type Metrics struct {
	// RoundsStarted counts Round objects created (engine.Engine.onAcceptedBlock).
	RoundsStarted metrics.Counter
	// RoundsFinalized counts rounds that reached Done.
	RoundsFinalized metrics.Counter
	// RoundsFailed counts rounds that transitioned to Fail.
	RoundsFailed metrics.Counter
	// LibHeight is the current LIB's height.
	LibHeight metrics.Gauge
	// PrevotesReceived/PrecommitsReceived count inbound votes that passed the
	// engine's digest de-duplication, whether or not the current round then
	// accepts them.
	PrevotesReceived   metrics.Counter
	PrecommitsReceived metrics.Counter
	// ProofsVerified/ProofsRejected count inbound Proof messages by outcome.
	ProofsVerified metrics.Counter
	ProofsRejected metrics.Counter
	// MessagesDropped is reserved for messages shed by the MessageQueue's
	// expiration policy (spec.md §4.4). No component of this module updates
	// it: queue.Threaded and queue.Inline drop expired messages without
	// touching metrics.
	MessagesDropped metrics.Counter
	// QueueDepth is reserved for the MessageQueue's backlog. No component of
	// this module updates it.
	QueueDepth metrics.Gauge
}

// Nop returns a Metrics whose fields all discard their input, the default
// until a host wires a real backend.
func Nop() *Metrics {
	return &Metrics{
		RoundsStarted:      discard.NewCounter(),
		RoundsFinalized:    discard.NewCounter(),
		RoundsFailed:       discard.NewCounter(),
		LibHeight:          discard.NewGauge(),
		PrevotesReceived:   discard.NewCounter(),
		PrecommitsReceived: discard.NewCounter(),
		ProofsVerified:     discard.NewCounter(),
		ProofsRejected:     discard.NewCounter(),
		MessagesDropped:    discard.NewCounter(),
		QueueDepth:         discard.NewGauge(),
	}
}
