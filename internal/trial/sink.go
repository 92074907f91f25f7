package trial

import "github.com/uhtp-tools/recorder/internal/wire"

// Sink receives trial lifecycle notifications from the Detector. Sinks
// must not block the detector indefinitely; a sink that cannot keep up is
// expected to buffer internally. Sinks that only care about summaries
// no-op Sample.
type Sink interface {
	// TrialStarted is called when a new trial opens, before its first
	// sample is delivered.
	TrialStarted(trialNumber uint32)

	// Sample is called once per message appended to the active trial.
	Sample(m wire.Message)

	// TrialEnded is called with the final summary when a trial closes,
	// whether completed, failed, implicitly superseded or abandoned.
	TrialEnded(s Summary)
}
