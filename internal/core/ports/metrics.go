package ports

// MetricsRecorder receives protocol-level counters from the services. The
// monitoring package provides the real collector; tests use a no-op.
type MetricsRecorder interface {
	RecordReconciliation(play bool)
	RecordSuppressedEvent()
	RecordPlaybackPublish()
	RecordSignalingState(state string)
	RecordHeartbeat()
	RecordCandidateWritten(role string)
	RecordChatMessage()
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordReconciliation(bool)        {}
func (NopMetrics) RecordSuppressedEvent()           {}
func (NopMetrics) RecordPlaybackPublish()           {}
func (NopMetrics) RecordSignalingState(string)      {}
func (NopMetrics) RecordHeartbeat()                 {}
func (NopMetrics) RecordCandidateWritten(string)    {}
func (NopMetrics) RecordChatMessage()               {}
