package metrics

// IngestRecorder receives counters and gauges from the ingestion loop.
type IngestRecorder interface {
	IncEvents()
	IncAdministrative()
	IncBatchesSkipped()
	IncDecodeFailures(reason string)
	IncKeepalives()
	ObserveRawLatency(ms float64)
	ObserveCalibration(state string, offsetMs float64, hasOffset bool)
	ObserveConnected(connected bool)
}

type NoopIngestRecorder struct{}

func (NoopIngestRecorder) IncEvents()                                                        {}
func (NoopIngestRecorder) IncAdministrative()                                                {}
func (NoopIngestRecorder) IncBatchesSkipped()                                                {}
func (NoopIngestRecorder) IncDecodeFailures(reason string)                                   {}
func (NoopIngestRecorder) IncKeepalives()                                                    {}
func (NoopIngestRecorder) ObserveRawLatency(ms float64)                                      {}
func (NoopIngestRecorder) ObserveCalibration(state string, offsetMs float64, hasOffset bool) {}
func (NoopIngestRecorder) ObserveConnected(connected bool)                                   {}
