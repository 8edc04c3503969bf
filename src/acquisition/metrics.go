package acquisition

import (
	"sync/atomic"

	"serialpha/src/models"
)

// pipelineMetrics is updated from the read loop and the sampler without locking.
type pipelineMetrics struct {
	bytesRead        atomic.Int64
	recordsFramed    atomic.Int64
	recordsParsed    atomic.Int64
	recordsRejected  atomic.Int64
	bufferOverflows  atomic.Int64
	softReadErrors   atomic.Int64
	samplesCollected atomic.Int64
}

func (m *pipelineMetrics) snapshot() models.MProcessingMetrics {
	return models.MProcessingMetrics{
		BytesRead:        m.bytesRead.Load(),
		RecordsFramed:    m.recordsFramed.Load(),
		RecordsParsed:    m.recordsParsed.Load(),
		RecordsRejected:  m.recordsRejected.Load(),
		BufferOverflows:  m.bufferOverflows.Load(),
		SoftReadErrors:   m.softReadErrors.Load(),
		SamplesCollected: m.samplesCollected.Load(),
	}
}
