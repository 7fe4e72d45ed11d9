// Timing and outcome tracking for the inference pipeline
package core

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Pipeline stages recorded by Recorder.
const (
	StageToTensor = "to_tensor"
	StageForward  = "forward"
	StageToImage  = "to_image"
	StageTotal    = "upscale"
)

// maxOperations bounds the operation history.
const maxOperations = 100

// Operation is one recorded pipeline step.
type Operation struct {
	Timestamp time.Time
	Stage     string
	Success   bool
	Duration  time.Duration
	Error     string
}

// StageStats aggregates the operations of one stage.
type StageStats struct {
	Count    int
	Failures int
	Total    time.Duration
	Max      time.Duration
}

func (s StageStats) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Recorder keeps recent pipeline operations and per-stage totals.
type Recorder struct {
	mu         sync.Mutex
	logger     logrus.FieldLogger
	operations []Operation
	stages     map[string]StageStats
}

func NewRecorder(logger logrus.FieldLogger) *Recorder {
	return &Recorder{
		logger:     logger,
		operations: make([]Operation, 0),
		stages:     make(map[string]StageStats),
	}
}

// Record adds one operation. A nil Recorder ignores it.
func (r *Recorder) Record(stage string, duration time.Duration, err error) {
	if r == nil {
		return
	}

	op := Operation{
		Timestamp: time.Now(),
		Stage:     stage,
		Success:   err == nil,
		Duration:  duration,
	}
	if err != nil {
		op.Error = err.Error()
	}

	r.mu.Lock()
	r.operations = append(r.operations, op)
	if len(r.operations) > maxOperations {
		r.operations = r.operations[len(r.operations)-maxOperations:]
	}
	st := r.stages[stage]
	st.Count++
	if err != nil {
		st.Failures++
	}
	st.Total += duration
	if duration > st.Max {
		st.Max = duration
	}
	r.stages[stage] = st
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{
			"stage":       stage,
			"success":     op.Success,
			"duration_ms": duration.Milliseconds(),
		}).Debug("Pipeline stage")
	}
}

// Time runs fn and records its duration under stage.
func (r *Recorder) Time(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	r.Record(stage, time.Since(start), err)
	return err
}

func (r *Recorder) Stage(stage string) StageStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stages[stage]
}

// Operations returns a copy of the recent history, oldest first.
func (r *Recorder) Operations() []Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Operation(nil), r.operations...)
}
