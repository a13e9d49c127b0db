package core

import (
	"context"
	"sync"
	"time"

	"github.com/barysiuk/skillrow/internal/core/system"
	"github.com/barysiuk/skillrow/internal/logger"
)

// DetectJob is the off-writer half of agent detection. It holds resolved
// systems only, so Run touches no engine state.
type DetectJob struct {
	agentIDs []string
	systems  []system.System
	timeout  time.Duration
}

// DetectOutcome maps agent IDs to whether they were found.
type DetectOutcome map[string]bool

// BeginDetect snapshots the agent list for a DetectJob.
func (m *Manager) BeginDetect() DetectJob {
	job := DetectJob{timeout: m.detectTimeout}
	for i := range m.agents {
		job.agentIDs = append(job.agentIDs, m.agents[i].ID)
		job.systems = append(job.systems, m.systemFor(&m.agents[i]))
	}
	return job
}

// Run checks every agent concurrently, each under its own timeout. It is
// safe to call from any goroutine.
func (j DetectJob) Run(ctx context.Context) DetectOutcome {
	results := make([]bool, len(j.systems))
	var wg sync.WaitGroup
	for i, sys := range j.systems {
		wg.Add(1)
		go func(i int, sys system.System) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, j.timeout)
			defer cancel()
			results[i] = sys.Detect(pctx)
		}(i, sys)
	}
	wg.Wait()

	out := make(DetectOutcome, len(j.agentIDs))
	for i, id := range j.agentIDs {
		out[id] = results[i]
	}
	return out
}

// ApplyDetection records a finished DetectJob and returns the number of
// detected agents. Agents missing from out keep their previous state.
func (m *Manager) ApplyDetection(ctx context.Context, out DetectOutcome) (int, error) {
	count := 0
	for i := range m.agents {
		if detected, ok := out[m.agents[i].ID]; ok {
			m.agents[i].Detected = detected
		}
		if m.agents[i].Detected {
			count++
		}
	}
	logger.G(ctx).WithField("detected", count).Debug("agent detection finished")
	return count, m.save(ctx)
}
