package entities

import (
	"fmt"
	"time"
)

type ScalingAction string

const (
	ScaleUp   ScalingAction = "scale_up"
	ScaleDown ScalingAction = "scale_down"
	ScaleHold ScalingAction = "hold"
)

type ScalingDecision struct {
	Queue          string
	CurrentWorkers int
	DesiredWorkers int
	Action         ScalingAction
	Reason         string
	DecidedAt      time.Time
}

// ScalingState remembers when the queue was last resized, for cooldowns.
type ScalingState struct {
	LastScaleUpAt   time.Time
	LastScaleDownAt time.Time
}

func (s ScalingState) lastChange() time.Time {
	if s.LastScaleUpAt.After(s.LastScaleDownAt) {
		return s.LastScaleUpAt
	}
	return s.LastScaleDownAt
}

// Apply records a decision that changed the worker count.
func (s ScalingState) Apply(decision ScalingDecision) ScalingState {
	switch decision.Action {
	case ScaleUp:
		s.LastScaleUpAt = decision.DecidedAt
	case ScaleDown:
		s.LastScaleDownAt = decision.DecidedAt
	}
	return s
}

// DecideScaling sizes the worker pool from queue depth and wait latency.
//
// Growth is capped at doubling per decision; shrinking happens one worker at
// a time and only when nothing is waiting and the pool is mostly idle.
func DecideScaling(snapshot QueueSnapshot, policy QueuePolicy, state ScalingState, now time.Time) ScalingDecision {
	current := snapshot.Workers
	decision := ScalingDecision{
		Queue:          snapshot.Queue,
		CurrentWorkers: current,
		DesiredWorkers: current,
		Action:         ScaleHold,
		DecidedAt:      now.UTC(),
	}
	if snapshot.Paused {
		decision.Reason = "queue is paused"
		return decision
	}

	perWorker := policy.JobsPerWorker
	if perWorker < 1 {
		perWorker = 1
	}
	load := snapshot.Waiting + snapshot.Active
	desired := ceilDiv(load, perWorker)
	reason := fmt.Sprintf("%d queued or running jobs at %d per worker", load, perWorker)

	target := policy.TargetWait.Seconds()
	if target > 0 && snapshot.OldestWaitingSeconds > target && desired <= current {
		desired = current + 1
		reason = fmt.Sprintf("oldest job waited %.0fs, over the %.0fs target", snapshot.OldestWaitingSeconds, target)
	}

	switch {
	case desired > current:
		limit := current * 2
		if limit < current+1 {
			limit = current + 1
		}
		if desired > limit {
			desired = limit
		}
	case desired < current:
		idle := current > 0 && float64(snapshot.Active)/float64(current) < policy.ScaleDownIdleRatio
		if snapshot.Waiting == 0 && idle {
			desired = current - 1
			reason = fmt.Sprintf("pool idle: %d active across %d workers", snapshot.Active, current)
		} else {
			desired = current
			reason = "workers still busy"
		}
	}

	outOfBounds := current < policy.MinWorkers || current > policy.MaxWorkers
	if desired < policy.MinWorkers {
		desired = policy.MinWorkers
		if current < policy.MinWorkers {
			reason = fmt.Sprintf("raising pool to minimum of %d", policy.MinWorkers)
		}
	}
	if desired > policy.MaxWorkers {
		desired = policy.MaxWorkers
		if current > policy.MaxWorkers {
			reason = fmt.Sprintf("lowering pool to maximum of %d", policy.MaxWorkers)
		} else if desired == current {
			reason = fmt.Sprintf("already at maximum of %d workers", policy.MaxWorkers)
		}
	}

	if !outOfBounds {
		switch {
		case desired > current && !state.LastScaleUpAt.IsZero() && now.Sub(state.LastScaleUpAt) < policy.ScaleUpCooldown:
			decision.Reason = "cooldown"
			return decision
		case desired < current && !state.lastChange().IsZero() && now.Sub(state.lastChange()) < policy.ScaleDownCooldown:
			decision.Reason = "cooldown"
			return decision
		}
	}

	decision.DesiredWorkers = desired
	decision.Reason = reason
	switch {
	case desired > current:
		decision.Action = ScaleUp
	case desired < current:
		decision.Action = ScaleDown
	}
	return decision
}

func ceilDiv(value int, divisor int) int {
	if value <= 0 {
		return 0
	}
	return (value + divisor - 1) / divisor
}
