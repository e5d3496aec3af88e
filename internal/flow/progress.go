package flow

import (
	"log/slog"

	"github.com/Projects025/dialog-cu-marius-sub000/internal/models"
)

// SharedTerminalSteps are convergence points reached from many branches.
// The estimator may re-enter them instead of pruning them as visited, so a
// branch count never loses the shared tail steps another branch already
// claimed. They carry no outgoing traversal of their own.
var SharedTerminalSteps = map[string]bool{
	StepContact:  true,
	StepThankYou: true,
}

// CountProgressSteps walks the flow graph breadth-first from startID along
// every statically known edge (the literal next step plus every button
// option's branch target) and returns how many visited steps are
// progress-marked. Function-valued next steps cannot be followed without
// executing response-dependent logic, so they terminate the walk on that
// edge. The result is an upper-bound approximation: the live percentage is
// recalibrated once a branch point resolves.
func CountProgressSteps(f *models.Flow, startID string) int {
	if f == nil || startID == "" {
		return 0
	}
	visited := make(map[string]bool)
	queue := []string{startID}
	count := 0

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		step, ok := f.Step(id)
		if !ok {
			slog.Debug("flow.CountProgressSteps skipping unknown step", "step", id)
			continue
		}
		if visited[id] {
			continue
		}
		if step.IsProgressStep {
			count++
		}
		if SharedTerminalSteps[id] {
			// Re-enterable from other branches, but never walked through.
			continue
		}
		visited[id] = true

		if step.Next != "" {
			queue = append(queue, step.Next)
		}
		for _, opt := range step.Buttons {
			if opt.NextStep != "" {
				queue = append(queue, opt.NextStep)
			}
		}
	}
	return count
}
