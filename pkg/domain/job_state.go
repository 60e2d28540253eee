package domain

// JobState is the dispatch state of a send job.
//
// Transitions: queued -> in_flight -> done | dead, plus in_flight -> queued
// when a transient failure schedules a retry. Any other transition is a bug.
type JobState string

const (
	JobStateQueued   JobState = "queued"
	JobStateInFlight JobState = "in_flight"
	JobStateDone     JobState = "done"
	JobStateDead     JobState = "dead"
)

// jobTransitions enumerates the legal state machine edges.
var jobTransitions = map[JobState]map[JobState]bool{
	JobStateQueued:   {JobStateInFlight: true},
	JobStateInFlight: {JobStateQueued: true, JobStateDone: true, JobStateDead: true},
	JobStateDone:     {},
	JobStateDead:     {},
}

// CanTransitionTo reports whether moving from s to next is a legal edge.
func (s JobState) CanTransitionTo(next JobState) bool {
	return jobTransitions[s][next]
}

// IsTerminal reports whether the job will never be scheduled again.
func (s JobState) IsTerminal() bool {
	return s == JobStateDone || s == JobStateDead
}

func (s JobState) String() string {
	return string(s)
}
