package constants

// Stage names a step of the intake pipeline.
type Stage string

// Stable values (stored in checkpoints and emitted on the event stream).
const (
	StageIngest     Stage = "ingest"
	StagePreprocess Stage = "preprocess"
	StageExtract    Stage = "extract"
	StageSummarize  Stage = "summarize"
	StagePersist    Stage = "persist"
	StageEnd        Stage = "end"  // early termination
	StageDone       Stage = "done" // persist completed
)

// Progress is the percent reported once a stage completes.
var Progress = map[Stage]int{
	StageIngest:     20,
	StagePreprocess: 40,
	StageExtract:    70,
	StageSummarize:  90,
	StagePersist:    100,
}

// EventStatus is the status field of a streamed progress event.
type EventStatus string

const (
	EventStarted  EventStatus = "started"
	EventComplete EventStatus = "complete"
	EventError    EventStatus = "error"
	EventFailed   EventStatus = "failed" // stream terminated early
	EventDone     EventStatus = "done"   // stream finished
)

// AnalysisStatus is what the analyze endpoints report for a job.
type AnalysisStatus string

const (
	AnalysisStarted   AnalysisStatus = "started"
	AnalysisPending   AnalysisStatus = "pending"
	AnalysisCompleted AnalysisStatus = "completed"
)
