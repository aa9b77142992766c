package entity

import (
	"encoding/json"
	"time"

	"github.com/joseph-ayodele/job-intake/constants"
)

// Checkpoint is an immutable snapshot of pipeline state taken after a stage.
type Checkpoint struct {
	RunID          string          `json:"run_id"`
	JobID          string          `json:"job_id,omitempty"`
	Sequence       int             `json:"sequence"`
	ParentSequence *int            `json:"parent_sequence,omitempty"`
	Stage          constants.Stage `json:"stage"`
	Snapshot       json.RawMessage `json:"snapshot"`
	WrittenAt      time.Time       `json:"written_at"`
}
