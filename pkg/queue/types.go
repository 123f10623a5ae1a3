package queue

import "encoding/json"

const RUN_DISPATCH = "run:dispatch"

// DispatchPayload asks a worker to claim and drive at most one pending
// task. TaskID is a hint for logging only; the claim itself always picks
// by priority.
type DispatchPayload struct {
	TaskID uint   `json:"task_id,omitempty"`
	Source string `json:"source"` // submit/sweep
}

func (p DispatchPayload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

func ParseDispatchPayload(data []byte) (DispatchPayload, error) {
	var p DispatchPayload
	err := json.Unmarshal(data, &p)
	return p, err
}
