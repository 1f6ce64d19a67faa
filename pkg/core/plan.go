package core

// QueryPlan is the planner's verdict on answerability plus optional grounded SQL.
// SQL is set only when Answerable is true.
type QueryPlan struct {
	Answerable bool      `json:"answerable"`
	Rationale  string    `json:"rationale"`
	SQL        string    `json:"sql,omitempty"`
	Dataset    DatasetID `json:"dataset,omitempty"`
}

// Executable reports whether the plan carries SQL that should be run.
func (p QueryPlan) Executable() bool {
	return p.Answerable && p.SQL != ""
}
