package visit

import "time"

// Status is a visit's position in its lifecycle.
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusSignedOff  Status = "signed_off"
)

// TaskStatus is the state of one on-site task.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskDone    TaskStatus = "done"
	TaskSkipped TaskStatus = "skipped"
)

// Visit is one scheduled maintenance attendance at a controller.
type Visit struct {
	ID           string     `json:"id"`
	ControllerID string     `json:"controller_id"`
	TechnicianID string     `json:"technician_id"`
	Status       Status     `json:"status"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	Notes        string     `json:"notes,omitempty"`
	SignedOffBy  string     `json:"signed_off_by,omitempty"`
	SignedOffAt  *time.Time `json:"signed_off_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Populated on single-visit reads, not listings.
	Checklist []ChecklistItem `json:"checklist,omitempty"`
	Tasks     []Task          `json:"tasks,omitempty"`
}

// ChecklistItem is one pre-visit preparation step.
type ChecklistItem struct {
	ID        string    `json:"id"`
	VisitID   string    `json:"visit_id"`
	Label     string    `json:"label"`
	Done      bool      `json:"done"`
	SortOrder int       `json:"sort_order"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Task is one on-site work item, optionally backed by an SOP procedure.
type Task struct {
	ID          string     `json:"id"`
	VisitID     string     `json:"visit_id"`
	Title       string     `json:"title"`
	ProcedureID string     `json:"procedure_id,omitempty"`
	Status      TaskStatus `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	SortOrder   int        `json:"sort_order"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Procedure is an SOP document technicians follow on site.
type Procedure struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	System    string    `json:"system,omitempty"`
	Body      string    `json:"body"`
	Version   int       `json:"version"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
