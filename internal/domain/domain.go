package domain

// EntityKind names a pipeline entity.
type EntityKind string

const (
	KindApplication     EntityKind = "application"
	KindRequirement     EntityKind = "requirement"
	KindSolution        EntityKind = "solution"
	KindDevelopmentTask EntityKind = "development_task"
	KindDeployment      EntityKind = "deployment"
	KindUser            EntityKind = "user"
	KindQuestion        EntityKind = "question"
)

// ParentKind is the entity a Question is raised against.
type ParentKind string

const (
	ParentRequirement ParentKind = "requirement"
	ParentSolution    ParentKind = "solution"
)

// Valid reports whether k is a known question parent kind.
func (k ParentKind) Valid() bool {
	return k == ParentRequirement || k == ParentSolution
}

const (
	RequirementPending    = "pending"
	RequirementClarifying = "clarifying"
	RequirementConfirmed  = "confirmed"

	SolutionClarifying = "clarifying"
	SolutionConfirmed  = "confirmed"
)

type User struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type Application struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Owner         string `json:"owner,omitempty"`
	RepositoryURL string `json:"repository_url,omitempty"`
	AppID         string `json:"app_id,omitempty"`
	Status        string `json:"status,omitempty"`
	CreatedBy     *int64 `json:"created_by,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

type Requirement struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Status        string  `json:"status"`
	UserID        *int64  `json:"user_id,omitempty"`
	AssignedTo    *int64  `json:"assigned_to"`
	Clarified     bool    `json:"clarified"`
	BranchName    *string `json:"branch_name"`
	SpecDocument  *string `json:"spec_document"`
	ApplicationID *int64  `json:"application_id"`
	CreatedAt     string  `json:"created_at,omitempty"`
	UpdatedAt     string  `json:"updated_at,omitempty"`
}

func (r Requirement) EntityKind() EntityKind { return KindRequirement }
func (r Requirement) EntityStatus() string   { return r.Status }

type Solution struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Status        string `json:"status"`
	Clarified     bool   `json:"clarified"`
	RequirementID int64  `json:"requirement_id"`
	ApplicationID *int64 `json:"application_id,omitempty"`
	CreatedBy     int64  `json:"created_by"`
	CreatedAt     string `json:"created_at,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

func (s Solution) EntityKind() EntityKind { return KindSolution }
func (s Solution) EntityStatus() string   { return s.Status }

type DevelopmentTask struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	SolutionID  int64   `json:"solution_id"`
	AssignedTo  *int64  `json:"assigned_to"`
	CodeBranch  *string `json:"code_branch"`
	StartedAt   *string `json:"started_at,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty"`
	CreatedAt   string  `json:"created_at,omitempty"`
	UpdatedAt   string  `json:"updated_at,omitempty"`
}

func (t DevelopmentTask) EntityKind() EntityKind { return KindDevelopmentTask }
func (t DevelopmentTask) EntityStatus() string   { return t.Status }

type Deployment struct {
	ID                int64   `json:"id"`
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	Status            string  `json:"status"`
	DevelopmentTaskID int64   `json:"development_task_id"`
	DeployedBy        *int64  `json:"deployed_by"`
	DeployedAt        *string `json:"deployed_at,omitempty"`
	CreatedAt         string  `json:"created_at,omitempty"`
	UpdatedAt         string  `json:"updated_at,omitempty"`
}

func (d Deployment) EntityKind() EntityKind { return KindDeployment }
func (d Deployment) EntityStatus() string   { return d.Status }

// Question is raised against exactly one parent. Requirement questions carry
// requirement_id on the wire, solution questions carry solution_id.
type Question struct {
	ID            int64   `json:"id"`
	Content       string  `json:"content"`
	RequirementID *int64  `json:"requirement_id,omitempty"`
	SolutionID    *int64  `json:"solution_id,omitempty"`
	CreatedBy     int64   `json:"created_by"`
	Answer        *string `json:"answer"`
	AnsweredBy    *int64  `json:"answered_by"`
	Clarified     bool    `json:"clarified"`
	ClarifiedBy   *int64  `json:"clarified_by,omitempty"`
	CreatedAt     string  `json:"created_at,omitempty"`
	UpdatedAt     string  `json:"updated_at,omitempty"`
}

// Parent returns the kind and id of the entity the question belongs to.
func (q Question) Parent() (ParentKind, int64) {
	if q.SolutionID != nil {
		return ParentSolution, *q.SolutionID
	}
	if q.RequirementID != nil {
		return ParentRequirement, *q.RequirementID
	}
	return "", 0
}

// SetParent points the question at the given parent, clearing the other key.
func (q *Question) SetParent(kind ParentKind, id int64) {
	q.RequirementID, q.SolutionID = nil, nil
	switch kind {
	case ParentRequirement:
		q.RequirementID = &id
	case ParentSolution:
		q.SolutionID = &id
	}
}

// EventLog is the backend's read-only audit record.
type EventLog struct {
	ID            int64  `json:"id"`
	EventType     string `json:"event_type"`
	Description   string `json:"description"`
	UserID        int64  `json:"user_id"`
	RequirementID *int64 `json:"requirement_id,omitempty"`
	QuestionID    *int64 `json:"question_id,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// JournalEntry is a locally recorded console action and its outcome.
type JournalEntry struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    int64  `json:"actor_id"`
	Outcome    string `json:"outcome" enum:"ok,rejected,failed"`
	Detail     string `json:"detail,omitempty"`
	RequestID  string `json:"request_id"`
	Payload    string `json:"payload_json"`
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
