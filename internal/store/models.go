package store

import (
	"strings"
	"time"
)

// Role partitions users into the two application roles.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSpecialist Role = "specialist"
)

// ParseRole converts a string into a known Role.
func ParseRole(value string) (Role, bool) {
	normalized := Role(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case RoleAdmin, RoleSpecialist:
		return normalized, true
	}
	return "", false
}

// ExperimentStatus represents the lifecycle of an experiment.
type ExperimentStatus string

const (
	ExperimentDraft     ExperimentStatus = "draft"
	ExperimentActive    ExperimentStatus = "active"
	ExperimentPaused    ExperimentStatus = "paused"
	ExperimentCompleted ExperimentStatus = "completed"
)

// ParseExperimentStatus converts a string into a known ExperimentStatus.
func ParseExperimentStatus(value string) (ExperimentStatus, bool) {
	normalized := ExperimentStatus(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case ExperimentDraft, ExperimentActive, ExperimentPaused, ExperimentCompleted:
		return normalized, true
	}
	return "", false
}

// AssignmentStatus represents the lifecycle of a specialist assignment.
type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "assigned"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
)

// SessionStatus represents the lifecycle of an annotation session.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
)

// User is an account row. PasswordHash never leaves the store/auth boundary.
type User struct {
	ID              int64
	Email           string
	Name            string
	PasswordHash    string
	Role            Role
	ExpertiseLevel  string
	YearsExperience *int
	TrainingDate    string
	Institution     string
	Specializations []string
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Sample is one physical PAD card image available for annotation.
type Sample struct {
	ID              int64
	DrugName        string
	DrugNameDisplay string
	CardID          int64
	Filename        string
	ImagePath       string
	Quantity        *int
	ImageType       string
	CreatedAt       time.Time
}

// SampleTag binds one marker ID to a corner position of a sample.
type SampleTag struct {
	SampleID int64
	TagID    int
	Position string
}

// Experiment groups a sample selection under instructions for annotators.
type Experiment struct {
	ID           int64
	Name         string
	Description  string
	Instructions string
	Status       ExperimentStatus
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ExperimentSample is a sample included in an experiment with its admin-facing order.
type ExperimentSample struct {
	ID           int64
	ExperimentID int64
	Sample       Sample
	DisplayOrder int
}

// Assignment links a specialist to an experiment. The expertise snapshot
// columns freeze the specialist profile at assignment time for analysis.
type Assignment struct {
	ID                      int64
	ExperimentID            int64
	SpecialistID            int64
	Status                  AssignmentStatus
	RandomizationSeed       *int64
	ExpertiseLevelSnapshot  string
	YearsExperienceSnapshot *int
	TrainingDateSnapshot    string
	StartedAt               *time.Time
	CreatedAt               time.Time

	// Joined presentation fields, populated by list queries.
	ExperimentName   string
	SpecialistName   string
	SpecialistEmail  string
	ExperimentStatus ExperimentStatus
}

// OrderedSample is one entry of a specialist's randomized working sequence.
type OrderedSample struct {
	SpecialistOrder    int
	ExperimentSampleID int64
	Sample             Sample
}

// AnnotationSession captures one specialist/sample annotation pass.
type AnnotationSession struct {
	ID                  int64
	AssignmentID        int64
	ExperimentSampleID  int64
	SessionUUID         string
	Status              SessionStatus
	AudioFilename       string
	AudioDurationMS     *int64
	ImageDimensionsJSON string
	LayoutSettingsJSON  string
	CreatedAt           time.Time
	CompletedAt         *time.Time
}

// Annotation is one persisted annotation shape within a session.
type Annotation struct {
	ID                   int64
	SessionID            int64
	Type                 string
	Color                string
	LanesJSON            string
	BBoxNormalizedJSON   string
	PointsNormalizedJSON string
	TimestampStartMS     *int64
	TimestampEndMS       *int64
	CreatedAt            time.Time
}

// AssignmentProgress summarizes completion for one assignment.
type AssignmentProgress struct {
	Total      int
	Completed  int
	Remaining  int
	Percentage float64
}

// SpecialistProgress is one specialist's row in an experiment progress rollup.
type SpecialistProgress struct {
	AssignmentID     int64
	SpecialistName   string
	Status           AssignmentStatus
	StartedAt        *time.Time
	TotalSamples     int
	CompletedSamples int
	Percentage       float64
}

// ExperimentProgress aggregates specialist progress across an experiment.
type ExperimentProgress struct {
	Specialists          []SpecialistProgress
	TotalAnnotations     int
	CompletedAnnotations int
	OverallPercentage    float64
}
