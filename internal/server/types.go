package server

import "time"

// API payload types. Store rows never serialize directly; these DTOs fix the
// wire shape and keep credentials out of responses.

// User is the public account shape.
type User struct {
	ID              int64    `json:"id"`
	Email           string   `json:"email"`
	Name            string   `json:"name"`
	Role            string   `json:"role"`
	ExpertiseLevel  string   `json:"expertise_level,omitempty"`
	YearsExperience *int     `json:"years_experience,omitempty"`
	TrainingDate    string   `json:"training_date,omitempty"`
	Institution     string   `json:"institution,omitempty"`
	Specializations []string `json:"specializations,omitempty"`
	IsActive        bool     `json:"is_active"`
	CreatedAt       string   `json:"created_at"`
}

// Sample is one annotatable card image.
type Sample struct {
	ID              int64  `json:"id"`
	DrugName        string `json:"drug_name"`
	DrugNameDisplay string `json:"drug_name_display"`
	CardID          int64  `json:"card_id"`
	Filename        string `json:"filename"`
	ImagePath       string `json:"image_path"`
	Quantity        *int   `json:"quantity,omitempty"`
	ImageType       string `json:"image_type,omitempty"`
}

// Experiment is an annotation campaign.
type Experiment struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	Status       string `json:"status"`
	CreatedBy    int64  `json:"created_by"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// ExperimentSample is a sample within an experiment's selection.
type ExperimentSample struct {
	ID           int64  `json:"id"`
	DisplayOrder int    `json:"display_order"`
	Sample       Sample `json:"sample"`
}

// Assignment links a specialist to an experiment.
type Assignment struct {
	ID                int64   `json:"id"`
	ExperimentID      int64   `json:"experiment_id"`
	SpecialistID      int64   `json:"specialist_id"`
	Status            string  `json:"status"`
	RandomizationSeed *int64  `json:"randomization_seed,omitempty"`
	StartedAt         *string `json:"started_at,omitempty"`
	CreatedAt         string  `json:"created_at"`

	ExperimentName   string `json:"experiment_name,omitempty"`
	ExperimentStatus string `json:"experiment_status,omitempty"`
	SpecialistName   string `json:"specialist_name,omitempty"`
	SpecialistEmail  string `json:"specialist_email,omitempty"`
}

// AssignmentProgress is a specialist-facing completion summary.
type AssignmentProgress struct {
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	Remaining  int     `json:"remaining"`
	Percentage float64 `json:"percentage"`
}

// SpecialistProgress is one row of an experiment progress rollup.
type SpecialistProgress struct {
	AssignmentID     int64   `json:"assignment_id"`
	SpecialistName   string  `json:"specialist_name"`
	Status           string  `json:"status"`
	StartedAt        *string `json:"started_at,omitempty"`
	TotalSamples     int     `json:"total_samples"`
	CompletedSamples int     `json:"completed_samples"`
	Percentage       float64 `json:"percentage"`
}

// ExperimentProgress aggregates completion across an experiment.
type ExperimentProgress struct {
	Specialists          []SpecialistProgress `json:"specialists"`
	TotalAnnotations     int                  `json:"total_annotations"`
	CompletedAnnotations int                  `json:"completed_annotations"`
	OverallPercentage    float64              `json:"overall_percentage"`
}

// CurrentSample is the specialist's next unit of work: the sample plus the
// session opened for it.
type CurrentSample struct {
	SessionUUID     string `json:"session_uuid"`
	SpecialistOrder int    `json:"specialist_order"`
	TotalSamples    int    `json:"total_samples"`
	Sample          Sample `json:"sample"`
	Instructions    string `json:"instructions,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type createUserRequest struct {
	Email           string   `json:"email"`
	Name            string   `json:"name"`
	Password        string   `json:"password"`
	Role            string   `json:"role"`
	ExpertiseLevel  string   `json:"expertise_level"`
	YearsExperience *int     `json:"years_experience"`
	TrainingDate    string   `json:"training_date"`
	Institution     string   `json:"institution"`
	Specializations []string `json:"specializations"`
}

type updateUserRequest struct {
	Email           *string  `json:"email"`
	Name            *string  `json:"name"`
	Password        *string  `json:"password"`
	ExpertiseLevel  *string  `json:"expertise_level"`
	YearsExperience *int     `json:"years_experience"`
	TrainingDate    *string  `json:"training_date"`
	Institution     *string  `json:"institution"`
	Specializations []string `json:"specializations"`
}

type experimentRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Instructions string `json:"instructions"`
}

type experimentStatusRequest struct {
	Status string `json:"status"`
}

type experimentSamplesRequest struct {
	SampleIDs []int64 `json:"sample_ids"`
}

type createAssignmentRequest struct {
	SpecialistID int64 `json:"specialist_id"`
}

type allocateTagsRequest struct {
	SampleID      *int64 `json:"sample_id"`
	ReallocateAll bool   `json:"reallocate_all"`
	DryRun        bool   `json:"dry_run"`
}

type identifyRequest struct {
	DetectedTags []int `json:"detected_tags"`
}

type identifyResponse struct {
	Identified bool    `json:"identified"`
	Sample     *Sample `json:"sample,omitempty"`
}

type completeSessionRequest struct {
	AudioFilename       string           `json:"audio_filename"`
	AudioDurationMS     *int64           `json:"audio_duration_ms"`
	ImageDimensionsJSON string           `json:"image_dimensions_json"`
	LayoutSettingsJSON  string           `json:"layout_settings_json"`
	Annotations         []annotationBody `json:"annotations"`
}

type annotationBody struct {
	Type                 string `json:"type"`
	Color                string `json:"color"`
	LanesJSON            string `json:"lanes_json"`
	BBoxNormalizedJSON   string `json:"bbox_normalized_json"`
	PointsNormalizedJSON string `json:"points_normalized_json"`
	TimestampStartMS     *int64 `json:"timestamp_start_ms"`
	TimestampEndMS       *int64 `json:"timestamp_end_ms"`
}

type currentResponse struct {
	Completed bool           `json:"completed"`
	Current   *CurrentSample `json:"current,omitempty"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Samples int    `json:"samples"`
	Tagged  int    `json:"tagged"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := formatTime(*t)
	return &formatted
}
