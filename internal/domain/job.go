package domain

import "time"

// GenerationStatus enumerates job lifecycle states.
type GenerationStatus string

const (
	StatusPending    GenerationStatus = "PENDING"
	StatusProcessing GenerationStatus = "PROCESSING"
	StatusCompleted  GenerationStatus = "COMPLETED"
	StatusFailed     GenerationStatus = "FAILED"
)

// Valid reports whether s is a known status.
func (s GenerationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s ends the lifecycle.
func (s GenerationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a job may move from one status to another
// through a status update. Re-applying the current status is allowed so that
// replayed updates stay harmless. Retry is the only way out of FAILED and is
// not expressed here.
func CanTransition(from, to GenerationStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusCompleted || to == StatusFailed
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	}
	return false
}

// VideoQuality selects the video model tier.
type VideoQuality string

const (
	VideoQualityFast     VideoQuality = "FAST"
	VideoQualityStandard VideoQuality = "STANDARD"
)

// GenerationMode selects how the person stage is described.
type GenerationMode string

const (
	ModeEasy     GenerationMode = "EASY"
	ModeAdvanced GenerationMode = "ADVANCED"
)

// PersonFields are the guided attributes used in EASY mode.
type PersonFields struct {
	Gender     string `json:"gender"`
	Age        string `json:"age"`
	Ethnicity  string `json:"ethnicity"`
	Clothing   string `json:"clothing"`
	Expression string `json:"expression"`
	Background string `json:"background"`
}

// GenerationParams holds the stage inputs. They are stored with the job and
// kept after completion so that Retry can re-dispatch the same request.
type GenerationParams struct {
	Mode              GenerationMode `json:"mode,omitempty"`
	PersonFields      *PersonFields  `json:"person_fields,omitempty"`
	PersonPrompt      string         `json:"person_prompt,omitempty"`
	PersonImageURL    string         `json:"person_image_url,omitempty"`
	ProductImageURL   string         `json:"product_image_url,omitempty"`
	CompositePrompt   string         `json:"composite_prompt,omitempty"`
	CompositeImageURL string         `json:"composite_image_url,omitempty"`
	VideoPrompt       string         `json:"video_prompt,omitempty"`
	VideoQuality      VideoQuality   `json:"video_quality,omitempty"`
	Duration          int            `json:"duration,omitempty"`
	AspectRatio       string         `json:"aspect_ratio,omitempty"`
}

// Generation is one credit-metered unit of generation work.
type Generation struct {
	ID        string
	UserID    string
	AssetType AssetType
	Status    GenerationStatus
	Params    GenerationParams

	GeneratedPersonURL string
	S3KeyPerson        string
	Stage1Error        string

	CompositeImageURL string
	S3KeyComposite    string
	Stage2Error       string

	FinalVideoURL     string
	VideoThumbnailURL string
	S3KeyVideo        string
	VideoProvider     string
	FallbackUsed      bool
	Stage3Error       string

	ErrorType       ErrorType
	ErrorMessage    string
	IsRefundable    bool
	CanRetry        bool
	CreditsRefunded bool

	// Attempt counts dispatch cycles, starting at 1. RefundedAttempt is the
	// last attempt whose credits were returned, 0 when none was.
	Attempt         int
	RefundedAttempt int

	CurrentStage int
	Progress     int

	ExternalExecutionID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FailedStage returns the first pipeline stage with a recorded error, or 0.
func (g *Generation) FailedStage() int {
	switch {
	case g.Stage1Error != "":
		return 1
	case g.Stage2Error != "":
		return 2
	case g.Stage3Error != "":
		return 3
	}
	return 0
}

// StageOutput carries artifacts produced by the external processor.
type StageOutput struct {
	PersonURL    string
	PersonKey    string
	CompositeURL string
	CompositeKey string
	VideoURL     string
	VideoKey     string
	ThumbnailURL string
	Provider     string
	FallbackUsed bool
}

// Failure describes how a job failed.
type Failure struct {
	Type    ErrorType
	Message string
	// Stage, when between 1 and 3, records Message as that stage's error.
	Stage int
}

// GenerationUpdate is a partial status update. Nil fields leave the stored
// value untouched.
type GenerationUpdate struct {
	Status       GenerationStatus
	CurrentStage *int
	Progress     *int

	GeneratedPersonURL *string
	S3KeyPerson        *string
	Stage1Error        *string

	CompositeImageURL *string
	S3KeyComposite    *string
	Stage2Error       *string

	FinalVideoURL     *string
	VideoThumbnailURL *string
	S3KeyVideo        *string
	VideoProvider     *string
	FallbackUsed      *bool
	Stage3Error       *string

	ErrorType    *ErrorType
	ErrorMessage *string
	IsRefundable *bool
	CanRetry     *bool

	ExternalExecutionID *string
}

// Apply merges u into g. Stage outputs are dropped while the matching stage
// has an error. Error classification is set once per failure and kept on
// later FAILED updates. creditsRefunded is never touched.
func (g *Generation) Apply(u GenerationUpdate) {
	wasClassified := g.Status == StatusFailed && g.ErrorType != ""
	if u.Status != "" {
		g.Status = u.Status
	}
	setInt(&g.CurrentStage, u.CurrentStage)
	setInt(&g.Progress, u.Progress)

	setString(&g.Stage1Error, u.Stage1Error)
	setString(&g.Stage2Error, u.Stage2Error)
	setString(&g.Stage3Error, u.Stage3Error)

	if g.Stage1Error == "" {
		setString(&g.GeneratedPersonURL, u.GeneratedPersonURL)
		setString(&g.S3KeyPerson, u.S3KeyPerson)
	}
	if g.Stage2Error == "" {
		setString(&g.CompositeImageURL, u.CompositeImageURL)
		setString(&g.S3KeyComposite, u.S3KeyComposite)
	}
	if g.Stage3Error == "" {
		setString(&g.FinalVideoURL, u.FinalVideoURL)
		setString(&g.VideoThumbnailURL, u.VideoThumbnailURL)
		setString(&g.S3KeyVideo, u.S3KeyVideo)
		setString(&g.VideoProvider, u.VideoProvider)
		if u.FallbackUsed != nil {
			g.FallbackUsed = *u.FallbackUsed
		}
	}
	setString(&g.ExternalExecutionID, u.ExternalExecutionID)

	if g.Status != StatusFailed {
		return
	}
	if u.CanRetry != nil {
		g.CanRetry = *u.CanRetry
	} else if !wasClassified {
		g.CanRetry = true
	}
	if wasClassified {
		return
	}
	if u.ErrorType != nil {
		g.ErrorType = *u.ErrorType
	}
	if g.ErrorType == "" {
		g.ErrorType = ErrorTypeSystem
	}
	if u.IsRefundable != nil {
		g.IsRefundable = *u.IsRefundable
	} else {
		g.IsRefundable = g.ErrorType.Refundable()
	}
	setString(&g.ErrorMessage, u.ErrorMessage)
	if g.ErrorMessage == "" {
		g.ErrorMessage = g.ErrorType.DefaultMessage()
	}
}

// Complete records a successful synchronous result.
func (g *Generation) Complete(out StageOutput) {
	g.Status = StatusCompleted
	g.Progress = 100
	if out.PersonURL != "" {
		g.GeneratedPersonURL, g.S3KeyPerson = out.PersonURL, out.PersonKey
	}
	if out.CompositeURL != "" {
		g.CompositeImageURL, g.S3KeyComposite = out.CompositeURL, out.CompositeKey
	}
	if out.VideoURL != "" {
		g.FinalVideoURL, g.S3KeyVideo = out.VideoURL, out.VideoKey
		g.VideoThumbnailURL = out.ThumbnailURL
	}
	if out.Provider != "" {
		g.VideoProvider = out.Provider
	}
	g.FallbackUsed = out.FallbackUsed
}

// RefundDue reports whether the current attempt failed refundably and its
// credits have not been returned yet.
func (g *Generation) RefundDue() bool {
	return g.Status == StatusFailed && g.IsRefundable && g.RefundedAttempt < g.Attempt
}

// MarkRefunded records the refund of the current attempt. CreditsRefunded
// only ever moves to true.
func (g *Generation) MarkRefunded() {
	g.CreditsRefunded = true
	g.RefundedAttempt = g.Attempt
}

// ResetForRetry returns a failed job to PENDING as a new attempt and clears
// the failure. Refund state of earlier attempts is kept.
func (g *Generation) ResetForRetry() {
	g.Status = StatusPending
	g.ErrorType = ""
	g.ErrorMessage = ""
	g.IsRefundable = false
	g.CanRetry = false
	g.Attempt++
	g.Stage1Error, g.Stage2Error, g.Stage3Error = "", "", ""
	g.CurrentStage = 0
	g.Progress = 0
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}
