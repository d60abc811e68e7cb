// Package webhook decodes and validates status callbacks from the external
// processor.
package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"ugcvideo/internal/domain"
	"ugcvideo/internal/validation"
)

// Payload is the status callback body. Empty strings count as absent.
// Unknown fields are ignored.
type Payload struct {
	GenerationID string                  `json:"generation_id" validate:"required,uuid"`
	Status       domain.GenerationStatus `json:"status" validate:"required,oneof=PENDING PROCESSING COMPLETED FAILED"`
	CurrentStage *int                    `json:"current_stage" validate:"omitempty,min=1,max=3"`
	Progress     *int                    `json:"progress" validate:"omitempty,gte=0,lte=100"`

	GeneratedPersonURL string `json:"generated_person_url" validate:"omitempty,url"`
	Stage1Error        string `json:"stage1_error"`

	CompositeImageURL string `json:"composite_image_url" validate:"omitempty,url"`
	Stage2Error       string `json:"stage2_error"`

	FinalVideoURL     string `json:"final_video_url" validate:"omitempty,url"`
	VideoThumbnailURL string `json:"video_thumbnail_url" validate:"omitempty,url"`
	VideoProvider     string `json:"video_provider"`
	FallbackUsed      *bool  `json:"fallback_used"`
	Stage3Error       string `json:"stage3_error"`

	S3KeyPerson    string `json:"s3_key_person"`
	S3KeyComposite string `json:"s3_key_composite"`
	S3KeyVideo     string `json:"s3_key_video"`

	ErrorType    domain.ErrorType `json:"error_type" validate:"omitempty,oneof=USER_ERROR VALIDATION_ERROR SYSTEM_ERROR SERVICE_ERROR TIMEOUT"`
	ErrorMessage string           `json:"error_message"`
	IsRefundable *bool            `json:"is_refundable"`
	CanRetry     *bool            `json:"can_retry"`

	// Older workflow versions send these names.
	LegacyImageURL     string `json:"generatedImageUrl" validate:"omitempty,url"`
	LegacyVideoURL     string `json:"finalVideoUrl" validate:"omitempty,url"`
	LegacyThumbnailURL string `json:"thumbnailUrl" validate:"omitempty,url"`
	LegacyS3Key        string `json:"s3Key"`
	LegacyExecutionID  string `json:"n8nExecutionId"`
}

// Parse decodes and validates a callback body. Malformed JSON and schema
// violations are both reported as a *validation.Error.
func Parse(body []byte) (*Payload, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, validation.Fail("body", "required", "request body is empty")
	}
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, validation.Fail(typeErr.Field, "type", fmt.Sprintf("must be a %s", typeErr.Type))
		}
		return nil, validation.Fail("body", "json", "request body is not valid JSON")
	}
	if err := validation.Struct(p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Update converts the payload into a partial update. Canonical fields win
// over their legacy aliases.
func (p *Payload) Update() domain.GenerationUpdate {
	u := domain.GenerationUpdate{
		Status:       p.Status,
		CurrentStage: p.CurrentStage,
		Progress:     p.Progress,
		FallbackUsed: p.FallbackUsed,
		IsRefundable: p.IsRefundable,
		CanRetry:     p.CanRetry,

		GeneratedPersonURL: present(p.GeneratedPersonURL, p.LegacyImageURL),
		S3KeyPerson:        present(p.S3KeyPerson),
		Stage1Error:        present(p.Stage1Error),

		CompositeImageURL: present(p.CompositeImageURL),
		S3KeyComposite:    present(p.S3KeyComposite),
		Stage2Error:       present(p.Stage2Error),

		FinalVideoURL:     present(p.FinalVideoURL, p.LegacyVideoURL),
		VideoThumbnailURL: present(p.VideoThumbnailURL, p.LegacyThumbnailURL),
		S3KeyVideo:        present(p.S3KeyVideo, p.LegacyS3Key),
		VideoProvider:     present(p.VideoProvider),
		Stage3Error:       present(p.Stage3Error),

		ErrorMessage:        present(p.ErrorMessage),
		ExternalExecutionID: present(p.LegacyExecutionID),
	}
	if p.ErrorType != "" {
		et := p.ErrorType
		u.ErrorType = &et
	}
	return u
}

// present returns the first non-empty value, or nil.
func present(values ...string) *string {
	for _, v := range values {
		if v != "" {
			v := v
			return &v
		}
	}
	return nil
}
