package generation

import (
	"strings"

	"ugcvideo/internal/domain"
	"ugcvideo/internal/validation"
)

const (
	defaultDuration    = 8
	defaultAspectRatio = "9:16"
)

// Input is a create request for one asset type.
type Input interface {
	AssetType() domain.AssetType
	// Params validates the input and returns the stage parameters with
	// defaults applied.
	Params() (domain.GenerationParams, error)
}

// PersonFieldsInput are the EASY mode attributes of the person stage.
type PersonFieldsInput struct {
	Gender     string `json:"gender" validate:"required,max=50"`
	Age        string `json:"age" validate:"required,max=50"`
	Ethnicity  string `json:"ethnicity" validate:"required,max=50"`
	Clothing   string `json:"clothing" validate:"required,max=100"`
	Expression string `json:"expression" validate:"required,max=50"`
	Background string `json:"background" validate:"required,max=100"`
}

// PersonInput generates a model photo.
type PersonInput struct {
	Mode         domain.GenerationMode `json:"mode" validate:"required,oneof=EASY ADVANCED"`
	PersonFields *PersonFieldsInput    `json:"person_fields" validate:"omitempty"`
	PersonPrompt string                `json:"person_prompt" validate:"omitempty,max=1000"`
}

// CompositeInput places a product into a person photo.
type CompositeInput struct {
	PersonImageURL  string `json:"person_image_url" validate:"required,url"`
	ProductImageURL string `json:"product_image_url" validate:"required,url"`
	CompositePrompt string `json:"composite_prompt" validate:"omitempty,max=1000"`
}

// VideoInput animates an existing composite image.
type VideoInput struct {
	CompositeImageURL string              `json:"composite_image_url" validate:"required,url"`
	ProductImageURL   string              `json:"product_image_url" validate:"omitempty,url"`
	VideoPrompt       string              `json:"video_prompt" validate:"required,min=10,max=500"`
	VideoQuality      domain.VideoQuality `json:"veo3_mode" validate:"omitempty,oneof=FAST STANDARD"`
	Duration          int                 `json:"duration" validate:"omitempty,min=1,max=60"`
	AspectRatio       string              `json:"aspect_ratio" validate:"omitempty,oneof=9:16 16:9 1:1"`
}

// PipelineInput runs person, composite and video stages end to end.
type PipelineInput struct {
	Mode            domain.GenerationMode `json:"mode" validate:"omitempty,oneof=EASY ADVANCED"`
	PersonFields    *PersonFieldsInput    `json:"person_fields" validate:"omitempty"`
	PersonPrompt    string                `json:"person_prompt" validate:"omitempty,max=1000"`
	ProductImageURL string                `json:"product_image_url" validate:"required,url"`
	CompositePrompt string                `json:"composite_prompt" validate:"omitempty,max=1000"`
	VideoPrompt     string                `json:"video_prompt" validate:"required,min=10,max=500"`
	VideoQuality    domain.VideoQuality   `json:"veo3_mode" validate:"omitempty,oneof=FAST STANDARD"`
	Duration        int                   `json:"duration" validate:"omitempty,min=1,max=60"`
	AspectRatio     string                `json:"aspect_ratio" validate:"omitempty,oneof=9:16 16:9 1:1"`
}

func (PersonInput) AssetType() domain.AssetType    { return domain.AssetPerson }
func (CompositeInput) AssetType() domain.AssetType { return domain.AssetComposite }
func (VideoInput) AssetType() domain.AssetType     { return domain.AssetVideo }
func (PipelineInput) AssetType() domain.AssetType  { return domain.AssetFullPipeline }

func (in PersonInput) Params() (domain.GenerationParams, error) {
	if err := validation.Struct(in); err != nil {
		return domain.GenerationParams{}, err
	}
	p := domain.GenerationParams{Mode: in.Mode}
	if err := applyPerson(&p, in.Mode, in.PersonFields, in.PersonPrompt); err != nil {
		return domain.GenerationParams{}, err
	}
	return p, nil
}

func (in CompositeInput) Params() (domain.GenerationParams, error) {
	if err := validation.Struct(in); err != nil {
		return domain.GenerationParams{}, err
	}
	return domain.GenerationParams{
		PersonImageURL:  strings.TrimSpace(in.PersonImageURL),
		ProductImageURL: strings.TrimSpace(in.ProductImageURL),
		CompositePrompt: strings.TrimSpace(in.CompositePrompt),
	}, nil
}

func (in VideoInput) Params() (domain.GenerationParams, error) {
	if err := validation.Struct(in); err != nil {
		return domain.GenerationParams{}, err
	}
	p := domain.GenerationParams{
		CompositeImageURL: strings.TrimSpace(in.CompositeImageURL),
		ProductImageURL:   strings.TrimSpace(in.ProductImageURL),
		VideoPrompt:       strings.TrimSpace(in.VideoPrompt),
	}
	applyVideo(&p, in.VideoQuality, in.Duration, in.AspectRatio)
	return p, nil
}

func (in PipelineInput) Params() (domain.GenerationParams, error) {
	if err := validation.Struct(in); err != nil {
		return domain.GenerationParams{}, err
	}
	mode := in.Mode
	if mode == "" {
		mode = domain.ModeEasy
	}
	p := domain.GenerationParams{
		Mode:            mode,
		ProductImageURL: strings.TrimSpace(in.ProductImageURL),
		CompositePrompt: strings.TrimSpace(in.CompositePrompt),
		VideoPrompt:     strings.TrimSpace(in.VideoPrompt),
	}
	if err := applyPerson(&p, mode, in.PersonFields, in.PersonPrompt); err != nil {
		return domain.GenerationParams{}, err
	}
	applyVideo(&p, in.VideoQuality, in.Duration, in.AspectRatio)
	return p, nil
}

// applyPerson enforces the mode rule: EASY needs the guided fields and
// ADVANCED needs a free-text prompt.
func applyPerson(p *domain.GenerationParams, mode domain.GenerationMode, fields *PersonFieldsInput, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	switch mode {
	case domain.ModeEasy:
		if fields == nil {
			return validation.Fail("person_fields", "required", "is required in EASY mode")
		}
		p.PersonFields = &domain.PersonFields{
			Gender:     fields.Gender,
			Age:        fields.Age,
			Ethnicity:  fields.Ethnicity,
			Clothing:   fields.Clothing,
			Expression: fields.Expression,
			Background: fields.Background,
		}
	case domain.ModeAdvanced:
		if prompt == "" {
			return validation.Fail("person_prompt", "required", "is required in ADVANCED mode")
		}
	}
	p.PersonPrompt = prompt
	return nil
}

func applyVideo(p *domain.GenerationParams, quality domain.VideoQuality, duration int, aspect string) {
	p.VideoQuality = quality
	if p.VideoQuality == "" {
		p.VideoQuality = domain.VideoQualityStandard
	}
	p.Duration = duration
	if p.Duration == 0 {
		p.Duration = defaultDuration
	}
	p.AspectRatio = aspect
	if p.AspectRatio == "" {
		p.AspectRatio = defaultAspectRatio
	}
}
