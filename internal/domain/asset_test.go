package domain

import "testing"

func TestCostOf(t *testing.T) {
	tests := []struct {
		asset   AssetType
		quality VideoQuality
		want    int
	}{
		{AssetPerson, "", 1},
		{AssetComposite, "", 1},
		{AssetVideo, VideoQualityFast, 12},
		{AssetVideo, VideoQualityStandard, 32},
		{AssetVideo, "", 32},
		{AssetFullPipeline, VideoQualityFast, 3},
		{"UNKNOWN", "", 0},
	}
	for _, tt := range tests {
		if got := CostOf(tt.asset, tt.quality); got != tt.want {
			t.Fatalf("CostOf(%s, %q) = %d, want %d", tt.asset, tt.quality, got, tt.want)
		}
	}
}

func TestRefundAmount(t *testing.T) {
	tests := []struct {
		name string
		g    Generation
		want int
	}{
		{name: "person", g: Generation{AssetType: AssetPerson}, want: 1},
		{name: "fast video", g: Generation{AssetType: AssetVideo, Params: GenerationParams{VideoQuality: VideoQualityFast}}, want: 12},
		{name: "standard video", g: Generation{AssetType: AssetVideo, Params: GenerationParams{VideoQuality: VideoQualityStandard}}, want: 32},
		{name: "pipeline stage 1", g: Generation{AssetType: AssetFullPipeline, Stage1Error: "x"}, want: 1},
		{name: "pipeline stage 2", g: Generation{AssetType: AssetFullPipeline, Stage2Error: "x"}, want: 1},
		{name: "pipeline stage 3 fast", g: Generation{AssetType: AssetFullPipeline, Stage3Error: "x", Params: GenerationParams{VideoQuality: VideoQualityFast}}, want: 12},
		{name: "pipeline stage 3 standard", g: Generation{AssetType: AssetFullPipeline, Stage3Error: "x", Params: GenerationParams{VideoQuality: VideoQualityStandard}}, want: 32},
		{name: "pipeline without stage", g: Generation{AssetType: AssetFullPipeline}, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := Variant(tt.g.AssetType)
			if !ok {
				t.Fatalf("variant missing for %s", tt.g.AssetType)
			}
			if got := v.RefundAmount(&tt.g); got != tt.want {
				t.Fatalf("RefundAmount = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestVariantOutput(t *testing.T) {
	g := &Generation{
		GeneratedPersonURL: "p", S3KeyPerson: "pk",
		CompositeImageURL: "c", S3KeyComposite: "ck",
		FinalVideoURL: "v", S3KeyVideo: "vk",
	}
	want := map[AssetType][2]string{
		AssetPerson:       {"p", "pk"},
		AssetComposite:    {"c", "ck"},
		AssetVideo:        {"v", "vk"},
		AssetFullPipeline: {"v", "vk"},
	}
	for asset, pair := range want {
		v, _ := Variant(asset)
		url, key := v.Output(g)
		if url != pair[0] || key != pair[1] {
			t.Fatalf("%s output = %s/%s", asset, url, key)
		}
	}
}

func TestErrorTypeTaxonomy(t *testing.T) {
	refundable := map[ErrorType]bool{
		ErrorTypeUser:       false,
		ErrorTypeValidation: false,
		ErrorTypeSystem:     true,
		ErrorTypeService:    true,
		ErrorTypeTimeout:    true,
	}
	for et, want := range refundable {
		if !et.Valid() {
			t.Fatalf("%s should be valid", et)
		}
		if et.Refundable() != want {
			t.Fatalf("%s refundable = %v, want %v", et, et.Refundable(), want)
		}
		if et.DefaultMessage() == "" {
			t.Fatalf("%s has no default message", et)
		}
	}
	if ErrorType("NOPE").Valid() {
		t.Fatalf("unknown type must be invalid")
	}
}
