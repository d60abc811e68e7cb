package domain

// AssetType enumerates the kinds of generation a user can pay for.
type AssetType string

const (
	AssetPerson       AssetType = "PERSON"
	AssetComposite    AssetType = "COMPOSITE"
	AssetVideo        AssetType = "VIDEO"
	AssetFullPipeline AssetType = "FULL_PIPELINE"
)

// Credit costs per generation.
const (
	CostPerson        = 1
	CostComposite     = 1
	CostVideoFast     = 12
	CostVideoStandard = 32
	CostFullPipeline  = 3
)

// AssetVariant binds an asset type to its cost, dispatch route, refund
// policy and primary output.
type AssetVariant struct {
	Type  AssetType
	Route string
	// Stages is the number of pipeline stages the external processor runs.
	Stages int

	cost   func(VideoQuality) int
	refund func(*Generation) int
	output func(*Generation) (url, key string)
}

var assetVariants = map[AssetType]AssetVariant{
	AssetPerson: {
		Type:   AssetPerson,
		Route:  "/api/v1/generate/person",
		Stages: 1,
		cost:   func(VideoQuality) int { return CostPerson },
		refund: func(*Generation) int { return CostPerson },
		output: func(g *Generation) (string, string) { return g.GeneratedPersonURL, g.S3KeyPerson },
	},
	AssetComposite: {
		Type:   AssetComposite,
		Route:  "/api/v1/generate/composite",
		Stages: 1,
		cost:   func(VideoQuality) int { return CostComposite },
		refund: func(*Generation) int { return CostComposite },
		output: func(g *Generation) (string, string) { return g.CompositeImageURL, g.S3KeyComposite },
	},
	AssetVideo: {
		Type:   AssetVideo,
		Route:  "/api/v1/generate/video-only",
		Stages: 1,
		cost:   videoCost,
		refund: func(g *Generation) int { return videoCost(g.Params.VideoQuality) },
		output: func(g *Generation) (string, string) { return g.FinalVideoURL, g.S3KeyVideo },
	},
	AssetFullPipeline: {
		Type:   AssetFullPipeline,
		Route:  "/api/v1/generate/ugc-video",
		Stages: 3,
		cost:   func(VideoQuality) int { return CostFullPipeline },
		refund: pipelineRefund,
		output: func(g *Generation) (string, string) { return g.FinalVideoURL, g.S3KeyVideo },
	},
}

// Variant looks up the variant for t.
func Variant(t AssetType) (AssetVariant, bool) {
	v, ok := assetVariants[t]
	return v, ok
}

// Valid reports whether t is a known asset type.
func (t AssetType) Valid() bool {
	_, ok := assetVariants[t]
	return ok
}

// Cost returns the credits debited for a generation of this variant.
func (v AssetVariant) Cost(q VideoQuality) int {
	return v.cost(q)
}

// RefundAmount returns the credits restored when g is refunded.
func (v AssetVariant) RefundAmount(g *Generation) int {
	return v.refund(g)
}

// Output returns the primary artifact URL and storage key of g.
func (v AssetVariant) Output(g *Generation) (string, string) {
	return v.output(g)
}

// CostOf is a shortcut for Variant(t).Cost(q); unknown types cost 0.
func CostOf(t AssetType, q VideoQuality) int {
	v, ok := Variant(t)
	if !ok {
		return 0
	}
	return v.Cost(q)
}

func videoCost(q VideoQuality) int {
	if q == VideoQualityFast {
		return CostVideoFast
	}
	return CostVideoStandard
}

// pipelineRefund refunds by failed stage: the per-stage image cost for
// stages 1 and 2 and the video cost for stage 3. A failure that names no
// stage (dispatch or sweep) returns the full debit.
func pipelineRefund(g *Generation) int {
	switch g.FailedStage() {
	case 1:
		return CostPerson
	case 2:
		return CostComposite
	case 3:
		return videoCost(g.Params.VideoQuality)
	}
	return CostFullPipeline
}
