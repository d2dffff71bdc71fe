package bang

import (
	"bangscan/internal/pipeline"
	"bangscan/internal/scanstage"
)

// DefaultPipeline assembles the stages of internal/scanstage in order:
// a suggestion from the parent always wins outright; otherwise try
// padding (cheapest, most specific check); otherwise, as long as this
// meta directory is not itself a synthesized residual range, try
// extension match and then the signature-automaton sweep; and
// finally, unconditionally, fall back to the featureless stage.
func DefaultPipeline() scanstage.Pipe {
	return pipeline.Seq(
		scanstage.SuggestedStage(),
		scanstage.PaddingStage,
		pipeline.Cond(
			scanstage.NotSynthesized,
			pipeline.Seq(scanstage.ExtensionStage, scanstage.SignatureStage),
			nil,
		),
		scanstage.FeaturelessStage,
	)
}
