package scoring

import (
	"math"

	"go.uber.org/zap"

	"mcp-food-score/internal/classify"
	"mcp-food-score/internal/config"
	"mcp-food-score/internal/models"
)

// Curve names the scoring curve a result came from.
type Curve string

const (
	CurveWholeFood Curve = "whole_food"
	CurvePackaged  Curve = "packaged"
	CurveLegacy    Curve = "legacy"
)

// Result is a score together with how it was reached.
type Result struct {
	Kind     models.FoodKind     `json:"kind"`
	Curve    Curve               `json:"curve"`
	Score100 int                 `json:"score_100"`
	Score10  float64             `json:"score_10"`
	Stars    float64             `json:"stars"`
	Flags    []models.HealthFlag `json:"flags,omitempty"`
}

// Scorer picks a curve for each food and logs what it decided.
type Scorer struct {
	logger          *zap.Logger
	overrideSources map[models.Source]bool
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithGenericOverrideSources replaces the capture sources whose ambiguous,
// slug-bearing items are scored as whole foods.
func WithGenericOverrideSources(sources ...models.Source) Option {
	return func(s *Scorer) {
		s.overrideSources = make(map[models.Source]bool, len(sources))
		for _, src := range sources {
			s.overrideSources[src] = true
		}
	}
}

// NewScorer returns a Scorer. A nil logger discards diagnostics.
func NewScorer(logger *zap.Logger, opts ...Option) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scorer{
		logger:          logger,
		overrideSources: map[models.Source]bool{models.SourcePhotoItem: true},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UseWholeFoodCurve reports whether sc belongs on the whole-food curve given
// its kind. Photo-detected generic matches are usually recognised produce
// that simply lacks packaging metadata.
func (s *Scorer) UseWholeFoodCurve(kind models.FoodKind, in models.FoodClassificationInput) bool {
	if kind == models.KindWholeFood {
		return true
	}
	return kind == models.KindAmbiguous && in.GenericSlug != "" && s.overrideSources[in.Source]
}

// ScoreV2 returns the dual-curve score in [0,100].
func (s *Scorer) ScoreV2(sc models.ScoreContext) int {
	score, _, _ := s.scoreV2(sc)
	return score
}

func (s *Scorer) scoreV2(sc models.ScoreContext) (int, models.FoodKind, Curve) {
	kind := classify.Classify(sc.Input)
	useWhole := s.UseWholeFoodCurve(kind, sc.Input)

	s.logger.Debug("score.v2.inputs",
		zap.String("name", sc.Input.Name),
		zap.String("source", string(sc.Input.Source)),
		zap.String("generic_slug", sc.Input.GenericSlug),
		zap.String("kind", string(kind)),
		zap.Any("nutrients", sc.Nutrients),
	)

	var (
		score int
		curve Curve
	)
	if useWhole {
		score, curve = WholeFood(sc.Nutrients), CurveWholeFood
	} else {
		score, curve = Packaged(sc.Nutrients), CurvePackaged
	}

	s.logger.Info("score.v2.value",
		zap.String("name", sc.Input.Name),
		zap.String("curve", string(curve)),
		zap.Int("score", score),
	)
	return score, kind, curve
}

// Score returns the 0–10 score shown by older clients. With the V2 flag set it
// is the dual-curve score divided by ten; otherwise the legacy heuristic.
func (s *Scorer) Score(sc models.ScoreContext, flags config.Flags) float64 {
	return s.Evaluate(sc, flags).Score10
}

// Evaluate scores sc on the path selected by flags and fills in the display
// extras (stars and health flags).
func (s *Scorer) Evaluate(sc models.ScoreContext, flags config.Flags) Result {
	var res Result
	if flags.HealthScoreV2 {
		score, kind, curve := s.scoreV2(sc)
		res = Result{
			Kind:     kind,
			Curve:    curve,
			Score100: score,
			Score10:  round1(float64(score) / 10),
		}
	} else {
		// the 0-100 form follows the clamped 0-10 score so stars agree with it
		ten := legacyTen(legacyHundred(sc))
		res = Result{
			Kind:     classify.Classify(sc.Input),
			Curve:    CurveLegacy,
			Score100: int(math.Round(ten * 10)),
			Score10:  ten,
		}
		s.logger.Info("score.legacy.value",
			zap.String("name", sc.Input.Name),
			zap.Float64("score", res.Score10),
		)
	}
	res.Stars = Stars(res.Score100)
	res.Flags = Flags(sc.Input.Ingredients, sc.Nutrients)
	return res
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
