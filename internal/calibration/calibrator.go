// Package calibration fits per-content-type decision parameters from
// human-labeled gold examples. Fitting runs out-of-band, never on the
// decision hot path.
package calibration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"curator/internal/models"
	"curator/internal/store"
)

const (
	// DefaultMinGoldSize is the smallest gold set a fit will accept per type.
	DefaultMinGoldSize = 20
	// lengthFeature is the reserved feature name for normalized text length.
	lengthFeature = "_length"
	// lengthScale normalizes text length into roughly [0,1].
	lengthScale = 5000.0
)

// FeatureSpec selects which DimensionScore fields (plus content length) feed
// the fit. The aggregator evaluates the resulting model over the same spec.
type FeatureSpec struct {
	Dimensions    []string `mapstructure:"dimensions"`
	IncludeLength bool     `mapstructure:"include_length"`
}

// Calibrator fits a logistic decision boundary per content type with plain
// batch gradient descent. Deterministic for a fixed gold set.
type Calibrator struct {
	MinGoldSize  int
	HoldoutEvery int // every n-th example (by sorted item id) is held out
	LearningRate float64
	Epochs       int
}

// NewCalibrator returns a calibrator with working defaults.
func NewCalibrator(minGoldSize int) *Calibrator {
	if minGoldSize <= 0 {
		minGoldSize = DefaultMinGoldSize
	}
	return &Calibrator{
		MinGoldSize:  minGoldSize,
		HoldoutEvery: 4,
		LearningRate: 0.5,
		Epochs:       500,
	}
}

// Fit trains a model for one content type. Returns ErrCalibrationRefused when
// the gold set is below the minimum; the caller keeps the previous model
// active in that case.
func (c *Calibrator) Fit(contentType string, examples []models.GoldExample, spec FeatureSpec, prevVersion int) (*models.CalibrationModel, error) {
	if len(examples) < c.MinGoldSize {
		return nil, fmt.Errorf("%w: %d gold examples for %q, need at least %d",
			models.ErrCalibrationRefused, len(examples), contentType, c.MinGoldSize)
	}
	if len(spec.Dimensions) == 0 && !spec.IncludeLength {
		return nil, fmt.Errorf("%w: empty feature spec", models.ErrCalibrationRefused)
	}

	featureNames := c.featureNames(spec)

	// Deterministic split: order by item id and hold out every n-th example.
	ordered := make([]models.GoldExample, len(examples))
	copy(ordered, examples)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ItemID < ordered[j].ItemID })

	var train, holdout []models.GoldExample
	for i, ex := range ordered {
		if c.HoldoutEvery > 1 && (i+1)%c.HoldoutEvery == 0 {
			holdout = append(holdout, ex)
		} else {
			train = append(train, ex)
		}
	}
	if len(holdout) == 0 {
		holdout = train
	}

	weights, bias := c.descend(train, featureNames)

	model := &models.CalibrationModel{
		ID:          uuid.New(),
		ContentType: contentType,
		Version:     prevVersion + 1,
		Weights:     weights,
		Bias:        bias,
		GoldSize:    len(examples),
		CreatedAt:   time.Now().UTC(),
	}
	model.Precision, model.Recall, model.F1 = evaluate(model, holdout)
	return model, nil
}

func (c *Calibrator) featureNames(spec FeatureSpec) []string {
	names := make([]string, 0, len(spec.Dimensions)+1)
	names = append(names, spec.Dimensions...)
	sort.Strings(names)
	if spec.IncludeLength {
		names = append(names, lengthFeature)
	}
	return names
}

// descend runs batch gradient descent on the logistic loss.
func (c *Calibrator) descend(train []models.GoldExample, featureNames []string) (map[string]float64, float64) {
	weights := make(map[string]float64, len(featureNames))
	var bias float64

	n := float64(len(train))
	for epoch := 0; epoch < c.Epochs; epoch++ {
		grad := make(map[string]float64, len(featureNames))
		var gradBias float64
		for _, ex := range train {
			z := bias
			for _, name := range featureNames {
				z += weights[name] * featureValue(name, ex.Scores, ex.TextLength)
			}
			p := sigmoid(z)
			y := 0.0
			if ex.Keep {
				y = 1.0
			}
			diff := p - y
			for _, name := range featureNames {
				grad[name] += diff * featureValue(name, ex.Scores, ex.TextLength)
			}
			gradBias += diff
		}
		for _, name := range featureNames {
			weights[name] -= c.LearningRate * grad[name] / n
		}
		bias -= c.LearningRate * gradBias / n
	}
	return weights, bias
}

// Probability evaluates a fitted model into an accept probability. Used by
// the aggregator as the calibrated weighted score.
func Probability(model *models.CalibrationModel, scores models.DimensionScore, textLength int) float64 {
	z := model.Bias
	for name, w := range model.Weights {
		z += w * featureValue(name, scores, textLength)
	}
	return sigmoid(z)
}

func featureValue(name string, scores models.DimensionScore, textLength int) float64 {
	if name == lengthFeature {
		v := float64(textLength) / lengthScale
		if v > 1 {
			v = 1
		}
		return v
	}
	return scores[name]
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// evaluate reports precision/recall/F1 of the keep class on a labeled set.
func evaluate(model *models.CalibrationModel, set []models.GoldExample) (precision, recall, f1 float64) {
	var tp, fp, fn float64
	for _, ex := range set {
		predicted := Probability(model, ex.Scores, ex.TextLength) >= 0.5
		switch {
		case predicted && ex.Keep:
			tp++
		case predicted && !ex.Keep:
			fp++
		case !predicted && ex.Keep:
			fn++
		}
	}
	if tp+fp > 0 {
		precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		recall = tp / (tp + fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}

// RunFit loads the gold set for a content type, fits a new model version,
// and publishes it atomically through the calibration store. A refused fit
// is logged as a warning and leaves the previous model active.
func RunFit(ctx context.Context, gold store.GoldStore, calib store.CalibrationStore, calibrator *Calibrator, contentType string, spec FeatureSpec) (*models.CalibrationModel, error) {
	examples, err := gold.ListGoldExamples(ctx, contentType)
	if err != nil {
		return nil, fmt.Errorf("list gold examples for %q: %w", contentType, err)
	}

	prevVersion := 0
	prev, err := calib.LatestCalibrationModel(ctx, contentType)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load latest calibration model for %q: %w", contentType, err)
	}
	if prev != nil {
		prevVersion = prev.Version
	}

	deref := make([]models.GoldExample, len(examples))
	for i, ex := range examples {
		deref[i] = *ex
	}

	model, err := calibrator.Fit(contentType, deref, spec, prevVersion)
	if err != nil {
		if errors.Is(err, models.ErrCalibrationRefused) {
			log.Warnf("calibration: fit refused for %q: %v", contentType, err)
		}
		return nil, err
	}

	if err := calib.SaveCalibrationModel(ctx, model); err != nil {
		return nil, fmt.Errorf("save calibration model v%d for %q: %w", model.Version, contentType, err)
	}
	log.Infof("calibration: published model v%d for %q (gold=%d, precision=%.3f, recall=%.3f, f1=%.3f)",
		model.Version, contentType, model.GoldSize, model.Precision, model.Recall, model.F1)
	return model, nil
}
