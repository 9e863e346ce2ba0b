package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scdash/internal/config"
	"scdash/internal/dataprocessing"
	apperrors "scdash/internal/errors"
	"scdash/internal/infrastructure"
)

// Pair is one test sample's actual and predicted target.
type Pair struct {
	Actual    float64 `json:"actual"`
	Predicted float64 `json:"predicted"`
}

// Report is the outcome of one forecast run.
type Report struct {
	Target       string          `json:"target"`
	Features     []string        `json:"features"`
	FeatureMeans []float64       `json:"feature_means"`
	Trained      bool            `json:"trained"`
	TrainSize    int             `json:"train_size"`
	TestSize     int             `json:"test_size"`
	MSE          float64         `json:"mse"`
	History      History         `json:"history"`
	Pairs        []Pair          `json:"pairs"`
	Scaler       *StandardScaler `json:"-"`
	Model        *Model          `json:"-"`
}

// Predict scales one value per feature with the run's scaler and returns
// the model prediction.
func (r *Report) Predict(values []float64) (float64, error) {
	if len(values) != len(r.Features) {
		return 0, apperrors.NewAppValidationError(
			fmt.Sprintf("expected %d feature values, got %d", len(r.Features), len(values)))
	}
	return r.Model.Predict(r.Scaler.TransformRow(values)), nil
}

// RunOptions selects between retraining and reusing the saved model.
type RunOptions struct {
	Train bool
}

// Forecaster prepares uploaded data, trains or loads the model and
// evaluates it on the held-out split.
type Forecaster struct {
	cfg       config.ForecastConfig
	modelPath string
	metrics   *infrastructure.PipelineMetrics
	logger    *slog.Logger
}

// NewForecaster creates a forecaster persisting its model at modelPath.
// metrics may be nil.
func NewForecaster(cfg config.ForecastConfig, modelPath string, metrics *infrastructure.PipelineMetrics, logger *slog.Logger) *Forecaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forecaster{
		cfg:       cfg,
		modelPath: modelPath,
		metrics:   metrics,
		logger:    logger.With(slog.String("component", "forecaster")),
	}
}

// ModelPath returns where the model artifact lives.
func (f *Forecaster) ModelPath() string { return f.modelPath }

func (f *Forecaster) trainOptions() TrainOptions {
	opts := DefaultTrainOptions()
	if f.cfg.Epochs > 0 {
		opts.Epochs = f.cfg.Epochs
	}
	if f.cfg.BatchSize > 0 {
		opts.BatchSize = f.cfg.BatchSize
	}
	if f.cfg.LearningRate > 0 {
		opts.LearningRate = f.cfg.LearningRate
	}
	if len(f.cfg.HiddenLayers) > 0 {
		opts.Hidden = f.cfg.HiddenLayers
	}
	opts.ValidationSplit = f.cfg.ValidationSplit
	opts.Seed = f.cfg.Seed
	return opts
}

// Run executes one forecast over t. With opts.Train a new model is fitted
// and saved; otherwise the saved model is loaded and must match the data's
// features.
func (f *Forecaster) Run(ctx context.Context, t *dataprocessing.Table, opts RunOptions) (*Report, error) {
	ds, err := Prepare(t, f.cfg.Target)
	if err != nil {
		return nil, err
	}
	if ds.Len() < 2 {
		return nil, apperrors.NewSchemaError("forecasting needs at least two complete rows", nil)
	}

	train, test := Split(ds.Len(), f.cfg.TestSize, f.cfg.Seed)
	scaler := FitScaler(ds.Rows(train))

	report := &Report{
		Target:       ds.Target,
		Features:     ds.Features,
		FeatureMeans: ds.FeatureMeans(),
		Trained:      opts.Train,
		TrainSize:    len(train),
		TestSize:     len(test),
		Scaler:       scaler,
	}

	var model *Model
	if opts.Train {
		model, err = f.train(ctx, ds, train, scaler)
		f.metrics.RecordTraining(ctx, err)
		if err != nil {
			return nil, err
		}
	} else {
		model, err = LoadModel(f.modelPath)
		if err != nil {
			return nil, err
		}
		if err := model.CheckFeatures(ds.Features); err != nil {
			return nil, err
		}
		f.logger.InfoContext(ctx, "loaded trained model", slog.String("path", f.modelPath))
	}
	report.Model = model
	report.History = model.History

	actual := ds.Targets(test)
	mse, preds := Evaluate(model.Network, scaler.Transform(ds.Rows(test)), actual)
	report.MSE = mse
	report.Pairs = make([]Pair, len(actual))
	for i := range actual {
		report.Pairs[i] = Pair{Actual: actual[i], Predicted: preds[i]}
	}

	f.logger.InfoContext(ctx, "forecast evaluated",
		slog.Int("test_rows", len(test)),
		slog.Float64("mse", mse))
	return report, nil
}

func (f *Forecaster) train(ctx context.Context, ds *Dataset, idx []int, scaler *StandardScaler) (*Model, error) {
	start := time.Now()
	opts := f.trainOptions()

	net, history, err := Train(ctx, scaler.Transform(ds.Rows(idx)), ds.Targets(idx), opts)
	if err != nil {
		return nil, err
	}

	m := &Model{
		Version:   ModelVersion,
		Target:    ds.Target,
		Features:  ds.Features,
		Scaler:    scaler,
		Network:   net,
		History:   history,
		TrainedAt: time.Now().UTC(),
	}
	if err := SaveModel(f.modelPath, m); err != nil {
		return nil, err
	}

	attrs := []any{
		slog.Int("epochs", opts.Epochs),
		slog.Int("samples", len(idx)),
		slog.Duration("duration", time.Since(start)),
	}
	if n := len(history.Loss); n > 0 {
		attrs = append(attrs, slog.Float64("final_loss", history.Loss[n-1]))
	}
	f.logger.InfoContext(ctx, "model trained", attrs...)
	return m, nil
}
