package forecast

import (
	"context"
	"math"
	"math/rand"

	apperrors "scdash/internal/errors"
)

// TrainOptions are the network hyperparameters.
type TrainOptions struct {
	Hidden          []int
	Epochs          int
	BatchSize       int
	LearningRate    float64
	ValidationSplit float64
	Seed            int64
}

// DefaultTrainOptions matches the reference demand model.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Hidden:          []int{128, 64, 32},
		Epochs:          50,
		BatchSize:       32,
		LearningRate:    0.001,
		ValidationSplit: 0.2,
		Seed:            42,
	}
}

// History is the per-epoch training and validation loss (MSE).
type History struct {
	Loss    []float64 `json:"loss"`
	ValLoss []float64 `json:"val_loss,omitempty"`
}

// Train fits a new network to scaled features X and targets y. The last
// ValidationSplit fraction of the samples is held out and scored after
// every epoch; the rest is shuffled each epoch and fed in mini-batches.
// Training always runs the full number of epochs unless ctx is cancelled.
func Train(ctx context.Context, X [][]float64, y []float64, opts TrainOptions) (*Network, History, error) {
	var history History
	if len(X) == 0 || len(X) != len(y) {
		return nil, history, apperrors.NewComputationError("training set is empty or misaligned", nil)
	}
	if opts.Epochs <= 0 || opts.BatchSize <= 0 {
		return nil, history, apperrors.NewConfigError("epochs and batch size must be positive", nil)
	}

	nFit := int(math.Floor(float64(len(X)) * (1 - opts.ValidationSplit)))
	if nFit < 1 {
		nFit = 1
	}
	fitX, fitY := X[:nFit], y[:nFit]
	valX, valY := X[nFit:], y[nFit:]

	rng := rand.New(rand.NewSource(opts.Seed))
	net := NewNetwork(len(X[0]), opts.Hidden, rng)
	opt := newAdam(net, opts.LearningRate)
	grads := newGradients(net)

	order := make([]int, nFit)
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, history, err
		}

		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var sum float64
		for start := 0; start < nFit; start += opts.BatchSize {
			end := start + opts.BatchSize
			if end > nFit {
				end = nFit
			}

			grads.zero()
			for _, k := range order[start:end] {
				sum += net.accumulate(fitX[k], fitY[k], grads)
			}
			opt.step(net, grads, 1/float64(end-start))
		}

		history.Loss = append(history.Loss, sum/float64(nFit))
		if len(valX) > 0 {
			mse, _ := Evaluate(net, valX, valY)
			history.ValLoss = append(history.ValLoss, mse)
		}
	}

	return net, history, nil
}

// Evaluate returns the mean squared error of net on X, y and the predictions.
func Evaluate(net *Network, X [][]float64, y []float64) (float64, []float64) {
	preds := make([]float64, len(X))
	if len(X) == 0 {
		return 0, preds
	}
	var sum float64
	for i, x := range X {
		preds[i] = net.Predict(x)
		d := preds[i] - y[i]
		sum += d * d
	}
	return sum / float64(len(X)), preds
}
