package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "scdash/internal/errors"
)

// ModelVersion is the artifact format written by SaveModel.
const ModelVersion = 1

// Model is the persisted forecasting artifact.
type Model struct {
	Version   int             `json:"version"`
	Target    string          `json:"target"`
	Features  []string        `json:"features"`
	Scaler    *StandardScaler `json:"scaler"`
	Network   *Network        `json:"network"`
	History   History         `json:"history"`
	TrainedAt time.Time       `json:"trained_at"`
}

// SaveModel writes m to path as JSON, replacing any previous artifact.
func SaveModel(path string, m *Model) error {
	data, err := json.Marshal(m)
	if err != nil {
		return apperrors.NewIOError("cannot encode model", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.NewIOError(fmt.Sprintf("cannot create model directory %s", dir), err)
	}

	tmp, err := os.CreateTemp(dir, ".model-*.json")
	if err != nil {
		return apperrors.NewIOError("cannot create model file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.NewIOError("cannot write model file", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewIOError("cannot write model file", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return apperrors.NewIOError(fmt.Sprintf("cannot replace model %s", path), err)
	}
	return nil
}

// LoadModel reads a model saved by SaveModel. A missing file is a
// NOT_FOUND error.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NewNotFoundError("trained model").WithContext("path", path)
	}
	if err != nil {
		return nil, apperrors.NewIOError(fmt.Sprintf("cannot read model %s", path), err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperrors.NewIOError(fmt.Sprintf("model %s is corrupt", path), err)
	}
	if m.Network == nil || m.Network.Inputs() != len(m.Features) {
		return nil, apperrors.NewIOError(fmt.Sprintf("model %s does not match its feature list", path), nil)
	}
	return &m, nil
}

// CheckFeatures reports a schema error when features differ from the
// columns the model was trained on.
func (m *Model) CheckFeatures(features []string) error {
	if len(features) == len(m.Features) {
		same := true
		for i := range features {
			if features[i] != m.Features[i] {
				same = false
				break
			}
		}
		if same {
			return nil
		}
	}
	return apperrors.NewSchemaError(
		fmt.Sprintf("model was trained on features [%s], data has [%s]",
			strings.Join(m.Features, ", "), strings.Join(features, ", ")), nil).
		WithContext("retrain", true)
}

// Predict runs the network on one already scaled sample.
func (m *Model) Predict(scaled []float64) float64 {
	return m.Network.Predict(scaled)
}
