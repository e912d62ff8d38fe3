package model

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	domainprediction "sprinter/internal/domain/prediction"
)

const (
	speedColumnPrefix   = "SP_"
	weatherColumnPrefix = "Weather_Type_"
	trackColumnPrefix   = "Track_Type_"
)

// Source opens named artifacts.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// FileSource reads artifacts from the local filesystem.
type FileSource struct{}

func (FileSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	return os.Open(name)
}

type Paths struct {
	Model    string
	Features string
	Scaler   string
}

// Pipeline rebuilds the training-time feature row and runs the forest on it.
type Pipeline struct {
	columns []string
	index   map[string]int
	// scaled[i] is the feature index standardised by scaler column i
	scaled []int
	scaler *StandardScaler
	forest *Forest
}

func Load(ctx context.Context, src Source, paths Paths) (*Pipeline, error) {
	if src == nil {
		src = FileSource{}
	}
	var columns []string
	if err := decodeArtifact(ctx, src, paths.Features, &columns); err != nil {
		return nil, err
	}
	var scaler StandardScaler
	if err := decodeArtifact(ctx, src, paths.Scaler, &scaler); err != nil {
		return nil, err
	}
	var forest Forest
	if err := decodeArtifact(ctx, src, paths.Model, &forest); err != nil {
		return nil, err
	}
	return NewPipeline(columns, &scaler, &forest)
}

func NewPipeline(columns []string, scaler *StandardScaler, forest *Forest) (*Pipeline, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: feature column list is empty", ErrInvalidArtifact)
	}
	if scaler == nil || forest == nil {
		return nil, fmt.Errorf("%w: scaler and forest are required", ErrInvalidArtifact)
	}
	index := make(map[string]int, len(columns))
	var speed []int
	for i, col := range columns {
		if _, dup := index[col]; dup {
			return nil, fmt.Errorf("%w: duplicate feature column %q", ErrInvalidArtifact, col)
		}
		index[col] = i
		if strings.HasPrefix(col, speedColumnPrefix) {
			speed = append(speed, i)
		}
	}
	if err := scaler.Validate(); err != nil {
		return nil, err
	}
	if err := forest.Validate(); err != nil {
		return nil, err
	}
	if forest.NFeatures != len(columns) {
		return nil, fmt.Errorf("%w: forest expects %d features, column list has %d", ErrInvalidArtifact, forest.NFeatures, len(columns))
	}
	if len(scaler.Mean) != len(speed) {
		return nil, fmt.Errorf("%w: scaler has %d columns, features have %d %s columns", ErrInvalidArtifact, len(scaler.Mean), len(speed), speedColumnPrefix)
	}

	scaled := speed
	if len(scaler.Columns) > 0 {
		scaled = make([]int, len(scaler.Columns))
		for i, col := range scaler.Columns {
			j, ok := index[col]
			if !ok || !strings.HasPrefix(col, speedColumnPrefix) {
				return nil, fmt.Errorf("%w: scaler column %q is not a %s feature", ErrInvalidArtifact, col, speedColumnPrefix)
			}
			scaled[i] = j
		}
	}

	return &Pipeline{
		columns: append([]string(nil), columns...),
		index:   index,
		scaled:  scaled,
		scaler:  scaler,
		forest:  forest,
	}, nil
}

// Row builds the scaled feature row for input. Unknown weather or track categories
// leave every one-hot column at zero.
func (p *Pipeline) Row(input domainprediction.Input) []float64 {
	row := make([]float64, len(p.columns))
	for _, j := range p.scaled {
		row[j] = input.TodayTime
	}
	if j, ok := p.index[weatherColumnPrefix+input.WeatherType]; ok {
		row[j] = 1
	}
	if j, ok := p.index[trackColumnPrefix+input.TrackType]; ok {
		row[j] = 1
	}
	for i, j := range p.scaled {
		row[j] = p.scaler.Transform(i, row[j])
	}
	return row
}

func (p *Pipeline) Estimate(_ context.Context, input domainprediction.Input) (float64, error) {
	return p.forest.Predict(p.Row(input))
}

func (p *Pipeline) Columns() []string { return append([]string(nil), p.columns...) }

func (p *Pipeline) Trees() int { return len(p.forest.Trees) }

func decodeArtifact(ctx context.Context, src Source, name string, out any) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: artifact path is empty", ErrInvalidArtifact)
	}
	rc, err := src.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("model: open %s: %w", name, err)
	}
	defer rc.Close()
	if err := json.NewDecoder(rc).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrInvalidArtifact, name, err)
	}
	return nil
}

var _ domainprediction.Estimator = (*Pipeline)(nil)
