// Package timeline stores overlay annotations shown at an offset during playback.
package timeline

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidshare/backend/internal/metrics"
	"github.com/vidshare/backend/internal/models"
)

const component = "timeline"

// Defaults applied to annotations that omit presentation fields.
const (
	DefaultStyle = "scroll"
	DefaultColor = "#ffffff"
)

// Store appends annotations and lists them ordered by offset, then insertion.
type Store interface {
	AppendAnnotation(ctx context.Context, annotation models.Annotation) (models.Annotation, error)
	ListAnnotations(ctx context.Context, workID string) ([]models.Annotation, error)
}

// AppendInput describes a new annotation.
type AppendInput struct {
	WorkID  string
	Content string
	Offset  float64
	Style   string
	Color   string
}

// Service exposes annotation operations.
type Service struct {
	store   Store
	metrics *metrics.Recorder
	now     func() time.Time
}

// NewService constructs a timeline service.
func NewService(store Store, recorder *metrics.Recorder) *Service {
	return &Service{
		store:   store,
		metrics: recorder,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Append stores a new annotation authored by the caller.
func (s *Service) Append(ctx context.Context, caller models.Caller, in AppendInput) (annotation models.Annotation, err error) {
	defer func() { s.metrics.Observe(component, "append", err) }()

	content := strings.TrimSpace(in.Content)
	if content == "" || in.Offset < 0 || math.IsNaN(in.Offset) || math.IsInf(in.Offset, 0) {
		return models.Annotation{}, models.ErrInvalidOffset
	}

	style := in.Style
	if style == "" {
		style = DefaultStyle
	}
	color := in.Color
	if color == "" {
		color = DefaultColor
	}

	return s.store.AppendAnnotation(ctx, models.Annotation{
		ID:        uuid.NewString(),
		WorkID:    in.WorkID,
		AuthorID:  caller.AccountID,
		Content:   content,
		Offset:    in.Offset,
		Style:     style,
		Color:     color,
		CreatedAt: s.now(),
	})
}

// List returns the annotations of workID in playback order.
func (s *Service) List(ctx context.Context, workID string) ([]models.Annotation, error) {
	return s.store.ListAnnotations(ctx, workID)
}
