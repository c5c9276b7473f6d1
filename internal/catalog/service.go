// Package catalog covers the ordinary work lifecycle around the consistency core:
// creation, lookup, deletion, thumbnails, profiles, search and comments.
package catalog

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidshare/backend/internal/logging"
	"github.com/vidshare/backend/internal/metrics"
	"github.com/vidshare/backend/internal/models"
)

const component = "catalog"

// Limits on user supplied text.
const (
	MaxTitleLength   = 200
	MaxCommentLength = 2000
	DefaultSearchCap = 50
)

// Store is the persistence the catalog needs.
type Store interface {
	CreateWork(ctx context.Context, work models.Work) error
	GetWork(ctx context.Context, id string) (models.Work, error)
	DeleteWork(ctx context.Context, id string) error
	SetWorkThumbnail(ctx context.Context, id, thumbnail string) error
	ListWorksByOwner(ctx context.Context, ownerID string) ([]models.Work, error)
	SearchWorks(ctx context.Context, query string, limit int) ([]models.Work, error)
	CreateComment(ctx context.Context, comment models.Comment) error
	ListComments(ctx context.Context, workID string) ([]models.Comment, error)
}

// CreateInput describes a new work. MediaRef must already point at stored media.
type CreateInput struct {
	Title       string
	Description string
	MediaRef    string
	Thumbnail   string
}

// Profile groups an owner's works by moderation status.
type Profile struct {
	Pending  []models.Work `json:"pending"`
	Approved []models.Work `json:"approved"`
	Rejected []models.Work `json:"rejected"`
}

// Service exposes catalog operations.
type Service struct {
	store   Store
	metrics *metrics.Recorder
	now     func() time.Time
}

// NewService constructs a catalog service.
func NewService(store Store, recorder *metrics.Recorder) *Service {
	return &Service{
		store:   store,
		metrics: recorder,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new pending work owned by the caller.
func (s *Service) Create(ctx context.Context, caller models.Caller, in CreateInput) (work models.Work, err error) {
	ctx, span := logging.StartSpan(ctx, "catalog.create")
	defer func() {
		span.RecordError(err)
		span.End()
		s.metrics.Observe(component, "create", err)
	}()

	title := strings.TrimSpace(in.Title)
	if title == "" || len(title) > MaxTitleLength || strings.TrimSpace(in.MediaRef) == "" {
		return models.Work{}, models.ErrInvalidInput
	}

	work = models.Work{
		ID:            uuid.NewString(),
		OwnerID:       caller.AccountID,
		Title:         title,
		Description:   strings.TrimSpace(in.Description),
		MediaRef:      in.MediaRef,
		Thumbnail:     in.Thumbnail,
		Status:        models.StatusPending,
		TripleMembers: models.NewMemberSet(),
		CreatedAt:     s.now(),
	}
	if err := s.store.CreateWork(ctx, work); err != nil {
		return models.Work{}, err
	}

	logging.FromContext(ctx).Info("work submitted",
		slog.String("work_id", work.ID),
		slog.String("owner_id", caller.AccountID),
	)
	return work, nil
}

// Get loads a work. Works that are not approved are only visible to their owner
// and to privileged callers; everyone else gets models.ErrNotFound.
func (s *Service) Get(ctx context.Context, caller models.Caller, workID string) (models.Work, error) {
	work, err := s.store.GetWork(ctx, workID)
	if err != nil {
		return models.Work{}, err
	}
	if work.Status != models.StatusApproved && !canManage(caller, work) {
		return models.Work{}, models.ErrNotFound
	}
	return work, nil
}

// Delete removes a work with its comments and annotations. Only the owner or a
// privileged caller may delete.
func (s *Service) Delete(ctx context.Context, caller models.Caller, workID string) (err error) {
	ctx, span := logging.StartSpan(ctx, "catalog.delete")
	defer func() {
		span.RecordError(err)
		span.End()
		s.metrics.Observe(component, "delete", err)
	}()

	work, err := s.store.GetWork(ctx, workID)
	if err != nil {
		return err
	}
	if !canManage(caller, work) {
		return models.ErrNotAuthorized
	}
	return s.store.DeleteWork(ctx, workID)
}

// SetThumbnail replaces the thumbnail reference of a work owned by the caller.
func (s *Service) SetThumbnail(ctx context.Context, caller models.Caller, workID, thumbnail string) error {
	work, err := s.store.GetWork(ctx, workID)
	if err != nil {
		return err
	}
	if work.OwnerID != caller.AccountID {
		return models.ErrNotAuthorized
	}
	if strings.TrimSpace(thumbnail) == "" {
		return models.ErrInvalidInput
	}
	return s.store.SetWorkThumbnail(ctx, workID, thumbnail)
}

// Profile lists ownerID's works grouped by status, newest first.
func (s *Service) Profile(ctx context.Context, ownerID string) (Profile, error) {
	works, err := s.store.ListWorksByOwner(ctx, ownerID)
	if err != nil {
		return Profile{}, err
	}

	profile := Profile{
		Pending:  []models.Work{},
		Approved: []models.Work{},
		Rejected: []models.Work{},
	}
	for _, w := range works {
		switch w.Status {
		case models.StatusPending:
			profile.Pending = append(profile.Pending, w)
		case models.StatusApproved:
			profile.Approved = append(profile.Approved, w)
		case models.StatusRejected:
			profile.Rejected = append(profile.Rejected, w)
		}
	}
	return profile, nil
}

// Search matches approved works by title. An empty query returns nothing.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]models.Work, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Work{}, nil
	}
	if limit <= 0 || limit > DefaultSearchCap {
		limit = DefaultSearchCap
	}
	return s.store.SearchWorks(ctx, query, limit)
}

// Comment adds the caller's comment to a visible work.
func (s *Service) Comment(ctx context.Context, caller models.Caller, workID, content string) (comment models.Comment, err error) {
	defer func() { s.metrics.Observe(component, "comment", err) }()

	content = strings.TrimSpace(content)
	if content == "" || len(content) > MaxCommentLength {
		return models.Comment{}, models.ErrInvalidInput
	}
	if _, err := s.Get(ctx, caller, workID); err != nil {
		return models.Comment{}, err
	}

	comment = models.Comment{
		ID:        uuid.NewString(),
		WorkID:    workID,
		AuthorID:  caller.AccountID,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

// Comments lists the comments on workID, newest first.
func (s *Service) Comments(ctx context.Context, caller models.Caller, workID string) ([]models.Comment, error) {
	if _, err := s.Get(ctx, caller, workID); err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, workID)
}

func canManage(caller models.Caller, work models.Work) bool {
	return caller.Privileged || (caller.AccountID != "" && caller.AccountID == work.OwnerID)
}
