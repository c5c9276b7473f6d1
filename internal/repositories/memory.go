package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vidshare/backend/internal/models"
)

// MemoryStore implements every store contract in process for tests and local development.
// Each mutation holds the per-record locks of the records it touches, and writes of
// multi-record mutations are published under a single map lock so no partial state is
// ever observable.
type MemoryStore struct {
	records keyedLocker

	mu          sync.RWMutex
	accounts    map[string]models.Account
	works       map[string]models.Work
	comments    map[string]models.Comment
	annotations map[string][]models.Annotation
	follows     map[string]models.FollowEdge
	seq         int64

	now func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:    make(map[string]models.Account),
		works:       make(map[string]models.Work),
		comments:    make(map[string]models.Comment),
		annotations: make(map[string][]models.Annotation),
		follows:     make(map[string]models.FollowEdge),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithNowFunc overrides the time source. Useful for tests.
func (s *MemoryStore) WithNowFunc(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) account(id string) (models.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	return a, ok
}

func (s *MemoryStore) work(id string) (models.Work, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.works[id]
	if ok {
		w.TripleMembers = w.TripleMembers.Clone()
	}
	return w, ok
}

// Accounts

// CreateAccount stores a new account, enforcing handle and email uniqueness.
func (s *MemoryStore) CreateAccount(_ context.Context, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if existing.ID == account.ID || strings.EqualFold(existing.Handle, account.Handle) || strings.EqualFold(existing.Email, account.Email) {
			return models.ErrDuplicate
		}
	}
	s.accounts[account.ID] = account
	return nil
}

// GetAccount loads an account by id.
func (s *MemoryStore) GetAccount(_ context.Context, id string) (models.Account, error) {
	a, ok := s.account(id)
	if !ok {
		return models.Account{}, models.ErrNotFound
	}
	return a, nil
}

// FindAccountByEmail loads an account by email address.
func (s *MemoryStore) FindAccountByEmail(_ context.Context, email string) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			return a, nil
		}
	}
	return models.Account{}, models.ErrNotFound
}

// FindAccountByHandle loads an account by handle.
func (s *MemoryStore) FindAccountByHandle(_ context.Context, handle string) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Handle, handle) {
			return a, nil
		}
	}
	return models.Account{}, models.ErrNotFound
}

// ListAccounts returns all accounts, oldest first.
func (s *MemoryStore) ListAccounts(_ context.Context) ([]models.Account, error) {
	s.mu.RLock()
	out := make([]models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateAccountProfile rewrites handle, email and active flag.
func (s *MemoryStore) UpdateAccountProfile(_ context.Context, id, handle, email string, active bool) error {
	unlock := s.records.Lock(accountKey(id))
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return models.ErrNotFound
	}
	for otherID, other := range s.accounts {
		if otherID == id {
			continue
		}
		if strings.EqualFold(other.Handle, handle) || strings.EqualFold(other.Email, email) {
			return models.ErrDuplicate
		}
	}
	a.Handle = handle
	a.Email = email
	a.Active = active
	a.UpdatedAt = s.now()
	s.accounts[id] = a
	return nil
}

// SetAccountPassword replaces the stored credential hash and records who chose it.
func (s *MemoryStore) SetAccountPassword(_ context.Context, id, hash string, changed bool) error {
	return s.mutateAccount(id, func(a *models.Account) error {
		a.Password = hash
		a.PasswordChanged = changed
		return nil
	})
}

// SetAccountAvatar stores the avatar reference.
func (s *MemoryStore) SetAccountAvatar(_ context.Context, id, avatar string) error {
	return s.mutateAccount(id, func(a *models.Account) error {
		a.Avatar = avatar
		return nil
	})
}

// SetAccountActive toggles the active flag.
func (s *MemoryStore) SetAccountActive(_ context.Context, id string, active bool) error {
	return s.mutateAccount(id, func(a *models.Account) error {
		a.Active = active
		return nil
	})
}

func (s *MemoryStore) mutateAccount(id string, fn func(a *models.Account) error) error {
	unlock := s.records.Lock(accountKey(id))
	defer unlock()

	a, ok := s.account(id)
	if !ok {
		return models.ErrNotFound
	}
	if err := fn(&a); err != nil {
		return err
	}
	a.UpdatedAt = s.now()

	s.mu.Lock()
	s.accounts[id] = a
	s.mu.Unlock()
	return nil
}

// Ledger

// Transfer atomically moves amount from one account to another.
func (s *MemoryStore) Transfer(_ context.Context, fromID, toID string, amount int64) (models.TransferResult, error) {
	unlock := s.records.Lock(accountKey(fromID), accountKey(toID))
	defer unlock()

	from, ok := s.account(fromID)
	if !ok {
		return models.TransferResult{}, models.ErrNotFound
	}
	to, ok := s.account(toID)
	if !ok {
		return models.TransferResult{}, models.ErrNotFound
	}
	if from.Balance < amount {
		return models.TransferResult{}, models.ErrInsufficientFunds
	}

	now := s.now()
	from.Balance -= amount
	from.UpdatedAt = now
	to.Balance += amount
	to.UpdatedAt = now

	s.mu.Lock()
	s.accounts[fromID] = from
	s.accounts[toID] = to
	s.mu.Unlock()

	return models.TransferResult{Source: from, Destination: to, Amount: amount}, nil
}

// Grant credits amount once per calendar day and reports whether a credit happened.
func (s *MemoryStore) Grant(_ context.Context, id string, date time.Time, amount int64) (models.Account, bool, error) {
	unlock := s.records.Lock(accountKey(id))
	defer unlock()

	a, ok := s.account(id)
	if !ok {
		return models.Account{}, false, models.ErrNotFound
	}
	day := models.DateOf(date)
	if a.LastGrantDate != nil && models.SameDate(*a.LastGrantDate, day) {
		return a, false, nil
	}

	a.Balance += amount
	a.LastGrantDate = &day
	a.UpdatedAt = s.now()

	s.mu.Lock()
	s.accounts[id] = a
	s.mu.Unlock()
	return a, true, nil
}

// Works

// CreateWork stores a new work. The owner must exist.
func (s *MemoryStore) CreateWork(_ context.Context, work models.Work) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[work.OwnerID]; !ok {
		return models.ErrNotFound
	}
	if _, ok := s.works[work.ID]; ok {
		return models.ErrDuplicate
	}
	if work.TripleMembers == nil {
		work.TripleMembers = models.MemberSet{}
	} else {
		work.TripleMembers = work.TripleMembers.Clone()
	}
	s.works[work.ID] = work
	return nil
}

// GetWork loads a work by id.
func (s *MemoryStore) GetWork(_ context.Context, id string) (models.Work, error) {
	w, ok := s.work(id)
	if !ok {
		return models.Work{}, models.ErrNotFound
	}
	return w, nil
}

// ListWorksByStatus returns works in status, newest first. limit <= 0 means unlimited.
func (s *MemoryStore) ListWorksByStatus(_ context.Context, status models.WorkStatus, limit int) ([]models.Work, error) {
	return s.filterWorks(limit, func(w models.Work) bool { return w.Status == status }), nil
}

// ListWorksByOwner returns every work owned by ownerID, newest first.
func (s *MemoryStore) ListWorksByOwner(_ context.Context, ownerID string) ([]models.Work, error) {
	return s.filterWorks(0, func(w models.Work) bool { return w.OwnerID == ownerID }), nil
}

// SearchWorks matches approved works whose title contains query.
func (s *MemoryStore) SearchWorks(_ context.Context, query string, limit int) ([]models.Work, error) {
	needle := strings.ToLower(query)
	return s.filterWorks(limit, func(w models.Work) bool {
		return w.Status == models.StatusApproved && strings.Contains(strings.ToLower(w.Title), needle)
	}), nil
}

func (s *MemoryStore) filterWorks(limit int, keep func(models.Work) bool) []models.Work {
	s.mu.RLock()
	var out []models.Work
	for _, w := range s.works {
		if keep(w) {
			w.TripleMembers = w.TripleMembers.Clone()
			out = append(out, w)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// DeleteWork removes a work together with its comments and annotations.
func (s *MemoryStore) DeleteWork(_ context.Context, id string) error {
	unlock := s.records.Lock(workKey(id))
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.works[id]; !ok {
		return models.ErrNotFound
	}
	delete(s.works, id)
	delete(s.annotations, id)
	for cid, c := range s.comments {
		if c.WorkID == id {
			delete(s.comments, cid)
		}
	}
	return nil
}

// SetWorkThumbnail replaces the thumbnail reference.
func (s *MemoryStore) SetWorkThumbnail(_ context.Context, id, thumbnail string) error {
	_, err := s.mutateWork(id, func(w *models.Work) error {
		w.Thumbnail = thumbnail
		return nil
	})
	return err
}

// ReviewWork applies a moderation transition after re-checking the moderator's role.
func (s *MemoryStore) ReviewWork(_ context.Context, workID, moderatorID string, status models.WorkStatus, note string, at time.Time) (models.Work, error) {
	moderator, ok := s.account(moderatorID)
	if !ok || !moderator.Privileged || !moderator.Active {
		return models.Work{}, models.ErrNotAuthorized
	}
	return s.mutateWork(workID, func(w *models.Work) error {
		id := moderatorID
		reviewedAt := at
		w.Status = status
		w.ModerationNote = note
		w.ModeratorID = &id
		w.ModeratedAt = &reviewedAt
		return nil
	})
}

// IncrementViews adds one view and returns the new total.
func (s *MemoryStore) IncrementViews(_ context.Context, workID string) (int64, error) {
	w, err := s.mutateWork(workID, func(w *models.Work) error {
		w.Views++
		return nil
	})
	return w.Views, err
}

// LikeWork adds one like to the work and one received like to its owner.
func (s *MemoryStore) LikeWork(_ context.Context, workID string) (models.LikeResult, error) {
	w, ok := s.work(workID)
	if !ok {
		return models.LikeResult{}, models.ErrNotFound
	}

	unlock := s.records.Lock(workKey(workID), accountKey(w.OwnerID))
	defer unlock()

	w, ok = s.work(workID)
	if !ok {
		return models.LikeResult{}, models.ErrNotFound
	}
	owner, ok := s.account(w.OwnerID)
	if !ok {
		return models.LikeResult{}, models.ErrNotFound
	}

	w.Likes++
	owner.ReceivedLikes++

	s.mu.Lock()
	s.works[workID] = w
	s.accounts[owner.ID] = owner
	s.mu.Unlock()

	return models.LikeResult{WorkID: workID, Likes: w.Likes, OwnerID: owner.ID, OwnerReceivedLikes: owner.ReceivedLikes}, nil
}

// ApplyTriple records actorID's one-time engagement on workID.
func (s *MemoryStore) ApplyTriple(_ context.Context, workID, actorID string) (int64, error) {
	if _, ok := s.account(actorID); !ok {
		return 0, models.ErrNotFound
	}
	w, err := s.mutateWork(workID, func(w *models.Work) error {
		if !w.TripleMembers.Add(actorID) {
			return models.ErrAlreadyApplied
		}
		w.TripleCount++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return w.TripleCount, nil
}

func (s *MemoryStore) mutateWork(id string, fn func(w *models.Work) error) (models.Work, error) {
	unlock := s.records.Lock(workKey(id))
	defer unlock()

	w, ok := s.work(id)
	if !ok {
		return models.Work{}, models.ErrNotFound
	}
	if err := fn(&w); err != nil {
		return models.Work{}, err
	}

	s.mu.Lock()
	s.works[id] = w
	s.mu.Unlock()

	w.TripleMembers = w.TripleMembers.Clone()
	return w, nil
}

// Comments

// CreateComment stores a comment on an existing work.
func (s *MemoryStore) CreateComment(_ context.Context, comment models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.works[comment.WorkID]; !ok {
		return models.ErrNotFound
	}
	if _, ok := s.accounts[comment.AuthorID]; !ok {
		return models.ErrNotFound
	}
	s.comments[comment.ID] = comment
	return nil
}

// ListComments returns comments for workID, newest first.
func (s *MemoryStore) ListComments(_ context.Context, workID string) ([]models.Comment, error) {
	s.mu.RLock()
	var out []models.Comment
	for _, c := range s.comments {
		if c.WorkID == workID {
			out = append(out, c)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Annotations

// AppendAnnotation stores an annotation and assigns its insertion sequence.
func (s *MemoryStore) AppendAnnotation(_ context.Context, annotation models.Annotation) (models.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.works[annotation.WorkID]; !ok {
		return models.Annotation{}, models.ErrNotFound
	}
	if _, ok := s.accounts[annotation.AuthorID]; !ok {
		return models.Annotation{}, models.ErrNotFound
	}
	s.seq++
	annotation.Seq = s.seq
	s.annotations[annotation.WorkID] = append(s.annotations[annotation.WorkID], annotation)
	return annotation, nil
}

// ListAnnotations returns annotations for workID by ascending offset, then insertion order.
func (s *MemoryStore) ListAnnotations(_ context.Context, workID string) ([]models.Annotation, error) {
	s.mu.RLock()
	out := append([]models.Annotation(nil), s.annotations[workID]...)
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Offset == out[j].Offset {
			return out[i].Seq < out[j].Seq
		}
		return out[i].Offset < out[j].Offset
	})
	return out, nil
}

// Follows

// ToggleFollow removes the edge when present, inserts it otherwise, and reports
// whether followerID now follows followedID.
func (s *MemoryStore) ToggleFollow(_ context.Context, followerID, followedID string) (bool, error) {
	if _, ok := s.account(followerID); !ok {
		return false, models.ErrNotFound
	}
	if _, ok := s.account(followedID); !ok {
		return false, models.ErrNotFound
	}

	key := followKey(followerID, followedID)
	unlock := s.records.Lock(key)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.follows[key]; ok {
		delete(s.follows, key)
		return false, nil
	}
	s.follows[key] = models.FollowEdge{FollowerID: followerID, FollowedID: followedID, CreatedAt: s.now()}
	return true, nil
}

// IsFollowing reports whether the edge followerID -> followedID exists.
func (s *MemoryStore) IsFollowing(_ context.Context, followerID, followedID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.follows[followKey(followerID, followedID)]
	return ok, nil
}

// ListFollowing returns the accounts accountID follows.
func (s *MemoryStore) ListFollowing(_ context.Context, accountID string) ([]models.Account, error) {
	return s.projectEdges(func(e models.FollowEdge) (string, bool) {
		return e.FollowedID, e.FollowerID == accountID
	}), nil
}

// ListFollowers returns the accounts following accountID.
func (s *MemoryStore) ListFollowers(_ context.Context, accountID string) ([]models.Account, error) {
	return s.projectEdges(func(e models.FollowEdge) (string, bool) {
		return e.FollowerID, e.FollowedID == accountID
	}), nil
}

func (s *MemoryStore) projectEdges(pick func(models.FollowEdge) (string, bool)) []models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var edges []models.FollowEdge
	for _, e := range s.follows {
		if _, ok := pick(e); ok {
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].CreatedAt.Equal(edges[j].CreatedAt) {
			a, _ := pick(edges[i])
			b, _ := pick(edges[j])
			return a < b
		}
		return edges[i].CreatedAt.After(edges[j].CreatedAt)
	})

	out := make([]models.Account, 0, len(edges))
	for _, e := range edges {
		id, _ := pick(e)
		if a, ok := s.accounts[id]; ok {
			out = append(out, a)
		}
	}
	return out
}
