package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/vidshare/backend/internal/auth"
	"github.com/vidshare/backend/internal/db"
	"github.com/vidshare/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresAccountRepository_CreateFindAndUpdate(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresAccountRepository(testPool)
	account := createTestAccount(t, repo, "alice", 0)

	dup := account
	dup.ID = uuid.NewString()
	dup.Handle = "alice-2"
	if err := repo.CreateAccount(ctx, dup); !errors.Is(err, models.ErrDuplicate) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}

	found, err := repo.FindAccountByEmail(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if found.ID != account.ID {
		t.Fatalf("expected id %s, got %s", account.ID, found.ID)
	}

	if err := repo.UpdateAccountProfile(ctx, account.ID, "alice-renamed", account.Email, false); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	byHandle, err := repo.FindAccountByHandle(ctx, "alice-renamed")
	if err != nil {
		t.Fatalf("find by handle: %v", err)
	}
	if byHandle.Active {
		t.Fatal("expected account to be inactive")
	}

	if err := repo.SetAccountPassword(ctx, uuid.NewString(), "x", true); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := repo.SetAccountPassword(ctx, account.ID, "new-hash", true); err != nil {
		t.Fatalf("set password: %v", err)
	}
	if err := repo.SetAccountAvatar(ctx, account.ID, "media/avatar.png"); err != nil {
		t.Fatalf("set avatar: %v", err)
	}
	stored, err := repo.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if stored.Password != "new-hash" || !stored.PasswordChanged || stored.Avatar != "media/avatar.png" {
		t.Fatalf("unexpected account after updates: %+v", stored)
	}
}

func TestPostgresAccountRepository_UniquenessIgnoresCase(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresAccountRepository(testPool)
	alice := createTestAccount(t, repo, "Alice", 0)

	sameHandle := alice
	sameHandle.ID = uuid.NewString()
	sameHandle.Handle = "alice"
	sameHandle.Email = "other@example.com"
	if err := repo.CreateAccount(ctx, sameHandle); !errors.Is(err, models.ErrDuplicate) {
		t.Fatalf("expected duplicate handle error, got %v", err)
	}

	sameEmail := alice
	sameEmail.ID = uuid.NewString()
	sameEmail.Handle = "someone"
	sameEmail.Email = "ALICE@EXAMPLE.COM"
	if err := repo.CreateAccount(ctx, sameEmail); !errors.Is(err, models.ErrDuplicate) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}

	bob := createTestAccount(t, repo, "bob", 0)
	if err := repo.UpdateAccountProfile(ctx, bob.ID, "ALICE", bob.Email, true); !errors.Is(err, models.ErrDuplicate) {
		t.Fatalf("expected duplicate handle on update, got %v", err)
	}
	if err := repo.UpdateAccountProfile(ctx, bob.ID, "bob", "Alice@Example.com", true); !errors.Is(err, models.ErrDuplicate) {
		t.Fatalf("expected duplicate email on update, got %v", err)
	}
	if err := repo.UpdateAccountProfile(ctx, bob.ID, "Bob", bob.Email, true); err != nil {
		t.Fatalf("recasing one's own handle should succeed: %v", err)
	}
}

func TestPostgresRepositories_MalformedIDsAreNotFound(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	runner := db.NewTxRunner(testPool, 10)
	accounts := NewPostgresAccountRepository(testPool)
	works := NewPostgresWorkRepository(testPool, runner)
	ledger := NewPostgresLedgerRepository(runner)
	follows := NewPostgresFollowRepository(testPool, runner)

	a := createTestAccount(t, accounts, "a", 5)

	if _, err := accounts.GetAccount(ctx, "abc"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("get account: expected not found, got %v", err)
	}
	if _, err := works.GetWork(ctx, "abc"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("get work: expected not found, got %v", err)
	}
	if _, err := ledger.Transfer(ctx, a.ID, "bob", 1); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("transfer: expected not found, got %v", err)
	}
	if _, _, err := ledger.Grant(ctx, "bob", time.Now().UTC(), 1); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("grant: expected not found, got %v", err)
	}
	if _, err := follows.ToggleFollow(ctx, a.ID, "xyz"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("toggle follow: expected not found, got %v", err)
	}
	if _, err := works.ApplyTriple(ctx, "abc", a.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("apply triple: expected not found, got %v", err)
	}
	if _, err := works.ReviewWork(ctx, "abc", a.ID, models.StatusApproved, "", time.Now().UTC()); errors.Is(err, models.ErrStorageFailure) {
		t.Fatalf("review: malformed id reported as storage failure: %v", err)
	}

	comments, err := NewPostgresCommentRepository(testPool).ListComments(ctx, "abc")
	if err != nil || len(comments) != 0 {
		t.Fatalf("comments: %v %v", comments, err)
	}
	owned, err := works.ListWorksByOwner(ctx, "abc")
	if err != nil || len(owned) != 0 {
		t.Fatalf("works by owner: %v %v", owned, err)
	}
	followers, err := follows.ListFollowers(ctx, "abc")
	if err != nil || len(followers) != 0 {
		t.Fatalf("followers: %v %v", followers, err)
	}
	exists, err := follows.IsFollowing(ctx, a.ID, "xyz")
	if err != nil || exists {
		t.Fatalf("is following: exists=%v err=%v", exists, err)
	}

	stored, err := accounts.GetAccount(ctx, a.ID)
	if err != nil || stored.Balance != 5 {
		t.Fatalf("balance must be untouched: %+v %v", stored, err)
	}
}

func TestPostgresLedgerRepository_TransferAndGrant(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	accounts := NewPostgresAccountRepository(testPool)
	ledger := NewPostgresLedgerRepository(db.NewTxRunner(testPool, 10))

	a := createTestAccount(t, accounts, "a", 10)
	b := createTestAccount(t, accounts, "b", 0)

	result, err := ledger.Transfer(ctx, a.ID, b.ID, 4)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if result.Source.Balance != 6 || result.Destination.Balance != 4 {
		t.Fatalf("unexpected balances %d/%d", result.Source.Balance, result.Destination.Balance)
	}

	if _, err := ledger.Transfer(ctx, a.ID, b.ID, 10); !errors.Is(err, models.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if _, err := ledger.Transfer(ctx, a.ID, uuid.NewString(), 1); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	day := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	granted, ok, err := ledger.Grant(ctx, b.ID, day, 1)
	if err != nil || !ok {
		t.Fatalf("first grant: ok=%v err=%v", ok, err)
	}
	if granted.Balance != 5 {
		t.Fatalf("expected balance 5, got %d", granted.Balance)
	}
	if _, ok, err := ledger.Grant(ctx, b.ID, day.Add(time.Hour), 1); err != nil || ok {
		t.Fatalf("second grant same day: ok=%v err=%v", ok, err)
	}
	if _, ok, err := ledger.Grant(ctx, b.ID, day.AddDate(0, 0, 1), 1); err != nil || !ok {
		t.Fatalf("grant next day: ok=%v err=%v", ok, err)
	}
}

func TestPostgresLedgerRepository_ConcurrentTransfersConserveBalance(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	accounts := NewPostgresAccountRepository(testPool)
	ledger := NewPostgresLedgerRepository(db.NewTxRunner(testPool, 20))

	source := createTestAccount(t, accounts, "source", 5)
	dest := createTestAccount(t, accounts, "dest", 0)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Transfer(ctx, source.ID, dest.ID, 1)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, models.ErrInsufficientFunds) && !errors.Is(err, models.ErrConflict) {
				t.Errorf("unexpected transfer error: %v", err)
			}
		}()
	}
	wg.Wait()

	src, err := accounts.GetAccount(ctx, source.ID)
	if err != nil {
		t.Fatalf("get source: %v", err)
	}
	dst, err := accounts.GetAccount(ctx, dest.ID)
	if err != nil {
		t.Fatalf("get dest: %v", err)
	}
	if src.Balance < 0 {
		t.Fatalf("source went negative: %d", src.Balance)
	}
	if src.Balance+dst.Balance != 5 {
		t.Fatalf("balance not conserved: %d + %d", src.Balance, dst.Balance)
	}
	if int64(succeeded) != dst.Balance {
		t.Fatalf("expected %d credited, got %d", succeeded, dst.Balance)
	}
}

func TestPostgresWorkRepository_ReviewAndEngagement(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	runner := db.NewTxRunner(testPool, 10)
	accounts := NewPostgresAccountRepository(testPool)
	works := NewPostgresWorkRepository(testPool, runner)

	owner := createTestAccount(t, accounts, "owner", 0)
	viewer := createTestAccount(t, accounts, "viewer", 0)
	moderator := createTestAccount(t, accounts, "moderator", 0)
	if _, err := testPool.Exec(ctx, `UPDATE accounts SET privileged = TRUE WHERE id = $1`, moderator.ID); err != nil {
		t.Fatalf("promote moderator: %v", err)
	}

	work := createTestWork(t, works, owner.ID, "Cats on skateboards")

	if _, err := works.ReviewWork(ctx, work.ID, viewer.ID, models.StatusApproved, "ok", time.Now().UTC()); !errors.Is(err, models.ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
	if _, err := works.ReviewWork(ctx, uuid.NewString(), moderator.ID, models.StatusApproved, "ok", time.Now().UTC()); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	reviewed, err := works.ReviewWork(ctx, work.ID, moderator.ID, models.StatusApproved, "ok", time.Now().UTC())
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if reviewed.Status != models.StatusApproved || reviewed.ModeratorID == nil || *reviewed.ModeratorID != moderator.ID {
		t.Fatalf("unexpected reviewed work: %+v", reviewed)
	}

	feed, err := works.ListWorksByStatus(ctx, models.StatusApproved, 10)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(feed) != 1 || feed[0].ID != work.ID {
		t.Fatalf("expected work in feed, got %+v", feed)
	}

	found, err := works.SearchWorks(ctx, "skate", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected 1 search result, got %d", len(found))
	}

	count, err := works.ApplyTriple(ctx, work.ID, viewer.ID)
	if err != nil || count != 1 {
		t.Fatalf("first triple: count=%d err=%v", count, err)
	}
	if _, err := works.ApplyTriple(ctx, work.ID, viewer.ID); !errors.Is(err, models.ErrAlreadyApplied) {
		t.Fatalf("expected already applied, got %v", err)
	}

	like, err := works.LikeWork(ctx, work.ID)
	if err != nil {
		t.Fatalf("like: %v", err)
	}
	if like.Likes != 1 || like.OwnerID != owner.ID || like.OwnerReceivedLikes != 1 {
		t.Fatalf("unexpected like result: %+v", like)
	}

	views, err := works.IncrementViews(ctx, work.ID)
	if err != nil || views != 1 {
		t.Fatalf("views=%d err=%v", views, err)
	}

	stored, err := works.GetWork(ctx, work.ID)
	if err != nil {
		t.Fatalf("get work: %v", err)
	}
	if stored.TripleCount != 1 || !stored.TripleMembers.Has(viewer.ID) {
		t.Fatalf("unexpected triple state: %+v", stored)
	}
}

func TestPostgresWorkRepository_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	accounts := NewPostgresAccountRepository(testPool)
	works := NewPostgresWorkRepository(testPool, db.NewTxRunner(testPool, 10))
	comments := NewPostgresCommentRepository(testPool)
	annotations := NewPostgresAnnotationRepository(testPool)

	owner := createTestAccount(t, accounts, "owner", 0)
	work := createTestWork(t, works, owner.ID, "Doomed")

	if err := comments.CreateComment(ctx, models.Comment{
		ID: uuid.NewString(), WorkID: work.ID, AuthorID: owner.ID, Content: "first", CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create comment: %v", err)
	}
	if err := comments.CreateComment(ctx, models.Comment{
		ID: uuid.NewString(), WorkID: uuid.NewString(), AuthorID: owner.ID, Content: "orphan", CreatedAt: time.Now().UTC(),
	}); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found for unknown work, got %v", err)
	}

	for _, offset := range []float64{3.5, 1, 3.5, 0} {
		if _, err := annotations.AppendAnnotation(ctx, models.Annotation{
			ID: uuid.NewString(), WorkID: work.ID, AuthorID: owner.ID, Content: fmt.Sprintf("at %.1f", offset),
			Offset: offset, CreatedAt: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("append annotation: %v", err)
		}
	}
	listed, err := annotations.ListAnnotations(ctx, work.ID)
	if err != nil {
		t.Fatalf("list annotations: %v", err)
	}
	if !sort.SliceIsSorted(listed, func(i, j int) bool { return listed[i].Offset < listed[j].Offset }) {
		t.Fatalf("annotations not ordered by offset: %+v", listed)
	}
	if listed[2].Seq >= listed[3].Seq {
		t.Fatalf("offset ties must keep insertion order: %+v", listed[2:])
	}

	if err := works.DeleteWork(ctx, work.ID); err != nil {
		t.Fatalf("delete work: %v", err)
	}
	remaining, err := comments.ListComments(ctx, work.ID)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected comments to cascade, got %d", len(remaining))
	}
	if err := works.DeleteWork(ctx, work.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestPostgresFollowRepository_Toggle(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	accounts := NewPostgresAccountRepository(testPool)
	follows := NewPostgresFollowRepository(testPool, db.NewTxRunner(testPool, 10))

	a := createTestAccount(t, accounts, "a", 0)
	b := createTestAccount(t, accounts, "b", 0)

	following, err := follows.ToggleFollow(ctx, a.ID, b.ID)
	if err != nil || !following {
		t.Fatalf("follow: following=%v err=%v", following, err)
	}

	followers, err := follows.ListFollowers(ctx, b.ID)
	if err != nil {
		t.Fatalf("followers: %v", err)
	}
	if len(followers) != 1 || followers[0].ID != a.ID {
		t.Fatalf("unexpected followers %+v", followers)
	}
	followed, err := follows.ListFollowing(ctx, a.ID)
	if err != nil {
		t.Fatalf("following: %v", err)
	}
	if len(followed) != 1 || followed[0].ID != b.ID {
		t.Fatalf("unexpected following %+v", followed)
	}

	following, err = follows.ToggleFollow(ctx, a.ID, b.ID)
	if err != nil || following {
		t.Fatalf("unfollow: following=%v err=%v", following, err)
	}
	exists, err := follows.IsFollowing(ctx, a.ID, b.ID)
	if err != nil || exists {
		t.Fatalf("edge should be gone: exists=%v err=%v", exists, err)
	}

	if _, err := follows.ToggleFollow(ctx, a.ID, uuid.NewString()); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// untilSettled repeats fn while it reports a conflict, the way a client honours
// Retry-After.
func untilSettled(fn func() error) error {
	var err error
	for i := 0; i < 20; i++ {
		if err = fn(); !errors.Is(err, models.ErrConflict) {
			return err
		}
	}
	return err
}

func TestPostgresWorkRepository_ConcurrentTriplesFromSameActor(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	accounts := NewPostgresAccountRepository(testPool)
	works := NewPostgresWorkRepository(testPool, db.NewTxRunner(testPool, 20))
	owner := createTestAccount(t, accounts, "owner", 0)
	viewer := createTestAccount(t, accounts, "viewer", 0)
	work := createTestWork(t, works, owner.ID, "Contended")

	var (
		g         errgroup.Group
		succeeded atomic.Int64
		rejected  atomic.Int64
	)
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			err := untilSettled(func() error {
				_, err := works.ApplyTriple(ctx, work.ID, viewer.ID)
				return err
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, models.ErrAlreadyApplied):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("apply triple: %v", err)
	}

	if succeeded.Load() != 1 || rejected.Load() != 7 {
		t.Fatalf("expected 1 success and 7 rejections, got %d and %d", succeeded.Load(), rejected.Load())
	}
	stored, err := works.GetWork(ctx, work.ID)
	if err != nil {
		t.Fatalf("get work: %v", err)
	}
	if stored.TripleCount != 1 || stored.TripleMembers.Len() != 1 {
		t.Fatalf("unexpected triple state: count=%d members=%d", stored.TripleCount, stored.TripleMembers.Len())
	}
}

func TestPostgresWorkRepository_ConcurrentTriplesFromDistinctActors(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	const n = 8
	accounts := NewPostgresAccountRepository(testPool)
	works := NewPostgresWorkRepository(testPool, db.NewTxRunner(testPool, 20))
	owner := createTestAccount(t, accounts, "owner", 0)
	work := createTestWork(t, works, owner.ID, "Popular")

	actors := make([]models.Account, n)
	for i := range actors {
		actors[i] = createTestAccount(t, accounts, fmt.Sprintf("actor%d", i), 0)
	}

	var g errgroup.Group
	for _, actor := range actors {
		g.Go(func() error {
			return untilSettled(func() error {
				_, err := works.ApplyTriple(ctx, work.ID, actor.ID)
				return err
			})
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("apply triple: %v", err)
	}

	stored, err := works.GetWork(ctx, work.ID)
	if err != nil {
		t.Fatalf("get work: %v", err)
	}
	if stored.TripleCount != n || stored.TripleMembers.Len() != n {
		t.Fatalf("expected %d triples, got count=%d members=%d", n, stored.TripleCount, stored.TripleMembers.Len())
	}
	for _, actor := range actors {
		if !stored.TripleMembers.Has(actor.ID) {
			t.Fatalf("missing member %s", actor.ID)
		}
	}
}

func TestPostgresLedgerRepository_ConcurrentGrantsCreditOnce(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	accounts := NewPostgresAccountRepository(testPool)
	ledger := NewPostgresLedgerRepository(db.NewTxRunner(testPool, 20))
	account := createTestAccount(t, accounts, "daily", 0)
	day := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	var (
		g       errgroup.Group
		credits atomic.Int64
	)
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			return untilSettled(func() error {
				_, granted, err := ledger.Grant(ctx, account.ID, day, 5)
				if granted {
					credits.Add(1)
				}
				return err
			})
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("grant: %v", err)
	}

	if credits.Load() != 1 {
		t.Fatalf("expected exactly one credit, got %d", credits.Load())
	}
	stored, err := accounts.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if stored.Balance != 5 {
		t.Fatalf("expected balance 5, got %d", stored.Balance)
	}
}

func TestPostgresFollowRepository_ConcurrentToggles(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	const n = 8
	accounts := NewPostgresAccountRepository(testPool)
	follows := NewPostgresFollowRepository(testPool, db.NewTxRunner(testPool, 20))
	target := createTestAccount(t, accounts, "target", 0)
	fan := createTestAccount(t, accounts, "fan", 0)

	var (
		g        errgroup.Group
		followed atomic.Int64
		dropped  atomic.Int64
	)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			return untilSettled(func() error {
				following, err := follows.ToggleFollow(ctx, fan.ID, target.ID)
				if err != nil {
					return err
				}
				if following {
					followed.Add(1)
				} else {
					dropped.Add(1)
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	// toggles alternate, so an even number of them leaves no edge
	if followed.Load()+dropped.Load() != n || followed.Load() != dropped.Load() {
		t.Fatalf("toggles did not alternate: %d follows, %d unfollows", followed.Load(), dropped.Load())
	}
	exists, err := follows.IsFollowing(ctx, fan.ID, target.ID)
	if err != nil || exists {
		t.Fatalf("expected no edge after an even number of toggles: exists=%v err=%v", exists, err)
	}

	fans := make([]models.Account, n)
	for i := range fans {
		fans[i] = createTestAccount(t, accounts, fmt.Sprintf("fan%d", i), 0)
	}
	for _, f := range fans {
		g.Go(func() error {
			return untilSettled(func() error {
				_, err := follows.ToggleFollow(ctx, f.ID, target.ID)
				return err
			})
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	followers, err := follows.ListFollowers(ctx, target.ID)
	if err != nil {
		t.Fatalf("followers: %v", err)
	}
	if len(followers) != n {
		t.Fatalf("expected %d followers, got %d", n, len(followers))
	}
}

func TestPostgresSessionStore_SaveFindAndDelete(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	accounts := NewPostgresAccountRepository(testPool)
	store := NewPostgresSessionStore(testPool)
	account := createTestAccount(t, accounts, "session", 0)

	session := auth.Session{
		Token:     "refresh-token",
		Kind:      auth.KindRefresh,
		AccountID: account.ID,
		ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond),
	}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	found, err := store.Find(ctx, session.Token)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if found.AccountID != account.ID || found.Kind != auth.KindRefresh {
		t.Fatalf("unexpected session: %+v", found)
	}

	if err := store.Delete(ctx, session.Token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := store.Find(ctx, session.Token); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
	if err := store.Delete(ctx, session.Token); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected session not found on second delete, got %v", err)
	}

	for _, token := range []string{"access-1", "access-2"} {
		if err := store.Save(ctx, auth.Session{Token: token, Kind: auth.KindAccess, AccountID: account.ID, ExpiresAt: session.ExpiresAt}); err != nil {
			t.Fatalf("save session: %v", err)
		}
	}
	removed, err := store.DeleteAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("delete account sessions: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 sessions removed, got %d", removed)
	}
	if _, err := store.Find(ctx, "access-1"); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected revoked session to be gone, got %v", err)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE sessions, follows, annotations, comments, works, accounts CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestAccount(t *testing.T, repo *PostgresAccountRepository, handle string, balance int64) models.Account {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	account := models.Account{
		ID:        uuid.NewString(),
		Handle:    handle,
		Email:     handle + "@example.com",
		Password:  "secret-hash",
		Active:    true,
		Balance:   balance,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("create account %s: %v", handle, err)
	}
	return account
}

func createTestWork(t *testing.T, repo *PostgresWorkRepository, ownerID, title string) models.Work {
	t.Helper()
	work := models.Work{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		Title:         title,
		MediaRef:      "media/" + title,
		Status:        models.StatusPending,
		TripleMembers: models.NewMemberSet(),
		CreatedAt:     time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := repo.CreateWork(context.Background(), work); err != nil {
		t.Fatalf("create work: %v", err)
	}
	return work
}
