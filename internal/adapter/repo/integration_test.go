//go:build integration

package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"ugcvideo/internal/domain"
	"ugcvideo/internal/infra"
	"ugcvideo/migrations"
)

var (
	testRunner    *infra.SQLRunner
	testContainer testcontainers.Container
)

// TestMain starts a PostgreSQL container and applies the migrations once for all tests.
func TestMain(m *testing.M) {
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "ugc",
				"POSTGRES_PASSWORD": "ugc",
				"POSTGRES_DB":       "ugc",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres container: %v", err)
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("container host: %v", err)
	}
	port, err := testContainer.MappedPort(ctx, "5432")
	if err != nil {
		log.Fatalf("container port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://ugc:ugc@%s:%s/ugc?sslmode=disable", host, port.Port())

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("goose dialect: %v", err)
	}
	if err := goose.Up(db, "."); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	_ = db.Close()

	pool, err := infra.OpenPool(ctx, dsn)
	if err != nil {
		log.Fatalf("open pool: %v", err)
	}
	testRunner = infra.NewSQLRunner(pool, infra.NopLogger())

	code := m.Run()

	pool.Close()
	_ = testContainer.Terminate(ctx)
	os.Exit(code)
}

func newUser(t *testing.T, credits int) string {
	t.Helper()
	ledger := NewLedgerRepository(testRunner)
	id, _, err := ledger.EnsureUser(context.Background(), uuid.NewString()+"@example.com")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if credits > 0 {
		if _, err := ledger.Grant(context.Background(), id, credits, domain.CreditTxTopUp, "test"); err != nil {
			t.Fatalf("Grant: %v", err)
		}
	}
	return id
}

func balance(t *testing.T, userID string) int {
	t.Helper()
	b, err := NewLedgerRepository(testRunner).Balance(context.Background(), userID)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	return b
}

func TestIntegrationConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	repo := NewGenerationRepository(testRunner)
	userID := newUser(t, 5)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		rejected int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g := &domain.Generation{ID: uuid.NewString(), UserID: userID, AssetType: domain.AssetPerson}
			err := repo.CreateWithDebit(ctx, g, domain.CostPerson)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, domain.ErrInsufficientCredits):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 5 || rejected != 5 {
		t.Fatalf("created=%d rejected=%d, want 5/5", created, rejected)
	}
	if got := balance(t, userID); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
}

func TestIntegrationRefundIsAppliedOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewGenerationRepository(testRunner)
	userID := newUser(t, 40)

	g := &domain.Generation{
		ID:        uuid.NewString(),
		UserID:    userID,
		AssetType: domain.AssetVideo,
		Params:    domain.GenerationParams{VideoQuality: domain.VideoQualityStandard},
	}
	if err := repo.CreateWithDebit(ctx, g, domain.CostVideoStandard); err != nil {
		t.Fatalf("CreateWithDebit: %v", err)
	}
	if ok, err := repo.MarkFailed(ctx, g.ID, domain.Failure{Type: domain.ErrorTypeService, Message: "down"}); err != nil || !ok {
		t.Fatalf("MarkFailed ok=%v err=%v", ok, err)
	}

	first, err := repo.Refund(ctx, g.ID, domain.CostVideoStandard)
	if err != nil || !first {
		t.Fatalf("first refund ok=%v err=%v", first, err)
	}
	second, err := repo.Refund(ctx, g.ID, domain.CostVideoStandard)
	if err != nil || second {
		t.Fatalf("second refund ok=%v err=%v", second, err)
	}
	if got := balance(t, userID); got != 40 {
		t.Fatalf("balance = %d, want 40", got)
	}

	history, err := NewLedgerRepository(testRunner).History(ctx, userID, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("ledger entries = %d, want 3 (topup, usage, refund)", len(history))
	}
}

func TestIntegrationRetryResetsAndDebits(t *testing.T) {
	ctx := context.Background()
	repo := NewGenerationRepository(testRunner)
	userID := newUser(t, 2)

	g := &domain.Generation{ID: uuid.NewString(), UserID: userID, AssetType: domain.AssetPerson}
	if err := repo.CreateWithDebit(ctx, g, domain.CostPerson); err != nil {
		t.Fatalf("CreateWithDebit: %v", err)
	}
	if _, err := repo.MarkFailed(ctx, g.ID, domain.Failure{Type: domain.ErrorTypeUser, Message: "bad input", Stage: 1}); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	retried, err := repo.RetryWithDebit(ctx, g.ID, userID, domain.CostPerson, 0)
	if err != nil {
		t.Fatalf("RetryWithDebit: %v", err)
	}
	if retried.Status != domain.StatusPending || retried.ErrorType != "" || retried.Stage1Error != "" || retried.Attempt != 2 {
		t.Fatalf("retry did not reset job: %#v", retried)
	}
	if got := balance(t, userID); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}

	if _, err := repo.MarkFailed(ctx, g.ID, domain.Failure{Type: domain.ErrorTypeUser, Message: "bad input"}); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if _, err := repo.RetryWithDebit(ctx, g.ID, userID, domain.CostPerson, 0); !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}
	stored, err := repo.GetForUser(ctx, g.ID, userID)
	if err != nil {
		t.Fatalf("GetForUser: %v", err)
	}
	if stored.Status != domain.StatusFailed || stored.Attempt != 2 {
		t.Fatalf("failed retry must leave job FAILED, got %s attempt %d", stored.Status, stored.Attempt)
	}
}

func TestIntegrationRetrySettlesOutstandingRefund(t *testing.T) {
	ctx := context.Background()
	repo := NewGenerationRepository(testRunner)
	userID := newUser(t, 1)

	g := &domain.Generation{ID: uuid.NewString(), UserID: userID, AssetType: domain.AssetPerson}
	if err := repo.CreateWithDebit(ctx, g, domain.CostPerson); err != nil {
		t.Fatalf("CreateWithDebit: %v", err)
	}
	if _, err := repo.MarkFailed(ctx, g.ID, domain.Failure{Type: domain.ErrorTypeService, Message: "down"}); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	// Balance is 0, the unrefunded attempt pays for the retry.
	retried, err := repo.RetryWithDebit(ctx, g.ID, userID, domain.CostPerson, domain.CostPerson)
	if err != nil {
		t.Fatalf("RetryWithDebit: %v", err)
	}
	if !retried.CreditsRefunded || retried.Attempt != 2 || retried.RefundedAttempt != 1 || retried.IsRefundable {
		t.Fatalf("refund state = %#v", retried)
	}
	if got := balance(t, userID); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
	if ok, _ := repo.Refund(ctx, g.ID, domain.CostPerson); ok {
		t.Fatalf("pending retry must not be refundable")
	}

	if _, err := repo.MarkFailed(ctx, g.ID, domain.Failure{Type: domain.ErrorTypeService, Message: "down again"}); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	ok, err := repo.Refund(ctx, g.ID, domain.CostPerson)
	if err != nil || !ok {
		t.Fatalf("second attempt refund ok=%v err=%v", ok, err)
	}
	stored, err := repo.Get(ctx, g.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !stored.CreditsRefunded || stored.RefundedAttempt != 2 {
		t.Fatalf("refund state = refunded:%v refunded_attempt:%d", stored.CreditsRefunded, stored.RefundedAttempt)
	}
	if got := balance(t, userID); got != 1 {
		t.Fatalf("balance = %d, want 1", got)
	}

	history, err := NewLedgerRepository(testRunner).History(ctx, userID, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	sum := 0
	for _, tx := range history {
		sum += tx.Amount
	}
	if sum != 1 || len(history) != 5 {
		t.Fatalf("ledger entries = %d sum = %d, want 5 entries summing to 1", len(history), sum)
	}
}

func TestIntegrationOwnerScoping(t *testing.T) {
	ctx := context.Background()
	repo := NewGenerationRepository(testRunner)
	owner := newUser(t, 1)
	other := newUser(t, 0)

	g := &domain.Generation{ID: uuid.NewString(), UserID: owner, AssetType: domain.AssetComposite}
	if err := repo.CreateWithDebit(ctx, g, domain.CostComposite); err != nil {
		t.Fatalf("CreateWithDebit: %v", err)
	}
	if _, err := repo.GetForUser(ctx, g.ID, other); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	pending, err := repo.MostRecentPending(ctx, owner, domain.AssetComposite)
	if err != nil || pending.ID != g.ID {
		t.Fatalf("MostRecentPending = %v, %v", pending, err)
	}
}

func TestIntegrationSaveDetectsConcurrentUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewGenerationRepository(testRunner)
	userID := newUser(t, 1)

	g := &domain.Generation{ID: uuid.NewString(), UserID: userID, AssetType: domain.AssetPerson}
	if err := repo.CreateWithDebit(ctx, g, domain.CostPerson); err != nil {
		t.Fatalf("CreateWithDebit: %v", err)
	}
	stale := g.UpdatedAt
	progress := 50
	g.Apply(domain.GenerationUpdate{Status: domain.StatusProcessing, Progress: &progress})
	if err := repo.Save(ctx, g, stale); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := repo.Save(ctx, g, stale); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestIntegrationStalePendingUsesUpdatedAt(t *testing.T) {
	ctx := context.Background()
	repo := NewGenerationRepository(testRunner)
	userID := newUser(t, 1)

	g := &domain.Generation{ID: uuid.NewString(), UserID: userID, AssetType: domain.AssetPerson}
	if err := repo.CreateWithDebit(ctx, g, domain.CostPerson); err != nil {
		t.Fatalf("CreateWithDebit: %v", err)
	}
	stale, err := repo.ListStalePending(ctx, time.Now().Add(time.Minute), 100)
	if err != nil {
		t.Fatalf("ListStalePending: %v", err)
	}
	found := false
	for _, s := range stale {
		found = found || s.ID == g.ID
	}
	if !found {
		t.Fatalf("expected job to be listed as stale")
	}
	fresh, err := repo.ListStalePending(ctx, time.Now().Add(-time.Hour), 100)
	if err != nil {
		t.Fatalf("ListStalePending: %v", err)
	}
	for _, s := range fresh {
		if s.ID == g.ID {
			t.Fatalf("fresh job must not be stale")
		}
	}
}
