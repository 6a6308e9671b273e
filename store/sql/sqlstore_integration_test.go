package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-reconcile/core"
	reconmigrations "github.com/goliatone/go-reconcile/migrations"
	"github.com/goliatone/go-reconcile/ratelimit"
	sqlstore "github.com/goliatone/go-reconcile/store/sql"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-reconcile-tests"
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:reconcile-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = reconmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != reconmigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, reconmigrations.WithValidationTargets(reconmigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"recon_runs",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "recon_runs" {
		t.Fatalf("expected recon_runs table, got %q", tableName)
	}
}

func TestRuleStore_UpsertBumpsUsageAndLookupFiltersInactive(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	rules := factory.RuleStore()

	created, err := rules.Upsert(ctx, core.NormalizationRule{
		OriginalName:  "рфц москва",
		CanonicalName: "РФЦ Москва",
		SourceType:    "ozon",
		MatchType:     core.MatchTypeExact,
		Confidence:    1.0,
		Active:        true,
	})
	if err != nil {
		t.Fatalf("upsert rule: %v", err)
	}
	if created.UsageCount != 1 {
		t.Fatalf("expected usage count 1 on insert, got %d", created.UsageCount)
	}

	reused, err := rules.Upsert(ctx, core.NormalizationRule{
		OriginalName:  "рфц москва",
		CanonicalName: "ignored on reuse",
		SourceType:    "ozon",
		MatchType:     core.MatchTypeFuzzy,
		Confidence:    0.8,
		Active:        true,
	})
	if err != nil {
		t.Fatalf("reuse rule: %v", err)
	}
	if reused.ID != created.ID {
		t.Fatalf("expected same rule id on conflict, got %q vs %q", reused.ID, created.ID)
	}
	if reused.UsageCount != 2 {
		t.Fatalf("expected usage count 2 after reuse, got %d", reused.UsageCount)
	}
	if reused.CanonicalName != "РФЦ Москва" {
		t.Fatalf("reuse must not overwrite the canonical name, got %q", reused.CanonicalName)
	}
	if reused.Confidence != 1.0 {
		t.Fatalf("reuse must not overwrite confidence, got %v", reused.Confidence)
	}

	found, err := rules.Lookup(ctx, "рфц москва", "ozon")
	if err != nil {
		t.Fatalf("lookup rule: %v", err)
	}
	if found.CanonicalName != "РФЦ Москва" {
		t.Fatalf("unexpected canonical name %q", found.CanonicalName)
	}

	if err := rules.Deactivate(ctx, created.ID); err != nil {
		t.Fatalf("deactivate rule: %v", err)
	}
	if _, err := rules.Lookup(ctx, "рфц москва", "ozon"); !errors.Is(err, core.ErrRuleNotFound) {
		t.Fatalf("expected rule not found after deactivation, got %v", err)
	}
}

func TestRuleStore_ListsCanonicalNamesAndReviewQueue(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	rules := factory.RuleStore()

	seed := []core.NormalizationRule{
		{OriginalName: "рфц москва", CanonicalName: "РФЦ Москва", SourceType: "ozon", MatchType: core.MatchTypeExact, Confidence: 1.0, Active: true},
		{OriginalName: "москва рфц", CanonicalName: "РФЦ Москва", SourceType: "ozon", MatchType: core.MatchTypeRuleBased, Confidence: 0.9, Active: true},
		{OriginalName: "склад 77", CanonicalName: "склад 77", SourceType: "ozon", MatchType: core.MatchTypeAutoDetected, Confidence: 0.7, NeedsReview: true, Active: true},
	}
	for _, rule := range seed {
		if _, err := rules.Upsert(ctx, rule); err != nil {
			t.Fatalf("seed rule %q: %v", rule.OriginalName, err)
		}
	}

	names, err := rules.ListCanonicalNames(ctx, "ozon")
	if err != nil {
		t.Fatalf("list canonical names: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 distinct canonical names, got %v", names)
	}

	review, err := rules.ListUnrecognized(ctx, 10)
	if err != nil {
		t.Fatalf("list unrecognized: %v", err)
	}
	if len(review) != 1 || review[0].OriginalName != "склад 77" {
		t.Fatalf("unexpected review queue: %#v", review)
	}
}

func TestCrossReferenceStore_UpsertIsKeyedByCanonicalID(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	refs := factory.CrossReferenceStore()

	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	created, err := refs.Upsert(ctx, core.CrossReference{
		CanonicalID:         "sku-100",
		ExternalIDsBySource: map[string]string{"ozon": "10100"},
		CachedDisplayName:   "Кофеварка Bork C804",
		SyncStatus:          core.SyncStatusSynced,
		LastResolvedAt:      &now,
	})
	if err != nil {
		t.Fatalf("create cross reference: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated reference id")
	}

	updated, err := refs.Upsert(ctx, core.CrossReference{
		CanonicalID:         "sku-100",
		ExternalIDsBySource: map[string]string{"ozon": "10100", "wildberries": "w-864"},
		CachedDisplayName:   "Кофеварка Bork C804",
		SyncStatus:          core.SyncStatusFailed,
		LastError:           "marketplace: server error",
	})
	if err != nil {
		t.Fatalf("update cross reference: %v", err)
	}
	if updated.ID != created.ID {
		t.Fatalf("expected upsert to reuse row id, got %q vs %q", updated.ID, created.ID)
	}
	if updated.ExternalIDsBySource["wildberries"] != "w-864" {
		t.Fatalf("expected merged external ids, got %#v", updated.ExternalIDsBySource)
	}

	failed, err := refs.ListBySyncStatus(ctx, core.SyncStatusFailed, 10)
	if err != nil {
		t.Fatalf("list by sync status: %v", err)
	}
	if len(failed) != 1 || failed[0].CanonicalID != "sku-100" {
		t.Fatalf("unexpected failed references: %#v", failed)
	}

	if _, err := refs.Get(ctx, "missing"); !errors.Is(err, core.ErrCrossReferenceNotFound) {
		t.Fatalf("expected cross reference not found, got %v", err)
	}
}

func TestRunStore_LifecycleAndActiveDetection(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	runs := factory.RunStore()

	started := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	run := core.RunRecord{
		BatchID:   "0b4f2f57-9f3a-4fd0-8f6d-12c55a90ab01",
		Target:    "ozon",
		Type:      core.RunTypeFullSync,
		Status:    core.RunStatusQueued,
		Metadata:  map[string]any{"trigger": "manual"},
		StartedAt: started,
	}
	if _, err := runs.Create(ctx, run); err != nil {
		t.Fatalf("create run: %v", err)
	}
	if _, err := runs.Create(ctx, run); err == nil {
		t.Fatalf("expected duplicate batch id rejection")
	}

	active, err := runs.ActiveForTarget(ctx, "ozon")
	if err != nil {
		t.Fatalf("active for target: %v", err)
	}
	if !active {
		t.Fatalf("expected queued run to count as active")
	}

	completedAt := started.Add(3 * time.Minute)
	run.Status = core.RunStatusCompleted
	run.QualityScore = 93.5
	run.Metrics.RecordsExtracted = 137
	run.Metrics.ExtractDuration = 45 * time.Second
	run.CompletedAt = &completedAt
	if _, err := runs.Update(ctx, run); err != nil {
		t.Fatalf("update run: %v", err)
	}

	active, err = runs.ActiveForTarget(ctx, "ozon")
	if err != nil {
		t.Fatalf("active for target after completion: %v", err)
	}
	if active {
		t.Fatalf("completed run must not count as active")
	}

	fetched, err := runs.Get(ctx, run.BatchID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if fetched.Status != core.RunStatusCompleted || fetched.QualityScore != 93.5 {
		t.Fatalf("unexpected run after update: %#v", fetched)
	}
	if fetched.Metrics.ExtractDuration != 45*time.Second {
		t.Fatalf("expected extract duration survival, got %v", fetched.Metrics.ExtractDuration)
	}
	if fetched.Metadata["trigger"] != "manual" {
		t.Fatalf("expected metadata survival, got %#v", fetched.Metadata)
	}

	recent, err := runs.ListRecent(ctx, "ozon", 5)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 1 || recent[0].BatchID != run.BatchID {
		t.Fatalf("unexpected recent runs: %#v", recent)
	}
}

func TestAssessmentStore_PersistsAnomalies(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	assessments := factory.AssessmentStore()

	created, err := assessments.Create(ctx, core.QualityAssessment{
		BatchID:      "6f0f0b7c-ffda-44a6-9f6b-0a9b1f9be301",
		Completeness: 100,
		Accuracy:     96,
		Consistency:  100,
		Freshness:    90,
		Validity:     100,
		OverallScore: 97.1,
		RecordCount:  137,
		Anomalies: []core.Anomaly{
			{
				Field:      "available_qty",
				Value:      100,
				LowerBound: 0.5,
				UpperBound: 9.25,
				Severity:   core.SeverityCritical,
				Message:    "available_qty far outside interquartile fences",
			},
		},
	})
	if err != nil {
		t.Fatalf("create assessment: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated assessment id")
	}

	fetched, err := assessments.GetByBatch(ctx, created.BatchID)
	if err != nil {
		t.Fatalf("get assessment: %v", err)
	}
	if len(fetched.Anomalies) != 1 || fetched.Anomalies[0].Severity != core.SeverityCritical {
		t.Fatalf("expected anomaly round trip, got %#v", fetched.Anomalies)
	}

	if _, err := assessments.GetByBatch(ctx, "missing"); !errors.Is(err, core.ErrAssessmentNotFound) {
		t.Fatalf("expected assessment not found, got %v", err)
	}
}

func TestInventoryStore_UpsertBatchIsIdempotent(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	inventory := factory.InventoryStore()

	observed := time.Date(2026, 1, 10, 8, 30, 0, 0, time.UTC)
	batch := []core.NormalizedRecord{
		{CanonicalID: "sku-100", WarehouseKey: "рфц-москва", AvailableQty: 10, ReservedQty: 2, TotalQty: 12, Price: 1999, ProductName: "Кофеварка Bork C804", SourceTag: "ozon", ObservedAt: observed, NormalizationConfidence: 1.0},
		{CanonicalID: "sku-101", WarehouseKey: "сц-казань", AvailableQty: 4, ReservedQty: 0, TotalQty: 4, Price: 349, ProductName: "Чайник Polaris", SourceTag: "ozon", ObservedAt: observed, NormalizationConfidence: 0.9},
	}

	first, err := inventory.UpsertBatch(ctx, batch)
	if err != nil {
		t.Fatalf("first upsert batch: %v", err)
	}
	if first.Inserted != 2 || first.Updated != 0 {
		t.Fatalf("expected 2 inserts, got %+v", first)
	}

	batch[0].AvailableQty = 8
	second, err := inventory.UpsertBatch(ctx, batch)
	if err != nil {
		t.Fatalf("second upsert batch: %v", err)
	}
	if second.Inserted != 0 || second.Updated != 2 {
		t.Fatalf("expected 2 updates on replay, got %+v", second)
	}

	count, err := inventory.CountByTarget(ctx, "ozon")
	if err != nil {
		t.Fatalf("count by target: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows, got %d", count)
	}
}

func TestAlertStore_LastByThrottleKeyReturnsNewest(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	alerts := factory.AlertStore()

	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	throttleKey := core.ThrottleKeyFor("quality_score", core.SeverityWarning, "ozon")
	for i := 0; i < 2; i++ {
		_, err := alerts.Create(ctx, core.Alert{
			Type:        "quality_score",
			Severity:    core.SeverityWarning,
			Message:     fmt.Sprintf("quality score below threshold (%d)", i),
			Context:     map[string]any{"target": "ozon"},
			ThrottleKey: throttleKey,
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("create alert %d: %v", i, err)
		}
	}

	last, err := alerts.LastByThrottleKey(ctx, throttleKey)
	if err != nil {
		t.Fatalf("last by throttle key: %v", err)
	}
	if last.Message != "quality score below threshold (1)" {
		t.Fatalf("expected newest alert, got %q", last.Message)
	}

	if _, err := alerts.LastByThrottleKey(ctx, "missing|key"); !errors.Is(err, core.ErrAlertNotFound) {
		t.Fatalf("expected alert not found, got %v", err)
	}
}

func TestRateLimitStateStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	states := factory.RateLimitStateStore()

	key := core.RateLimitKey{ProviderID: "Ozon", BucketKey: "Stocks"}
	if _, err := states.Get(ctx, key); !errors.Is(err, ratelimit.ErrStateNotFound) {
		t.Fatalf("expected state not found, got %v", err)
	}

	resetAt := time.Date(2026, 1, 10, 9, 1, 0, 0, time.UTC)
	retryAfter := 30 * time.Second
	if err := states.Upsert(ctx, ratelimit.State{
		Key:        key,
		Limit:      30,
		Remaining:  0,
		ResetAt:    &resetAt,
		RetryAfter: &retryAfter,
		LastStatus: 429,
		Attempts:   2,
		UpdatedAt:  resetAt.Add(-time.Minute),
	}); err != nil {
		t.Fatalf("upsert state: %v", err)
	}

	fetched, err := states.Get(ctx, core.RateLimitKey{ProviderID: "ozon", BucketKey: "stocks"})
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if fetched.LastStatus != 429 || fetched.Attempts != 2 {
		t.Fatalf("unexpected state: %#v", fetched)
	}
	if fetched.RetryAfter == nil || *fetched.RetryAfter != retryAfter {
		t.Fatalf("expected retry-after round trip, got %v", fetched.RetryAfter)
	}

	if err := states.Upsert(ctx, ratelimit.State{Key: key, Limit: 30, Remaining: 29, LastStatus: 200}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	fetched, err = states.Get(ctx, key)
	if err != nil {
		t.Fatalf("get state after reset: %v", err)
	}
	if fetched.LastStatus != 200 || fetched.Remaining != 29 {
		t.Fatalf("expected reset state, got %#v", fetched)
	}
}
