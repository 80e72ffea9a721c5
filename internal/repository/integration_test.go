//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"curriplan/internal/dto"
	"curriplan/internal/model"
	"curriplan/internal/repository"
	"curriplan/internal/service"
	"curriplan/pkg/database"
	pkgerrors "curriplan/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=curriplan password=curriplan_password dbname=curriplan_test sslmode=disable TimeZone=Asia/Bangkok"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}
	if err := database.SetupJoinTables(testDB); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// 使用内置迁移建表，与生产一致
	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "迁移失败: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.Exit(code)
}

// fixture 每个测试使用唯一的科目与学期，避免组键规则跨测试命中
type fixture struct {
	subject  string
	termYear string
	planIDs  []uint
}

func setupPlans(t *testing.T, n int) *fixture {
	t.Helper()
	ctx := context.Background()
	stamp := time.Now().UnixNano()

	f := &fixture{
		subject:  fmt.Sprintf("IT%d", stamp%1_000_000_000),
		termYear: fmt.Sprintf("1/%d", stamp%1_000_000),
	}
	repo := repository.NewPlanRepo(testDB)
	for i := 0; i < n; i++ {
		p := &model.Plan{
			SubjectCode: f.subject,
			SubjectName: "integration",
			TermYear:    f.termYear,
			PlanType:    model.PlanTypeFourYear,
			YearLevel:   1 + i%4,
		}
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("创建计划失败: %v", err)
		}
		f.planIDs = append(f.planIDs, p.PlanID)
	}

	t.Cleanup(func() {
		testDB.Exec("DELETE FROM co_teaching_group_plans WHERE plan_id IN ?", f.planIDs)
		testDB.Exec("DELETE FROM co_teaching_groups WHERE group_key LIKE ?", f.subject+"%")
		testDB.Exec("DELETE FROM co_teaching_change_logs WHERE group_key LIKE ?", f.subject+"%")
		testDB.Exec("DELETE FROM plans WHERE plan_id IN ?", f.planIDs)
	})
	return f
}

func newService() service.CoTeachingService {
	return service.NewCoTeachingService(repository.NewRepository(testDB), nil, time.Second, zap.NewNop())
}

func memberIDs(t *testing.T, key string) []uint {
	t.Helper()
	group, err := repository.NewCoTeachingRepo(testDB).GetByKey(context.Background(), key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		t.Fatalf("GetByKey(%s) 失败: %v", key, err)
	}
	return group.PlanIDs()
}

func equalIDs(a, b []uint) bool {
	if len(a) != len(b) {
		return false
	}
	a = append([]uint(nil), a...)
	b = append([]uint(nil), b...)
	sort.Slice(a, func(i, j int) bool { return a[i] < a[j] })
	sort.Slice(b, func(i, j int) bool { return b[i] < b[j] })
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ═══════════════════════════════════════════════════════════
// CoTeachingRepository
// ═══════════════════════════════════════════════════════════

func TestCoTeachingRepo_AddPlansIdempotent(t *testing.T) {
	f := setupPlans(t, 2)
	ctx := context.Background()
	repo := repository.NewCoTeachingRepo(testDB)
	key := f.subject + "-" + f.termYear

	group := &model.CoTeachingGroup{GroupKey: key}
	if err := repo.Create(ctx, group, f.planIDs[:1]); err != nil {
		t.Fatalf("Create 失败: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := repo.AddPlans(ctx, group.GroupID, f.planIDs); err != nil {
			t.Fatalf("AddPlans 失败: %v", err)
		}
	}

	count, err := repo.CountPlans(ctx, group.GroupID)
	if err != nil {
		t.Fatalf("CountPlans 失败: %v", err)
	}
	if count != 2 {
		t.Errorf("期望 2 个成员，实际 %d", count)
	}
}

func TestCoTeachingRepo_DuplicateKey(t *testing.T) {
	f := setupPlans(t, 1)
	ctx := context.Background()
	repo := repository.NewCoTeachingRepo(testDB)
	key := f.subject + "-" + f.termYear

	if err := repo.Create(ctx, &model.CoTeachingGroup{GroupKey: key}, f.planIDs); err != nil {
		t.Fatalf("Create 失败: %v", err)
	}
	err := repo.Create(ctx, &model.CoTeachingGroup{GroupKey: key}, f.planIDs)
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Errorf("期望 gorm.ErrDuplicatedKey，实际: %v", err)
	}
}

func TestCoTeachingRepo_ListRelated(t *testing.T) {
	f := setupPlans(t, 2)
	ctx := context.Background()
	repo := repository.NewCoTeachingRepo(testDB)

	// 规则 1：成员匹配，组键无关
	byMember := &model.CoTeachingGroup{GroupKey: f.subject + "_elective"}
	// 规则 2：组键前缀
	byPrefix := &model.CoTeachingGroup{GroupKey: f.subject + "-9-2/1999"}
	for _, g := range []*model.CoTeachingGroup{byMember, byPrefix} {
		ids := f.planIDs[:1]
		if g == byPrefix {
			ids = f.planIDs[1:]
		}
		if err := repo.Create(ctx, g, ids); err != nil {
			t.Fatalf("Create(%s) 失败: %v", g.GroupKey, err)
		}
	}

	related, err := repo.ListRelated(ctx, f.subject, f.termYear)
	if err != nil {
		t.Fatalf("ListRelated 失败: %v", err)
	}
	keys := map[string]bool{}
	for _, g := range related {
		keys[g.GroupKey] = true
	}
	if !keys[byMember.GroupKey] || !keys[byPrefix.GroupKey] {
		t.Errorf("期望命中 %s 与 %s，实际 %v", byMember.GroupKey, byPrefix.GroupKey, keys)
	}
}

// ═══════════════════════════════════════════════════════════
// PlanRepository
// ═══════════════════════════════════════════════════════════

func TestPlanRepo_OptimisticLock(t *testing.T) {
	f := setupPlans(t, 1)
	ctx := context.Background()
	repo := repository.NewPlanRepo(testDB)

	a, _ := repo.GetByID(ctx, f.planIDs[0])
	b, _ := repo.GetByID(ctx, f.planIDs[0])

	a.SubjectName = "first"
	if err := repo.Update(ctx, a); err != nil {
		t.Fatalf("第一次更新应成功: %v", err)
	}
	b.SubjectName = "second"
	if err := repo.Update(ctx, b); !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("期望 ErrOptimisticLock，实际: %v", err)
	}
}

// ═══════════════════════════════════════════════════════════
// 事务语义（经由 Service）
// ═══════════════════════════════════════════════════════════

func TestSplit_RollsBackOnKeyCollision(t *testing.T) {
	f := setupPlans(t, 5)
	ctx := context.Background()
	svc := newService()
	orig := f.subject + "-" + f.termYear
	part2Key := f.subject + "-2-" + f.termYear

	if err := svc.Merge(ctx, &dto.MergeRequest{GroupKey: orig, PlanIDs: f.planIDs[:4]}, "it"); err != nil {
		t.Fatalf("Merge 失败: %v", err)
	}
	if err := svc.Merge(ctx, &dto.MergeRequest{GroupKey: part2Key, PlanIDs: f.planIDs[4:]}, "it"); err != nil {
		t.Fatalf("Merge 失败: %v", err)
	}

	_, err := svc.Split(ctx, &dto.SplitRequest{
		OriginalGroupKey: orig,
		Part1IDs:         f.planIDs[:2],
		Part2IDs:         f.planIDs[2:4],
		SubjectCode:      f.subject,
		TermYear:         f.termYear,
		PartNumbers:      dto.SplitPartNumbers{Part1: 1, Part2: 2},
	}, "it")
	if !errors.Is(err, service.ErrGroupKeyExists) {
		t.Fatalf("期望 ErrGroupKeyExists，实际: %v", err)
	}

	if got := memberIDs(t, orig); !equalIDs(got, f.planIDs[:4]) {
		t.Errorf("回滚后原组成员应不变，实际 %v", got)
	}
	if got := memberIDs(t, f.subject+"-1-"+f.termYear); got != nil {
		t.Errorf("回滚后不应存在 part1 组，实际 %v", got)
	}
}

func TestSplitThenMergeBack(t *testing.T) {
	f := setupPlans(t, 4)
	ctx := context.Background()
	svc := newService()
	orig := f.subject + "-" + f.termYear

	if err := svc.Merge(ctx, &dto.MergeRequest{GroupKey: orig, PlanIDs: f.planIDs}, "it"); err != nil {
		t.Fatalf("Merge 失败: %v", err)
	}
	resp, err := svc.Split(ctx, &dto.SplitRequest{
		OriginalGroupKey: orig,
		Part1IDs:         f.planIDs[:2],
		Part2IDs:         f.planIDs[2:],
		SubjectCode:      f.subject,
		TermYear:         f.termYear,
		PartNumbers:      dto.SplitPartNumbers{Part1: 1, Part2: 2},
	}, "it")
	if err != nil {
		t.Fatalf("Split 失败: %v", err)
	}
	if got := memberIDs(t, orig); got != nil {
		t.Errorf("拆分后原组应被删除，实际 %v", got)
	}
	if got := memberIDs(t, resp.NewGroupKeys.Part2); !equalIDs(got, f.planIDs[2:]) {
		t.Errorf("part2 成员不符: %v", got)
	}

	back, err := svc.MergeBack(ctx, &dto.MergeBackRequest{
		SubjectCode:   f.subject,
		TermYear:      f.termYear,
		MergedPlanIDs: f.planIDs,
	}, "it")
	if err != nil {
		t.Fatalf("MergeBack 失败: %v", err)
	}
	if back.NewGroupKey != orig {
		t.Errorf("期望新组键 %s，实际 %s", orig, back.NewGroupKey)
	}
	if got := memberIDs(t, orig); !equalIDs(got, f.planIDs) {
		t.Errorf("合并回后成员不符: %v", got)
	}
	for _, k := range []string{resp.NewGroupKeys.Part1, resp.NewGroupKeys.Part2} {
		if got := memberIDs(t, k); got != nil {
			t.Errorf("拆分组 %s 应被删除，实际 %v", k, got)
		}
	}

	logs, total, err := repository.NewCoTeachingChangeLogRepo(testDB).List(ctx, orig, 0, 10)
	if err != nil {
		t.Fatalf("查询变更日志失败: %v", err)
	}
	if total != 3 || logs[0].Action != model.CoTeachingActionMergeBack {
		t.Errorf("期望 3 条日志且最新为 merge_back，实际 total=%d first=%+v", total, logs[0])
	}
}
