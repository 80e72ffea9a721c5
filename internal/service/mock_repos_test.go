package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"curriplan/internal/model"
	"curriplan/internal/repository"
	pkgerrors "curriplan/pkg/errors"
)

// ── Mock PlanRepository ──

type mockPlanRepo struct {
	plans  map[uint]*model.Plan
	nextID uint
}

func newMockPlanRepo() *mockPlanRepo {
	return &mockPlanRepo{plans: make(map[uint]*model.Plan), nextID: 1}
}

// seed 直接写入一条计划，返回其 ID
func (m *mockPlanRepo) seed(subjectCode, termYear, planType string, yearLevel int) uint {
	p := &model.Plan{
		SubjectCode: subjectCode,
		SubjectName: subjectCode + " name",
		TermYear:    termYear,
		PlanType:    planType,
		YearLevel:   yearLevel,
	}
	_ = m.Create(context.Background(), p)
	return p.PlanID
}

func (m *mockPlanRepo) alive(id uint) (*model.Plan, bool) {
	p, ok := m.plans[id]
	if !ok || p.DeletedAt.Valid {
		return nil, false
	}
	return p, true
}

func (m *mockPlanRepo) Create(_ context.Context, plan *model.Plan) error {
	if plan.PlanID == 0 {
		plan.PlanID = m.nextID
	}
	if plan.PlanID >= m.nextID {
		m.nextID = plan.PlanID + 1
	}
	if plan.Version == 0 {
		plan.Version = 1
	}
	plan.CreatedAt = time.Now()
	plan.UpdatedAt = plan.CreatedAt
	m.plans[plan.PlanID] = plan
	return nil
}

func (m *mockPlanRepo) GetByID(_ context.Context, id uint) (*model.Plan, error) {
	if p, ok := m.alive(id); ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPlanRepo) ListByIDs(_ context.Context, ids []uint) ([]model.Plan, error) {
	var result []model.Plan
	for _, id := range ids {
		if p, ok := m.alive(id); ok {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PlanID < result[j].PlanID })
	return result, nil
}

func (m *mockPlanRepo) List(_ context.Context, filter repository.PlanFilter) ([]model.Plan, int64, error) {
	var result []model.Plan
	for _, p := range m.plans {
		if p.DeletedAt.Valid {
			continue
		}
		if filter.SubjectCode != "" && p.SubjectCode != filter.SubjectCode {
			continue
		}
		if filter.TermYear != "" && p.TermYear != filter.TermYear {
			continue
		}
		if len(filter.PlanTypes) > 0 && !containsString(filter.PlanTypes, p.PlanType) {
			continue
		}
		if filter.YearLevel != nil && p.YearLevel != *filter.YearLevel {
			continue
		}
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PlanID < result[j].PlanID })

	total := int64(len(result))
	if filter.Limit > 0 {
		if filter.Offset >= len(result) {
			return []model.Plan{}, total, nil
		}
		end := filter.Offset + filter.Limit
		if end > len(result) {
			end = len(result)
		}
		result = result[filter.Offset:end]
	}
	return result, total, nil
}

func (m *mockPlanRepo) Update(_ context.Context, plan *model.Plan) error {
	stored, ok := m.alive(plan.PlanID)
	if !ok || stored.Version != plan.Version {
		return pkgerrors.ErrOptimisticLock
	}
	plan.Version++
	cp := *plan
	m.plans[plan.PlanID] = &cp
	return nil
}

func (m *mockPlanRepo) Delete(_ context.Context, id uint, deletedBy string) error {
	if p, ok := m.plans[id]; ok {
		p.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
		p.DeletedBy = &deletedBy
	}
	return nil
}

// ── Mock CoTeachingRepository ──

type mockCoTeachingRepo struct {
	plans   *mockPlanRepo
	groups  map[uint]*model.CoTeachingGroup
	members map[uint]map[uint]struct{} // group_id → plan_id 集合
	nextID  uint

	// 注入错误
	createErr error
}

func newMockCoTeachingRepo(plans *mockPlanRepo) *mockCoTeachingRepo {
	return &mockCoTeachingRepo{
		plans:   plans,
		groups:  make(map[uint]*model.CoTeachingGroup),
		members: make(map[uint]map[uint]struct{}),
		nextID:  1,
	}
}

// snapshot 复制组并按 plan_id 升序填充成员
func (m *mockCoTeachingRepo) snapshot(g *model.CoTeachingGroup) *model.CoTeachingGroup {
	cp := *g
	cp.Plans = nil
	ids := make([]uint, 0, len(m.members[g.GroupID]))
	for id := range m.members[g.GroupID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if p, ok := m.plans.plans[id]; ok {
			cp.Plans = append(cp.Plans, *p)
		}
	}
	return &cp
}

func (m *mockCoTeachingRepo) byKey(key string) *model.CoTeachingGroup {
	for _, g := range m.groups {
		if g.GroupKey == key {
			return g
		}
	}
	return nil
}

// keys 返回当前全部组键（升序）
func (m *mockCoTeachingRepo) keys() []string {
	keys := make([]string, 0, len(m.groups))
	for _, g := range m.groups {
		keys = append(keys, g.GroupKey)
	}
	sort.Strings(keys)
	return keys
}

// memberIDs 返回组键对应组的成员 ID（升序），组不存在返回 nil
func (m *mockCoTeachingRepo) memberIDs(key string) []uint {
	g := m.byKey(key)
	if g == nil {
		return nil
	}
	return m.snapshot(g).PlanIDs()
}

func (m *mockCoTeachingRepo) GetByKey(_ context.Context, groupKey string) (*model.CoTeachingGroup, error) {
	if g := m.byKey(groupKey); g != nil {
		return m.snapshot(g), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCoTeachingRepo) GetByPlanID(_ context.Context, planID uint) (*model.CoTeachingGroup, error) {
	var found *model.CoTeachingGroup
	for gid, set := range m.members {
		if _, ok := set[planID]; ok {
			if found == nil || gid < found.GroupID {
				found = m.groups[gid]
			}
		}
	}
	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return m.snapshot(found), nil
}

func (m *mockCoTeachingRepo) Create(ctx context.Context, group *model.CoTeachingGroup, planIDs []uint) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.byKey(group.GroupKey) != nil {
		return gorm.ErrDuplicatedKey
	}
	group.GroupID = m.nextID
	m.nextID++
	cp := *group
	cp.Plans = nil
	m.groups[group.GroupID] = &cp
	m.members[group.GroupID] = make(map[uint]struct{})
	return m.AddPlans(ctx, group.GroupID, planIDs)
}

func (m *mockCoTeachingRepo) AddPlans(_ context.Context, groupID uint, planIDs []uint) error {
	set, ok := m.members[groupID]
	if !ok {
		return errors.New("group not found")
	}
	for _, id := range planIDs {
		set[id] = struct{}{}
	}
	return nil
}

func (m *mockCoTeachingRepo) RemovePlans(_ context.Context, groupID uint, planIDs []uint) error {
	for _, id := range planIDs {
		delete(m.members[groupID], id)
	}
	return nil
}

func (m *mockCoTeachingRepo) CountPlans(_ context.Context, groupID uint) (int64, error) {
	var n int64
	for id := range m.members[groupID] {
		if _, ok := m.plans.alive(id); ok {
			n++
		}
	}
	return n, nil
}

func (m *mockCoTeachingRepo) Delete(_ context.Context, groupID uint) error {
	delete(m.groups, groupID)
	delete(m.members, groupID)
	return nil
}

func (m *mockCoTeachingRepo) ListRelated(_ context.Context, subjectCode, termYear string) ([]model.CoTeachingGroup, error) {
	var result []model.CoTeachingGroup
	for gid, g := range m.groups {
		related := strings.HasPrefix(g.GroupKey, subjectCode+"-") ||
			strings.Contains(g.GroupKey, "/"+termYear)
		if !related {
			for id := range m.members[gid] {
				p, ok := m.plans.plans[id]
				if ok && p.SubjectCode == subjectCode && p.TermYear == termYear {
					related = true
					break
				}
			}
		}
		if related {
			result = append(result, *m.snapshot(g))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].GroupID < result[j].GroupID })
	return result, nil
}

func (m *mockCoTeachingRepo) ListByTerm(_ context.Context, termYear string) ([]model.CoTeachingGroup, error) {
	var result []model.CoTeachingGroup
	for gid, g := range m.groups {
		for id := range m.members[gid] {
			p, ok := m.plans.alive(id)
			if ok && p.TermYear == termYear {
				result = append(result, *m.snapshot(g))
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].GroupKey < result[j].GroupKey })
	return result, nil
}

// ── Mock CoTeachingChangeLogRepository ──

type mockChangeLogRepo struct {
	logs   []model.CoTeachingChangeLog
	nextID uint
}

func newMockChangeLogRepo() *mockChangeLogRepo {
	return &mockChangeLogRepo{nextID: 1}
}

func (m *mockChangeLogRepo) Create(_ context.Context, log *model.CoTeachingChangeLog) error {
	log.ChangeLogID = m.nextID
	m.nextID++
	log.CreatedAt = time.Now()
	m.logs = append(m.logs, *log)
	return nil
}

func (m *mockChangeLogRepo) List(_ context.Context, groupKey string, offset, limit int) ([]model.CoTeachingChangeLog, int64, error) {
	var filtered []model.CoTeachingChangeLog
	for i := len(m.logs) - 1; i >= 0; i-- {
		if groupKey == "" || m.logs[i].GroupKey == groupKey {
			filtered = append(filtered, m.logs[i])
		}
	}
	total := int64(len(filtered))
	if offset >= len(filtered) {
		return []model.CoTeachingChangeLog{}, total, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], total, nil
}

// ── Mock GroupLocker ──

type mockLocker struct {
	err      error
	locked   [][]string
	released int
}

func (m *mockLocker) LockKeys(_ context.Context, keys []string, _ time.Duration) (func(), error) {
	if m.err != nil {
		return nil, m.err
	}
	m.locked = append(m.locked, append([]string(nil), keys...))
	return func() { m.released++ }, nil
}

// ── 测试辅助 ──

type testRepos struct {
	plans      *mockPlanRepo
	coTeaching *mockCoTeachingRepo
	logs       *mockChangeLogRepo
}

func newTestRepository() (*repository.Repository, *testRepos) {
	plans := newMockPlanRepo()
	r := &testRepos{
		plans:      plans,
		coTeaching: newMockCoTeachingRepo(plans),
		logs:       newMockChangeLogRepo(),
	}
	return &repository.Repository{
		Plan:          r.plans,
		CoTeaching:    r.coTeaching,
		CoTeachingLog: r.logs,
	}, r
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
