package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"curriplan/internal/dto"
	"curriplan/internal/model"
	"curriplan/internal/repository"
	pkgerrors "curriplan/pkg/errors"
)

// ── 合班模块业务错误 ──

var (
	ErrInvalidGroupKey   = errors.New("合班组键不能为空")
	ErrEmptyPlanIDs      = errors.New("开课计划ID列表不能为空")
	ErrPartsOverlap      = errors.New("拆分的两部分包含相同的开课计划")
	ErrInvalidPartNumber = errors.New("拆分部分编号必须为不同的正整数")
	ErrGroupKeyExists    = errors.New("合班组键已存在")
	ErrGroupBusy         = errors.New("合班组正在被其他操作修改，请稍后重试")
)

// CoTeachingService 合班（co-teaching）组维护接口
//
// 设计说明：
//   - 合班组以组键唯一标识，成员为开课计划，多对多关系
//   - 所有写操作在单个事务中完成，任一步失败整体回滚
//   - 成员为空的组在同一事务内删除
//   - 配置 Redis 时按组键加互斥锁，避免并发请求交错修改同一组
type CoTeachingService interface {
	Lookup(ctx context.Context, planID uint) (*dto.CoTeachingLookupResponse, error)
	Merge(ctx context.Context, req *dto.MergeRequest, callerID string) error
	Unmerge(ctx context.Context, req *dto.UnmergeRequest, callerID string) error
	Split(ctx context.Context, req *dto.SplitRequest, callerID string) (*dto.SplitResponse, error)
	MergeBack(ctx context.Context, req *dto.MergeBackRequest, callerID string) (*dto.MergeBackResponse, error)
	ListGroups(ctx context.Context, termYear string) ([]dto.CoTeachingGroupResponse, error)
	ListChangeLogs(ctx context.Context, req *dto.CoTeachingChangeLogListRequest) ([]dto.CoTeachingChangeLogResponse, int64, error)
}

type coTeachingService struct {
	repo    *repository.Repository
	locker  GroupLocker
	lockTTL time.Duration
	logger  *zap.Logger
}

// NewCoTeachingService 创建 CoTeachingService 实例
func NewCoTeachingService(repo *repository.Repository, locker GroupLocker, lockTTL time.Duration, logger *zap.Logger) CoTeachingService {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &coTeachingService{repo: repo, locker: locker, lockTTL: lockTTL, logger: logger}
}

// ────────────────────── Lookup ──────────────────────

func (s *coTeachingService) Lookup(ctx context.Context, planID uint) (*dto.CoTeachingLookupResponse, error) {
	if planID == 0 {
		return nil, ErrInvalidPlanID
	}
	if _, err := s.repo.Plan.GetByID(ctx, planID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		s.logger.Error("查询开课计划失败", zap.Uint("plan_id", planID), zap.Error(err))
		return nil, err
	}

	resp := &dto.CoTeachingLookupResponse{
		PlanIDs: []uint{},
		Details: []dto.CoTeachingPlanBrief{},
	}

	group, err := s.repo.CoTeaching.GetByPlanID(ctx, planID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return resp, nil
		}
		s.logger.Error("查询合班组失败", zap.Uint("plan_id", planID), zap.Error(err))
		return nil, err
	}

	key := group.GroupKey
	resp.GroupKey = &key
	for _, p := range group.Plans {
		resp.PlanIDs = append(resp.PlanIDs, p.PlanID)
		resp.Details = append(resp.Details, dto.CoTeachingPlanBrief{
			ID:        p.PlanID,
			PlanType:  p.PlanType,
			YearLevel: p.YearLevel,
		})
	}
	return resp, nil
}

// ────────────────────── Merge ──────────────────────

// Merge 将计划并入组键对应的合班组；组不存在则以这些计划创建
// 纯增量操作：已是成员的计划不受影响
func (s *coTeachingService) Merge(ctx context.Context, req *dto.MergeRequest, callerID string) error {
	key := strings.TrimSpace(req.GroupKey)
	if key == "" {
		return ErrInvalidGroupKey
	}
	ids, err := normalizePlanIDs(req.PlanIDs)
	if err != nil {
		return err
	}

	unlock, err := s.lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	return runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if err := s.ensurePlansExist(ctx, txRepo, ids); err != nil {
			return err
		}

		created := false
		group, err := txRepo.CoTeaching.GetByKey(ctx, key)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := s.createGroup(ctx, txRepo, key, ids, callerID); err != nil {
				return err
			}
			created = true
		case err != nil:
			s.logger.Error("查询合班组失败", zap.String("group_key", key), zap.Error(err))
			return err
		default:
			if err := txRepo.CoTeaching.AddPlans(ctx, group.GroupID, ids); err != nil {
				s.logger.Error("添加合班成员失败",
					zap.String("group_key", key), zap.Uints("plan_ids", ids), zap.Error(err))
				return err
			}
		}

		return s.writeLog(ctx, txRepo, model.CoTeachingActionMerge, key, ids, callerID, map[string]interface{}{
			"created": created,
		})
	})
}

// ────────────────────── Unmerge ──────────────────────

// Unmerge 将计划移出合班组；组不存在视为成功，组变空则删除
func (s *coTeachingService) Unmerge(ctx context.Context, req *dto.UnmergeRequest, callerID string) error {
	key := strings.TrimSpace(req.GroupKey)
	if key == "" {
		return ErrInvalidGroupKey
	}
	ids, err := normalizePlanIDs(req.PlanIDs)
	if err != nil {
		return err
	}

	unlock, err := s.lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	return runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		group, err := txRepo.CoTeaching.GetByKey(ctx, key)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			s.logger.Error("查询合班组失败", zap.String("group_key", key), zap.Error(err))
			return err
		}

		deleted, err := detachPlans(ctx, txRepo, group, ids)
		if err != nil {
			s.logger.Error("移除合班成员失败",
				zap.String("group_key", key), zap.Uints("plan_ids", ids), zap.Error(err))
			return err
		}

		return s.writeLog(ctx, txRepo, model.CoTeachingActionUnmerge, key, ids, callerID, map[string]interface{}{
			"group_deleted": deleted,
		})
	})
}

// ────────────────────── Split ──────────────────────

// Split 将原组拆为两部分，各自以带部分编号的组键新建
// 原组不存在时跳过移除步骤；派生组键已被占用时返回 ErrGroupKeyExists 并整体回滚
func (s *coTeachingService) Split(ctx context.Context, req *dto.SplitRequest, callerID string) (*dto.SplitResponse, error) {
	origKey := strings.TrimSpace(req.OriginalGroupKey)
	if origKey == "" {
		return nil, ErrInvalidGroupKey
	}
	part1, err := normalizePlanIDs(req.Part1IDs)
	if err != nil {
		return nil, err
	}
	part2, err := normalizePlanIDs(req.Part2IDs)
	if err != nil {
		return nil, err
	}
	if overlaps(part1, part2) {
		return nil, ErrPartsOverlap
	}

	p1, p2 := req.PartNumbers.Part1, req.PartNumbers.Part2
	if p1 <= 0 || p2 <= 0 || p1 == p2 {
		return nil, ErrInvalidPartNumber
	}

	// 组键派生失败时不做任何写入
	key1, err := DeriveGroupKey(req.SubjectCode, req.TermYear, p1)
	if err != nil {
		return nil, err
	}
	key2, err := DeriveGroupKey(req.SubjectCode, req.TermYear, p2)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, origKey, key1, key2)
	if err != nil {
		return nil, err
	}
	defer unlock()

	union := append(append(make([]uint, 0, len(part1)+len(part2)), part1...), part2...)

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if err := s.ensurePlansExist(ctx, txRepo, union); err != nil {
			return err
		}

		// 原组键与派生组键相同时，是否冲突取决于原组拆分后是否被删除，交给唯一约束判断
		for _, key := range []string{key1, key2} {
			if key == origKey {
				continue
			}
			if err := s.ensureKeyFree(ctx, txRepo, key); err != nil {
				return err
			}
		}

		origDeleted := false
		orig, err := txRepo.CoTeaching.GetByKey(ctx, origKey)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			s.logger.Error("查询原合班组失败", zap.String("group_key", origKey), zap.Error(err))
			return err
		default:
			origDeleted, err = detachPlans(ctx, txRepo, orig, union)
			if err != nil {
				s.logger.Error("从原合班组移除成员失败",
					zap.String("group_key", origKey), zap.Uints("plan_ids", union), zap.Error(err))
				return err
			}
		}

		for _, part := range []struct {
			key string
			ids []uint
		}{{key1, part1}, {key2, part2}} {
			if err := s.createGroup(ctx, txRepo, part.key, part.ids, callerID); err != nil {
				return err
			}
		}

		return s.writeLog(ctx, txRepo, model.CoTeachingActionSplit, origKey, union, callerID, map[string]interface{}{
			"part1_group_key":  key1,
			"part1_plan_ids":   part1,
			"part2_group_key":  key2,
			"part2_plan_ids":   part2,
			"original_deleted": origDeleted,
		})
	})
	if err != nil {
		return nil, err
	}

	return &dto.SplitResponse{
		Success:      true,
		NewGroupKeys: dto.SplitGroupKeys{Part1: key1, Part2: key2},
	}, nil
}

// ────────────────────── MergeBack ──────────────────────

// MergeBack 删除与科目/学期相关的全部合班组，再以 mergedPlanIDs 新建未拆分组
// 全量替换：未包含在 mergedPlanIDs 中的原成员将不再属于任何组
func (s *coTeachingService) MergeBack(ctx context.Context, req *dto.MergeBackRequest, callerID string) (*dto.MergeBackResponse, error) {
	subjectCode := strings.TrimSpace(req.SubjectCode)
	termYear := strings.TrimSpace(req.TermYear)

	newKey, err := DeriveGroupKey(subjectCode, termYear)
	if err != nil {
		return nil, err
	}
	ids, err := normalizePlanIDs(req.MergedPlanIDs)
	if err != nil {
		return nil, err
	}

	// 相关组会被整体删除，需与新组键一并加锁
	related, err := s.listRelated(ctx, s.repo, subjectCode, termYear)
	if err != nil {
		return nil, err
	}
	lockedKeys := append(groupKeys(related), newKey)
	unlock, err := s.lock(ctx, lockedKeys...)
	if err != nil {
		return nil, err
	}
	defer unlock()
	// 补加的锁在事务提交后释放
	unlockExtra := func() {}
	defer func() { unlockExtra() }()

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if err := s.ensurePlansExist(ctx, txRepo, ids); err != nil {
			return err
		}

		related, err := s.listRelated(ctx, txRepo, subjectCode, termYear)
		if err != nil {
			return err
		}

		// 加锁后新出现的相关组补加锁
		var extra []string
		for _, k := range groupKeys(related) {
			if !containsKey(lockedKeys, k) {
				extra = append(extra, k)
			}
		}
		if len(extra) > 0 {
			release, err := s.lock(ctx, extra...)
			if err != nil {
				return err
			}
			unlockExtra = release
		}

		removed := make([]string, 0, len(related))
		for i := range related {
			if err := txRepo.CoTeaching.Delete(ctx, related[i].GroupID); err != nil {
				s.logger.Error("删除合班组失败", zap.String("group_key", related[i].GroupKey), zap.Error(err))
				return err
			}
			removed = append(removed, related[i].GroupKey)
		}

		if err := s.createGroup(ctx, txRepo, newKey, ids, callerID); err != nil {
			return err
		}

		return s.writeLog(ctx, txRepo, model.CoTeachingActionMergeBack, newKey, ids, callerID, map[string]interface{}{
			"removed_group_keys": removed,
		})
	})
	if err != nil {
		return nil, err
	}

	return &dto.MergeBackResponse{Success: true, NewGroupKey: newKey}, nil
}

// ────────────────────── ListGroups ──────────────────────

func (s *coTeachingService) ListGroups(ctx context.Context, termYear string) ([]dto.CoTeachingGroupResponse, error) {
	termYear = strings.TrimSpace(termYear)
	if _, _, err := ParseTermYear(termYear); err != nil {
		return nil, err
	}

	groups, err := s.repo.CoTeaching.ListByTerm(ctx, termYear)
	if err != nil {
		s.logger.Error("列出合班组失败", zap.String("term_year", termYear), zap.Error(err))
		return nil, err
	}

	result := make([]dto.CoTeachingGroupResponse, 0, len(groups))
	for i := range groups {
		result = append(result, dto.CoTeachingGroupResponse{
			ID:       groups[i].GroupID,
			GroupKey: groups[i].GroupKey,
			Plans:    toPlanResponses(groups[i].Plans),
		})
	}
	return result, nil
}

// ────────────────────── ListChangeLogs ──────────────────────

func (s *coTeachingService) ListChangeLogs(ctx context.Context, req *dto.CoTeachingChangeLogListRequest) ([]dto.CoTeachingChangeLogResponse, int64, error) {
	logs, total, err := s.repo.CoTeachingLog.List(ctx, strings.TrimSpace(req.GroupKey), req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询合班变更日志失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.CoTeachingChangeLogResponse, 0, len(logs))
	for i := range logs {
		item := dto.CoTeachingChangeLogResponse{
			ID:         logs[i].ChangeLogID,
			Action:     logs[i].Action,
			GroupKey:   logs[i].GroupKey,
			PlanIDs:    []int(logs[i].PlanIDs),
			OperatorID: logs[i].OperatorID,
			CreatedAt:  formatTime(logs[i].CreatedAt),
		}
		if len(logs[i].Detail) > 0 {
			if err := json.Unmarshal(logs[i].Detail, &item.Detail); err != nil {
				s.logger.Warn("解析变更日志详情失败", zap.Uint("id", logs[i].ChangeLogID), zap.Error(err))
			}
		}
		result = append(result, item)
	}
	return result, total, nil
}

// ── 内部辅助方法 ──

// lock 获取组键互斥锁；Redis 异常时降级为不加锁
func (s *coTeachingService) lock(ctx context.Context, keys ...string) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}
	unlock, err := s.locker.LockKeys(ctx, keys, s.lockTTL)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrLockNotAcquired) {
			return nil, ErrGroupBusy
		}
		s.logger.Warn("获取组键锁失败，降级为无锁执行", zap.Strings("keys", keys), zap.Error(err))
		return noop, nil
	}
	return unlock, nil
}

func (s *coTeachingService) listRelated(ctx context.Context, repo *repository.Repository, subjectCode, termYear string) ([]model.CoTeachingGroup, error) {
	related, err := repo.CoTeaching.ListRelated(ctx, subjectCode, termYear)
	if err != nil {
		s.logger.Error("查询相关合班组失败",
			zap.String("subject_code", subjectCode), zap.String("term_year", termYear), zap.Error(err))
		return nil, err
	}
	return related, nil
}

func groupKeys(groups []model.CoTeachingGroup) []string {
	keys := make([]string, 0, len(groups))
	for i := range groups {
		keys = append(keys, groups[i].GroupKey)
	}
	return keys
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

func (s *coTeachingService) createGroup(ctx context.Context, txRepo *repository.Repository, key string, ids []uint, callerID string) error {
	group := &model.CoTeachingGroup{GroupKey: key}
	group.CreatedBy = &callerID
	group.UpdatedBy = &callerID

	if err := txRepo.CoTeaching.Create(ctx, group, ids); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrGroupKeyExists
		}
		s.logger.Error("创建合班组失败",
			zap.String("group_key", key), zap.Uints("plan_ids", ids), zap.Error(err))
		return err
	}
	return nil
}

func (s *coTeachingService) ensureKeyFree(ctx context.Context, txRepo *repository.Repository, key string) error {
	_, err := txRepo.CoTeaching.GetByKey(ctx, key)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", ErrGroupKeyExists, key)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		s.logger.Error("查询合班组失败", zap.String("group_key", key), zap.Error(err))
		return err
	}
}

func (s *coTeachingService) ensurePlansExist(ctx context.Context, txRepo *repository.Repository, ids []uint) error {
	plans, err := txRepo.Plan.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("查询开课计划失败", zap.Uints("plan_ids", ids), zap.Error(err))
		return err
	}
	if len(plans) == len(ids) {
		return nil
	}

	found := make(map[uint]struct{}, len(plans))
	for _, p := range plans {
		found[p.PlanID] = struct{}{}
	}
	missing := make([]uint, 0, len(ids)-len(plans))
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return fmt.Errorf("%w: %v", ErrPlanNotFound, missing)
}

func (s *coTeachingService) writeLog(ctx context.Context, txRepo *repository.Repository, action, key string, ids []uint, callerID string, detail map[string]interface{}) error {
	raw, err := json.Marshal(detail)
	if err != nil {
		return err
	}
	entry := &model.CoTeachingChangeLog{
		Action:     action,
		GroupKey:   key,
		PlanIDs:    model.IntArrayFromIDs(ids),
		Detail:     datatypes.JSON(raw),
		OperatorID: callerID,
	}
	if err := txRepo.CoTeachingLog.Create(ctx, entry); err != nil {
		s.logger.Error("写入合班变更日志失败", zap.String("group_key", key), zap.Error(err))
		return err
	}
	return nil
}

// detachPlans 从组中移除计划，组内不再有有效成员时删除该组
func detachPlans(ctx context.Context, txRepo *repository.Repository, group *model.CoTeachingGroup, ids []uint) (bool, error) {
	if err := txRepo.CoTeaching.RemovePlans(ctx, group.GroupID, ids); err != nil {
		return false, err
	}
	remaining, err := txRepo.CoTeaching.CountPlans(ctx, group.GroupID)
	if err != nil {
		return false, err
	}
	if remaining > 0 {
		return false, nil
	}
	if err := txRepo.CoTeaching.Delete(ctx, group.GroupID); err != nil {
		return false, err
	}
	return true, nil
}

// normalizePlanIDs 去重并保持原顺序；0 视为无效 ID
func normalizePlanIDs(ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, ErrEmptyPlanIDs
	}
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			return nil, ErrInvalidPlanID
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func overlaps(a, b []uint) bool {
	set := make(map[uint]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
