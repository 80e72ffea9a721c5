package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"curriplan/internal/dto"
	"curriplan/internal/model"
	"curriplan/internal/repository"
	pkgerrors "curriplan/pkg/errors"
)

// ── 开课计划模块业务错误 ──

var (
	ErrPlanNotFound        = errors.New("开课计划不存在")
	ErrInvalidPlanID       = errors.New("开课计划ID无效")
	ErrInvalidPlanType     = errors.New("计划类型无效")
	ErrInvalidSubjectCode  = errors.New("科目代码不能为空")
	ErrInvalidTermYear     = errors.New("学期格式无效，应为 学期号/学年")
	ErrPlanVersionConflict = errors.New("开课计划已被修改，请刷新后重试")
)

// counterpartTypes 互为镜像的职业教育计划类型
var counterpartTypes = map[string]string{
	model.PlanTypeDVEMSIX: model.PlanTypeDVELVC,
	model.PlanTypeDVELVC:  model.PlanTypeDVEMSIX,
}

// PlanService 开课计划业务接口
type PlanService interface {
	Create(ctx context.Context, req *dto.CreatePlanRequest, callerID string) (*dto.PlanResponse, error)
	GetByID(ctx context.Context, id uint) (*dto.PlanResponse, error)
	List(ctx context.Context, req *dto.PlanListRequest) ([]dto.PlanResponse, int64, error)
	Update(ctx context.Context, id uint, req *dto.UpdatePlanRequest, callerID string) (*dto.PlanResponse, error)
	Delete(ctx context.Context, id uint, callerID string) error
	ListCounterparts(ctx context.Context, id uint) ([]dto.PlanResponse, error)
}

type planService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewPlanService 创建 PlanService 实例
func NewPlanService(repo *repository.Repository, logger *zap.Logger) PlanService {
	return &planService{repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *planService) Create(ctx context.Context, req *dto.CreatePlanRequest, callerID string) (*dto.PlanResponse, error) {
	plan := &model.Plan{
		SubjectCode: strings.TrimSpace(req.SubjectCode),
		SubjectName: strings.TrimSpace(req.SubjectName),
		TermYear:    strings.TrimSpace(req.TermYear),
		PlanType:    req.PlanType,
		YearLevel:   req.YearLevel,
	}
	if err := validatePlan(plan); err != nil {
		return nil, err
	}
	plan.CreatedBy = &callerID
	plan.UpdatedBy = &callerID

	if err := s.repo.Plan.Create(ctx, plan); err != nil {
		s.logger.Error("创建开课计划失败", zap.Error(err))
		return nil, err
	}

	return toPlanResponse(plan), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *planService) GetByID(ctx context.Context, id uint) (*dto.PlanResponse, error) {
	plan, err := s.getPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	return toPlanResponse(plan), nil
}

// ────────────────────── List ──────────────────────

func (s *planService) List(ctx context.Context, req *dto.PlanListRequest) ([]dto.PlanResponse, int64, error) {
	for _, pt := range req.PlanTypes {
		if !model.IsValidPlanType(pt) {
			return nil, 0, ErrInvalidPlanType
		}
	}

	plans, total, err := s.repo.Plan.List(ctx, repository.PlanFilter{
		SubjectCode: strings.TrimSpace(req.SubjectCode),
		TermYear:    strings.TrimSpace(req.TermYear),
		PlanTypes:   req.PlanTypes,
		YearLevel:   req.YearLevel,
		Offset:      req.GetOffset(),
		Limit:       req.GetPageSize(),
	})
	if err != nil {
		s.logger.Error("列出开课计划失败", zap.Error(err))
		return nil, 0, err
	}

	return toPlanResponses(plans), total, nil
}

// ────────────────────── Update ──────────────────────

func (s *planService) Update(ctx context.Context, id uint, req *dto.UpdatePlanRequest, callerID string) (*dto.PlanResponse, error) {
	plan, err := s.getPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Version != plan.Version {
		return nil, ErrPlanVersionConflict
	}

	if req.SubjectCode != nil {
		plan.SubjectCode = strings.TrimSpace(*req.SubjectCode)
	}
	if req.SubjectName != nil {
		plan.SubjectName = strings.TrimSpace(*req.SubjectName)
	}
	if req.TermYear != nil {
		plan.TermYear = strings.TrimSpace(*req.TermYear)
	}
	if req.PlanType != nil {
		plan.PlanType = *req.PlanType
	}
	if req.YearLevel != nil {
		plan.YearLevel = *req.YearLevel
	}
	if err := validatePlan(plan); err != nil {
		return nil, err
	}
	plan.UpdatedBy = &callerID

	if err := s.repo.Plan.Update(ctx, plan); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrPlanVersionConflict
		}
		s.logger.Error("更新开课计划失败", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}

	return toPlanResponse(plan), nil
}

// ────────────────────── Delete ──────────────────────

// Delete 软删除计划，并将其移出所在合班组（组变空时一并删除）
func (s *planService) Delete(ctx context.Context, id uint, callerID string) error {
	if _, err := s.getPlan(ctx, id); err != nil {
		return err
	}

	return runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if err := txRepo.Plan.Delete(ctx, id, callerID); err != nil {
			s.logger.Error("删除开课计划失败", zap.Uint("id", id), zap.Error(err))
			return err
		}

		group, err := txRepo.CoTeaching.GetByPlanID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			s.logger.Error("查询计划所在合班组失败", zap.Uint("id", id), zap.Error(err))
			return err
		}

		_, err = detachPlans(ctx, txRepo, group, []uint{id})
		if err != nil {
			s.logger.Error("移出合班组失败",
				zap.String("group_key", group.GroupKey), zap.Uint("id", id), zap.Error(err))
		}
		return err
	})
}

// ────────────────────── ListCounterparts ──────────────────────

// ListCounterparts 查找同科目同学期的镜像计划（DVE-MSIX ↔ DVE-LVC）
// 仅供调用方参考同步，本服务不强制镜像关系
func (s *planService) ListCounterparts(ctx context.Context, id uint) ([]dto.PlanResponse, error) {
	plan, err := s.getPlan(ctx, id)
	if err != nil {
		return nil, err
	}

	mirror, ok := counterpartTypes[plan.PlanType]
	if !ok {
		return []dto.PlanResponse{}, nil
	}

	plans, _, err := s.repo.Plan.List(ctx, repository.PlanFilter{
		SubjectCode: plan.SubjectCode,
		TermYear:    plan.TermYear,
		PlanTypes:   []string{mirror},
	})
	if err != nil {
		s.logger.Error("查询镜像计划失败", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}

	return toPlanResponses(plans), nil
}

// ── 内部辅助方法 ──

func (s *planService) getPlan(ctx context.Context, id uint) (*model.Plan, error) {
	if id == 0 {
		return nil, ErrInvalidPlanID
	}
	plan, err := s.repo.Plan.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		s.logger.Error("查询开课计划失败", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}
	return plan, nil
}

func validatePlan(plan *model.Plan) error {
	if plan.SubjectCode == "" {
		return ErrInvalidSubjectCode
	}
	if !model.IsValidPlanType(plan.PlanType) {
		return ErrInvalidPlanType
	}
	if _, _, err := ParseTermYear(plan.TermYear); err != nil {
		return err
	}
	return nil
}

func toPlanResponse(plan *model.Plan) *dto.PlanResponse {
	return &dto.PlanResponse{
		ID:          plan.PlanID,
		SubjectCode: plan.SubjectCode,
		SubjectName: plan.SubjectName,
		TermYear:    plan.TermYear,
		PlanType:    plan.PlanType,
		YearLevel:   plan.YearLevel,
		Version:     plan.Version,
		CreatedAt:   formatTime(plan.CreatedAt),
		UpdatedAt:   formatTime(plan.UpdatedAt),
	}
}

// formatTime 统一输出 UTC 的 RFC3339 时间
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toPlanResponses(plans []model.Plan) []dto.PlanResponse {
	result := make([]dto.PlanResponse, 0, len(plans))
	for i := range plans {
		result = append(result, *toPlanResponse(&plans[i]))
	}
	return result
}
