package mapping

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"iot-ingest/internal/formula"
	"iot-ingest/internal/models"
	"iot-ingest/internal/payload"
)

// 档案匹配建议的最低得分
const profileMatchThreshold = 0.9

// SpecStore 映射规格的持久化接口（通常由 repository 实现）
type SpecStore interface {
	Save(ctx context.Context, spec *models.MappingSpecification) error
}

// ChannelFormulaLookup 按通道查询转换公式, 用于保存前校验
// 返回空字符串表示该通道是纯线性转换, 无需公式校验
type ChannelFormulaLookup func(ctx context.Context, channelID string) (string, error)

// Editor 映射绑定编辑器
type Editor struct {
	store         SpecStore
	cache         *Cache
	formulaLookup ChannelFormulaLookup
	logger        *zap.Logger
}

// NewEditor 创建绑定编辑器
func NewEditor(store SpecStore, cache *Cache, formulaLookup ChannelFormulaLookup, logger *zap.Logger) *Editor {
	return &Editor{
		store:         store,
		cache:         cache,
		formulaLookup: formulaLookup,
		logger:        logger,
	}
}

// ListCandidateFields 列出样本载荷的全部候选字段（扁平化路径+值）
func ListCandidateFields(doc map[string]interface{}) []models.PayloadField {
	return payload.Flatten(doc)
}

// SaveMapping 校验并持久化映射规格
// 任一校验失败都带具体原因拒绝, 不写入任何内容
func (e *Editor) SaveMapping(ctx context.Context, spec *models.MappingSpecification) error {
	if spec.ProfileID == "" {
		return fmt.Errorf("mapping spec rejected: profile id is empty")
	}

	for channelID, binding := range spec.ChannelMappings {
		if strings.TrimSpace(binding.PayloadPath) == "" {
			return fmt.Errorf("mapping spec rejected: channel %s has empty payload path", channelID)
		}
		if e.formulaLookup != nil {
			src, err := e.formulaLookup(ctx, channelID)
			if err != nil {
				return fmt.Errorf("failed to look up formula for channel %s: %w", channelID, err)
			}
			if src != "" {
				if err := formula.Validate(src); err != nil {
					return fmt.Errorf("mapping spec rejected: channel %s formula invalid: %w", channelID, err)
				}
			}
		}
	}

	for slot, binding := range spec.MetadataMappings {
		if !models.ValidSlot(slot) {
			return fmt.Errorf("mapping spec rejected: unknown metadata slot %q", slot)
		}
		if strings.TrimSpace(binding.PayloadPath) == "" {
			return fmt.Errorf("mapping spec rejected: metadata slot %s has empty payload path", slot)
		}
		if !models.ValidSlotType(binding.InferredType) {
			return fmt.Errorf("mapping spec rejected: metadata slot %s has invalid type %q", slot, binding.InferredType)
		}
	}

	spec.UpdatedAt = time.Now().UTC()
	if spec.CreatedAt.IsZero() {
		spec.CreatedAt = spec.UpdatedAt
	}

	if err := e.store.Save(ctx, spec); err != nil {
		return fmt.Errorf("failed to save mapping spec: %w", err)
	}

	if e.cache != nil {
		if err := e.cache.Invalidate(ctx, spec.ProfileID); err != nil {
			// 缓存最终会按 TTL 过期, 失效失败不回滚保存
			e.logger.Warn("Failed to invalidate mapping cache after save",
				zap.String("profile_id", spec.ProfileID),
				zap.Error(err),
			)
		}
	}

	e.logger.Info("Mapping spec saved",
		zap.String("profile_id", spec.ProfileID),
		zap.Int("channel_bindings", len(spec.ChannelMappings)),
		zap.Int("metadata_bindings", len(spec.MetadataMappings)),
	)
	return nil
}

// ProfileMatch 档案匹配建议
type ProfileMatch struct {
	ProfileID string
	Score     float64
}

// MatchProfiles 将样本字段与已保存的映射规格打分匹配
// 得分 = 命中的绑定路径数 / 规格绑定路径总数（路径不区分大小写）,
// 仅返回得分不低于 0.9 的建议, 按得分降序
func MatchProfiles(fields []models.PayloadField, specs []*models.MappingSpecification) []ProfileMatch {
	present := make(map[string]bool, len(fields))
	for _, field := range fields {
		present[strings.ToLower(field.Path)] = true
	}

	var matches []ProfileMatch
	for _, spec := range specs {
		total := len(spec.ChannelMappings) + len(spec.MetadataMappings)
		if total == 0 {
			continue
		}

		matched := 0
		for _, binding := range spec.ChannelMappings {
			if present[strings.ToLower(binding.PayloadPath)] {
				matched++
			}
		}
		for _, binding := range spec.MetadataMappings {
			if present[strings.ToLower(binding.PayloadPath)] {
				matched++
			}
		}

		score := float64(matched) / float64(total)
		if score >= profileMatchThreshold {
			matches = append(matches, ProfileMatch{ProfileID: spec.ProfileID, Score: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ProfileID < matches[j].ProfileID
	})
	return matches
}
