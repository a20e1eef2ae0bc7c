package mapping

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// SampleWindow 每个设备档案最近 N 条原始载荷的滚动窗口
// 编辑器从窗口浏览候选字段, 覆盖近期固件的不同载荷形态
type SampleWindow struct {
	client *redis.Client
	size   int
	logger *zap.Logger
}

// NewSampleWindow 创建样本窗口
func NewSampleWindow(client *redis.Client, size int, logger *zap.Logger) *SampleWindow {
	return &SampleWindow{
		client: client,
		size:   size,
		logger: logger,
	}
}

func sampleKey(profileID string) string {
	return fmt.Sprintf("telemetry:samples:%s", profileID)
}

// Push 记录一条原始载荷并裁剪窗口到固定长度
func (w *SampleWindow) Push(ctx context.Context, profileID string, doc map[string]interface{}) error {
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal sample payload: %w", err)
	}

	key := sampleKey(profileID)
	pipe := w.client.Pipeline()
	pipe.LPush(ctx, key, string(jsonData))
	pipe.LTrim(ctx, key, 0, int64(w.size-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push sample: %w", err)
	}
	return nil
}

// List 返回档案的样本载荷, 最新的在前
// 反序列化失败的条目跳过, 不中断浏览
func (w *SampleWindow) List(ctx context.Context, profileID string) ([]map[string]interface{}, error) {
	items, err := w.client.LRange(ctx, sampleKey(profileID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}

	samples := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		var doc map[string]interface{}
		if err := json.Unmarshal([]byte(item), &doc); err != nil {
			w.logger.Warn("Skipping corrupt sample payload",
				zap.String("profile_id", profileID),
				zap.Error(err),
			)
			continue
		}
		samples = append(samples, doc)
	}
	return samples, nil
}
