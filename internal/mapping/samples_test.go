package mapping

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupSampleWindow(t *testing.T, size int) (*miniredis.Miniredis, *SampleWindow) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return mr, NewSampleWindow(client, size, zap.NewNop())
}

func TestSampleWindow_PushAndList(t *testing.T) {
	_, window := setupSampleWindow(t, 10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		doc := map[string]interface{}{
			"seq": fmt.Sprintf("msg-%d", i),
		}
		require.NoError(t, window.Push(ctx, "profile-1", doc))
	}

	samples, err := window.List(ctx, "profile-1")
	require.NoError(t, err)
	require.Len(t, samples, 3)

	// 最新的在前
	assert.Equal(t, "msg-2", samples[0]["seq"])
	assert.Equal(t, "msg-0", samples[2]["seq"])
}

func TestSampleWindow_TrimsToSize(t *testing.T) {
	_, window := setupSampleWindow(t, 10)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		doc := map[string]interface{}{
			"seq": fmt.Sprintf("msg-%d", i),
		}
		require.NoError(t, window.Push(ctx, "profile-1", doc))
	}

	samples, err := window.List(ctx, "profile-1")
	require.NoError(t, err)
	require.Len(t, samples, 10)
	assert.Equal(t, "msg-14", samples[0]["seq"])
	assert.Equal(t, "msg-5", samples[9]["seq"])
}

func TestSampleWindow_ProfilesAreIsolated(t *testing.T) {
	_, window := setupSampleWindow(t, 10)
	ctx := context.Background()

	require.NoError(t, window.Push(ctx, "profile-1", map[string]interface{}{"v": "a"}))
	require.NoError(t, window.Push(ctx, "profile-2", map[string]interface{}{"v": "b"}))

	samples, err := window.List(ctx, "profile-1")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "a", samples[0]["v"])
}

func TestSampleWindow_SkipsCorruptEntries(t *testing.T) {
	mr, window := setupSampleWindow(t, 10)
	ctx := context.Background()

	require.NoError(t, window.Push(ctx, "profile-1", map[string]interface{}{"v": "good"}))
	mr.Lpush(sampleKey("profile-1"), "{broken")

	samples, err := window.List(ctx, "profile-1")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "good", samples[0]["v"])
}

func TestSampleWindow_EmptyProfile(t *testing.T) {
	_, window := setupSampleWindow(t, 10)

	samples, err := window.List(context.Background(), "profile-none")
	require.NoError(t, err)
	assert.Empty(t, samples)
}
