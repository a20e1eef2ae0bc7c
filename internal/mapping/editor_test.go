package mapping

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"iot-ingest/internal/models"
)

// fakeSpecStore 记录保存调用的持久化桩
type fakeSpecStore struct {
	saved []*models.MappingSpecification
}

func (f *fakeSpecStore) Save(ctx context.Context, spec *models.MappingSpecification) error {
	f.saved = append(f.saved, spec)
	return nil
}

func TestListCandidateFields(t *testing.T) {
	doc := map[string]interface{}{
		"meta": map[string]interface{}{
			"serial": "PUMP-007",
		},
		"data": map[string]interface{}{
			"telemetry": map[string]interface{}{
				"pressure_bar": 4.2,
			},
		},
	}

	fields := ListCandidateFields(doc)
	require.Len(t, fields, 2)
	assert.Equal(t, "data.telemetry.pressure_bar", fields[0].Path)
	assert.Equal(t, "meta.serial", fields[1].Path)
}

func TestSaveMapping_Valid(t *testing.T) {
	store := &fakeSpecStore{}
	editor := NewEditor(store, nil, nil, zap.NewNop())

	spec := testSpec()
	err := editor.SaveMapping(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, store.saved, 1)
	assert.False(t, spec.UpdatedAt.IsZero())
	assert.False(t, spec.CreatedAt.IsZero())
}

func TestSaveMapping_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(spec *models.MappingSpecification)
		substr string
	}{
		{
			"empty profile id",
			func(s *models.MappingSpecification) { s.ProfileID = "" },
			"profile id",
		},
		{
			"empty channel path",
			func(s *models.MappingSpecification) {
				s.ChannelMappings["ch-temp"] = models.ChannelMapping{PayloadPath: "  "}
			},
			"empty payload path",
		},
		{
			"unknown metadata slot",
			func(s *models.MappingSpecification) {
				s.MetadataMappings["batteryLevel"] = models.MetadataMapping{
					PayloadPath:  "meta.battery",
					InferredType: models.SlotTypeNumber,
				}
			},
			"unknown metadata slot",
		},
		{
			"invalid slot type",
			func(s *models.MappingSpecification) {
				s.MetadataMappings[models.SlotDeviceID] = models.MetadataMapping{
					PayloadPath:  "meta.serial",
					InferredType: "boolean",
				}
			},
			"invalid type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeSpecStore{}
			editor := NewEditor(store, nil, nil, zap.NewNop())

			spec := testSpec()
			tt.mutate(spec)

			err := editor.SaveMapping(context.Background(), spec)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.substr)
			assert.Empty(t, store.saved, "nothing may be persisted on rejection")
		})
	}
}

func TestSaveMapping_FormulaValidation(t *testing.T) {
	store := &fakeSpecStore{}
	formulas := map[string]string{
		"ch-pressure": "(x - 0.5) * 2.5",
		"ch-temp":     "require('fs')",
		"ch-flow":     "",
	}
	lookup := func(ctx context.Context, channelID string) (string, error) {
		return formulas[channelID], nil
	}
	editor := NewEditor(store, nil, lookup, zap.NewNop())

	err := editor.SaveMapping(context.Background(), testSpec())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ch-temp")
	assert.Empty(t, store.saved)

	// 修复公式后保存成功
	formulas["ch-temp"] = "x * 1.8 + 32"
	err = editor.SaveMapping(context.Background(), testSpec())
	require.NoError(t, err)
	assert.Len(t, store.saved, 1)
}

func TestSaveMapping_InvalidatesCache(t *testing.T) {
	kv := newFakeKVStore()
	loader := &fakeSpecLoader{spec: testSpec()}
	cache := NewCache(kv, loader, 0, zap.NewNop())

	ctx := context.Background()
	_, err := cache.Get(ctx, "profile-1")
	require.NoError(t, err)
	require.Equal(t, 1, loader.calls)

	editor := NewEditor(&fakeSpecStore{}, cache, nil, zap.NewNop())
	require.NoError(t, editor.SaveMapping(ctx, testSpec()))

	_, err = cache.Get(ctx, "profile-1")
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)
}

func TestMatchProfiles(t *testing.T) {
	fields := []models.PayloadField{
		{Path: "data.telemetry.pressure_bar"},
		{Path: "data.telemetry.temp_c"},
		{Path: "data.telemetry.flow_lpm"},
		{Path: "meta.reported_at"},
		{Path: "meta.serial"},
		{Path: "meta.rssi"},
	}

	full := testSpec() // 6/6 命中
	partial := testSpec()
	partial.ProfileID = "profile-2"
	partial.ChannelMappings = map[string]models.ChannelMapping{
		"ch-pressure": {PayloadPath: "data.telemetry.pressure_bar"},
		"ch-other":    {PayloadPath: "data.telemetry.vibration_hz"},
	}
	partial.MetadataMappings = nil // 1/2 命中

	matches := MatchProfiles(fields, []*models.MappingSpecification{partial, full})
	require.Len(t, matches, 1)
	assert.Equal(t, "profile-1", matches[0].ProfileID)
	assert.Equal(t, 1.0, matches[0].Score)
}

func TestMatchProfiles_CaseInsensitive(t *testing.T) {
	fields := []models.PayloadField{
		{Path: "Data.Telemetry.Pressure_Bar"},
	}
	spec := &models.MappingSpecification{
		ProfileID: "profile-3",
		ChannelMappings: map[string]models.ChannelMapping{
			"ch-pressure": {PayloadPath: "data.telemetry.pressure_bar"},
		},
	}

	matches := MatchProfiles(fields, []*models.MappingSpecification{spec})
	require.Len(t, matches, 1)
	assert.Equal(t, 1.0, matches[0].Score)
}

func TestMatchProfiles_SortedDescending(t *testing.T) {
	fields := []models.PayloadField{
		{Path: "a"}, {Path: "b"}, {Path: "c"}, {Path: "d"}, {Path: "e"},
		{Path: "f"}, {Path: "g"}, {Path: "h"}, {Path: "i"},
	}

	exact := &models.MappingSpecification{
		ProfileID: "exact",
		ChannelMappings: map[string]models.ChannelMapping{
			"c1": {PayloadPath: "a"},
			"c2": {PayloadPath: "b"},
		},
	}
	nearMiss := &models.MappingSpecification{
		ProfileID: "near",
		ChannelMappings: map[string]models.ChannelMapping{
			"c1": {PayloadPath: "a"}, "c2": {PayloadPath: "b"},
			"c3": {PayloadPath: "c"}, "c4": {PayloadPath: "d"},
			"c5": {PayloadPath: "e"}, "c6": {PayloadPath: "f"},
			"c7": {PayloadPath: "g"}, "c8": {PayloadPath: "h"},
			"c9": {PayloadPath: "i"}, "c10": {PayloadPath: "zz"},
		},
	}

	matches := MatchProfiles(fields, []*models.MappingSpecification{nearMiss, exact})
	require.Len(t, matches, 2)
	assert.Equal(t, "exact", matches[0].ProfileID)
	assert.Equal(t, "near", matches[1].ProfileID)
	assert.InDelta(t, 0.9, matches[1].Score, 1e-9)
}
