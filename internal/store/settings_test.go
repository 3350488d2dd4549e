package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sentinel/internal/record"
)

func TestSettings_DefaultsWhenUnset(t *testing.T) {
	s := createTestStore(t)

	got, err := s.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, record.DefaultSettings(), got)
}

func TestMergeSettings_KeepsUnspecifiedFields(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	number := "+39 333 123 4567"
	_, err := s.MergeSettings(ctx, record.SettingsPatch{WhatsappNumber: &number})
	require.NoError(t, err)

	radius := 120.0
	off := false
	got, err := s.MergeSettings(ctx, record.SettingsPatch{NearRadiusM: &radius, EnableNearbyAlert: &off})
	require.NoError(t, err)

	assert.Equal(t, number, got.WhatsappNumber)
	assert.Equal(t, 120.0, got.NearRadiusM)
	assert.False(t, got.EnableNearbyAlert)
	assert.Equal(t, 5.0, got.DefaultThreshold)
}

func TestMergeSettingsFields_PreservesUnknownKeys(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.MergeSettingsFields(ctx, map[string]json.RawMessage{
		"mapTiles": json.RawMessage(`"osm"`),
	}))
	radius := 80.0
	_, err := s.MergeSettings(ctx, record.SettingsPatch{NearRadiusM: &radius})
	require.NoError(t, err)

	fields, err := s.SettingsFields(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `"osm"`, string(fields["mapTiles"]))
	assert.JSONEq(t, `80`, string(fields["nearRadiusM"]))
}

func TestMergeSettingsFields_RejectsUndecodable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.MergeSettingsFields(ctx, map[string]json.RawMessage{
		"nearRadiusM": json.RawMessage(`"far"`),
	})
	assert.True(t, IsConstraintViolation(err), "got %v", err)

	got, err := s.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 300.0, got.NearRadiusM)
}
