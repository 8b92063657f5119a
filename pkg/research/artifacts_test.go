package research

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delverhq/delver/pkg/models"
)

func TestSafeFilename(t *testing.T) {
	now := time.Date(2026, 8, 26, 14, 30, 5, 0, time.UTC)

	t.Run("replaces unsafe characters", func(t *testing.T) {
		name := SafeFilename("What is Go? (2026 edition)", now, ".json")
		assert.Equal(t, "What_is_Go___2026_edition_20260826_143005.json", name)
	})

	t.Run("caps at 80 chars", func(t *testing.T) {
		name := SafeFilename(strings.Repeat("x", 200), now, ".json")
		assert.LessOrEqual(t, len(name), 80)
		assert.True(t, strings.HasSuffix(name, "_20260826_143005.json"))
	})

	t.Run("empty topic gets a placeholder", func(t *testing.T) {
		name := SafeFilename("???", now, ".json")
		assert.Equal(t, "research_20260826_143005.json", name)
	})

	t.Run("multibyte topics stay valid utf8", func(t *testing.T) {
		name := SafeFilename(strings.Repeat("量子计算", 30), now, ".json")
		assert.LessOrEqual(t, len(name), 80)
		assert.True(t, strings.HasSuffix(name, ".json"))
	})
}

func TestSaveRunRecord(t *testing.T) {
	dir := t.TempDir()
	record := &models.RunRecord{
		Topic:       "test topic",
		Queries:     []string{"q1", "q2"},
		Summaries:   []string{"s1"},
		FinalReport: "the report",
		Epoch:       2,
		Mode:        models.ModeLinear,
	}
	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	path, err := SaveRunRecord(dir, record, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "test_topic_20260826_100000.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got models.RunRecord
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, *record, got)
}

func TestSaveRunRecordCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "runs")
	_, err := SaveRunRecord(dir, &models.RunRecord{Topic: "t"}, time.Now())
	require.NoError(t, err)
	_, err = os.Stat(dir)
	assert.NoError(t, err)
}
