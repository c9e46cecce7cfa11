package logging

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockLogger_CapturesEntries(t *testing.T) {
	m := NewMockLogger()
	m.Info("loaded", F(FieldCount, 3))
	m.Warn("defective row")

	entries := m.GetEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "INFO", entries[0].Level)
	assert.Equal(t, []Field{{Key: FieldCount, Value: 3}}, entries[0].Fields)
	assert.True(t, m.HasEntry("WARN", "defective row"))
	assert.Len(t, m.GetEntriesByLevel("INFO"), 1)
}

func TestMockLogger_DerivedLoggersShareStore(t *testing.T) {
	m := NewMockLogger()
	child := m.WithField(FieldStage, "extract").WithError(errors.New("x"))
	child.Error("failed", F(FieldPage, 1))

	entries := m.GetEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "failed", entries[0].Message)
	assert.EqualError(t, entries[0].Error, "x")
	assert.Equal(t, []Field{{Key: FieldStage, Value: "extract"}, {Key: FieldPage, Value: 1}}, entries[0].Fields)
}

func TestMockLogger_ZeroValueUsable(t *testing.T) {
	var m MockLogger
	m.Debug("first")
	m.Warn("second")

	assert.True(t, m.HasEntry("WARN", "second"))
	assert.Len(t, m.GetEntriesByLevel("DEBUG"), 1)
	m.Clear()
	assert.Empty(t, m.GetEntries())
}

func TestMockLogger_ConcurrentUse(t *testing.T) {
	m := NewMockLogger()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.WithField("worker", i).Info("done")
		}(i)
	}
	wg.Wait()

	assert.Len(t, m.GetEntries(), 20)
}

func TestFor(t *testing.T) {
	m := NewMockLogger()
	For(m, "detector").Info("scored", F(FieldCount, 4))

	entries := m.GetEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, []Field{{Key: FieldComponent, Value: "detector"}, {Key: FieldCount, Value: 4}}, entries[0].Fields)

	assert.NotPanics(t, func() { For(nil, "loader").Info("discarded") })
}
