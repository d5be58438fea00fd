package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medpipe/pump-history-cli/internal/domain"
)

func testSession(t *testing.T) domain.ReconciledSession {
	t.Helper()

	deviceTime, err := domain.ParseLocalTime("2024-03-01T13:00:00")
	require.NoError(t, err)

	return domain.ReconciledSession{
		SessionID:   "11111111-2222-3333-4444-555555555555",
		DeviceID:    "pod-451",
		Family:      "insulet",
		Zone:        "America/Los_Angeles",
		GeneratedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Events: []domain.Event{
			{
				Record: domain.Record{
					ID:         "b1",
					Family:     domain.FamilyBasal,
					Time:       time.Date(2024, 3, 1, 21, 0, 0, 0, time.UTC),
					DeviceTime: deviceTime,
					DeviceID:   "pod-451",
					Basal: &domain.BasalPayload{
						DeliveryKind: domain.DeliveryScheduled,
						Rate:         0.75,
						ScheduleName: "standard",
					},
				},
			},
		},
		Stats: domain.Stats{Records: 1, Events: 1},
	}
}

func TestSinkWritesSessionFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.json")
	sink, err := NewSink(path)
	require.NoError(t, err)

	require.NoError(t, sink.Write(context.Background(), testSession(t)))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(raw), "\n"))

	var decoded domain.ReconciledSession
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", decoded.SessionID)
	assert.Equal(t, "insulet", decoded.Family)
	require.Len(t, decoded.Events, 1)
	assert.Equal(t, "b1", decoded.Events[0].ID)
	assert.Equal(t, 1, decoded.Stats.Records)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestNewSinkRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := NewSink("")
	require.ErrorIs(t, err, errEmptyPath)
}

func TestSinkCreatesParentDirectories(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sessions", "2024", "session.json")
	sink, err := NewSink(path)
	require.NoError(t, err)

	require.NoError(t, sink.Write(context.Background(), testSession(t)))

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestSinkOverwritesExistingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))

	sink, err := NewSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Write(context.Background(), testSession(t)))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "stale")
	assert.Contains(t, string(raw), "pod-451")
}

func TestSinkLeavesNoTempFilesBehind(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink, err := NewSink(filepath.Join(dir, "session.json"))
	require.NoError(t, err)
	require.NoError(t, sink.Write(context.Background(), testSession(t)))

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestSinkHonorsCancelledContext(t *testing.T) {
	t.Parallel()

	sink, err := NewSink(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, sink.Write(ctx, testSession(t)), context.Canceled)
}
