package stampcut

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stampcut/coordinator"
	"github.com/hupe1980/stampcut/resultlog"
)

func TestBasicMetricsCollector(t *testing.T) {
	m := &BasicMetricsCollector{}

	m.RecordFootprint(time.Millisecond, nil)
	m.RecordFootprint(time.Millisecond, errors.New("bad header"))
	m.RecordStamp(resultlog.OK, 2, 10*time.Millisecond)
	m.RecordStamp(resultlog.NotInField, 0, 30*time.Millisecond)
	m.RecordWindowRead(400, time.Millisecond, nil)
	m.RecordWindowRead(0, time.Millisecond, errors.New("short read"))
	m.RecordPhase("stitch", 2, time.Second)

	s := m.GetStats()
	assert.Equal(t, int64(2), s.FootprintCount)
	assert.Equal(t, int64(1), s.FootprintErrors)
	assert.Equal(t, int64(2), s.StampCount)
	assert.Equal(t, (20 * time.Millisecond).Nanoseconds(), s.StampAvgNanos)
	assert.Equal(t, int64(2), s.StampImages)
	assert.Equal(t, [4]int64{1, 0, 1, 0}, s.StatusCounts)
	assert.Equal(t, int64(2), s.WindowReads)
	assert.Equal(t, int64(1), s.WindowReadErrors)
	assert.Equal(t, int64(400), s.WindowBytes)
	assert.Equal(t, int64(1), s.PhaseCount)
}

func TestPrometheusCollector(t *testing.T) {
	p := NewPrometheusCollector()
	p.RecordFootprint(time.Millisecond, nil)
	p.RecordStamp(resultlog.CenterBlank, 1, time.Millisecond)
	p.RecordWindowRead(1024, time.Millisecond, nil)
	p.RecordPhase("footprint", 3, 2*time.Second)

	families, err := p.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["stampcut_stamps_total"])
	assert.True(t, names["stampcut_phase_duration_seconds"])

	path := filepath.Join(t.TempDir(), "stampcut.prom")
	require.NoError(t, p.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `stampcut_stamps_total{status="center-blank"} 1`)
	assert.Contains(t, string(data), `stampcut_window_read_bytes_total 1024`)
	assert.Contains(t, string(data), `stampcut_phase_duration_seconds{phase="footprint"} 2`)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.Background()

	l.WithRunID("r1").WithPhase(coordinator.PhaseStitch).LogStamp(ctx, resultlog.Entry{
		Target: 3, ID: "42", Images: 1, Status: resultlog.Failed, Reason: "short read",
	})
	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "run_id=r1")
	assert.Contains(t, out, "phase=stitch")
	assert.Contains(t, out, `reason="short read"`)

	buf.Reset()
	l.WithTarget(1, "x").LogPhase(ctx, "match", 5, time.Second, nil)
	assert.Contains(t, buf.String(), `msg="phase completed"`)
	assert.Contains(t, buf.String(), "target=1")

	buf.Reset()
	l.LogFootprint(ctx, 2, "t.fits", errors.New("boom"))
	assert.Contains(t, buf.String(), `msg="image skipped"`)

	NoopLogger().LogPhase(ctx, "total", 0, 0, errors.New("ignored"))
}
