package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_ObserveStage(t *testing.T) {
	c := NewCollector()

	c.ObserveStage("案件A", "去重处理", 20*time.Millisecond, 42, nil)
	c.ObserveStage("案件A", "导入数据库", time.Second, 0, errors.New("disk full"))
	c.ObserveRun(nil)
	c.ObserveRun(errors.New("x"))

	assert.Equal(t, 42.0, testutil.ToFloat64(c.stageRows.WithLabelValues("案件A", "去重处理")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stageFailures.WithLabelValues("案件A", "导入数据库")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("failed")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.stageDuration))
}

func TestCollector_WriteTextfile(t *testing.T) {
	c := NewCollector()
	c.ObserveStage("r", "生成流水总表", time.Millisecond, 7, nil)

	path := filepath.Join(t.TempDir(), "textfile", "ledger.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.Contains(out, `ledger_stage_rows{report="r",stage="生成流水总表"} 7`), out)
	assert.Contains(t, out, "ledger_stage_duration_seconds_bucket")
}

func TestCollectors_AreIndependent(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	a.ObserveRun(nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.runs.WithLabelValues("completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.runs.WithLabelValues("completed")))
}
