package monitoring

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingReceiver struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *recordingReceiver) SendAlert(alert *Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, *alert)
	return nil
}

type switchablePinger struct {
	mu  sync.Mutex
	err error
}

func (p *switchablePinger) Health(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *switchablePinger) set(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func TestAlertManager(t *testing.T) {
	ctx := context.Background()

	t.Run("异常期间只告警一次，恢复后自动解除", func(t *testing.T) {
		am := NewAlertManager(nil)
		receiver := &recordingReceiver{}
		am.AddReceiver(receiver)

		pinger := &switchablePinger{err: errors.New("database is locked")}
		am.AddRule(DatabaseHealthRule(pinger, time.Second))

		am.CheckRules(ctx)
		am.CheckRules(ctx)
		require.Len(t, receiver.alerts, 1)
		assert.Equal(t, "database_health", receiver.alerts[0].ID)
		assert.Equal(t, AlertLevelCritical, receiver.alerts[0].Level)
		assert.Len(t, am.GetActiveAlerts(), 1)

		pinger.set(nil)
		am.CheckRules(ctx)
		assert.Empty(t, am.GetActiveAlerts())
		alerts := am.GetAlerts()
		require.Len(t, alerts, 1)
		assert.True(t, alerts[0].Resolved)
		assert.NotNil(t, alerts[0].ResolvedAt)

		pinger.set(errors.New("disk I/O error"))
		am.CheckRules(ctx)
		assert.Len(t, receiver.alerts, 2)
	})

	t.Run("服务端错误突增规则按增量判断", func(t *testing.T) {
		m := NewMetrics()
		rule := ServerErrorBurstRule(m, 3)

		m.RecordError(ErrorTypeHTTP, "http")
		m.RecordError("validation", "email")
		assert.False(t, rule.Condition(ctx))

		m.RecordError(ErrorTypeHTTP, "http")
		m.RecordError(ErrorTypeHTTP, "http")
		m.RecordPanic()
		assert.True(t, rule.Condition(ctx))

		// 上一轮已计入的错误不再重复触发
		assert.False(t, rule.Condition(ctx))
	})

	t.Run("内存阈值规则", func(t *testing.T) {
		assert.True(t, HighMemoryUsageRule(0).Condition(ctx))
		assert.False(t, HighMemoryUsageRule(1<<20).Condition(ctx))
	})

	t.Run("日志接收器按级别输出", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		receiver := NewLogAlertReceiver(zap.New(core))

		require.NoError(t, receiver.SendAlert(&Alert{ID: "a", Level: AlertLevelCritical}))
		require.NoError(t, receiver.SendAlert(&Alert{ID: "b", Level: AlertLevelWarning}))

		entries := logs.All()
		require.Len(t, entries, 2)
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
		assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	})

	t.Run("ctx取消后停止巡检", func(t *testing.T) {
		am := NewAlertManager(zap.NewNop())
		cctx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			am.StartMonitoring(cctx, time.Millisecond)
			close(done)
		}()
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("monitoring did not stop")
		}
	})
}
