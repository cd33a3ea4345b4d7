package app

import (
	"context"
	"io"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-appointment-assistant/internal/chat"
	"github.com/hackgods/clinic-appointment-assistant/internal/config"
	"github.com/hackgods/clinic-appointment-assistant/internal/logging"
	redisclient "github.com/hackgods/clinic-appointment-assistant/internal/redis"
	"github.com/hackgods/clinic-appointment-assistant/internal/session"
)

func memoryConfig(redisAddr string) config.Config {
	return config.Config{
		StoreBackend:          config.StoreBackendMemory,
		RedisAddr:             redisAddr,
		LockTTL:               5 * time.Second,
		SessionTTL:            time.Hour,
		ReminderLookaheadDays: 7,
		Timezone:              time.UTC,
		PublicBaseURL:         "http://localhost:8080",
	}
}

func TestNewWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	a, err := New(context.Background(), memoryConfig(mr.Addr()), logging.NewWithWriter("error", io.Discard), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Redis)
	assert.Nil(t, a.Pool)
	assert.Nil(t, a.Generator)
	assert.IsType(t, &session.RedisStore[chat.SessionState]{}, a.Sessions)

	// The wired engine answers a first turn end to end.
	reply, next := a.Engine.HandleTurn(context.Background(), "Hello", chat.NewSession())
	assert.Contains(t, reply, "full name")
	require.NoError(t, a.Sessions.Put(context.Background(), "s1", next))
	assert.True(t, mr.Exists("chat:session:s1"))
}

func TestNewFallsBackWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	a, err := New(context.Background(), memoryConfig(addr), logging.NewWithWriter("error", io.Discard), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Redis)
	assert.IsType(t, &redisclient.LocalLocker{}, a.Locker)
	assert.IsType(t, &session.MemoryStore[chat.SessionState]{}, a.Sessions)
}

func TestNewRejectsMissingIntakeForm(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig(mr.Addr())
	cfg.IntakeFormPath = t.TempDir() + "/missing.pdf"

	_, err := New(context.Background(), cfg, logging.NewWithWriter("error", io.Discard), prometheus.NewRegistry())
	assert.Error(t, err)
}
