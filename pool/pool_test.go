package pool

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinefabric/fcgx-go/fcgitest"
	"github.com/machinefabric/fcgx-go/request"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func echoHandler(r *request.Request) {
	body := r.ReadAll()
	r.Write("Content-type: text/plain\r\n")
	r.Write("\r\n")
	r.Write(body)
	r.Flush(request.StreamOut)
	r.Finish()
}

func TestPoolEchoesAllCycles(t *testing.T) {
	const cycles = 50

	eng := fcgitest.NewEngine()
	for i := 0; i < cycles; i++ {
		eng.Push(nil, []byte(fmt.Sprintf("body-%d", i)))
	}
	eng.Close()

	cfg := DefaultConfig()
	cfg.Workers = 4
	p, err := New(request.NewRuntime(eng), echoHandler, cfg, quietLogger())
	require.NoError(t, err)
	require.NoError(t, p.Run())

	tr := eng.Transcript()
	require.Len(t, tr, cycles)
	seen := make(map[string]bool)
	for _, c := range tr {
		assert.Equal(t, "Content-type: text/plain\r\n\r\n"+string(c.Stdin), string(c.Stdout))
		seen[string(c.Stdin)] = true
	}
	assert.Len(t, seen, cycles, "no cycle served twice")
	assert.LessOrEqual(t, eng.PeakConcurrentAccepts(), 1)
}

func TestPoolFinishesCycleWhenHandlerForgets(t *testing.T) {
	eng := fcgitest.NewEngine()
	eng.Push(nil, nil)
	eng.Close()

	cfg := DefaultConfig()
	cfg.Workers = 1
	p, err := New(request.NewRuntime(eng), func(r *request.Request) {
		r.Write("partial")
		// no Finish
	}, cfg, quietLogger())
	require.NoError(t, err)
	require.NoError(t, p.Run())

	require.Len(t, eng.Transcript(), 1, "the pool must finish abandoned cycles")
}

func TestPoolSurvivesHandlerPanic(t *testing.T) {
	eng := fcgitest.NewEngine()
	eng.Push(map[string]string{"REQUEST_URI": "/boom"}, nil)
	eng.Push(map[string]string{"REQUEST_URI": "/ok"}, nil)
	eng.Close()

	cfg := DefaultConfig()
	cfg.Workers = 1
	p, err := New(request.NewRuntime(eng), func(r *request.Request) {
		if uri, _ := r.GetParam("REQUEST_URI"); uri == "/boom" {
			panic("handler bug")
		}
		r.Write("ok")
		r.Finish()
	}, cfg, quietLogger())
	require.NoError(t, err)
	require.NoError(t, p.Run())

	tr := eng.Transcript()
	require.Len(t, tr, 2, "the worker must outlive a panicking handler")
	assert.Equal(t, "/boom", tr[0].Params["REQUEST_URI"])
	assert.Equal(t, "/ok", tr[1].Params["REQUEST_URI"])
	assert.Equal(t, "ok", string(tr[1].Stdout))
}

func TestPoolAbortsWhenRuntimeInitFails(t *testing.T) {
	eng := fcgitest.NewEngine()
	eng.FailInit(errors.New("socket setup failed"))

	p, err := New(request.NewRuntime(eng), echoHandler, DefaultConfig(), quietLogger())
	require.NoError(t, err)
	err = p.Run()
	require.Error(t, err)
	assert.Empty(t, eng.Transcript(), "no worker may serve after a failed init")
}

func TestPoolAbortsWhenWorkerConstructionFails(t *testing.T) {
	eng := fcgitest.NewEngine()
	eng.FailInitRequest(errors.New("record init failed"))

	p, err := New(request.NewRuntime(eng), echoHandler, DefaultConfig(), quietLogger())
	require.NoError(t, err)
	err = p.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker 0")
}

func TestNewRejectsBadArguments(t *testing.T) {
	eng := fcgitest.NewEngine()
	rt := request.NewRuntime(eng)

	_, err := New(rt, nil, DefaultConfig(), nil)
	require.Error(t, err)

	cfg := DefaultConfig()
	cfg.Workers = 0
	_, err = New(rt, echoHandler, cfg, nil)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.ChunkSize = 0
	_, err = New(rt, echoHandler, cfg, nil)
	require.Error(t, err)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("FCGX_WORKERS", "3")
	t.Setenv("FCGX_CHUNK_SIZE", "128")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 128, cfg.ChunkSize)
}

func TestConfigFromEnvDefaults(t *testing.T) {
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfigFromEnvRejectsInvalid(t *testing.T) {
	t.Setenv("FCGX_WORKERS", "0")
	_, err := ConfigFromEnv()
	require.Error(t, err)
}
