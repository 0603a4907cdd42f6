package services

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubmitRunsWork(t *testing.T) {
	tasks, err := NewTaskRunner(2, testLogger())
	require.NoError(t, err)
	defer tasks.Release()

	done := make(chan struct{})
	tasks.Submit("unit", func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("eingereihte Einheit wurde nie ausgeführt")
	}
}

func TestSubmitDoesNotBlockWhenPoolIsFull(t *testing.T) {
	tasks, err := NewTaskRunner(1, testLogger())
	require.NoError(t, err)
	defer tasks.Release()

	block := make(chan struct{})
	started := make(chan struct{})
	tasks.Submit("blocker", func() {
		close(started)
		<-block
	})
	<-started

	// Der einzige Worker hängt; Submit muss trotzdem sofort zurückkehren
	// (Einheit wird verworfen, nicht gewartet).
	returned := make(chan struct{})
	go func() {
		tasks.Submit("overflow", func() {})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Submit wartet bei vollem Pool auf einen freien Worker")
	}
	close(block)
}

func TestSubmitRecoversPanickingTask(t *testing.T) {
	tasks, err := NewTaskRunner(1, testLogger())
	require.NoError(t, err)
	defer tasks.Release()

	tasks.Submit("panic", func() { panic("kaputt") })

	// Der Worker überlebt die Panik und nimmt weitere Einheiten an.
	var ran atomic.Bool
	require.Eventually(t, func() bool {
		tasks.Submit("after", func() { ran.Store(true) })
		return ran.Load()
	}, 2*time.Second, 20*time.Millisecond)
}
