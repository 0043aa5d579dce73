package dualnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFactoryNewClientRunsAndCloses(t *testing.T) {
	engine := newFakeEngine(2, 0.25)
	factory := NewFactory(engine, nil)
	defer factory.Close()

	client := factory.New(false)
	defer client.Close()

	result := client.Run(testFeatures())
	require.Len(t, result.Policies, 1)
	require.InDelta(t, 0.25, result.Values[0], 1e-6)
	require.Equal(t, "FakeDualNet", result.Model)
}

func TestWeakClientRunIsNotHeldByIdleCountedPeer(t *testing.T) {
	engine := newFakeEngine(4, 0.0)
	factory := NewFactory(engine, nil)
	defer factory.Close()

	weak := factory.New(true)
	defer weak.Close()

	counted := factory.New(false)
	defer counted.Close()

	// A short batch from the weak client's Run should dispatch without
	// waiting on the counted client, since weak clients never join the
	// census maybeRunBatches consults.
	result := weak.Run(testFeatures())
	require.Len(t, result.Policies, 1)
	require.Equal(t, 1, engine.batchesRun())
}

func TestFactoryStatsReflectDispatchedBatches(t *testing.T) {
	engine := newFakeEngine(1, 0.0)
	factory := NewFactory(engine, nil)
	defer factory.Close()

	client := factory.New(true)
	defer client.Close()

	client.Run(testFeatures())
	client.Run(testFeatures())

	stats := factory.Stats()
	require.Equal(t, 2, stats.Runs)
}

func TestClientIDsAreUnique(t *testing.T) {
	engine := newFakeEngine(1, 0.0)
	factory := NewFactory(engine, nil)
	defer factory.Close()

	a := factory.New(true)
	defer a.Close()
	b := factory.New(true)
	defer b.Close()

	require.NotEqual(t, a.ID(), b.ID())
}
