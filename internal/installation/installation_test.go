package installation_test

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizmarket/wizapp/internal/installation"
	"github.com/wizmarket/wizapp/internal/store"
)

func TestProvider_StableWithinProcess(t *testing.T) {
	p := installation.New(nil, nil)

	first, err := p.ID()
	require.NoError(t, err)
	_, err = uuid.Parse(first)
	require.NoError(t, err)

	second, err := p.ID()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestProvider_ConcurrentFirstUse(t *testing.T) {
	s, err := store.OpenInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	p := installation.New(s, nil)
	ids := make([]string, 16)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Go(func() {
			id, err := p.ID()
			assert.NoError(t, err)
			ids[i] = id
		})
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestProvider_SurvivesRelaunch(t *testing.T) {
	dir := t.TempDir()

	s, err := store.Open(dir, nil)
	require.NoError(t, err)
	first, err := installation.New(s, nil).ID()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = store.Open(dir, nil)
	require.NoError(t, err)
	defer s.Close()

	second, err := installation.New(s, nil).ID()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
