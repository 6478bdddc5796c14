package toposort_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/axonworks/axon/pkg/toposort"
)

func TestSymbolTable_InternAssignsDenseIDs(t *testing.T) {
	t.Parallel()

	table := toposort.NewSymbolTable()

	assert.Equal(t, 0, table.Intern("ingest"))
	assert.Equal(t, 1, table.Intern("score"))
	assert.Equal(t, 0, table.Intern("ingest"))
	assert.Equal(t, 2, table.Len())
}

func TestSymbolTable_Lookup(t *testing.T) {
	t.Parallel()

	table := toposort.NewSymbolTable()
	table.Intern("ingest")

	id, ok := table.Lookup("ingest")
	assert.True(t, ok)
	assert.Equal(t, 0, id)

	_, ok = table.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, table.Len(), "lookup must not intern")
}

func TestSymbolTable_Resolve(t *testing.T) {
	t.Parallel()

	table := toposort.NewSymbolTable()
	table.Intern("ingest")

	assert.Equal(t, "ingest", table.Resolve(0))
	assert.Equal(t, "", table.Resolve(1))
	assert.Equal(t, "", table.Resolve(-1))
}

func TestSymbolTable_ConcurrentIntern(t *testing.T) {
	t.Parallel()

	table := toposort.NewSymbolTable()
	names := []string{"collect", "filter", "rank", "render"}

	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for _, name := range names {
				table.Intern(name)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, len(names), table.Len())

	for _, name := range names {
		id, ok := table.Lookup(name)
		assert.True(t, ok)
		assert.Equal(t, name, table.Resolve(id))
	}
}
