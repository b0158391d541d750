package pagecache_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatapp-client/pagecache"
)

func TestQueryKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		query    pagecache.Query
		expected string
	}{
		{
			name:     "limit only",
			query:    pagecache.Query{Limit: 50},
			expected: "limit=50",
		},
		{
			name:     "before anchor",
			query:    pagecache.Query{Limit: 2, Before: "100"},
			expected: "limit=2&before=100",
		},
		{
			name:     "after anchor",
			query:    pagecache.Query{Limit: 10, After: "7"},
			expected: "limit=10&after=7",
		},
		{
			name:     "around anchor",
			query:    pagecache.Query{Limit: 10, Around: "7"},
			expected: "limit=10&around=7",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.query.Key())
		})
	}
}

func TestQueryAnchored(t *testing.T) {
	t.Parallel()

	assert.False(t, pagecache.Query{Limit: 50}.Anchored())
	assert.True(t, pagecache.Query{Limit: 50, Before: "1"}.Anchored())
	assert.True(t, pagecache.Query{Limit: 50, After: "1"}.Anchored())
	assert.True(t, pagecache.Query{Limit: 50, Around: "1"}.Anchored())
}

func TestOrderAppendPrepend(t *testing.T) {
	t.Parallel()

	c := pagecache.New()
	c.Append("ch", "2")
	c.Append("ch", "3")
	c.Prepend("ch", "1")

	assert.Equal(t, []string{"1", "2", "3"}, c.Order("ch"))
}

func TestDuplicateInsertsIgnored(t *testing.T) {
	t.Parallel()

	c := pagecache.New()
	c.Append("ch", "1")
	c.Append("ch", "2")

	// Overlapping pages re-deliver ids the order already holds.
	c.Append("ch", "1")
	c.Prepend("ch", "2")

	assert.Equal(t, []string{"1", "2"}, c.Order("ch"))
}

func TestRemove(t *testing.T) {
	t.Parallel()

	c := pagecache.New()
	for _, id := range []string{"1", "2", "3"} {
		c.Append("ch", id)
	}

	c.Remove("ch", "2")
	assert.Equal(t, []string{"1", "3"}, c.Order("ch"))

	c.Remove("ch", "2")
	c.Remove("other", "1")
	assert.Equal(t, []string{"1", "3"}, c.Order("ch"))

	// A removed id may be inserted again.
	c.Append("ch", "2")
	assert.Equal(t, []string{"1", "3", "2"}, c.Order("ch"))
}

func TestTail(t *testing.T) {
	t.Parallel()

	c := pagecache.New()
	for _, id := range []string{"1", "2", "3"} {
		c.Append("ch", id)
	}

	assert.Equal(t, []string{"2", "3"}, c.Tail("ch", 2))
	assert.Equal(t, []string{"1", "2", "3"}, c.Tail("ch", 10))
	assert.Nil(t, c.Tail("missing", 5))
}

func TestFullyCached(t *testing.T) {
	t.Parallel()

	c := pagecache.New()
	assert.False(t, c.FullyCached("ch"))

	c.MarkFullyCached("ch")
	assert.True(t, c.FullyCached("ch"))
	assert.False(t, c.FullyCached("other"))
}

func TestFetchCachesSuccess(t *testing.T) {
	t.Parallel()

	c := pagecache.New()
	calls := 0
	fetch := func() (pagecache.Page, error) {
		calls++
		return pagecache.Page{IDs: []string{"1", "2"}}, nil
	}

	p, err := c.Fetch("ch", "limit=2", fetch)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, p.IDs)

	p, err = c.Fetch("ch", "limit=2", fetch)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, p.IDs)
	assert.Equal(t, 1, calls)

	// A different key fetches again.
	_, err = c.Fetch("ch", "limit=3", fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestFetchFailureNotCached(t *testing.T) {
	t.Parallel()

	c := pagecache.New()
	failed := errors.New("network down")
	calls := 0

	_, err := c.Fetch("ch", "limit=2", func() (pagecache.Page, error) {
		calls++
		return pagecache.Page{}, failed
	})
	require.ErrorIs(t, err, failed)

	p, err := c.Fetch("ch", "limit=2", func() (pagecache.Page, error) {
		calls++
		return pagecache.Page{IDs: []string{"1"}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, p.IDs)
	assert.Equal(t, 2, calls)
}

func TestFetchCoalescesConcurrentQueries(t *testing.T) {
	t.Parallel()

	c := pagecache.New()
	var calls atomic.Int32
	release := make(chan struct{})

	fetch := func() (pagecache.Page, error) {
		calls.Add(1)
		<-release
		return pagecache.Page{IDs: []string{"1"}}, nil
	}

	var wg sync.WaitGroup
	results := make([]pagecache.Page, 8)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := c.Fetch("ch", "limit=1", fetch)
			assert.NoError(t, err)
			results[i] = p
		}()
	}

	// Let the goroutines pile up on the in-flight fetch before releasing it.
	for calls.Load() == 0 {
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, p := range results {
		assert.Equal(t, []string{"1"}, p.IDs)
	}
}

func TestDropChannel(t *testing.T) {
	t.Parallel()

	c := pagecache.New()
	c.Append("ch", "1")
	c.MarkFullyCached("ch")
	_, _ = c.Fetch("ch", "limit=1", func() (pagecache.Page, error) {
		return pagecache.Page{IDs: []string{"1"}}, nil
	})

	c.DropChannel("ch")

	assert.Nil(t, c.Order("ch"))
	assert.False(t, c.FullyCached("ch"))
	_, ok := c.CachedPage("ch", "limit=1")
	assert.False(t, ok)
}
