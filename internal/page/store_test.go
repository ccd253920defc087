package page

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreEmptyAtStartup(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.Current())
}

func TestStoreReplaceOnSet(t *testing.T) {
	s := NewStore()
	s.Set(&Snapshot{URL: "https://a.example", HTML: "<html>a</html>"})
	s.Set(&Snapshot{URL: "https://b.example", HTML: "<html>b</html>"})

	snap := s.Current()
	require.NotNil(t, snap)
	assert.Equal(t, "https://b.example", snap.URL)
}

func TestStoreCapturedSnapshotSurvivesReplacement(t *testing.T) {
	s := NewStore()
	s.Set(&Snapshot{URL: "https://old.example", HTML: "old"})

	captured := s.Current()
	s.Set(&Snapshot{URL: "https://new.example", HTML: "new"})

	// A reader that captured the snapshot keeps the old attribution.
	assert.Equal(t, "https://old.example", captured.URL)
	assert.Equal(t, "https://new.example", s.Current().URL)
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			s.Set(&Snapshot{URL: fmt.Sprintf("https://example.com/%d", n), HTML: "x"})
		}(i)
		go func() {
			defer wg.Done()
			_ = s.Current()
		}()
	}
	wg.Wait()
	assert.NotNil(t, s.Current())
}
