package activity

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(content string) PostedItem {
	return PostedItem{ID: "id-" + content, Content: content, Kind: KindPost}
}

func contents(items []PostedItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Content
	}
	return out
}

func TestAppend_MostRecentFirst(t *testing.T) {
	log := NewLog(DefaultCapacity)

	log.Append(post("A"))
	log.Append(post("B"))
	log.Append(post("C"))

	assert.Equal(t, []string{"C", "B", "A"}, contents(log.All()))
	assert.Equal(t, 3, log.Len())
}

func TestAppend_NeverExceedsCapacity(t *testing.T) {
	log := NewLog(DefaultCapacity)

	for i := 0; i < 137; i++ {
		log.Append(post(fmt.Sprintf("%d", i)))
		require.LessOrEqual(t, log.Len(), 50)
	}

	items := log.All()
	require.Len(t, items, 50)
	// Oldest evicted first: 136 down to 87 survive
	assert.Equal(t, "136", items[0].Content)
	assert.Equal(t, "87", items[49].Content)
}

func TestNewLog_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewLog(0).Capacity())
	assert.Equal(t, DefaultCapacity, NewLog(-3).Capacity())
	assert.Equal(t, 2, NewLog(2).Capacity())
}

func TestAppend_FillsDefaults(t *testing.T) {
	log := NewLog(5)
	before := time.Now()

	log.Append(PostedItem{Content: "x"})

	item := log.All()[0]
	assert.False(t, item.Timestamp.Before(before))
	assert.NotNil(t, item.Topics)
	assert.Zero(t, item.Engagement)
}

func TestAll_ReturnsCopy(t *testing.T) {
	log := NewLog(5)
	log.Append(post("A"))

	items := log.All()
	items[0].Content = "mutated"

	assert.Equal(t, "A", log.All()[0].Content)
}

func TestSubscribe(t *testing.T) {
	log := NewLog(5)
	ch := log.Subscribe()

	log.Append(post("A"))

	select {
	case item := <-ch:
		assert.Equal(t, "A", item.Content)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive item")
	}

	log.Unsubscribe(ch)
	log.Append(post("B"))
	assert.Empty(t, ch)
}

func TestAppend_Concurrent(t *testing.T) {
	log := NewLog(DefaultCapacity)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				log.Append(post(fmt.Sprintf("%d-%d", w, i)))
				_ = log.All()
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, DefaultCapacity, log.Len())
}
