package buffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer(t *testing.T) {
	t.Run("drain returns entries in arrival order", func(t *testing.T) {
		b := New[string, int]()
		b.Add("k", 1)
		b.Add("k", 2)
		b.Add("other", 9)

		got := b.Drain("k")

		assert.Equal(t, []int{1, 2}, got)
		assert.Equal(t, 1, b.Len())
	})

	t.Run("drain empties the key", func(t *testing.T) {
		b := New[string, int]()
		b.Add("k", 1)

		require.Len(t, b.Drain("k"), 1)
		assert.Empty(t, b.Drain("k"))
	})

	t.Run("drain of unknown key is empty", func(t *testing.T) {
		b := New[string, int]()
		assert.Empty(t, b.Drain("missing"))
	})

	t.Run("concurrent adds and drains lose nothing", func(t *testing.T) {
		const writers = 8
		const perWriter = 200

		b := New[string, int]()
		var wg sync.WaitGroup

		collected := make(chan []int, writers*perWriter)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for w := 0; w < writers; w++ {
				for j := 0; j < perWriter; j++ {
					if got := b.Drain("k"); len(got) > 0 {
						collected <- got
					}
				}
			}
		}()

		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					b.Add("k", i)
				}
			}()
		}
		wg.Wait()
		<-done
		close(collected)

		total := 0
		for got := range collected {
			total += len(got)
		}
		total += len(b.Drain("k"))

		assert.Equal(t, writers*perWriter, total)
	})
}
