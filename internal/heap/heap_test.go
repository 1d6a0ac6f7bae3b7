package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// cell is a minimal heap entity for tests: a node that keeps alive
// whatever it references, like a thunk referencing its environment.
type cell struct {
	Base
	refs []*cell
}

func (c *cell) Mark(h *Heap) {
	for _, r := range c.refs {
		h.MarkFrom(r)
	}
}

func TestCollectSweepsUnreachable(t *testing.T) {
	h := New(DefaultConfig())
	root := Alloc(h, &cell{})
	child := Alloc(h, &cell{})
	root.refs = append(root.refs, child)
	Alloc(h, &cell{}) // unreachable
	assert.Equal(t, 3, h.Len())

	h.Collect(root)
	assert.Equal(t, 2, h.Len())
}

func TestCollectFollowsChains(t *testing.T) {
	h := New(DefaultConfig())
	var head *cell
	for idx := 0; idx < 10; idx++ {
		c := Alloc(h, &cell{})
		if head != nil {
			c.refs = append(c.refs, head)
		}
		head = c
	}
	h.Collect(head)
	assert.Equal(t, 10, h.Len())

	// Dropping the root reclaims the whole chain.
	h.Collect()
	assert.Equal(t, 0, h.Len())
}

func TestCollectSurvivesCycles(t *testing.T) {
	h := New(DefaultConfig())
	a := Alloc(h, &cell{})
	b := Alloc(h, &cell{})
	a.refs = append(a.refs, b)
	b.refs = append(b.refs, a)
	h.Collect(a)
	assert.Equal(t, 2, h.Len())
}

func TestStashKeepsEntitiesAlive(t *testing.T) {
	h := New(DefaultConfig())
	stashed := Alloc(h, &cell{})
	mark := h.StashPush(stashed)
	h.Collect()
	assert.Equal(t, 1, h.Len(), "stashed entity must survive a rootless collection")

	h.StashPop(mark)
	h.Collect()
	assert.Equal(t, 0, h.Len())
}

func TestStashNests(t *testing.T) {
	h := New(DefaultConfig())
	outer := Alloc(h, &cell{})
	inner := Alloc(h, &cell{})
	m1 := h.StashPush(outer)
	m2 := h.StashPush(inner)
	h.StashPop(m2)
	h.Collect()
	assert.Equal(t, 1, h.Len(), "inner pop must not disturb the outer stash entry")
	h.StashPop(m1)
}

func TestShouldCollectThresholds(t *testing.T) {
	h := New(Config{MinObjects: 2, GrowthTrigger: 2.0})
	a := Alloc(h, &cell{})
	b := Alloc(h, &cell{})
	assert.False(t, h.ShouldCollect(), "at the minimum, not past it")

	c := Alloc(h, &cell{})
	assert.True(t, h.ShouldCollect())

	h.Collect(a, b, c)
	// Live count is 3 now; growth since the cycle is 1x, under the 2x
	// trigger even though the minimum is exceeded.
	Alloc(h, &cell{})
	assert.False(t, h.ShouldCollect())
}

func TestReMarkingAcrossManyCycles(t *testing.T) {
	// The mark byte is a wrapping generation counter; several hundred
	// cycles must not confuse a live entity for a dead one.
	h := New(DefaultConfig())
	keep := Alloc(h, &cell{})
	for cycle := 0; cycle < 300; cycle++ {
		Alloc(h, &cell{})
		h.Collect(keep)
		assert.Equal(t, 1, h.Len())
	}
}
