package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMinMaxClamp(t *testing.T) {
	assert.Equal(t, 5, Max(3, 5))
	assert.Equal(t, 3, Min(3, 5))
	assert.Equal(t, "b", Max("a", "b"))
	assert.Equal(t, 0, Clamp(-2, 0, 10))
	assert.Equal(t, 10, Clamp(42, 0, 10))
	assert.Equal(t, 7, Clamp(7, 0, 10))
}

func TestTimeHelpers(t *testing.T) {
	a := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := a.Add(time.Hour)

	assert.True(t, LaterTime(a, b).Equal(b))
	assert.True(t, LaterTime(b, a).Equal(b))
	assert.True(t, EarlierTime(a, b).Equal(a))

	p := TimePtr(a)
	assert.NotNil(t, p)
	assert.True(t, p.Equal(a))
}

func TestAppendUnique(t *testing.T) {
	s := []string{"a"}
	s = AppendUnique(s, "b")
	s = AppendUnique(s, "a")
	assert.Equal(t, []string{"a", "b"}, s)
}

func TestRemove(t *testing.T) {
	s := []string{"a", "b", "a", "c"}
	assert.Equal(t, []string{"b", "c"}, Remove(s, "a"))
	assert.Equal(t, []string{"b", "c"}, Remove([]string{"b", "c"}, "missing"))
}

func TestContains(t *testing.T) {
	assert.True(t, Contains([]int{1, 2, 3}, 2))
	assert.False(t, Contains([]int{1, 2, 3}, 9))
	assert.False(t, Contains(nil, 1))
}
