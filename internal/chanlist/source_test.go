package chanlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangeSourceSequenceAndWrap(t *testing.T) {
	src, err := NewRangeSource(28400000, 28410000, 1000, ModeUSB, nil)
	require.NoError(t, err)

	want := []int64{
		28400000, 28401000, 28402000, 28403000, 28404000, 28405000,
		28406000, 28407000, 28408000, 28409000, 28410000,
	}
	for i, freq := range want {
		target, wrapped := src.Next()
		assert.Equal(t, freq, target.Freq)
		assert.Equal(t, i, target.Index)
		assert.False(t, wrapped, "unexpected wrap at %d", i)
		assert.GreaterOrEqual(t, target.Freq, int64(28400000))
		assert.LessOrEqual(t, target.Freq, int64(28410000))
	}

	// The value immediately following end is start again.
	target, wrapped := src.Next()
	assert.True(t, wrapped)
	assert.Equal(t, int64(28400000), target.Freq)
	assert.Equal(t, 0, target.Index)
}

func TestRangeSourceExcludes(t *testing.T) {
	exclude, err := ParseExcludes([]string{"28401000"})
	require.NoError(t, err)

	src, err := NewRangeSource(28400000, 28402000, 1000, ModeUSB, exclude)
	require.NoError(t, err)

	t1, _ := src.Next()
	t2, _ := src.Next()
	t3, _ := src.Next()

	assert.True(t, t1.Eligible)
	assert.False(t, t2.Eligible)
	assert.True(t, t3.Eligible)
}

func TestRangeSourceResume(t *testing.T) {
	src, err := NewRangeSource(28400000, 28410000, 1000, ModeUSB, nil, WithResumeFrom(28405000))
	require.NoError(t, err)

	target, wrapped := src.Next()
	assert.False(t, wrapped)
	assert.Equal(t, int64(28405000), target.Freq)
	assert.Equal(t, 5, target.Index)

	// A resume frequency outside the range falls back to start.
	src, err = NewRangeSource(28400000, 28410000, 1000, ModeUSB, nil, WithResumeFrom(7100000))
	require.NoError(t, err)

	target, _ = src.Next()
	assert.Equal(t, int64(28400000), target.Freq)
}

func TestRangeSourceValidation(t *testing.T) {
	_, err := NewRangeSource(28410000, 28400000, 1000, ModeUSB, nil)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = NewRangeSource(28400000, 28410000, 0, ModeUSB, nil)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = NewRangeSource(0, 28410000, 1000, ModeUSB, nil)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestTableSourceCycle(t *testing.T) {
	entries := []Entry{
		{Freq: 28400000, Mode: ModeUSB, Name: "One"},
		{Freq: 145500000, Mode: ModeFM, Name: "Two"},
	}

	src, err := NewTableSource(entries, nil, nil)
	require.NoError(t, err)

	t1, w1 := src.Next()
	t2, w2 := src.Next()
	t3, w3 := src.Next()

	assert.Equal(t, "One", t1.Name)
	assert.Equal(t, "Two", t2.Name)
	assert.Equal(t, "One", t3.Name)
	assert.False(t, w1)
	assert.False(t, w2)
	assert.True(t, w3, "returning to the first entry is a lap boundary")

	src.Reset()
	t4, w4 := src.Next()
	assert.Equal(t, 0, t4.Index)
	assert.False(t, w4)
}

func TestTableSourceEmpty(t *testing.T) {
	_, err := NewTableSource(nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyTable)
}
