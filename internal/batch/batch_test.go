package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mb = 1024 * 1024

func sizeArchiver(t *testing.T, budget int64) *Archiver {
	policy, err := SizeBound(budget)
	require.NoError(t, err)
	return NewArchiver(policy)
}

func countArchiver(t *testing.T, n int) *Archiver {
	policy, err := CountBound(n)
	require.NoError(t, err)
	return NewArchiver(policy)
}

// collect feeds sizes through an archiver and returns the member sizes of
// every batch, remainder included.
func collect(a *Archiver, sizes []int64) [][]int64 {
	var batches [][]int64
	flatten := func(b *Batch) {
		var out []int64
		for _, m := range b.Members() {
			out = append(out, m.Size)
		}
		batches = append(batches, out)
	}
	for _, size := range sizes {
		if closed := a.Add(Member{Title: "x", Size: size}); closed != nil {
			flatten(closed)
		}
	}
	if closed := a.Flush(); closed != nil {
		flatten(closed)
	}
	return batches
}

func TestPolicyConstructors(t *testing.T) {
	assert := assert.New(t)
	_, err := CountBound(0)
	assert.ErrorIs(err, ErrInvalidCount)
	_, err = CountBound(-1)
	assert.ErrorIs(err, ErrInvalidCount)
	_, err = SizeBound(0)
	assert.ErrorIs(err, ErrInvalidBudget)
	_, err = CountBound(10)
	assert.NoError(err)
	_, err = SizeBound(47 * mb)
	assert.NoError(err)
}

func TestSizeBoundSplitsBeforeExceeding(t *testing.T) {
	assert := assert.New(t)
	a := sizeArchiver(t, 47*mb)
	batches := collect(a, []int64{20 * mb, 20 * mb, 20 * mb, 1 * mb, 1 * mb})
	assert.Equal([][]int64{
		{20 * mb, 20 * mb},
		{20 * mb, 1 * mb, 1 * mb},
	}, batches)
}

func TestSizeBoundNeverExceedsBudget(t *testing.T) {
	assert := assert.New(t)
	a := sizeArchiver(t, 47*mb)
	sizes := []int64{10 * mb, 30 * mb, 10 * mb, 5 * mb, 40 * mb, 2 * mb}
	for _, batch := range collect(a, sizes) {
		var total int64
		for _, s := range batch {
			total += s
		}
		assert.LessOrEqual(total, int64(47*mb))
	}
}

func TestSizeBoundOversizeMemberGetsOwnBatch(t *testing.T) {
	assert := assert.New(t)
	a := sizeArchiver(t, 47*mb)
	batches := collect(a, []int64{10 * mb, 80 * mb, 10 * mb})
	assert.Equal([][]int64{
		{10 * mb},
		{80 * mb},
		{10 * mb},
	}, batches)
}

func TestSizeBoundOversizeFirstMember(t *testing.T) {
	assert := assert.New(t)
	a := sizeArchiver(t, 47*mb)
	batches := collect(a, []int64{80 * mb})
	assert.Equal([][]int64{{80 * mb}}, batches)
}

func TestCountBoundClosesOnNth(t *testing.T) {
	assert := assert.New(t)
	a := countArchiver(t, 10)
	sizes := make([]int64, 23)
	batches := collect(a, sizes)
	assert.Len(batches, 3)
	assert.Len(batches[0], 10)
	assert.Len(batches[1], 10)
	assert.Len(batches[2], 3)
}

func TestCountBoundExactMultipleLeavesNoRemainder(t *testing.T) {
	assert := assert.New(t)
	a := countArchiver(t, 5)
	batches := collect(a, make([]int64, 10))
	assert.Len(batches, 2)
	assert.Equal(0, a.Pending())
}

func TestFlushEmptyReturnsNil(t *testing.T) {
	assert := assert.New(t)
	a := countArchiver(t, 5)
	assert.Nil(a.Flush())
	a.Add(Member{Size: 1})
	assert.NotNil(a.Flush())
	assert.Nil(a.Flush())
}

func TestBatchPreservesOrderAndTotals(t *testing.T) {
	assert := assert.New(t)
	a := countArchiver(t, 3)
	a.Add(Member{Title: "first", Size: 1})
	a.Add(Member{Title: "second", Size: 2})
	closed := a.Add(Member{Title: "third", Size: 3})
	assert.NotNil(closed)
	assert.Equal(int64(6), closed.TotalBytes())
	titles := []string{}
	for _, m := range closed.Members() {
		titles = append(titles, m.Title)
	}
	assert.Equal([]string{"first", "second", "third"}, titles)
}
