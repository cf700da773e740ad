package audit

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// confusion builds records yielding a known confusion tally for one group.
func confusion(group string, tp, fp, tn, fn int) []Record {
	recs := make([]Record, 0, tp+fp+tn+fn)
	for i := 0; i < tp; i++ {
		recs = append(recs, Record{Predicted: LabelPositive, Actual: LabelPositive, Group: group})
	}
	for i := 0; i < fp; i++ {
		recs = append(recs, Record{Predicted: LabelPositive, Actual: LabelNegative, Group: group})
	}
	for i := 0; i < tn; i++ {
		recs = append(recs, Record{Predicted: LabelNegative, Actual: LabelNegative, Group: group})
	}
	for i := 0; i < fn; i++ {
		recs = append(recs, Record{Predicted: LabelNegative, Actual: LabelPositive, Group: group})
	}
	return recs
}

// twoGroupRecords is the canonical two-group fixture: groupX selects 60%
// of its members, groupY 30%.
func twoGroupRecords() []Record {
	recs := confusion("groupX", 4, 2, 2, 2)
	return append(recs, confusion("groupY", 2, 1, 6, 1)...)
}

func TestCompute_Counts(t *testing.T) {
	stats, err := Compute(twoGroupRecords())
	require.NoError(t, err)
	require.Len(t, stats, 2)

	x := stats["groupX"]
	require.NotNil(t, x)
	assert.Equal(t, 10, x.Size)
	assert.Equal(t, 4, x.TruePositives)
	assert.Equal(t, 2, x.FalsePositives)
	assert.Equal(t, 2, x.TrueNegatives)
	assert.Equal(t, 2, x.FalseNegatives)
	assert.Equal(t, 6, x.PredictedPositive)
	assert.InDelta(t, 0.6, x.PositiveRate(), 0.001)

	y := stats["groupY"]
	require.NotNil(t, y)
	assert.Equal(t, 10, y.Size)
	assert.Equal(t, 2, y.TruePositives)
	assert.Equal(t, 1, y.FalsePositives)
	assert.Equal(t, 6, y.TrueNegatives)
	assert.Equal(t, 1, y.FalseNegatives)
	assert.Equal(t, 3, y.PredictedPositive)
	assert.InDelta(t, 0.3, y.PositiveRate(), 0.001)
}

func TestCompute_Conservation(t *testing.T) {
	// Random labels and groups; the four cells must always sum to the
	// group size and predicted positives to TP+FP.
	r := rand.New(rand.NewSource(42))
	groups := []string{"a", "b", "c", "d"}

	recs := make([]Record, 0, 500)
	for i := 0; i < 500; i++ {
		recs = append(recs, Record{
			Predicted: r.Intn(2),
			Actual:    r.Intn(2),
			Group:     groups[r.Intn(len(groups))],
		})
	}

	stats, err := Compute(recs)
	require.NoError(t, err)

	total := 0
	for _, g := range stats {
		cells := g.TruePositives + g.FalsePositives + g.TrueNegatives + g.FalseNegatives
		assert.Equal(t, g.Size, cells, "group %s", g.Group)
		assert.Equal(t, g.TruePositives+g.FalsePositives, g.PredictedPositive, "group %s", g.Group)
		total += g.Size
	}
	assert.Equal(t, len(recs), total)
}

func TestCompute_OrderIndependent(t *testing.T) {
	recs := twoGroupRecords()

	shuffled := make([]Record, len(recs))
	copy(shuffled, recs)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	a, err := Compute(recs)
	require.NoError(t, err)
	b, err := Compute(shuffled)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCompute_Idempotent(t *testing.T) {
	recs := twoGroupRecords()

	a, err := Compute(recs)
	require.NoError(t, err)
	b, err := Compute(recs)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCompute_EmptyDataset(t *testing.T) {
	_, err := Compute(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = Compute([]Record{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCompute_SingleGroup(t *testing.T) {
	_, err := Compute(confusion("only", 2, 2, 2, 2))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "at least 2 distinct groups")
}

func TestCompute_NonBinaryLabel(t *testing.T) {
	recs := twoGroupRecords()
	recs[3].Predicted = 2

	_, err := Compute(recs)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "record 3")

	recs = twoGroupRecords()
	recs[5].Actual = -1
	_, err = Compute(recs)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCompute_MissingGroup(t *testing.T) {
	recs := twoGroupRecords()
	recs[0].Group = "  "

	_, err := Compute(recs)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "no group value")
}

func TestCompute_Scores(t *testing.T) {
	recs := []Record{
		{Predicted: 1, Actual: 1, Group: "a", Score: 8, HasScore: true},
		{Predicted: 0, Actual: 0, Group: "a", Score: 2, HasScore: true},
		{Predicted: 0, Actual: 0, Group: "a"},
		{Predicted: 1, Actual: 0, Group: "b", Score: 6, HasScore: true},
		{Predicted: 0, Actual: 1, Group: "b"},
	}

	stats, err := Compute(recs)
	require.NoError(t, err)

	a := stats["a"]
	assert.Equal(t, 2, a.Scored)
	assert.InDelta(t, 5.0, a.ScoreMean(), 0.001)
	assert.InDelta(t, 3.0, a.ScoreStdDev(), 0.001)

	b := stats["b"]
	assert.Equal(t, 1, b.Scored)
	assert.InDelta(t, 6.0, b.ScoreMean(), 0.001)
}

func TestComputeConcurrent_MatchesSequential(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	groups := []string{"alpha", "beta", "gamma"}

	recs := make([]Record, 0, 1000)
	for i := 0; i < 1000; i++ {
		rec := Record{
			Predicted: r.Intn(2),
			Actual:    r.Intn(2),
			Group:     groups[r.Intn(len(groups))],
		}
		if r.Intn(3) == 0 {
			rec.Score = r.Float64() * 10
			rec.HasScore = true
		}
		recs = append(recs, rec)
	}

	seq, err := Compute(recs)
	require.NoError(t, err)

	for _, shards := range []int{2, 4, 7, 16} {
		par, err := ComputeConcurrent(recs, shards)
		require.NoError(t, err)
		assert.Equal(t, seq, par, "shards=%d", shards)
	}
}

func TestComputeConcurrent_FallsBackToSequential(t *testing.T) {
	recs := twoGroupRecords()

	seq, err := Compute(recs)
	require.NoError(t, err)

	par, err := ComputeConcurrent(recs, 0)
	require.NoError(t, err)
	assert.Equal(t, seq, par)

	// More shards than records falls back too.
	par, err = ComputeConcurrent(recs, len(recs)+1)
	require.NoError(t, err)
	assert.Equal(t, seq, par)
}

func TestComputeConcurrent_PropagatesValidation(t *testing.T) {
	recs := twoGroupRecords()
	recs[len(recs)-1].Predicted = 9

	_, err := ComputeConcurrent(recs, 4)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMergeStats_Associative(t *testing.T) {
	// Partial tallies bypass the group count gate; single-group chunks
	// are legal until the final merge.
	p1, err := tally(confusion("groupX", 4, 2, 2, 2), 0)
	require.NoError(t, err)
	p2, err := tally(confusion("groupY", 2, 1, 6, 1), 0)
	require.NoError(t, err)
	p3, err := tally(confusion("groupX", 1, 0, 3, 1), 0)
	require.NoError(t, err)

	left := MergeStats(MergeStats(p1, p2), p3)
	right := MergeStats(p1, MergeStats(p2, p3))
	assert.Equal(t, left, right)

	// The merged groupX equals one tally over all its records.
	whole := append(confusion("groupX", 4, 2, 2, 2), confusion("groupX", 1, 0, 3, 1)...)
	all, err := tally(whole, 0)
	require.NoError(t, err)
	assert.Equal(t, all["groupX"], left["groupX"])
}
