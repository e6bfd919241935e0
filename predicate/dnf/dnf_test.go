package dnf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brindledata/recordquery"
	"github.com/brindledata/recordquery/predicate"
)

type fakeRecord struct {
	fields map[string][]recordquery.TupleElement
}

type fakeAccessor struct{}

func (fakeAccessor) Deserialize(string, []byte) (recordquery.Record, error) { return nil, nil }
func (fakeAccessor) ExtractField(r recordquery.Record, field string) ([]recordquery.TupleElement, error) {
	return r.(fakeRecord).fields[field], nil
}
func (fakeAccessor) ExtractPrimaryKey(recordquery.Record, recordquery.KeyExpression) (recordquery.Tuple, error) {
	return nil, nil
}
func (fakeAccessor) RecordTypeOf(recordquery.Record) string { return "test" }
func (fakeAccessor) ReconstructFromIndexTuple(recordquery.Index, recordquery.Tuple) (recordquery.Record, bool) {
	return nil, false
}

func rec(fields map[string][]recordquery.TupleElement) fakeRecord {
	return fakeRecord{fields: fields}
}

func TestNormalize_NotPushdown_DeMorgan(t *testing.T) {
	a := predicate.FieldCmp("city", predicate.OpEq, recordquery.Str("Tokyo"))
	b := predicate.FieldCmp("age", predicate.OpGe, recordquery.Int64(18))

	p := predicate.Not(predicate.And(a, b))
	got := Normalize(p, 16)

	require.Equal(t, predicate.KindOr, got.Kind)
	require.Len(t, got.Children, 1)
	conj := got.Children[0]
	require.Equal(t, predicate.KindAnd, conj.Kind)
	require.Len(t, conj.Children, 2)
	assert.Equal(t, predicate.KindNot, conj.Children[0].Kind)
	assert.Equal(t, predicate.KindNot, conj.Children[1].Kind)
}

func TestNormalize_DoubleNegationCancels(t *testing.T) {
	a := predicate.FieldCmp("city", predicate.OpEq, recordquery.Str("Tokyo"))
	p := predicate.Not(predicate.Not(a))
	got := Normalize(p, 16)

	r := rec(map[string][]recordquery.TupleElement{"city": {recordquery.Str("Tokyo")}})
	okP, err := predicate.Match(p, r, fakeAccessor{})
	require.NoError(t, err)
	okGot, err := predicate.Match(got, r, fakeAccessor{})
	require.NoError(t, err)
	assert.Equal(t, okP, okGot)
	assert.True(t, okGot)
}

func TestNormalize_DistributesAndOverOr(t *testing.T) {
	city := predicate.Or(
		predicate.FieldCmp("city", predicate.OpEq, recordquery.Str("Tokyo")),
		predicate.FieldCmp("city", predicate.OpEq, recordquery.Str("Osaka")),
	)
	age := predicate.FieldCmp("age", predicate.OpGe, recordquery.Int64(18))
	p := predicate.And(city, age)

	got := Normalize(p, 16)
	require.Equal(t, predicate.KindOr, got.Kind)
	assert.Len(t, got.Children, 2)
	for _, conj := range got.Children {
		require.Equal(t, predicate.KindAnd, conj.Kind)
		assert.Len(t, conj.Children, 2)
	}
}

func TestNormalize_EquivalentToOriginal_OnRecords(t *testing.T) {
	city := predicate.Or(
		predicate.FieldCmp("city", predicate.OpEq, recordquery.Str("Tokyo")),
		predicate.FieldCmp("city", predicate.OpEq, recordquery.Str("Osaka")),
	)
	age := predicate.FieldCmp("age", predicate.OpGe, recordquery.Int64(18))
	p := predicate.And(city, age)
	got := Normalize(p, 16)

	cases := []fakeRecord{
		rec(map[string][]recordquery.TupleElement{"city": {recordquery.Str("Tokyo")}, "age": {recordquery.Int64(20)}}),
		rec(map[string][]recordquery.TupleElement{"city": {recordquery.Str("Osaka")}, "age": {recordquery.Int64(10)}}),
		rec(map[string][]recordquery.TupleElement{"city": {recordquery.Str("Kyoto")}, "age": {recordquery.Int64(40)}}),
	}
	for _, r := range cases {
		okP, err := predicate.Match(p, r, fakeAccessor{})
		require.NoError(t, err)
		okGot, err := predicate.Match(got, r, fakeAccessor{})
		require.NoError(t, err)
		assert.Equal(t, okP, okGot)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	city := predicate.Or(
		predicate.FieldCmp("city", predicate.OpEq, recordquery.Str("Tokyo")),
		predicate.FieldCmp("city", predicate.OpEq, recordquery.Str("Osaka")),
	)
	age := predicate.FieldCmp("age", predicate.OpGe, recordquery.Int64(18))
	p := predicate.And(city, age)

	once := Normalize(p, 16)
	twice := Normalize(once, 16)
	assert.Equal(t, once, twice)
}

func TestNormalize_BranchCapDiscardsDNF(t *testing.T) {
	// Two two-way ORs ANDed together explode to 2*2=4 branches;
	// cap at 3 forces the original predicate back unchanged.
	a := predicate.Or(
		predicate.FieldCmp("x", predicate.OpEq, recordquery.Int64(1)),
		predicate.FieldCmp("x", predicate.OpEq, recordquery.Int64(2)),
	)
	b := predicate.Or(
		predicate.FieldCmp("y", predicate.OpEq, recordquery.Int64(1)),
		predicate.FieldCmp("y", predicate.OpEq, recordquery.Int64(2)),
	)
	p := predicate.And(a, b)

	got := Normalize(p, 3)
	assert.Equal(t, p, got)

	gotAtCap := Normalize(p, 4)
	require.Equal(t, predicate.KindOr, gotAtCap.Kind)
	assert.Len(t, gotAtCap.Children, 4)
}
