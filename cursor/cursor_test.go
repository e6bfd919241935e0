package cursor

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brindledata/recordquery"
	"github.com/brindledata/recordquery/keyspace"
	"github.com/brindledata/recordquery/kvstore/memkv"
	"github.com/brindledata/recordquery/plan"
	"github.com/brindledata/recordquery/predicate"
	"github.com/brindledata/recordquery/tuplecodec"
)

// testRecord is a tiny fixed-shape record used across cursor tests:
// {id int64, city string}.
type testRecord struct {
	id   int64
	city string
}

type testAccessor struct{}

func (testAccessor) Deserialize(recordType string, raw []byte) (recordquery.Record, error) {
	tup, err := tuplecodec.Unpack(raw)
	if err != nil {
		return nil, err
	}
	return testRecord{id: tup[0].Int64, city: tup[1].Str}, nil
}

func (testAccessor) ExtractField(r recordquery.Record, field string) ([]recordquery.TupleElement, error) {
	tr := r.(testRecord)
	switch field {
	case "id":
		return []recordquery.TupleElement{recordquery.Int64(tr.id)}, nil
	case "city":
		return []recordquery.TupleElement{recordquery.Str(tr.city)}, nil
	default:
		return nil, fmt.Errorf("unknown field %s", field)
	}
}

func (testAccessor) ExtractPrimaryKey(r recordquery.Record, _ recordquery.KeyExpression) (recordquery.Tuple, error) {
	tr := r.(testRecord)
	return recordquery.Tuple{recordquery.Int64(tr.id)}, nil
}

func (testAccessor) RecordTypeOf(recordquery.Record) string { return "User" }

func (testAccessor) ReconstructFromIndexTuple(recordquery.Index, recordquery.Tuple) (recordquery.Record, bool) {
	return nil, false
}

func serializeTestRecord(r testRecord) []byte {
	return tuplecodec.Pack(recordquery.Tuple{recordquery.Int64(r.id), recordquery.Str(r.city)})
}

func seedUsers(store *memkv.Store, users []testRecord) {
	for _, u := range users {
		key := keyspace.RecordKey("User", recordquery.Tuple{recordquery.Int64(u.id)})
		store.Put(key, serializeTestRecord(u))
	}
}

func seedCityIndex(store *memkv.Store, users []testRecord) {
	for _, u := range users {
		key := keyspace.IndexSubspace("by_city").Pack(recordquery.Tuple{recordquery.Str(u.city), recordquery.Int64(u.id)})
		store.Put(key, nil)
	}
}

func drain(t *testing.T, c Cursor) []recordquery.Record {
	t.Helper()
	var out []recordquery.Record
	ctx := context.Background()
	for c.Next(ctx) {
		out = append(out, c.Record())
	}
	require.NoError(t, c.Err())
	require.NoError(t, c.Close())
	return out
}

func TestFullScan_FiltersByType(t *testing.T) {
	store := memkv.New()
	seedUsers(store, []testRecord{{1, "Tokyo"}, {2, "Osaka"}})

	env := Env{Store: store, Accessor: testAccessor{}}
	c, err := Open(context.Background(), env, plan.FullScan(nil, "User"))
	require.NoError(t, err)

	recs := drain(t, c)
	assert.Len(t, recs, 2)
}

func TestFullScan_AppliesFilter(t *testing.T) {
	store := memkv.New()
	seedUsers(store, []testRecord{{1, "Tokyo"}, {2, "Osaka"}})

	env := Env{Store: store, Accessor: testAccessor{}}
	filter := predicate.FieldCmp("city", predicate.OpEq, recordquery.Str("Tokyo"))
	c, err := Open(context.Background(), env, plan.FullScan(&filter, "User"))
	require.NoError(t, err)

	recs := drain(t, c)
	require.Len(t, recs, 1)
	assert.Equal(t, "Tokyo", recs[0].(testRecord).city)
}

func TestIndexScan_RecoversRecordsByPrimaryKey(t *testing.T) {
	store := memkv.New()
	users := []testRecord{{1, "Osaka"}, {2, "Tokyo"}, {3, "Tokyo"}}
	seedUsers(store, users)
	seedCityIndex(store, users)

	index := recordquery.Index{Name: "by_city", Root: recordquery.Concatenate(recordquery.Field("city"), recordquery.Field("id"))}
	node := plan.IndexScan(index,
		recordquery.Tuple{recordquery.Str("Tokyo")},
		recordquery.Tuple{recordquery.Str("Tokyo")},
		nil, 1, "User", nil)

	env := Env{Store: store, Accessor: testAccessor{}}
	c, err := Open(context.Background(), env, node)
	require.NoError(t, err)

	recs := drain(t, c)
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, "Tokyo", r.(testRecord).city)
	}
}

func TestLimit_StopsAtN(t *testing.T) {
	store := memkv.New()
	seedUsers(store, []testRecord{{1, "Tokyo"}, {2, "Osaka"}, {3, "Kyoto"}})

	env := Env{Store: store, Accessor: testAccessor{}}
	node := plan.Limit(plan.FullScan(nil, "User"), 2)
	c, err := Open(context.Background(), env, node)
	require.NoError(t, err)

	recs := drain(t, c)
	assert.Len(t, recs, 2)
}

func TestEmpty_YieldsNoRecords(t *testing.T) {
	env := Env{Store: memkv.New(), Accessor: testAccessor{}}
	c, err := Open(context.Background(), env, plan.Empty())
	require.NoError(t, err)
	recs := drain(t, c)
	assert.Empty(t, recs)
}

func TestUnion_DeduplicatesByPrimaryKey(t *testing.T) {
	store := memkv.New()
	users := []testRecord{{1, "Tokyo"}, {2, "Osaka"}, {3, "Tokyo"}}
	seedUsers(store, users)

	env := Env{Store: store, Accessor: testAccessor{}}
	pkExpr := recordquery.Field("id")
	filterA := predicate.FieldCmp("city", predicate.OpEq, recordquery.Str("Tokyo"))
	filterB := predicate.FieldCmp("id", predicate.OpEq, recordquery.Int64(1))
	node := plan.Union(pkExpr,
		plan.FullScan(&filterA, "User"),
		plan.FullScan(&filterB, "User"),
	)

	c, err := Open(context.Background(), env, node)
	require.NoError(t, err)
	recs := drain(t, c)

	ids := map[int64]bool{}
	for _, r := range recs {
		ids[r.(testRecord).id] = true
	}
	assert.Equal(t, map[int64]bool{1: true, 3: true}, ids)
}

func TestIntersection_RequiresAllChildrenToMatch(t *testing.T) {
	store := memkv.New()
	users := []testRecord{{1, "Tokyo"}, {2, "Osaka"}, {3, "Tokyo"}}
	seedUsers(store, users)

	env := Env{Store: store, Accessor: testAccessor{}}
	pkExpr := recordquery.Field("id")
	filterCity := predicate.FieldCmp("city", predicate.OpEq, recordquery.Str("Tokyo"))
	filterID := predicate.FieldCmp("id", predicate.OpGe, recordquery.Int64(3))
	node := plan.Intersection(pkExpr,
		plan.FullScan(&filterCity, "User"),
		plan.FullScan(&filterID, "User"),
	)

	c, err := Open(context.Background(), env, node)
	require.NoError(t, err)
	recs := drain(t, c)

	require.Len(t, recs, 1)
	assert.Equal(t, int64(3), recs[0].(testRecord).id)
}

func TestInJoin_DeduplicatesAcrossValues(t *testing.T) {
	store := memkv.New()
	users := []testRecord{{1, "Tokyo"}, {2, "Osaka"}, {3, "Kyoto"}}
	seedUsers(store, users)
	seedCityIndex(store, users)

	index := recordquery.Index{Name: "by_city", Root: recordquery.Concatenate(recordquery.Field("city"), recordquery.Field("id"))}
	node := plan.InJoin("city",
		[]recordquery.TupleElement{recordquery.Str("Tokyo"), recordquery.Str("Osaka")},
		index, 1, "User")

	env := Env{Store: store, Accessor: testAccessor{}}
	c, err := Open(context.Background(), env, node)
	require.NoError(t, err)

	recs := drain(t, c)
	ids := map[int64]bool{}
	for _, r := range recs {
		ids[r.(testRecord).id] = true
	}
	assert.Equal(t, map[int64]bool{1: true, 2: true}, ids)
}
