package query

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brindledata/recordquery"
	"github.com/brindledata/recordquery/aggregate"
	"github.com/brindledata/recordquery/keyspace"
	"github.com/brindledata/recordquery/kvstore/memkv"
	"github.com/brindledata/recordquery/predicate"
	"github.com/brindledata/recordquery/recordaccess/jsonaccessor"
	"github.com/brindledata/recordquery/stats"
)

func testUserType() recordquery.RecordType {
	return recordquery.RecordType{
		Name:       "User",
		PrimaryKey: recordquery.Field("id"),
		Fields: []recordquery.FieldDescriptor{
			{Name: "id"}, {Name: "city"}, {Name: "age"},
		},
		Indexes: []recordquery.Index{
			{
				Name: "by_city",
				Kind: recordquery.IndexKindValue,
				Root: recordquery.Concatenate(recordquery.Field("city"), recordquery.Field("id")),
			},
			{
				Name: "count_by_city",
				Kind: recordquery.IndexKindCount,
				Root: recordquery.Field("city"),
			},
			{
				Name: "rank_by_age",
				Kind: recordquery.IndexKindRank,
				Root: recordquery.Field("age"),
			},
		},
	}
}

func newTestQueryEngine(t *testing.T) *recordquery.Engine {
	t.Helper()
	store := memkv.New()
	accessor := jsonaccessor.New()
	rt := testUserType()

	seed := func(raw string, city string, age, id int64) {
		rec, err := accessor.Deserialize("User", []byte(raw))
		require.NoError(t, err)
		pk := recordquery.Tuple{recordquery.Int64(id)}
		store.Put(keyspace.RecordKey("User", pk), []byte(raw))
		store.Put(keyspace.IndexSubspace("by_city").Pack(recordquery.Tuple{recordquery.Str(city), recordquery.Int64(id)}), nil)
		store.Put(keyspace.IndexSubspace("rank_by_age").Pack(recordquery.Tuple{recordquery.Int64(age), recordquery.Int64(id)}), nil)
	}

	seed(`{"id":1,"city":"Tokyo","age":30}`, "Tokyo", 30, 1)
	seed(`{"id":2,"city":"Osaka","age":25}`, "Osaka", 25, 2)
	seed(`{"id":3,"city":"Tokyo","age":40}`, "Tokyo", 40, 3)

	putAggCell(t, store, "count_by_city", recordquery.Tuple{recordquery.Str("Tokyo")}, 2)

	registry := stats.NewRegistry()
	registry.SetTableStats("User", stats.TableStats{RowCount: 3})
	registry.SetIndexStats("by_city", stats.IndexStats{DistinctValues: 2})

	types := recordquery.NewStaticRegistry([]recordquery.RecordType{rt})
	return recordquery.New(store, accessor, types, registry, recordquery.DefaultConfig(), false)
}

func putAggCell(t *testing.T, store *memkv.Store, indexName string, group recordquery.Tuple, value int64) {
	t.Helper()
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(value))
	store.Put(keyspace.IndexSubspace(indexName).Pack(group), buf)
}

func TestBuilder_Execute_FiltersAndSorts(t *testing.T) {
	engine := newTestQueryEngine(t)
	defer engine.Close()

	records, _, err := For(engine, "User").
		Where("city", predicate.OpEq, recordquery.Str("Tokyo")).
		OrderBy("age", false).
		Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	accessor := engine.Accessor()
	first, err := accessor.ExtractField(records[0], "age")
	require.NoError(t, err)
	assert.Equal(t, int64(40), first[0].Int64)
}

func TestBuilder_Execute_LimitTruncates(t *testing.T) {
	engine := newTestQueryEngine(t)
	defer engine.Close()

	records, _, err := For(engine, "User").Limit(1).Execute(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestBuilder_Execute_OrderByThenLimit_ReturnsTrueTopNBySortKey(t *testing.T) {
	engine := newTestQueryEngine(t)
	defer engine.Close()

	records, _, err := For(engine, "User").
		OrderBy("age", false).
		Limit(1).
		Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	accessor := engine.Accessor()
	age, err := accessor.ExtractField(records[0], "age")
	require.NoError(t, err)
	assert.Equal(t, int64(40), age[0].Int64)
}

func TestBuilder_Count_DelegatesToAggregateIndex(t *testing.T) {
	engine := newTestQueryEngine(t)
	defer engine.Close()

	count, err := For(engine, "User").
		Where("city", predicate.OpEq, recordquery.Str("Tokyo")).
		Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestBuilder_Count_FallsBackToScanWithoutMatchingIndex(t *testing.T) {
	engine := newTestQueryEngine(t)
	defer engine.Close()

	count, err := For(engine, "User").
		Where("age", predicate.OpGt, recordquery.Int64(20)).
		Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestBuilder_TopN_ReturnsDescendingRecords(t *testing.T) {
	engine := newTestQueryEngine(t)
	defer engine.Close()

	records, _, err := For(engine, "User").TopN(2, "rank_by_age").Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	accessor := engine.Accessor()
	ages := []int64{}
	for _, r := range records {
		v, err := accessor.ExtractField(r, "age")
		require.NoError(t, err)
		ages = append(ages, v[0].Int64)
	}
	assert.Equal(t, []int64{40, 30}, ages)
}

func TestBuilder_GroupByResults(t *testing.T) {
	engine := newTestQueryEngine(t)
	defer engine.Close()

	results, err := For(engine, "User").
		GroupBy(aggregate.GroupBySpec{
			Field:        "city",
			Aggregations: []aggregate.Aggregation{{Kind: aggregate.AggCount}},
		}).
		GroupByResults(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSpec_RunExecutesDeclaratively(t *testing.T) {
	engine := newTestQueryEngine(t)
	defer engine.Close()

	spec := Spec{
		RecordType: "User",
		Where:      []WhereClause{{Field: "city", Op: predicate.OpEq, Value: recordquery.Str("Osaka")}},
	}
	records, _, err := spec.Run(context.Background(), engine)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSpec_RunGroupBy(t *testing.T) {
	engine := newTestQueryEngine(t)
	defer engine.Close()

	spec := Spec{
		RecordType: "User",
		GroupBy: &aggregate.GroupBySpec{
			Field:        "city",
			Aggregations: []aggregate.Aggregation{{Kind: aggregate.AggCount}},
		},
	}
	results, err := spec.RunGroupBy(context.Background(), engine)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
