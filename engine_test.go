package recordquery_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brindledata/recordquery"
	"github.com/brindledata/recordquery/keyspace"
	"github.com/brindledata/recordquery/kvstore/memkv"
	"github.com/brindledata/recordquery/planner"
	"github.com/brindledata/recordquery/predicate"
	"github.com/brindledata/recordquery/recordaccess/jsonaccessor"
	"github.com/brindledata/recordquery/stats"
)

func userType() recordquery.RecordType {
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
		},
	}
}

func seedUser(t *testing.T, store *memkv.Store, accessor recordquery.RecordAccessor, rt recordquery.RecordType, raw string) {
	t.Helper()
	rec, err := accessor.Deserialize(rt.Name, []byte(raw))
	require.NoError(t, err)
	pk, err := accessor.ExtractPrimaryKey(rec, rt.PrimaryKey)
	require.NoError(t, err)
	store.Put(keyspace.RecordKey(rt.Name, pk), []byte(raw))

	cityValues, err := accessor.ExtractField(rec, "city")
	require.NoError(t, err)
	for _, city := range cityValues {
		key := keyspace.IndexSubspace("by_city").Pack(recordquery.Tuple{city, pk[0]})
		store.Put(key, nil)
	}
}

func newTestEngine(t *testing.T) (*recordquery.Engine, *memkv.Store) {
	t.Helper()
	store := memkv.New()
	accessor := jsonaccessor.New()
	rt := userType()

	seedUser(t, store, accessor, rt, `{"id":1,"city":"Tokyo","age":30}`)
	seedUser(t, store, accessor, rt, `{"id":2,"city":"Osaka","age":25}`)
	seedUser(t, store, accessor, rt, `{"id":3,"city":"Tokyo","age":40}`)

	registry := stats.NewRegistry()
	registry.SetTableStats("User", stats.TableStats{RowCount: 3})
	registry.SetIndexStats("by_city", stats.IndexStats{DistinctValues: 2})

	types := recordquery.NewStaticRegistry([]recordquery.RecordType{rt})
	engine := recordquery.New(store, accessor, types, registry, recordquery.DefaultConfig(), false)
	return engine, store
}

func TestEngine_Query_NoFilterReturnsAllRecords(t *testing.T) {
	engine, _ := newTestEngine(t)
	defer engine.Close()

	records, explain, err := engine.Query(context.Background(), "User", planner.Query{})
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Greater(t, explain.EstimatedCost, 0.0)
}

func TestEngine_Query_EqualityFilterUsesIndexScan(t *testing.T) {
	engine, _ := newTestEngine(t)
	defer engine.Close()

	filter := predicate.FieldCmp("city", predicate.OpEq, recordquery.Str("Tokyo"))
	records, explain, err := engine.Query(context.Background(), "User", planner.Query{Filter: &filter})
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Contains(t, explain.Description, "IndexScan")
}

func TestEngine_Query_LimitTruncatesResults(t *testing.T) {
	engine, _ := newTestEngine(t)
	defer engine.Close()

	records, _, err := engine.Query(context.Background(), "User", planner.Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestEngine_Query_UnknownRecordTypeErrors(t *testing.T) {
	engine, _ := newTestEngine(t)
	defer engine.Close()

	_, _, err := engine.Query(context.Background(), "Widget", planner.Query{})
	require.Error(t, err)
	var engineErr *recordquery.EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, recordquery.ErrorTypeIndexNotFound, engineErr.Type)
}

func TestEngine_OpenCursor_StreamsRecordsLazily(t *testing.T) {
	engine, _ := newTestEngine(t)
	defer engine.Close()

	c, _, err := engine.OpenCursor(context.Background(), "User", planner.Query{})
	require.NoError(t, err)
	defer c.Close()

	count := 0
	for c.Next(context.Background()) {
		count++
	}
	require.NoError(t, c.Err())
	assert.Equal(t, 3, count)
}

func TestEngine_Query_ContradictoryRangeChoosesEmptyPlan(t *testing.T) {
	engine, _ := newTestEngine(t)
	defer engine.Close()

	lower := predicate.FieldCmp("age", predicate.OpGe, recordquery.Int64(100))
	upper := predicate.FieldCmp("age", predicate.OpLt, recordquery.Int64(10))
	filter := predicate.And(lower, upper)

	records, explain, err := engine.Query(context.Background(), "User", planner.Query{Filter: &filter})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, "Empty", explain.Description)
}

func TestEngine_Query_AndOfIndexedAndUnindexedLeaf_FiltersByBothLeaves(t *testing.T) {
	store := memkv.New()
	accessor := jsonaccessor.New()
	rt := userType()

	seedUser(t, store, accessor, rt, `{"id":1,"city":"Tokyo","age":30}`)
	seedUser(t, store, accessor, rt, `{"id":2,"city":"Osaka","age":25}`)
	seedUser(t, store, accessor, rt, `{"id":3,"city":"Tokyo","age":40}`)
	seedUser(t, store, accessor, rt, `{"id":4,"city":"Tokyo","age":20}`)

	registry := stats.NewRegistry()
	registry.SetTableStats("User", stats.TableStats{RowCount: 4})
	// by_city is the only index and has no histogram, so its IndexScan is
	// costed at the default selectivity and beats the FullScan: the
	// planner must still attach the age>25 leaf as a post-filter rather
	// than hand back every Tokyo row.
	registry.SetIndexStats("by_city", stats.IndexStats{DistinctValues: 2})

	types := recordquery.NewStaticRegistry([]recordquery.RecordType{rt})
	engine := recordquery.New(store, accessor, types, registry, recordquery.DefaultConfig(), false)
	defer engine.Close()

	cityEq := predicate.FieldCmp("city", predicate.OpEq, recordquery.Str("Tokyo"))
	ageGt := predicate.FieldCmp("age", predicate.OpGt, recordquery.Int64(25))
	filter := predicate.And(cityEq, ageGt)

	records, _, err := engine.Query(context.Background(), "User", planner.Query{Filter: &filter})
	require.NoError(t, err)
	require.Len(t, records, 2)

	ids := map[int64]bool{}
	for _, rec := range records {
		values, err := accessor.ExtractField(rec, "id")
		require.NoError(t, err)
		ids[values[0].Int64] = true
	}
	assert.True(t, ids[1])
	assert.True(t, ids[3])
	assert.False(t, ids[4])
}

func TestEngine_Stats_ExposesRegistryForSeeding(t *testing.T) {
	engine, _ := newTestEngine(t)
	defer engine.Close()

	engine.Stats().SetTableStats("User", stats.TableStats{RowCount: 99})
	ts, ok := engine.Stats().TableStats("User")
	require.True(t, ok)
	assert.Equal(t, int64(99), ts.RowCount)
}
