package aggregate

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brindledata/recordquery"
	"github.com/brindledata/recordquery/keyspace"
	"github.com/brindledata/recordquery/kvstore/memkv"
	"github.com/brindledata/recordquery/predicate"
	"github.com/brindledata/recordquery/recordaccess/jsonaccessor"
)

func countIndex() recordquery.Index {
	return recordquery.Index{
		Name: "count_by_city",
		Kind: recordquery.IndexKindCount,
		Root: recordquery.Field("city"),
	}
}

func putAggCell(store *memkv.Store, indexName string, group recordquery.Tuple, value int64) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(value))
	store.Put(keyspace.IndexSubspace(indexName).Pack(group), buf)
}

func TestEvaluateAggregate_ReturnsDecodedCount(t *testing.T) {
	store := memkv.New()
	putAggCell(store, "count_by_city", recordquery.Tuple{recordquery.Str("Tokyo")}, 2)

	got, err := EvaluateAggregate(context.Background(), store, false, countIndex(), recordquery.Tuple{recordquery.Str("Tokyo")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)
}

func TestEvaluateAggregate_AbsentKeyReturnsZero(t *testing.T) {
	store := memkv.New()
	got, err := EvaluateAggregate(context.Background(), store, false, countIndex(), recordquery.Tuple{recordquery.Str("Nowhere")})
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)
}

func TestEvaluateAggregate_RejectsNonAggregateIndex(t *testing.T) {
	store := memkv.New()
	idx := recordquery.Index{Name: "by_city", Kind: recordquery.IndexKindValue, Root: recordquery.Field("city")}
	_, err := EvaluateAggregate(context.Background(), store, false, idx, recordquery.Tuple{recordquery.Str("Tokyo")})
	assert.Error(t, err)
}

func TestEvaluateAggregate_WrongLengthValueErrors(t *testing.T) {
	store := memkv.New()
	store.Put(keyspace.IndexSubspace("count_by_city").Pack(recordquery.Tuple{recordquery.Str("Tokyo")}), []byte{1, 2, 3})
	_, err := EvaluateAggregate(context.Background(), store, false, countIndex(), recordquery.Tuple{recordquery.Str("Tokyo")})
	assert.Error(t, err)
}

type sliceStream struct {
	records []recordquery.Record
	pos     int
}

func (s *sliceStream) Next(ctx context.Context) bool {
	if s.pos >= len(s.records) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceStream) Record() recordquery.Record { return s.records[s.pos-1] }
func (s *sliceStream) Err() error                 { return nil }

func groupByFixture(t *testing.T) (*sliceStream, recordquery.RecordAccessor) {
	t.Helper()
	accessor := jsonaccessor.New()
	raws := []string{
		`{"id":1,"city":"Tokyo","age":30}`,
		`{"id":2,"city":"Osaka","age":25}`,
		`{"id":3,"city":"Tokyo","age":40}`,
	}
	var records []recordquery.Record
	for _, raw := range raws {
		rec, err := accessor.Deserialize("User", []byte(raw))
		require.NoError(t, err)
		records = append(records, rec)
	}
	return &sliceStream{records: records}, accessor
}

func TestEvaluateGroupBy_CountAndSum(t *testing.T) {
	stream, accessor := groupByFixture(t)
	spec := GroupBySpec{
		Field: "city",
		Aggregations: []Aggregation{
			{Kind: AggCount},
			{Kind: AggSum, Field: "age"},
		},
	}
	results, err := EvaluateGroupBy(context.Background(), stream, accessor, spec)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byKey := map[string]GroupResult{}
	for _, r := range results {
		byKey[r.Key.Str] = r
	}

	tokyo := byKey["Tokyo"]
	assert.Equal(t, recordquery.Int64(2), tokyo.Values["count"])
	assert.Equal(t, recordquery.Int64(70), tokyo.Values["sum_age"])

	osaka := byKey["Osaka"]
	assert.Equal(t, recordquery.Int64(1), osaka.Values["count"])
	assert.Equal(t, recordquery.Int64(25), osaka.Values["sum_age"])
}

func TestEvaluateGroupBy_Avg(t *testing.T) {
	stream, accessor := groupByFixture(t)
	spec := GroupBySpec{
		Field:        "city",
		Aggregations: []Aggregation{{Kind: AggAvg, Field: "age"}},
	}
	results, err := EvaluateGroupBy(context.Background(), stream, accessor, spec)
	require.NoError(t, err)

	for _, r := range results {
		if r.Key.Str == "Tokyo" {
			assert.Equal(t, recordquery.Double(35), r.Values["avg_age"])
		}
	}
}

func TestEvaluateGroupBy_MinMax(t *testing.T) {
	stream, accessor := groupByFixture(t)
	spec := GroupBySpec{
		Field: "city",
		Aggregations: []Aggregation{
			{Kind: AggMin, Field: "age"},
			{Kind: AggMax, Field: "age"},
		},
	}
	results, err := EvaluateGroupBy(context.Background(), stream, accessor, spec)
	require.NoError(t, err)

	for _, r := range results {
		if r.Key.Str == "Tokyo" {
			assert.Equal(t, recordquery.Int64(30), r.Values["min_age"])
			assert.Equal(t, recordquery.Int64(40), r.Values["max_age"])
		}
	}
}

func TestEvaluateGroupBy_HavingFiltersGroups(t *testing.T) {
	stream, accessor := groupByFixture(t)
	spec := GroupBySpec{
		Field:        "city",
		Aggregations: []Aggregation{{Kind: AggCount}},
		Having:       &Having{Aggregation: "count", Op: predicate.OpGe, Value: recordquery.Int64(2)},
	}
	results, err := EvaluateGroupBy(context.Background(), stream, accessor, spec)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, recordquery.Str("Tokyo"), results[0].Key)
}

func TestEvaluateGroupBy_RejectsMultiValuedGroupField(t *testing.T) {
	accessor := jsonaccessor.New()
	rec, err := accessor.Deserialize("User", []byte(`{"tags":["a","b"]}`))
	require.NoError(t, err)
	stream := &sliceStream{records: []recordquery.Record{rec}}

	spec := GroupBySpec{Field: "tags", Aggregations: []Aggregation{{Kind: AggCount}}}
	_, err = EvaluateGroupBy(context.Background(), stream, accessor, spec)
	assert.Error(t, err)
}
