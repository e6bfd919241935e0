// Command recordquerydemo wires an in-memory store, the JSON record
// accessor, and the query engine, seeds a handful of User records, and
// runs one end-to-end query through the builder façade, printing its
// chosen plan. Grounded on cmd/server/main.go's zap-then-config-then-wire
// startup sequence, retargeted from an HTTP server onto a one-shot CLI
// since this module has no server surface of its own (spec.md's
// Non-goals exclude a wire protocol).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/brindledata/recordquery"
	"github.com/brindledata/recordquery/keyspace"
	"github.com/brindledata/recordquery/kvstore/memkv"
	"github.com/brindledata/recordquery/predicate"
	"github.com/brindledata/recordquery/query"
	"github.com/brindledata/recordquery/recordaccess/jsonaccessor"
	"github.com/brindledata/recordquery/stats"
)

func userRecordType() recordquery.RecordType {
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

// plainValue unwraps a TupleElement into the Go value its variant holds,
// for readable JSON output; the engine itself never needs this, since
// accessors exchange TupleElements directly.
func plainValue(v recordquery.TupleElement) any {
	switch v.Kind {
	case recordquery.KindBool:
		return v.Bool
	case recordquery.KindInt64:
		return v.Int64
	case recordquery.KindDouble:
		return v.Double
	case recordquery.KindString:
		return v.Str
	case recordquery.KindBytes:
		return v.Bytes
	default:
		return nil
	}
}

func seedUsers(store *memkv.Store, accessor recordquery.RecordAccessor, rt recordquery.RecordType) error {
	rows := []string{
		`{"id":1,"city":"Tokyo","age":30}`,
		`{"id":2,"city":"Osaka","age":25}`,
		`{"id":3,"city":"Tokyo","age":40}`,
	}
	for _, raw := range rows {
		rec, err := accessor.Deserialize(rt.Name, []byte(raw))
		if err != nil {
			return fmt.Errorf("seed: decode %s: %w", raw, err)
		}
		pk, err := accessor.ExtractPrimaryKey(rec, rt.PrimaryKey)
		if err != nil {
			return fmt.Errorf("seed: extract pk: %w", err)
		}
		store.Put(keyspace.RecordKey(rt.Name, pk), []byte(raw))

		cities, err := accessor.ExtractField(rec, "city")
		if err != nil {
			return fmt.Errorf("seed: extract city: %w", err)
		}
		for _, city := range cities {
			store.Put(keyspace.IndexSubspace("by_city").Pack(recordquery.Tuple{city, pk[0]}), nil)
		}
	}
	return nil
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	cfg := recordquery.ConfigFromEnv()
	sugar.Infow("recordquerydemo starting", "maxCandidatePlans", cfg.Planner.MaxCandidatePlans, "cacheMaxEntries", cfg.Cache.MaxEntries)

	store := memkv.New()
	accessor := jsonaccessor.New()
	rt := userRecordType()

	if err := seedUsers(store, accessor, rt); err != nil {
		sugar.Fatalw("failed to seed demo records", "error", err)
	}

	registry := stats.NewRegistry()
	registry.SetTableStats("User", stats.TableStats{RowCount: 3})
	registry.SetIndexStats("by_city", stats.IndexStats{DistinctValues: 2})

	types := recordquery.NewStaticRegistry([]recordquery.RecordType{rt})
	engine := recordquery.New(store, accessor, types, registry, cfg, false)
	defer engine.Close()

	ctx := context.Background()
	records, explain, err := query.For(engine, "User").
		Where("city", predicate.OpEq, recordquery.Str("Tokyo")).
		OrderBy("age", false).
		Execute(ctx)
	if err != nil {
		sugar.Fatalw("query failed", "error", err)
	}

	sugar.Infow("query complete", "plan", explain.Description, "estimatedCost", explain.EstimatedCost, "rows", len(records))

	rows := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		row := map[string]any{}
		for _, field := range []string{"id", "city", "age"} {
			values, err := accessor.ExtractField(rec, field)
			if err != nil || len(values) == 0 {
				continue
			}
			row[field] = plainValue(values[0])
		}
		rows = append(rows, row)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		sugar.Fatalw("failed to encode results", "error", err)
	}
}
