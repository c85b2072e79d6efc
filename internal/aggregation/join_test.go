package aggregation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-aggregation-engine/internal/logging"
	"go-aggregation-engine/internal/model"
)

func ordersSource(fail ...string) *testSource {
	src := newTestSource(fail...)
	src.Insert(tenant, "orders",
		model.Record{"customer_id": 1, "amount": 20},
		model.Record{"customer_id": 1, "amount": 5.5},
		model.Record{"customer_id": 2, "amount": 7},
	)
	return src
}

func TestJoinRollups(t *testing.T) {
	src := ordersSource()
	j := NewJoiner(src, 0, nil)
	customers := []model.Record{{"id": 1}, {"id": 2}, {"id": 3}}

	counted := j.Resolve(context.Background(), log.NewNopLogger(), tenant, customers, []model.JoinSpec{
		{LocalField: "id", RelatedTable: "orders", RelatedField: "customer_id", AggregateOp: "count"},
	})
	assert.Equal(t, []interface{}{2, 1, 0}, column(counted, "id_count"))

	summed := j.Resolve(context.Background(), log.NewNopLogger(), tenant, customers, []model.JoinSpec{
		{LocalField: "id", RelatedTable: "orders", RelatedField: "customer_id", AggregateOp: "sum", SumField: "amount"},
	})
	assert.Equal(t, []interface{}{25.5, 7.0, 0.0}, column(summed, "id_sum"))

	data := j.Resolve(context.Background(), log.NewNopLogger(), tenant, customers, []model.JoinSpec{
		{LocalField: "id", RelatedTable: "orders", RelatedField: "customer_id"},
	})
	require.Len(t, data, 3)
	assert.Len(t, data[0]["id_data"], 2)
	assert.Equal(t, []model.Record{}, data[2]["id_data"])

	// inputs untouched
	assert.Equal(t, model.Record{"id": 1}, customers[0])
}

func TestJoinSumDefaultsToRelatedField(t *testing.T) {
	src := newTestSource()
	src.Insert(tenant, "scores", model.Record{"points": 4}, model.Record{"points": 4})
	j := NewJoiner(src, 0, nil)

	out := j.Resolve(context.Background(), log.NewNopLogger(), tenant, []model.Record{{"p": 4}}, []model.JoinSpec{
		{LocalField: "p", RelatedTable: "scores", RelatedField: "points", AggregateOp: "sum"},
	})
	assert.Equal(t, 8.0, out[0]["p_sum"])
}

func TestJoinMissingLocalFieldSkipsFetch(t *testing.T) {
	src := ordersSource()
	j := NewJoiner(src, 0, nil)

	out := j.Resolve(context.Background(), log.NewNopLogger(), tenant, []model.Record{{"name": "anon"}, {"id": nil}}, []model.JoinSpec{
		{LocalField: "id", RelatedTable: "orders", RelatedField: "customer_id", AggregateOp: "count"},
	})
	assert.Equal(t, int32(0), src.calls.Load())
	assert.Equal(t, []interface{}{0, 0}, column(out, "id_count"))
}

func TestJoinFailureIsolation(t *testing.T) {
	src := ordersSource("refunds")
	j := NewJoiner(src, 2, nil)
	sink := logging.NewSink()

	out := j.Resolve(context.Background(), sink, tenant, []model.Record{{"id": 1}, {"id": 2}}, []model.JoinSpec{
		{LocalField: "id", RelatedTable: "orders", RelatedField: "customer_id", AggregateOp: "count"},
		{LocalField: "id", RelatedTable: "refunds", RelatedField: "customer_id", AggregateOp: "sum"},
	})

	require.Len(t, out, 2)
	assert.Equal(t, []interface{}{2, 1}, column(out, "id_count"))
	for _, rec := range out {
		_, ok := rec["id_sum"]
		assert.False(t, ok)
	}
	assert.Equal(t, 2, sink.Problems())
	assert.Equal(t, int32(4), src.calls.Load())
}

type gatedSource struct {
	*testSource
	active, peak atomic.Int32
}

func (s *gatedSource) FetchRecords(ctx context.Context, table, tenantID string, filters model.FilterMap, limit int) ([]model.Record, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return s.testSource.FetchRecords(ctx, table, tenantID, filters, limit)
}

func TestJoinConcurrencyLimit(t *testing.T) {
	src := &gatedSource{testSource: ordersSource()}
	j := NewJoiner(src, 3, nil)

	records := make([]model.Record, 20)
	for i := range records {
		records[i] = model.Record{"id": i % 3}
	}

	out := j.Resolve(context.Background(), log.NewNopLogger(), tenant, records, []model.JoinSpec{
		{LocalField: "id", RelatedTable: "orders", RelatedField: "customer_id", AggregateOp: "count"},
	})
	require.Len(t, out, 20)
	assert.Equal(t, 2, out[1]["id_count"])
	assert.LessOrEqual(t, src.peak.Load(), int32(3))
	assert.Equal(t, int32(20), src.calls.Load())
}

func TestJoinConcurrentResolves(t *testing.T) {
	src := ordersSource()
	j := NewJoiner(src, 4, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := j.Resolve(context.Background(), log.NewNopLogger(), tenant, []model.Record{{"id": 1}}, []model.JoinSpec{
				{LocalField: "id", RelatedTable: "orders", RelatedField: "customer_id", AggregateOp: "count"},
			})
			assert.Equal(t, 2, out[0]["id_count"])
		}()
	}
	wg.Wait()
}

func TestJoinOutputField(t *testing.T) {
	assert.Equal(t, "id_count", OutputField(model.JoinSpec{LocalField: "id", AggregateOp: "count"}))
	assert.Equal(t, "id_sum", OutputField(model.JoinSpec{LocalField: "id", AggregateOp: "sum"}))
	assert.Equal(t, "id_data", OutputField(model.JoinSpec{LocalField: "id"}))
}
