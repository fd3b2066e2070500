package pebbleengine_test

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventrica/eventric-stream/eventstore"
	"github.com/eventrica/eventric-stream/eventstore/pebbleengine"
	"github.com/eventrica/eventric-stream/testutil/observability/testdoubles"
	"github.com/eventrica/eventric-stream/testutil/pebbleengine/helper"
)

func Test_Append_LogsTheOperation(t *testing.T) {
	// setup
	ctx := context.Background()
	logHandler := testdoubles.NewLogHandlerSpy(false)

	stream, err := pebbleengine.NewStreamBuilder(t.TempDir()).
		WithLogger(slog.New(logHandler)).
		Open()
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	// arrange
	accountID := helper.GivenUniqueID(t)

	// act
	_, appendErr := stream.Append(ctx, eventstore.StorableEvents{helper.FixtureDeposited(t, accountID, 100)})

	// assert
	require.NoError(t, appendErr)
	assert.True(t, logHandler.HasRecordContaining(slog.LevelInfo, "events appended"))
}

func Test_Append_RecordsMetrics_OnSuccess(t *testing.T) {
	// setup
	ctx := context.Background()
	metrics := testdoubles.NewMetricsCollectorSpy(true)

	stream, err := pebbleengine.NewStreamBuilder(t.TempDir()).
		WithMetrics(metrics).
		Open()
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	// arrange
	accountID := helper.GivenUniqueID(t)

	// act
	_, appendErr := stream.Append(ctx, eventstore.StorableEvents{helper.FixtureDeposited(t, accountID, 100)})

	// assert
	require.NoError(t, appendErr)
	assert.True(t, metrics.HasDurationRecord("eventstore_append_duration"))

	valueRecords := metrics.GetValueRecords()
	require.NotEmpty(t, valueRecords)
	assert.Equal(t, "eventstore_events_appended", valueRecords[0].Metric)
	assert.Equal(t, float64(1), valueRecords[0].Value)
	assert.Equal(t, "success", valueRecords[0].Labels["status"])
}

func Test_Append_RecordsConflictMetrics_OnConcurrencyConflict(t *testing.T) {
	// setup
	ctx := context.Background()
	metrics := testdoubles.NewMetricsCollectorSpy(true)

	stream, err := pebbleengine.NewStreamBuilder(t.TempDir()).
		WithMetrics(metrics).
		Open()
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	// arrange
	accountID := helper.GivenUniqueID(t)
	filter := helper.FilterAccountActivity(accountID)

	_, appendErr := stream.Append(ctx, eventstore.StorableEvents{helper.FixtureDeposited(t, accountID, 100)})
	require.NoError(t, appendErr)

	// act: a stale boundary observation must conflict
	_, conflictErr := stream.Append(ctx,
		eventstore.StorableEvents{helper.FixtureWithdrawn(t, accountID, 100)},
		eventstore.FailIfEventsMatchAfter(filter, eventstore.ZeroPosition),
	)

	// assert
	assert.ErrorIs(t, conflictErr, eventstore.ErrConcurrencyConflict)
	assert.True(t, metrics.HasCounterRecord("eventstore_concurrency_conflicts"))
}

func Test_Append_LogsConflictDetails_OnConcurrencyConflict(t *testing.T) {
	// setup
	ctx := context.Background()
	logHandler := testdoubles.NewLogHandlerSpy(false)

	stream, err := pebbleengine.NewStreamBuilder(t.TempDir()).
		WithLogger(slog.New(logHandler)).
		Open()
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	// arrange
	accountID := helper.GivenUniqueID(t)
	filter := helper.FilterAccountActivity(accountID)

	_, appendErr := stream.Append(ctx, eventstore.StorableEvents{helper.FixtureDeposited(t, accountID, 100)})
	require.NoError(t, appendErr)

	// act: a stale boundary observation must conflict
	_, conflictErr := stream.Append(ctx,
		eventstore.StorableEvents{helper.FixtureWithdrawn(t, accountID, 100)},
		eventstore.FailIfEventsMatchAfter(filter, eventstore.ZeroPosition),
	)

	// assert: the conflict log names the violated condition and where it matched
	require.ErrorIs(t, conflictErr, eventstore.ErrConcurrencyConflict)
	require.True(t, logHandler.HasRecordContaining(slog.LevelInfo, "concurrency conflict detected"))

	attrs := map[string]string{}
	for _, record := range logHandler.GetRecords() {
		if !strings.Contains(record.Message, "concurrency conflict detected") {
			continue
		}
		record.Attrs(func(attr slog.Attr) bool {
			attrs[attr.Key] = attr.Value.String()
			return true
		})
	}

	assert.Equal(t, "0", attrs["condition_index"])
	assert.Equal(t, "1", attrs["matched_at"])
}

func Test_AppendAndQuery_EmitTracingSpans(t *testing.T) {
	// setup
	ctx := context.Background()
	tracing := testdoubles.NewTracingCollectorSpy(true)

	stream, err := pebbleengine.NewStreamBuilder(t.TempDir()).
		WithTracing(tracing).
		Open()
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	// arrange
	accountID := helper.GivenUniqueID(t)

	// act
	_, appendErr := stream.Append(ctx, eventstore.StorableEvents{helper.FixtureDeposited(t, accountID, 100)})
	require.NoError(t, appendErr)

	_, _, queryErr := stream.Query(ctx, helper.FilterAccountActivity(accountID))
	require.NoError(t, queryErr)

	// assert
	appendSpan, foundAppend := tracing.FindSpan("eventstore.append")
	require.True(t, foundAppend, "append should emit a span")
	assert.True(t, appendSpan.IsFinished())
	assert.Equal(t, "success", appendSpan.GetStatus())
	assert.Equal(t, "1", appendSpan.GetAttributes()["to_position"])

	querySpan, foundQuery := tracing.FindSpan("eventstore.query")
	require.True(t, foundQuery, "query should emit a span")
	assert.True(t, querySpan.IsFinished())
	assert.Equal(t, "success", querySpan.GetStatus())
	assert.Equal(t, "1", querySpan.GetAttributes()["event_count"])
}

func Test_Operations_EmitContextualLogs(t *testing.T) {
	// setup
	ctx := context.Background()
	contextualLogger := testdoubles.NewContextualLoggerSpy(true)

	stream, err := pebbleengine.NewStreamBuilder(t.TempDir()).
		WithContextualLogger(contextualLogger).
		Open()
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	// arrange
	accountID := helper.GivenUniqueID(t)

	// act
	_, appendErr := stream.Append(ctx, eventstore.StorableEvents{helper.FixtureDeposited(t, accountID, 100)})
	require.NoError(t, appendErr)

	_, _, queryErr := stream.Query(ctx, helper.FilterAccountActivity(accountID))
	require.NoError(t, queryErr)

	// assert
	infoRecords := contextualLogger.GetRecordsWithLevel("info")
	require.Len(t, infoRecords, 2)
	assert.Contains(t, infoRecords[0].Message, "events appended")
	assert.Contains(t, infoRecords[1].Message, "query completed")
}
