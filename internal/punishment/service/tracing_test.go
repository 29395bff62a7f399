package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/mock/gomock"

	"warden/internal/punishment/models"
	"warden/internal/punishment/service/mocks"
	"warden/internal/punishment/store/memory"
)

func newRecordingTracer(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return recorder, tp
}

func spanNames(spans []sdktrace.ReadOnlySpan) []string {
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.Name())
	}
	return names
}

func TestEngineSpans(t *testing.T) {
	recorder, tp := newRecordingTracer(t)
	engine, err := New(memory.New(), WithTracer(tp.Tracer(tracerName)))
	require.NoError(t, err)

	ctx := context.Background()
	rec := models.Record{
		InternalID: "PBRB-NV-SPAN1",
		UUID:       uuid.New(),
		Type:       models.TypeBan,
		Reason:     "r",
		Actor:      "Admin",
		StartTime:  time.Now(),
		Active:     true,
	}
	_, err = engine.CreatePunishment(ctx, rec)
	require.NoError(t, err)
	_, err = engine.GetActiveByUUID(ctx, rec.UUID)
	require.NoError(t, err)
	require.NoError(t, engine.RemovePunishment(ctx, rec.InternalID, "Admin", "r", models.ActionManualRemove))

	names := spanNames(recorder.Ended())
	assert.Contains(t, names, "punishment.create")
	assert.Contains(t, names, "punishment.remove")
	assert.Contains(t, names, "punishment.active_by_uuid")
}

func TestEngineSpanMarksStorageFailure(t *testing.T) {
	recorder, tp := newRecordingTracer(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().AddPunishment(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	engine, err := New(store, WithTracer(tp.Tracer(tracerName)))
	require.NoError(t, err)

	_, err = engine.CreatePunishment(context.Background(), models.Record{InternalID: "PBRB-NV-SPAN2", UUID: uuid.New()})
	require.ErrorIs(t, err, ErrStorageFailure)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
