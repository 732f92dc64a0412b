package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"rehla/internal/advisory"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		f.records = append(f.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func TestSinkWritesKeyedRecord(t *testing.T) {
	producer := &fakeProducer{}
	sink := NewSink(producer, "rehla.advisories")
	event := advisory.Event{
		ID:         uuid.New(),
		Kind:       advisory.KindUnexpectedDomain,
		Host:       "evil.example",
		Serial:     "X9",
		ObservedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, sink.Write(context.Background(), event))
	require.Len(t, producer.records, 1)

	rec := producer.records[0]
	assert.Equal(t, "rehla.advisories", rec.Topic)
	assert.Equal(t, []byte("evil.example"), rec.Key)
	assert.Equal(t, "kind", rec.Headers[0].Key)

	var decoded advisory.Event
	require.NoError(t, json.Unmarshal(rec.Value, &decoded))
	assert.Equal(t, event, decoded)
}

func TestSinkReportsProduceFailure(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker down")}
	sink := NewSink(producer, "t")

	err := sink.Write(context.Background(), advisory.Event{Host: "h"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Equal(t, "kafka", sink.Name())
}

func TestNewClientRequiresBrokers(t *testing.T) {
	_, err := NewClient(nil, "t")
	assert.Error(t, err)
}
