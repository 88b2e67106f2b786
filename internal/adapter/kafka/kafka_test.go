package kafka

import (
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcdb-labs/disaster-etl/internal/domain"
)

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("key-1"),
		Value:     []byte(`{"source_id":"2024-0123-NPL"}`),
		Topic:     "raw-disaster-records",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("emdat")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("key-1"), raw.Key)
	assert.JSONEq(t, `{"source_id":"2024-0123-NPL"}`, string(raw.Value))
	assert.Equal(t, "raw-disaster-records", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "emdat", raw.Headers["source"])
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	rec := domain.ResolvedRecord{
		ID:            "emdat-1a2b3c4d5e6f7a8b",
		Source:        "emdat",
		SourceID:      "2024-0123-NPL",
		CorrelationID: "20240315-NPL-nat-hyd-flo-riv-1-GCDB",
		HazardCluster: "nat-hyd-flo-riv",
		ProcessedAt:   now,
	}

	msg, err := serializeToMessage(rec)
	require.NoError(t, err)

	assert.Equal(t, []byte("20240315-NPL-nat-hyd-flo-riv-1-GCDB"), msg.Key)
	assert.Contains(t, string(msg.Value), `"hazard_cluster":"nat-hyd-flo-riv"`)
	assert.Len(t, msg.Headers, 3)
	assert.Equal(t, "hazard_cluster", msg.Headers[0].Key)
	assert.Equal(t, []byte("nat-hyd-flo-riv"), msg.Headers[0].Value)
	assert.Equal(t, "source", msg.Headers[1].Key)
	assert.Equal(t, []byte("emdat"), msg.Headers[1].Value)
	assert.Equal(t, "processed_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[2].Value)
}
