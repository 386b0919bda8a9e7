//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "dealroom/pkg/platform/audit"
	kafkapub "dealroom/pkg/platform/audit/publishers/kafka"
	"dealroom/pkg/testutil/containers"
)

func TestPublisher_EmitAndConsume(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	redpanda := containers.NewRedpandaContainer(t)

	pub, err := kafkapub.New(ctx, []string{redpanda.Broker}, kafkapub.WithTopic("dealroom.audit.test"))
	require.NoError(t, err)
	defer pub.Close()

	want := audit.NewEvent(audit.ActionAggregateCreated,
		"deal_id", "deal-42",
		"aggregate_id", "app-TARGET-1a2b3c4d",
		"object_type", "application",
	)
	require.NoError(t, pub.Emit(ctx, want))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(redpanda.Broker),
		kgo.ConsumeTopics("dealroom.audit.test"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	fetches := consumer.PollFetches(fetchCtx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "deal-42", string(records[0].Key))

	var got audit.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, audit.ActionAggregateCreated, got.Action)
	assert.Equal(t, "deal-42", got.DealID)
	assert.Equal(t, "app-TARGET-1a2b3c4d", got.AggregateID)
	assert.Equal(t, "application", got.Details["object_type"])
}

func TestPublisher_TopicCreationIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	redpanda := containers.NewRedpandaContainer(t)

	first, err := kafkapub.New(ctx, []string{redpanda.Broker})
	require.NoError(t, err)
	first.Close()

	second, err := kafkapub.New(ctx, []string{redpanda.Broker})
	require.NoError(t, err)
	second.Close()
}
