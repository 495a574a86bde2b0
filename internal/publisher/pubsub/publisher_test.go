package pubsub

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/pubsub"
	"github.com/stretchr/testify/require"
)

type event struct {
	JobID string `json:"job_id"`
}

func (e event) Attributes() map[string]string {
	return map[string]string{"job_id": e.JobID}
}

func TestPublish(t *testing.T) {
	t.Parallel()

	var sent *pubsub.Message
	p := &Publisher{topic: "audit-events", publish: func(_ context.Context, msg *pubsub.Message) (string, error) {
		sent = msg
		return "srv-1", nil
	}}

	id, err := p.Publish(context.Background(), "audit-events", event{JobID: "job-1"})
	require.NoError(t, err)
	require.Equal(t, "srv-1", id)
	require.JSONEq(t, `{"job_id":"job-1"}`, string(sent.Data))
	require.Equal(t, map[string]string{"job_id": "job-1"}, sent.Attributes)

	_, err = p.Publish(context.Background(), "", map[string]int{"n": 1})
	require.NoError(t, err)
	require.Nil(t, sent.Attributes)
}

func TestPublishErrors(t *testing.T) {
	t.Parallel()

	_, err := (&Publisher{}).Publish(context.Background(), "t", nil)
	require.ErrorContains(t, err, "not configured")

	boom := errors.New("boom")
	p := &Publisher{topic: "a", publish: func(context.Context, *pubsub.Message) (string, error) { return "", boom }}
	_, err = p.Publish(context.Background(), "b", nil)
	require.ErrorContains(t, err, `bound to topic "a"`)
	_, err = p.Publish(context.Background(), "a", make(chan int))
	require.ErrorContains(t, err, "marshal payload")
	_, err = p.Publish(context.Background(), "a", "x")
	require.ErrorIs(t, err, boom)
	p.Stop()
}
