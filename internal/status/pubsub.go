package status

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"cloud.google.com/go/pubsub"

	"github.com/simplesurance/commitqueue/internal/cqerr"
)

// PubSubSink publishes events to a Google Cloud Pub/Sub topic.
type PubSubSink struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubSink returns a sink publishing to topicID in projectID.
// The topic must exist.
func NewPubSubSink(ctx context.Context, projectID, topicID string) (*PubSubSink, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client failed: %w", err)
	}

	topic := client.Topic(topicID)

	exist, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("checking if topic %s exists failed: %w", topicID, err)
	}

	if !exist {
		_ = client.Close()
		return nil, fmt.Errorf("topic %s does not exist in project %s", topicID, projectID)
	}

	return &PubSubSink{client: client, topic: topic}, nil
}

func (*PubSubSink) Name() string {
	return "pubsub"
}

func (s *PubSubSink) Send(ctx context.Context, ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	res := s.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event": ev.Name,
			"issue": strconv.Itoa(ev.Issue),
		},
	})

	if _, err := res.Get(ctx); err != nil {
		return cqerr.Retryable(fmt.Errorf("publishing event failed: %w", err))
	}

	return nil
}

// Close flushes outstanding messages and closes the client.
func (s *PubSubSink) Close() error {
	s.topic.Stop()
	return s.client.Close()
}
