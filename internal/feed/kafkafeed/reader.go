package kafkafeed

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the slice of *kafka.Reader the feed depends on.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// ReaderFactory opens a reader positioned at the first retained offset of
// one topic partition.
type ReaderFactory func(topic string, partition int) MessageReader

// PartitionLister returns the partition ids of topic.
type PartitionLister func(ctx context.Context, topic string) ([]int, error)

// newPartitionReader reads without a consumer group, so every subscription
// replays the compacted topic and sees the current document for its key.
func newPartitionReader(brokers []string) ReaderFactory {
	return func(topic string, partition int) MessageReader {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:   brokers,
			Topic:     topic,
			Partition: partition,
			MinBytes:  1,
			MaxBytes:  10e6,
		})
		_ = r.SetOffset(kafka.FirstOffset)
		return r
	}
}

func lookupPartitions(brokers []string) PartitionLister {
	return func(ctx context.Context, topic string) ([]int, error) {
		var errs []error
		for _, broker := range brokers {
			parts, err := kafka.DefaultDialer.LookupPartitions(ctx, "tcp", broker, topic)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			ids := make([]int, 0, len(parts))
			for _, p := range parts {
				ids = append(ids, p.ID)
			}
			if len(ids) == 0 {
				return nil, fmt.Errorf("kafkafeed: topic %s has no partitions", topic)
			}
			return ids, nil
		}
		return nil, fmt.Errorf("kafkafeed: lookup partitions for %s: %w", topic, errors.Join(errs...))
	}
}

// singlePartition is used when only a reader factory is supplied.
func singlePartition(context.Context, string) ([]int, error) {
	return []int{0}, nil
}
