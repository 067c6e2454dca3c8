package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"

	"kanban-app/domain"
)

// Queue messages are limited to 64 KiB.
const maxJournalMessageBytes = 64 * 1024

type messageQueue interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// QueueJournal appends applied command batches to an Azure storage queue
// for auditing and replay by downstream consumers.
type QueueJournal struct {
	queue    messageQueue
	maxBytes int
}

// NewQueueJournal creates a journal from a connection string.
func NewQueueJournal(connStr, queueName string) (*QueueJournal, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &opts)
	if err != nil {
		return nil, err
	}
	return &QueueJournal{queue: q, maxBytes: maxJournalMessageBytes}, nil
}

// Append records an entry. Entries too large for one message are split
// into consecutive messages that keep command order.
func (j *QueueJournal) Append(ctx context.Context, entry domain.JournalEntry) error {
	if len(entry.Commands) == 0 {
		return nil
	}
	msgs, err := j.encode(entry)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if _, err := j.queue.EnqueueMessage(ctx, msg, nil); err != nil {
			return fmt.Errorf("enqueue journal entry: %w", err)
		}
	}
	return nil
}

func (j *QueueJournal) encode(entry domain.JournalEntry) ([]string, error) {
	data, err := sonic.MarshalString(entry)
	if err != nil {
		return nil, err
	}
	if len(data) <= j.maxBytes {
		return []string{data}, nil
	}
	if len(entry.Commands) == 1 {
		return nil, fmt.Errorf("journal entry for %q exceeds %d bytes", entry.Commands[0].Type, j.maxBytes)
	}
	mid := len(entry.Commands) / 2
	head, err := j.encode(domain.JournalEntry{Seq: entry.Seq, Commands: entry.Commands[:mid], Timestamp: entry.Timestamp})
	if err != nil {
		return nil, err
	}
	tail, err := j.encode(domain.JournalEntry{Seq: entry.Seq, Commands: entry.Commands[mid:], Timestamp: entry.Timestamp})
	if err != nil {
		return nil, err
	}
	return append(head, tail...), nil
}
