package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSAPI is the subset of the SQS client used by SQSQueue.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// maxSQSWait is the long-polling limit of ReceiveMessage.
const maxSQSWait = 20 * time.Second

// SQSQueue carries tasks through an SQS queue. Unacknowledged messages come
// back after the queue's visibility timeout.
type SQSQueue struct {
	client   SQSAPI
	queueURL string
}

// NewSQSQueue returns a queue on queueURL.
func NewSQSQueue(client SQSAPI, queueURL string) *SQSQueue {
	return &SQSQueue{client: client, queueURL: queueURL}
}

// Enqueue implements Queue.
func (q *SQSQueue) Enqueue(ctx context.Context, t Task) error {
	raw, err := t.Encode()
	if err != nil {
		return err
	}
	if _, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(raw)),
	}); err != nil {
		return fmt.Errorf("enqueue %s: %w", t.Name, err)
	}
	return nil
}

// Dequeue implements Queue.
func (q *SQSQueue) Dequeue(ctx context.Context, wait time.Duration) (*Delivery, error) {
	if wait > maxSQSWait {
		wait = maxSQSWait
	}
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     int32(wait / time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("receive message: %w", err)
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}
	msg := out.Messages[0]
	ack := func(ctx context.Context) error {
		_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(q.queueURL),
			ReceiptHandle: msg.ReceiptHandle,
		})
		return err
	}
	t, err := Decode([]byte(aws.ToString(msg.Body)))
	if err != nil {
		// delete poison messages
		_ = ack(ctx)
		return nil, err
	}
	return &Delivery{Task: t, Ack: ack}, nil
}

// Close implements Queue.
func (q *SQSQueue) Close() error {
	return nil
}
