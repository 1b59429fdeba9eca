package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQS caps a message's visibility timeout at 12 hours.
const maxVisibility = 12 * time.Hour

type sqsAPI interface {
	GetQueueUrl(ctx context.Context, in *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, in *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// SQSQueue uses the visibility timeout as the lease. Tasks out of attempts are
// left to the queue's redrive policy.
type SQSQueue struct {
	Client      sqsAPI
	URL         string
	WaitSeconds int32
	MaxAttempts int
	Backoff     Backoff
}

func NewSQSQueue(ctx context.Context, client sqsAPI, name string, waitSeconds int32, maxAttempts int, backoff Backoff) (*SQSQueue, error) {
	out, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		return nil, fmt.Errorf("resolve queue %s: %w", name, err)
	}
	return &SQSQueue{
		Client:      client,
		URL:         aws.ToString(out.QueueUrl),
		WaitSeconds: waitSeconds,
		MaxAttempts: maxAttempts,
		Backoff:     backoff,
	}, nil
}

func (q *SQSQueue) Enqueue(ctx context.Context, task Task) (string, error) {
	if task.MaxAttempts <= 0 {
		task.MaxAttempts = q.MaxAttempts
	}
	body, err := json.Marshal(task)
	if err != nil {
		return "", err
	}
	out, err := q.Client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.URL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}

func (q *SQSQueue) Dequeue(ctx context.Context, lease time.Duration) (*Lease, error) {
	out, err := q.Client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(q.URL),
		MaxNumberOfMessages:         1,
		WaitTimeSeconds:             q.WaitSeconds,
		VisibilityTimeout:           seconds(lease),
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{sqstypes.MessageSystemAttributeNameApproximateReceiveCount},
	})
	if err != nil {
		return nil, err
	}
	if len(out.Messages) == 0 {
		return nil, ErrEmpty
	}
	m := out.Messages[0]
	var task Task
	if err := json.Unmarshal([]byte(aws.ToString(m.Body)), &task); err != nil {
		// poison message; drop it rather than redeliver forever
		_, _ = q.Client.DeleteMessage(ctx, &sqs.DeleteMessageInput{QueueUrl: aws.String(q.URL), ReceiptHandle: m.ReceiptHandle})
		return nil, fmt.Errorf("decode task %s: %w", aws.ToString(m.MessageId), err)
	}
	task.ID = aws.ToString(m.MessageId)
	if task.MaxAttempts <= 0 {
		task.MaxAttempts = q.MaxAttempts
	}
	attempt, _ := strconv.Atoi(m.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)])
	if attempt < 1 {
		attempt = 1
	}
	return &Lease{
		Task:    task,
		Attempt: attempt,
		Token:   aws.ToString(m.ReceiptHandle),
		Until:   time.Now().Add(lease),
	}, nil
}

func (q *SQSQueue) Ack(ctx context.Context, l *Lease) error {
	_, err := q.Client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.URL),
		ReceiptHandle: aws.String(l.Token),
	})
	return err
}

// Fail hides the message for the backoff delay. Once attempts are used up the
// message is left alone so the redrive policy can move it.
func (q *SQSQueue) Fail(ctx context.Context, l *Lease, _ error) error {
	if l.Attempt >= l.Task.MaxAttempts {
		return nil
	}
	_, err := q.Client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(q.URL),
		ReceiptHandle:     aws.String(l.Token),
		VisibilityTimeout: seconds(q.Backoff.Delay(l.Attempt)),
	})
	return err
}

func seconds(d time.Duration) int32 {
	if d > maxVisibility {
		d = maxVisibility
	}
	if d < 0 {
		d = 0
	}
	return int32(d / time.Second)
}
