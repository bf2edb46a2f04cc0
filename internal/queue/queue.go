package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// All stage jobs go through a single list so the worker executes them one at
// a time in submission order. Stages for different campaigns never overlap.
const QueueCampaignJobs = "queue:campaign_jobs"

type JobType string

const (
	JobGeneratePlan       JobType = "generate_plan"
	JobGenerateImages     JobType = "generate_images"
	JobGenerateVoiceovers JobType = "generate_voiceovers"
	JobGenerateVideos     JobType = "generate_videos"
	JobExportVideo        JobType = "export_video"
)

type Queue struct {
	client *redis.Client
}

type Job struct {
	ID         uuid.UUID `json:"id"`
	Type       JobType   `json:"type"`
	CampaignID uuid.UUID `json:"campaign_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// Enqueue pushes a stage job for a campaign onto the shared job list.
func (q *Queue) Enqueue(ctx context.Context, jobType JobType, campaignID uuid.UUID) error {
	job := &Job{
		ID:         uuid.New(),
		Type:       jobType,
		CampaignID: campaignID,
		CreatedAt:  time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return q.client.RPush(ctx, QueueCampaignJobs, data).Err()
}

// Dequeue blocks for up to timeout waiting for the next job. A nil job with
// a nil error means the wait timed out with nothing queued.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, QueueCampaignJobs).Result()
	if err == redis.Nil {
		return nil, nil // No job available
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, QueueCampaignJobs).Result()
}
