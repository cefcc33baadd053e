/*
Package jobqueue provides a River-based job queue for delivering scheduled
reminders.

For configuration options, retry policies, and tuning parameters, see
queue_config.go.
*/
package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"
)

// ReminderJobArgs represents the arguments for a reminder delivery job
type ReminderJobArgs struct {
	ReminderID int64 `json:"reminder_id"`
	UserID     int64 `json:"user_id"`
}

// Kind returns the job kind for River
func (ReminderJobArgs) Kind() string {
	return "reminder_deliver"
}

// ReminderWorker delivers due reminders
type ReminderWorker struct {
	river.WorkerDefaults[ReminderJobArgs]
	pool *pgxpool.Pool
}

// Work marks the reminder delivered and appends its text to the user's
// conversation history so it shows up in the chat.
func (w *ReminderWorker) Work(ctx context.Context, job *river.Job[ReminderJobArgs]) error {
	args := job.Args

	var content string
	err := w.pool.QueryRow(ctx,
		`UPDATE reminders SET delivered_at = $1 WHERE id = $2 AND delivered_at IS NULL RETURNING text`,
		time.Now(), args.ReminderID,
	).Scan(&content)
	if err == pgx.ErrNoRows {
		// Already delivered (or deleted); nothing to do.
		log.Debug().Int64("reminder_id", args.ReminderID).Msg("reminder already delivered")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mark reminder delivered: %w", err)
	}

	_, err = w.pool.Exec(ctx,
		`INSERT INTO conversation_history (user_id, sender, message, reason, created_at)
		 VALUES ($1, 'ava', $2, 'reminder', $3)`,
		args.UserID, "Reminder: "+content, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to record reminder delivery: %w", err)
	}

	log.Info().
		Int64("reminder_id", args.ReminderID).
		Int64("user_id", args.UserID).
		Msg("delivered reminder")
	return nil
}

// JobQueue manages the River job queue
type JobQueue struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
	config *QueueConfig
}

// NewJobQueue creates a new job queue instance
func NewJobQueue(databaseURL string) (*JobQueue, error) {
	config := GetQueueConfig()

	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &ReminderWorker{pool: pool})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:  config.RiverQueueConfig(),
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &JobQueue{
		client: client,
		pool:   pool,
		config: config,
	}, nil
}

// Start starts the job queue workers
func (jq *JobQueue) Start(ctx context.Context) error {
	return jq.client.Start(ctx)
}

// Stop stops the job queue workers
func (jq *JobQueue) Stop(ctx context.Context) error {
	defer jq.pool.Close()
	return jq.client.Stop(ctx)
}

// ScheduleReminder queues a delivery job to run at the reminder's due time.
func (jq *JobQueue) ScheduleReminder(ctx context.Context, reminderID, userID int64, dueAt time.Time) error {
	args := ReminderJobArgs{
		ReminderID: reminderID,
		UserID:     userID,
	}

	_, err := jq.client.Insert(ctx, args, &river.InsertOpts{ScheduledAt: dueAt})
	if err != nil {
		return fmt.Errorf("failed to queue reminder job: %w", err)
	}

	return nil
}
