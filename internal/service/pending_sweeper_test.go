package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/fallback-dispatch/internal/domain"
	"github.com/kursadbilgin/fallback-dispatch/internal/queue"
	"go.uber.org/zap"
)

func TestNewPendingSweeperValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewPendingSweeper(nil, &fakePublisher{}, 0, 0, 0, nil); err == nil {
		t.Fatal("expected error when notification repository is nil")
	}
	if _, err := NewPendingSweeper(&fakeNotificationRepo{}, nil, 0, 0, 0, nil); err == nil {
		t.Fatal("expected error when publisher is nil")
	}

	sweeper, err := NewPendingSweeper(&fakeNotificationRepo{}, &fakePublisher{}, 0, 0, 0, nil)
	if err != nil {
		t.Fatalf("NewPendingSweeper() error = %v", err)
	}
	if sweeper.interval != defaultSweepInterval || sweeper.republishAfter != defaultRepublishAfter || sweeper.limit != defaultSweepLimit {
		t.Fatalf("defaults = %v %v %d", sweeper.interval, sweeper.republishAfter, sweeper.limit)
	}
}

func TestPendingSweeperSweepRepublishes(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	touched := make([]string, 0, 2)

	repo := &fakeNotificationRepo{
		getStaleFn: func(ctx context.Context, status domain.Status, updatedBefore time.Time, limit int) ([]domain.Notification, error) {
			if status != domain.StatusPending {
				t.Fatalf("status = %s, want pending", status)
			}
			if want := now.Add(-time.Minute); !updatedBefore.Equal(want) {
				t.Fatalf("updatedBefore = %v, want %v", updatedBefore, want)
			}
			return []domain.Notification{
				{ID: "n1", RequestID: strPtr("req-1")},
				{ID: "n2"},
				{ID: "n3"},
			}, nil
		},
		touchPendingFn: func(ctx context.Context, id string) error {
			touched = append(touched, id)
			return nil
		},
	}

	published := make([]queue.DeliveryMessage, 0, 3)
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.DeliveryMessage) error {
			if queueName != queue.DeliveryQueue {
				t.Fatalf("queue = %q, want %q", queueName, queue.DeliveryQueue)
			}
			if msg.NotificationID == "n2" {
				return errors.New("broker down")
			}
			published = append(published, msg)
			return nil
		},
	}

	sweeper, err := NewPendingSweeper(repo, publisher, time.Second, time.Minute, 25, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPendingSweeper() error = %v", err)
	}
	sweeper.now = func() time.Time { return now }

	if err := sweeper.sweep(context.Background()); err != nil {
		t.Fatalf("sweep() error = %v", err)
	}

	if len(published) != 2 || published[0].NotificationID != "n1" || published[0].RequestID != "req-1" || published[1].NotificationID != "n3" {
		t.Fatalf("published = %+v, want n1 and n3", published)
	}
	if len(touched) != 2 || touched[0] != "n1" || touched[1] != "n3" {
		t.Fatalf("touched = %v, want [n1 n3]", touched)
	}
}

func TestPendingSweeperSweepRepositoryError(t *testing.T) {
	t.Parallel()

	repo := &fakeNotificationRepo{
		getStaleFn: func(ctx context.Context, status domain.Status, updatedBefore time.Time, limit int) ([]domain.Notification, error) {
			return nil, errors.New("db error")
		},
	}

	sweeper, err := NewPendingSweeper(repo, &fakePublisher{}, time.Second, time.Minute, 10, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPendingSweeper() error = %v", err)
	}

	if err := sweeper.sweep(context.Background()); err == nil {
		t.Fatal("expected sweep() error")
	}
}

func TestPendingSweeperStartReturnsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sweeper, err := NewPendingSweeper(&fakeNotificationRepo{}, &fakePublisher{}, time.Second, time.Minute, 10, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPendingSweeper() error = %v", err)
	}

	if err := sweeper.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}
