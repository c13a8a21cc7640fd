package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"spendlog/internal/core"
	"spendlog/internal/store/memory"
)

type recordingPublisher struct {
	published []string
	err       error
}

func (p *recordingPublisher) PublishRecordExport(ctx context.Context, recordID string) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, recordID)
	return nil
}

func serviceRecord(title string) core.Record {
	return core.Record{
		Icon:      "🍜",
		Title:     title,
		Amount:    120,
		Category:  core.CategoryFood,
		Timestamp: time.Date(2025, 5, 20, 12, 30, 0, 0, core.Zone()),
	}
}

func TestRecordService_CreatePublishesExport(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewRecordService(memory.New(), pub)

	rec := serviceRecord("beef noodles")
	if _, err := svc.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if len(pub.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.published))
	}

	records, _ := svc.List(context.Background())
	if len(records) != 1 || records[0].ID != pub.published[0] {
		t.Errorf("published id %q does not match stored record %+v", pub.published[0], records)
	}
}

func TestRecordService_CreateAssignsID(t *testing.T) {
	svc := NewRecordService(memory.New(), nil)

	if _, err := svc.Create(context.Background(), serviceRecord("coffee")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	records, _ := svc.List(context.Background())
	if records[0].ID == "" {
		t.Error("Create() did not assign an id")
	}
}

func TestRecordService_PublishFailureDoesNotFailCreate(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewRecordService(memory.New(), pub)

	if _, err := svc.Create(context.Background(), serviceRecord("beef noodles")); err != nil {
		t.Fatalf("Create() error = %v, want nil despite publish failure", err)
	}
	records, _ := svc.List(context.Background())
	if len(records) != 1 {
		t.Errorf("record not stored, have %d", len(records))
	}
}

func TestRecordService_UpdateRepublishes(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewRecordService(memory.New(), pub)

	rec := serviceRecord("coffee")
	rec.ID = core.NewID()
	if _, err := svc.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	rec.Amount = 150
	if err := svc.Update(context.Background(), rec); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(pub.published) != 2 {
		t.Errorf("published %d messages, want 2", len(pub.published))
	}
}

func TestRecordService_DeleteBatchAtomic(t *testing.T) {
	svc := NewRecordService(memory.New(), nil)

	a := serviceRecord("a")
	a.ID = core.NewID()
	if _, err := svc.Create(context.Background(), a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := svc.DeleteBatch(context.Background(), []string{a.ID, "missing"}); err == nil {
		t.Fatal("DeleteBatch() with unknown id should fail")
	}
	records, _ := svc.List(context.Background())
	if len(records) != 1 {
		t.Errorf("store changed on failed batch, have %d records", len(records))
	}
}
