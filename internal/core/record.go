package core

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Suggested category vocabulary. Categories are free-form labels; these are
// the values the remote parser is expected to emit most of the time.
const (
	CategoryFood          = "food"
	CategoryShopping      = "shopping"
	CategoryTransport     = "transport"
	CategoryEntertainment = "entertainment"
	CategoryHealth        = "health"
	CategoryLiving        = "living"
	CategoryOther         = "other"
)

type (
	// Record is a single expense entry. Amount is in whole currency units,
	// Timestamp carries minute precision and a zone offset.
	Record struct {
		ID        string
		Icon      string
		Title     string
		Amount    int64
		Category  string
		Timestamp time.Time
		Note      string
	}
)

var (
	ErrEmptyTitle      = errors.New("empty title")
	ErrZeroTimestamp   = errors.New("zero timestamp")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrRecordNotFound  = errors.New("record not found")
	ErrDuplicateRecord = errors.New("duplicate record id")
)

var (
	zoneOnce sync.Once
	zone     *time.Location
)

// Zone returns the civil calendar zone for all day/month bucketing.
// Falls back to a fixed +08:00 zone when tzdata is unavailable.
func Zone() *time.Location {
	zoneOnce.Do(func() {
		loc, err := time.LoadLocation("Asia/Taipei")
		if err != nil {
			loc = time.FixedZone("CST", 8*60*60)
		}
		zone = loc
	})
	return zone
}

// NewID returns a fresh opaque record identifier.
func NewID() string {
	return uuid.NewString()
}

// Validate checks the invariants every stored record carries. Title and
// icon stay free-form (the remote parser may emit them empty), so the
// only hard requirement is a real timestamp.
func (r Record) Validate() error {
	if r.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	return nil
}

// CivilDate returns the year, month and day of the record in the
// aggregation zone, regardless of the offset the timestamp carries.
func (r Record) CivilDate() (year int, month time.Month, day int) {
	return r.Timestamp.In(Zone()).Date()
}
