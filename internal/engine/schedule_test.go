package engine

import (
	"errors"
	"testing"
	"time"

	"legacy-scheduler/internal/models"
)

func TestDeliveryTimeFor(t *testing.T) {
	anchor := time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		scheduleType models.ScheduleType
		offset       int
		want         time.Time
	}{
		{"immediately", models.ScheduleImmediatelyAfterConfirm, 0, anchor},
		{"days after death", models.ScheduleDaysAfterDeath, 7, time.Date(2025, time.January, 17, 0, 0, 0, 0, time.UTC)},
		{"weeks after death", models.ScheduleWeeksAfterDeath, 2, time.Date(2025, time.January, 24, 0, 0, 0, 0, time.UTC)},
		{"months after death", models.ScheduleMonthsAfterDeath, 3, time.Date(2025, time.April, 10, 0, 0, 0, 0, time.UTC)},
		{"years after death", models.ScheduleYearsAfterDeath, 1, time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC)},
		{"days after inactivity", models.ScheduleDaysAfterInactivity, 30, time.Date(2025, time.February, 9, 0, 0, 0, 0, time.UTC)},
		{"weeks after inactivity", models.ScheduleWeeksAfterInactivity, 1, time.Date(2025, time.January, 17, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := deliveryTimeFor(tc.scheduleType, tc.offset, anchor)
			if err != nil {
				t.Fatalf("deliveryTimeFor: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDeliveryTimeForMonthEndClamping(t *testing.T) {
	tests := []struct {
		name   string
		anchor time.Time
		months int
		want   time.Time
	}{
		{
			"jan 31 plus one month",
			time.Date(2025, time.January, 31, 12, 0, 0, 0, time.UTC),
			1,
			time.Date(2025, time.February, 28, 12, 0, 0, 0, time.UTC),
		},
		{
			"jan 31 plus one month in leap year",
			time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC),
			1,
			time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			"oct 31 plus one month",
			time.Date(2025, time.October, 31, 0, 0, 0, 0, time.UTC),
			1,
			time.Date(2025, time.November, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			"crossing a year boundary",
			time.Date(2025, time.November, 30, 6, 30, 0, 0, time.UTC),
			3,
			time.Date(2026, time.February, 28, 6, 30, 0, 0, time.UTC),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := deliveryTimeFor(models.ScheduleMonthsAfterDeath, tc.months, tc.anchor)
			if err != nil {
				t.Fatalf("deliveryTimeFor: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDeliveryTimeForLeapDayYearOffset(t *testing.T) {
	anchor := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)
	got, err := deliveryTimeFor(models.ScheduleYearsAfterDeath, 1, anchor)
	if err != nil {
		t.Fatalf("deliveryTimeFor: %v", err)
	}
	want := time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDeliveryTimeForRejectsAbsolute(t *testing.T) {
	_, err := deliveryTimeFor(models.ScheduleAbsolute, 0, time.Now())
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
