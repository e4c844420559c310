package model

import (
	"math"
	"testing"
	"time"
)

func TestReservationStatus_IsValid(t *testing.T) {
	tests := []struct {
		status ReservationStatus
		want   bool
	}{
		{StatusPending, true},
		{StatusConfirmed, true},
		{StatusCancelled, true},
		{"approved", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := tt.status.IsValid(); got != tt.want {
			t.Errorf("%q.IsValid() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"calendar date", "2024-01-10", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), false},
		{"leap day", "2024-02-29", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), false},
		{"not a leap year", "2023-02-29", time.Time{}, true},
		{"timestamp rejected", "2024-01-10T10:00:00Z", time.Time{}, true},
		{"empty", "", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDate(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatDate_NormalisesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	in := time.Date(2024, 1, 10, 1, 0, 0, 0, loc)

	if got := FormatDate(in); got != "2024-01-09" {
		t.Errorf("FormatDate() = %s, want 2024-01-09", got)
	}
}

func TestReservation_Clone(t *testing.T) {
	r := &Reservation{ID: 1, RoomID: 2, Status: StatusPending}
	c := r.Clone()
	c.Status = StatusConfirmed

	if r.Status != StatusPending {
		t.Errorf("mutating the clone changed the original")
	}
	var nilRes *Reservation
	if nilRes.Clone() != nil {
		t.Errorf("Clone() of nil should be nil")
	}
}

func TestSearchFilter_Offset(t *testing.T) {
	tests := []struct {
		name   string
		filter SearchFilter
		want   int64
	}{
		{name: "regular page", filter: SearchFilter{PageSize: 10, PageNumber: 3}, want: 30},
		{name: "first page", filter: SearchFilter{PageSize: 10}, want: 0},
		{name: "negative page", filter: SearchFilter{PageSize: 10, PageNumber: -2}, want: 0},
		{name: "saturates", filter: SearchFilter{PageSize: 3, PageNumber: 1 << 62}, want: math.MaxInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Offset(); got != tt.want {
				t.Errorf("Offset() = %d, want %d", got, tt.want)
			}
		})
	}
}
