package trial

import (
	"testing"
	"time"

	"github.com/dukerupert/homekeep/internal/model"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestNew(t *testing.T) {
	info := New(t0)
	if !info.StartDate.Equal(t0) {
		t.Errorf("start = %v, want %v", info.StartDate, t0)
	}
	if want := t0.AddDate(0, 0, 14); !info.EndDate.Equal(want) {
		t.Errorf("end = %v, want %v", info.EndDate, want)
	}
	if info.IsPro {
		t.Error("new trial should not be pro")
	}
}

func TestDerive(t *testing.T) {
	end := t0.AddDate(0, 0, 14)
	info := model.TrialInfo{StartDate: t0, EndDate: end}

	tests := []struct {
		name       string
		now        time.Time
		info       model.TrialInfo
		wantActive bool
		wantDays   int
	}{
		{"at start", t0, info, true, 14},
		{"one day before end", end.Add(-24 * time.Hour), info, true, 1},
		{"partial day rounds up", end.Add(-90 * time.Minute), info, true, 1},
		{"day and a bit", end.Add(-25 * time.Hour), info, true, 2},
		{"exactly at end", end, info, true, 0},
		{"one ms after end", end.Add(time.Millisecond), info, false, 0},
		{"long expired", end.AddDate(1, 0, 0), info, false, 0},
		{"pro after end", end.AddDate(0, 1, 0), model.TrialInfo{StartDate: t0, EndDate: end, IsPro: true}, true, 0},
		{"pro during trial", t0, model.TrialInfo{StartDate: t0, EndDate: end, IsPro: true}, true, 0},
		{"stale cache ignored", end.Add(time.Hour), model.TrialInfo{StartDate: t0, EndDate: end, IsActive: true}, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(tt.now, tt.info)
			if got.IsActive != tt.wantActive {
				t.Errorf("IsActive = %v, want %v", got.IsActive, tt.wantActive)
			}
			if got.DaysLeft != tt.wantDays {
				t.Errorf("DaysLeft = %d, want %d", got.DaysLeft, tt.wantDays)
			}
		})
	}
}

func TestFoldActive(t *testing.T) {
	info := *New(t0)
	periodEnd := t0.AddDate(0, 1, 0)

	got := Fold(t0, info, Subscription{Active: true, CurrentPeriodEnd: &periodEnd, CancelAtPeriodEnd: true})
	if !got.IsPro {
		t.Error("expected IsPro after active subscription")
	}
	if !got.EndDate.Equal(periodEnd) {
		t.Errorf("end = %v, want %v", got.EndDate, periodEnd)
	}
	if !got.CancelAtPeriodEnd {
		t.Error("expected CancelAtPeriodEnd to be copied")
	}
	if !got.StartDate.Equal(t0) {
		t.Errorf("start changed to %v", got.StartDate)
	}
}

func TestFoldActiveWithoutPeriodEnd(t *testing.T) {
	info := *New(t0)

	got := Fold(t0, info, Subscription{Active: true})
	if !got.EndDate.Equal(info.EndDate) {
		t.Errorf("end = %v, want unchanged %v", got.EndDate, info.EndDate)
	}
}

func TestFoldInactive(t *testing.T) {
	info := *New(t0)
	info.IsPro = true
	info.CancelAtPeriodEnd = true
	later := t0.AddDate(0, 2, 0)

	got := Fold(later, info, Subscription{Active: false})
	if got.IsPro {
		t.Error("expected IsPro cleared")
	}
	if !got.EndDate.Equal(info.EndDate) {
		t.Errorf("end = %v, want unchanged %v", got.EndDate, info.EndDate)
	}
	if got.IsActive {
		t.Error("expected cached IsActive to be false after trial end")
	}
}
