package service

import (
	"testing"
	"time"
)

func TestRetentionDateSixMonths(t *testing.T) {
	uploaded := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	got := RetentionDate(uploaded, DefaultRetentionMonths)
	want := time.Date(2026, 7, 15, 10, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("RetentionDate = %v, want %v", got, want)
	}
}

func TestRetentionDateMonthEndNormalization(t *testing.T) {
	// 8月31日 + 6个月：time.AddDate规范化到3月初而不是2月末
	uploaded := time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC)
	got := RetentionDate(uploaded, 6)
	want := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("RetentionDate = %v, want %v", got, want)
	}
}

func TestRetentionDateStableAcrossCalls(t *testing.T) {
	uploaded := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	first := RetentionDate(uploaded, 6)
	second := RetentionDate(uploaded, 6)
	if !first.Equal(second) {
		t.Errorf("retention date must be a pure function of upload time: %v != %v", first, second)
	}
}

func TestRetentionDateZeroMonthsFallsBackToDefault(t *testing.T) {
	uploaded := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := RetentionDate(uploaded, 0)
	want := uploaded.AddDate(0, DefaultRetentionMonths, 0)
	if !got.Equal(want) {
		t.Errorf("RetentionDate(0 months) = %v, want default %v", got, want)
	}
}
