package stats_test

import (
	"testing"

	"github.com/nesium/splitship/internal/experiment"
	"github.com/nesium/splitship/internal/stats"
)

func variants(ids ...string) []experiment.Variant {
	out := make([]experiment.Variant, len(ids))
	for i, id := range ids {
		out[i] = experiment.Variant{ID: id, DisplayText: "Headline " + id, Weight: 1}
	}
	return out
}

func makeEvents(variantID string, views, submissions int) []experiment.Event {
	var out []experiment.Event
	for i := 0; i < views; i++ {
		out = append(out, experiment.Event{VariantID: variantID, EventType: experiment.EventPageView})
	}
	for i := 0; i < submissions; i++ {
		out = append(out, experiment.Event{VariantID: variantID, EventType: experiment.EventFormSubmission})
	}
	return out
}

func TestSnapshot_CountsPerVariant(t *testing.T) {
	events := append(makeEvents("a", 4, 2), makeEvents("b", 10, 1)...)

	snapshot := stats.Snapshot(variants("a", "b", "c"), events)
	if len(snapshot) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(snapshot))
	}

	a := snapshot[0]
	if a.PageViews != 4 || a.FormSubmissions != 2 {
		t.Errorf("a: got %d views / %d submissions, expected 4/2", a.PageViews, a.FormSubmissions)
	}
	if a.ConversionRate != 0.5 {
		t.Errorf("a: conversion rate %v, expected 0.5", a.ConversionRate)
	}
	if a.Events != 6 {
		t.Errorf("a: events %d, expected 6", a.Events)
	}

	// Variant with no events still appears with zero counts
	c := snapshot[2]
	if c.PageViews != 0 || c.FormSubmissions != 0 || c.ConversionRate != 0 {
		t.Errorf("c: expected zero metrics, got %+v", c)
	}
}

func TestSnapshot_ZeroViewsDoesNotDivideByZero(t *testing.T) {
	// Submissions without any recorded view: rate uses max(views, 1)
	events := makeEvents("a", 0, 3)

	snapshot := stats.Snapshot(variants("a"), events)
	if snapshot[0].ConversionRate != 3.0 {
		t.Errorf("conversion rate %v, expected 3.0", snapshot[0].ConversionRate)
	}
}

func TestWinner_HighestRateAmongQualified(t *testing.T) {
	// A: 12 views / 6 submissions (rate 0.5)
	// B: 15 views / 3 submissions (rate 0.2)
	events := append(makeEvents("a", 12, 6), makeEvents("b", 15, 3)...)

	snapshot := stats.Snapshot(variants("a", "b"), events)
	if got := stats.Winner(snapshot); got != "a" {
		t.Errorf("expected winner 'a', got %q", got)
	}
}

func TestWinner_IgnoresVariantsBelowViewGate(t *testing.T) {
	// B has a perfect rate but only 9 views; A qualifies with 10.
	events := append(makeEvents("a", 10, 1), makeEvents("b", 9, 9)...)

	snapshot := stats.Snapshot(variants("a", "b"), events)
	if got := stats.Winner(snapshot); got != "a" {
		t.Errorf("expected gated winner 'a', got %q", got)
	}
}

func TestWinner_NoneWhenNoVariantQualifies(t *testing.T) {
	events := append(makeEvents("a", 5, 5), makeEvents("b", 9, 2)...)

	snapshot := stats.Snapshot(variants("a", "b"), events)
	if got := stats.Winner(snapshot); got != "" {
		t.Errorf("expected no winner, got %q", got)
	}
}

func TestWinner_NoneWhenQualifiedRatesAreZero(t *testing.T) {
	// Views without conversions never beat the starting threshold.
	events := makeEvents("a", 20, 0)

	snapshot := stats.Snapshot(variants("a"), events)
	if got := stats.Winner(snapshot); got != "" {
		t.Errorf("expected no winner for zero conversions, got %q", got)
	}
}

func TestWinner_TieBreaksToFirstInDefinitionOrder(t *testing.T) {
	events := append(makeEvents("a", 10, 5), makeEvents("b", 10, 5)...)

	snapshot := stats.Snapshot(variants("a", "b"), events)
	if got := stats.Winner(snapshot); got != "a" {
		t.Errorf("expected tie to break to 'a', got %q", got)
	}
}
