package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatusValues(t *testing.T) {
	values := make([]string, 0, len(AllStatuses))
	for _, s := range AllStatuses {
		values = append(values, string(s))
	}
	assert.Equal(t, []string{"accepted", "processing", "succeeded", "failed_processing", "failed_delivery"}, values)
}

func TestJobStatusTransitions(t *testing.T) {
	t.Run("Forward transitions", func(t *testing.T) {
		assert.True(t, StatusAccepted.CanTransitionTo(StatusProcessing))
		assert.True(t, StatusProcessing.CanTransitionTo(StatusSucceeded))
		assert.True(t, StatusProcessing.CanTransitionTo(StatusFailedProcessing))
		assert.True(t, StatusSucceeded.CanTransitionTo(StatusFailedDelivery))
		assert.True(t, StatusFailedProcessing.CanTransitionTo(StatusFailedDelivery))
	})

	t.Run("Backward transitions are rejected", func(t *testing.T) {
		assert.False(t, StatusProcessing.CanTransitionTo(StatusAccepted))
		assert.False(t, StatusSucceeded.CanTransitionTo(StatusProcessing))
		assert.False(t, StatusFailedDelivery.CanTransitionTo(StatusSucceeded))
		assert.False(t, StatusSucceeded.CanTransitionTo(StatusFailedProcessing))
		assert.False(t, StatusAccepted.CanTransitionTo(StatusSucceeded))
	})

	t.Run("Terminal statuses", func(t *testing.T) {
		assert.False(t, StatusAccepted.IsTerminal())
		assert.False(t, StatusProcessing.IsTerminal())
		assert.True(t, StatusSucceeded.IsTerminal())
		assert.True(t, StatusFailedProcessing.IsTerminal())
		assert.True(t, StatusFailedDelivery.IsTerminal())
	})
}

func TestNewJob(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sub := &Submission{
		UserID:      "user-1",
		CallbackURL: "https://example.com/hook",
		Filename:    "notes.txt",
		File:        []byte("hello world"),
		Worksheet:   &WorksheetRequest{ActivityCount: 5},
	}

	job := NewJob(KindWorksheet, sub, now)

	assert.True(t, strings.HasPrefix(job.ID, "job-"))
	assert.Len(t, job.ID, len("job-")+32)
	assert.Equal(t, StatusAccepted, job.Status)
	assert.Equal(t, now, job.CreatedAt)
	assert.Nil(t, job.LastError)

	data, err := job.FileBytes()
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	assert.Equal(t, "worksheet.generated", job.Kind.Event())
	assert.Equal(t, "material.generated", KindMaterial.Event())
}
