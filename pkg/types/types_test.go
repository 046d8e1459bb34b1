package types

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestProcessingStatus(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		status   ProcessingStatus
		valid    bool
		terminal bool
		canStart bool
	}{
		{ProcessingStatusDraft, true, false, true},
		{ProcessingStatusProcessing, true, false, false},
		{ProcessingStatusCompleted, true, true, true},
		{ProcessingStatusFailed, true, true, true},
		{ProcessingStatus("UNKNOWN"), false, false, false},
		{ProcessingStatus(""), false, false, false},
	}

	for _, tt := range tests {
		c.Run(tt.status.String(), func(c *qt.C) {
			c.Check(tt.status.IsValid(), qt.Equals, tt.valid)
			c.Check(tt.status.IsTerminal(), qt.Equals, tt.terminal)
			c.Check(tt.status.CanStartEnrichment(), qt.Equals, tt.canStart)
		})
	}
}
