package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{name: "food recall", id: "F-0543-2025", valid: true},
		{name: "device recall", id: "Z-12345-2024", valid: true},
		{name: "three digit sequence", id: "D-123-2023", valid: true},
		{name: "empty", id: "", valid: false},
		{name: "lowercase", id: "f-0543-2025", valid: false},
		{name: "unassigned placeholder", id: "UN-ASSIGNED-1A2B3C4D", valid: false},
		{name: "padded", id: " F-0543-2025", valid: false},
		{name: "path injection", id: "F-0543-2025/../x", valid: false},
		{name: "missing year", id: "F-0543", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.id)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrInvalidIdentifier), "got %v", err)
		})
	}
}

func TestSameStatus(t *testing.T) {
	base := StatusFields{ReportDate: "2025-03-12", Classification: "Class II", DistributionPattern: "Nationwide"}

	assert.True(t, SameStatus(base, base))

	reclassified := base
	reclassified.Classification = "Class I"
	assert.False(t, SameStatus(base, reclassified))

	redated := base
	redated.ReportDate = "2025-03-19"
	assert.False(t, SameStatus(base, redated))

	redistributed := base
	redistributed.DistributionPattern = "CA, NV, AZ"
	assert.False(t, SameStatus(base, redistributed))
}

func TestRecordStatusIgnoresImmutableFields(t *testing.T) {
	a := RecallRecord{
		RecallNumber:        "F-0543-2025",
		ReportDate:          "2025-03-12",
		Classification:      "Class II",
		DistributionPattern: "Nationwide",
		RecallingFirm:       "Acme Foods",
		RecallStatus:        "Ongoing",
	}
	b := a
	b.RecallingFirm = "Acme Foods, Inc."
	b.RecallStatus = "Terminated"

	assert.True(t, SameStatus(a.Status(), b.Status()))
	assert.Equal(t, a.Status(), CachedSummary{Record: a}.Status())
}
