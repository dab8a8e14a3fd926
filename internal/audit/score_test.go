package audit

import (
	"testing"
	"time"

	"github.com/casafield/leadpipe/internal/database/models"
	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name       string
		eventType  models.AuditEventType
		severity   models.Severity
		sensitive  bool
		frameworks []string
		want       int
	}{
		{
			name:      "routine lead creation",
			eventType: models.EventLeadCreated,
			severity:  models.SeverityInfo,
			want:      10,
		},
		{
			name:      "lead update at medium severity",
			eventType: models.EventLeadUpdated,
			severity:  models.SeverityMedium,
			want:      22, // 15 * 1.5, truncated
		},
		{
			name:      "role change at high severity",
			eventType: models.EventRoleChanged,
			severity:  models.SeverityHigh,
			want:      90, // 45 * 2.0
		},
		{
			name:      "sensitive export",
			eventType: models.EventLeadExported,
			severity:  models.SeverityHigh,
			sensitive: true,
			want:      100, // 50*2.0 + 20, capped
		},
		{
			name:       "framework tag adds ten",
			eventType:  models.EventLeadDeleted,
			severity:   models.SeverityInfo,
			frameworks: []string{"soc2"},
			want:       50, // 40 + 10
		},
		{
			name:      "unknown event type uses fallback base",
			eventType: "mystery_event",
			severity:  models.SeverityInfo,
			want:      10,
		},
		{
			name:      "unknown severity uses neutral multiplier",
			eventType: models.EventLeadDeleted,
			severity:  "catastrophic",
			want:      40,
		},
		{
			name:       "score never exceeds 100",
			eventType:  models.EventLeadExported,
			severity:   models.SeverityCritical,
			sensitive:  true,
			frameworks: []string{FrameworkHIPAA},
			want:       100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, factors := Score(tt.eventType, tt.severity, tt.sensitive, tt.frameworks)
			assert.Equal(t, tt.want, score)
			assert.GreaterOrEqual(t, len(factors), 2)
			assert.LessOrEqual(t, score, 100)
		})
	}
}

func TestScore_Factors(t *testing.T) {
	_, factors := Score(models.EventLeadExported, models.SeverityHigh, true, []string{"soc2"})
	assert.Len(t, factors, 4)
	assert.Contains(t, factors, "sensitive data (+20)")
	assert.Contains(t, factors, "compliance framework tagged (+10)")
}

func TestRetentionDate(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("default window", func(t *testing.T) {
		got := RetentionDate(now, nil, models.SeverityInfo)
		assert.Equal(t, now.AddDate(0, 0, 2555), got)
	})

	t.Run("hipaa extends the base", func(t *testing.T) {
		got := RetentionDate(now, []string{"soc2", FrameworkHIPAA}, models.SeverityInfo)
		assert.Equal(t, now.AddDate(0, 0, 3650), got)
	})

	t.Run("critical adds a year", func(t *testing.T) {
		got := RetentionDate(now, nil, models.SeverityCritical)
		assert.Equal(t, now.AddDate(0, 0, 2555+365), got)
	})

	t.Run("hipaa and critical stack", func(t *testing.T) {
		got := RetentionDate(now, []string{FrameworkHIPAA}, models.SeverityCritical)
		assert.Equal(t, now.AddDate(0, 0, 3650+365), got)
	})

	t.Run("non-hipaa frameworks keep the default", func(t *testing.T) {
		got := RetentionDate(now, []string{"soc2"}, models.SeverityInfo)
		assert.Equal(t, now.AddDate(0, 0, 2555), got)
	})
}
