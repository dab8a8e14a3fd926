package audit

import (
	"fmt"
	"time"

	"github.com/casafield/leadpipe/internal/database/models"
)

// Retention periods in days. HIPAA-tagged events keep the longest window;
// critical events get an extra year on top of whichever base applies.
const (
	retentionDefaultDays  = 2555
	retentionHIPAADays    = 3650
	retentionCriticalDays = 365
)

// FrameworkHIPAA is the only framework that changes the retention base.
const FrameworkHIPAA = "hipaa"

// baseScores assigns each event type its risk starting point.
var baseScores = map[models.AuditEventType]int{
	models.EventLeadCreated:   10,
	models.EventLeadUpdated:   15,
	models.EventLeadAssigned:  15,
	models.EventLeadDeleted:   40,
	models.EventLeadExported:  50,
	models.EventLeadImported:  30,
	models.EventUserLogin:     10,
	models.EventUserCreated:   20,
	models.EventRoleChanged:   45,
	models.EventAccessDenied:  35,
	models.EventDataRetention: 20,
}

// severityMultipliers scale the base score.
var severityMultipliers = map[models.Severity]float64{
	models.SeverityInfo:     1.0,
	models.SeverityLow:      1.2,
	models.SeverityMedium:   1.5,
	models.SeverityHigh:     2.0,
	models.SeverityCritical: 3.0,
}

// Score computes the 0-100 risk score for an event together with the list
// of contributing factors. Unknown event types score from a base of 10.
func Score(eventType models.AuditEventType, severity models.Severity, sensitive bool, frameworks []string) (int, []string) {
	base, ok := baseScores[eventType]
	if !ok {
		base = 10
	}
	mult, ok := severityMultipliers[severity]
	if !ok {
		mult = 1.0
	}

	score := int(float64(base) * mult)
	factors := []string{
		fmt.Sprintf("event type %s (base %d)", eventType, base),
		fmt.Sprintf("severity %s (x%.1f)", severity, mult),
	}

	if sensitive {
		score += 20
		factors = append(factors, "sensitive data (+20)")
	}
	if len(frameworks) > 0 {
		score += 10
		factors = append(factors, "compliance framework tagged (+10)")
	}

	if score > 100 {
		score = 100
	}
	return score, factors
}

// RetentionDate returns when the event becomes eligible for deletion.
func RetentionDate(now time.Time, frameworks []string, severity models.Severity) time.Time {
	days := retentionDefaultDays
	for _, fw := range frameworks {
		if fw == FrameworkHIPAA {
			days = retentionHIPAADays
			break
		}
	}
	if severity == models.SeverityCritical {
		days += retentionCriticalDays
	}
	return now.AddDate(0, 0, days)
}
