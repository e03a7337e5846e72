package domain

// Severity of the alarm attached to a sample.
type Severity uint8

const (
	SeverityNone Severity = iota
	SeverityMinor
	SeverityMajor
	SeverityInvalid
	SeverityUndefined
)

var severityNames = [...]string{"NONE", "MINOR", "MAJOR", "INVALID", "UNDEFINED"}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "UNDEFINED"
}

// Alarm is the status information carried by every sample.
type Alarm struct {
	Severity Severity `json:"severity"`
	Status   string   `json:"status"`
	Message  string   `json:"message"`
}

// NoAlarm is the neutral alarm assigned to imported samples.
func NoAlarm() Alarm {
	return Alarm{Severity: SeverityNone, Status: "NONE", Message: "None"}
}
