package dto

// RuleKind selects which AnalyzeRule variant a RuleConfig deserializes to.
type RuleKind string

const (
	RuleKindThresholdWithinWindow RuleKind = "threshold_within_window"
	RuleKindTimeBetweenOperations RuleKind = "time_between_operations"
)

// RuleConfig is the on-disk representation of one AnalyzeRule, as read from
// RuleStorage. It carries every variant's parameters; only the fields that
// apply to Kind are meaningful.
type RuleConfig struct {
	Kind          RuleKind   `json:"kind"`
	RuleName      string     `json:"ruleName"`
	ProgramName   string     `json:"programName"`
	OperationName string     `json:"operationName,omitempty"`
	AlarmLevel    AlarmLevel `json:"alarmLevel"`
	AlarmMessage  string     `json:"alarmMessage"`

	// ThresholdWithinWindow
	Threshold       int    `json:"threshold,omitempty"`
	WindowSeconds   int    `json:"windowSeconds,omitempty"`
	FailuresOnly    bool   `json:"failuresOnly,omitempty"`
	PredicateExpr   string `json:"predicateExpr,omitempty"`

	// TimeBetweenOperations
	MaxGapSeconds int `json:"maxGapSeconds,omitempty"`
}

// RuleStorageFile is the top-level structure persisted to the JSON rule file.
type RuleStorageFile struct {
	Rules []RuleConfig `json:"rules"`
}
