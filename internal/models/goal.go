package models

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusAchieved   Status = "achieved"
)

// StatusForPercent is the standard mapping: 0 not started, 1-99 in progress, 100 achieved.
func StatusForPercent(percent int) Status {
	switch {
	case percent >= 100:
		return StatusAchieved
	case percent > 0:
		return StatusInProgress
	default:
		return StatusNotStarted
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusAchieved:
		return true
	}
	return false
}

type MetricKind string

const (
	MetricRevenue         MetricKind = "revenue"
	MetricGrossProfit     MetricKind = "gross_profit"
	MetricOperatingProfit MetricKind = "operating_profit"
)

func (m MetricKind) Valid() bool {
	switch m {
	case MetricRevenue, MetricGrossProfit, MetricOperatingProfit:
		return true
	}
	return false
}

// MetricBinding marks a node whose percent comes from a financial metric.
// Year 0 follows updates for any year.
type MetricBinding struct {
	Metric MetricKind `json:"metric"`
	Year   int        `json:"year,omitempty"`
}

// Follows reports whether an update for year applies to this binding.
func (b MetricBinding) Follows(year int) bool {
	return b.Year == 0 || b.Year == year
}

type GoalNode struct {
	ID                NodeID         `json:"id"`
	Title             string         `json:"title"`
	CompletionPercent int            `json:"completionPercent"`
	Status            Status         `json:"status"`
	MetricBinding     *MetricBinding `json:"metricBinding,omitempty"`
	ManualCheck       bool           `json:"manualCheck,omitempty"`
}

// NewGoalNode returns a node in its default unset state.
func NewGoalNode(id NodeID) GoalNode {
	return GoalNode{ID: id, Status: StatusNotStarted}
}

// Clone copies n including its binding.
func (n GoalNode) Clone() GoalNode {
	if n.MetricBinding != nil {
		b := *n.MetricBinding
		n.MetricBinding = &b
	}
	return n
}

// Goal DTOs
type SetCheckRequest struct {
	Checked *bool `json:"checked" validate:"required"`
}

type UpdateNodeRequest struct {
	Title         *string               `json:"title" validate:"omitempty,max=200"`
	MetricBinding *MetricBindingRequest `json:"metricBinding"`
}

type MetricBindingRequest struct {
	Metric string `json:"metric" validate:"omitempty,metric_kind"`
	Year   int    `json:"year" validate:"gte=0"`
}

// Binding converts the request into a binding. An empty metric clears it.
func (r MetricBindingRequest) Binding() *MetricBinding {
	return &MetricBinding{Metric: MetricKind(r.Metric), Year: r.Year}
}

type SetPercentRequest struct {
	Percent *int `json:"percent" validate:"required,gte=0,lte=100"`
}
