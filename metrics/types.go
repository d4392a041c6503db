package metrics

// Policy selects how a reported value is aggregated.
type Policy int

const (
	PolicyNone      Policy = iota // dropped
	PolicySet                     // gauge, last value wins
	PolicySum                     // counter
	PolicyStopwatch               // summary of durations in milliseconds
	PolicyHistogram               // summary of arbitrary samples
)

func (p Policy) String() string {
	switch p {
	case PolicySet:
		return "set"
	case PolicySum:
		return "sum"
	case PolicyStopwatch:
		return "stopwatch"
	case PolicyHistogram:
		return "histogram"
	default:
		return "none"
	}
}

// Value represents a metric value as a float64.
type Value float64

// Dimension represents metric dimensions as key-value pairs, exported as
// prometheus labels.
type Dimension map[string]string
