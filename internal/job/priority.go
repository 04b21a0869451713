package job

// MinPriority and MaxPriority bound the nice-style priority range.
const (
	MinPriority = -20
	MaxPriority = 19
)

// ClampPriority folds an out-of-range priority into [MinPriority,
// MaxPriority] rather than rejecting it.
func ClampPriority(p int) int {
	if p < MinPriority {
		return MinPriority
	}
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}
