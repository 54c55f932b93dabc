package engine

// RuleQuota caps the number of rules recorded in one run and numbers
// them. A limit of 0 means unlimited.
type RuleQuota struct {
	limit   int
	current int
}

// NewRuleQuota creates a quota with the given limit.
func NewRuleQuota(limit int) *RuleQuota {
	return &RuleQuota{limit: limit}
}

// Check claims the next rule of relation and returns its sequence number,
// starting at 1. Past the limit nothing is claimed and a quota error is
// returned.
func (q *RuleQuota) Check(relation string) (int64, error) {
	if q.limit > 0 && q.current >= q.limit {
		return 0, NewQuotaError(relation, q.current+1, q.limit)
	}
	q.current++
	return int64(q.current), nil
}

// Current returns the number of rules claimed.
func (q *RuleQuota) Current() int {
	return q.current
}

// Limit returns the maximum number of rules.
func (q *RuleQuota) Limit() int {
	return q.limit
}
