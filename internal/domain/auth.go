package domain

// SubjectType differentiates token subjects.
type SubjectType string

const (
	SubjectTypeAgent SubjectType = "AGENT"
)
