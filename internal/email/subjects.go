package email

const (
	subjectHandoffFmt      = "Lead ready for a human: %s"
	subjectHandoffFallback = "Lead ready for a human"
)
