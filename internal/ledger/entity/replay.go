package entity

type ReplayMeta struct {
	ID        string
	Status    ReplayStatus
	Err       string
	StartedAt int64
	EndedAt   int64

	// Stats help observability without storing everything
	TotalLines int64
	ParsedOK   int64
	ParseErr   int64
	Applied    int64
	Rejected   int64
}
