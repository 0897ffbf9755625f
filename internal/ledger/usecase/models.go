package usecase

import (
	"slices"

	"github.com/shandysiswandi/goledger/internal/ledger/entity"
)

// ReplayResult is everything a finished replay produced.
type ReplayResult struct {
	Accounts   []entity.Account
	Rejections []entity.Rejection
	TotalLines int64
	ParsedOK   int64
	ParseErr   int64
	Applied    int64
	Rejected   int64
}

type UploadResult struct {
	ReplayID string
}

type AccountsResult struct {
	ReplayID string
	Meta     entity.ReplayMeta
	Accounts []entity.Account
}

type RejectionsResult struct {
	ReplayID   string
	Status     entity.ReplayStatus
	Rejections []entity.Rejection
	Page       int
	PageSize   int
	Total      int
}

type RejectionFilter struct {
	Severities []entity.Severity
	Reasons    []entity.Reason
	Client     *entity.ClientID
}

func (f RejectionFilter) Matches(rej entity.Rejection) bool {
	if len(f.Severities) > 0 && !slices.Contains(f.Severities, rej.Severity) {
		return false
	}

	if len(f.Reasons) > 0 && !slices.Contains(f.Reasons, rej.Reason) {
		return false
	}

	if f.Client != nil && *f.Client != rej.Tx.Client {
		return false
	}

	return true
}
