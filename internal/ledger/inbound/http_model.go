package inbound

import (
	"net/http"

	"github.com/shandysiswandi/goledger/internal/ledger/entity"
)

type Account struct {
	Client    entity.ClientID `json:"client"`
	Available string          `json:"available"`
	Held      string          `json:"held"`
	Total     string          `json:"total"`
	Locked    bool            `json:"locked"`
}

type Rejection struct {
	Line     int64           `json:"line"`
	Type     string          `json:"type"`
	Client   entity.ClientID `json:"client"`
	Tx       entity.TxID     `json:"tx"`
	Amount   *string         `json:"amount,omitempty"`
	Reason   entity.Reason   `json:"reason"`
	Severity entity.Severity `json:"severity"`
}

type ReplayResponse struct {
	ReplayID string `json:"replay_id"`
}

func (ReplayResponse) StatusCode() int {
	return http.StatusAccepted
}

func (ReplayResponse) Message() string {
	return "replay accepted"
}

type AccountsResponse struct {
	ReplayID string              `json:"replay_id"`
	Status   entity.ReplayStatus `json:"status"`
	Error    string              `json:"error,omitempty"`
	Accounts []Account           `json:"accounts"`
	stats    entity.ReplayMeta
}

func (r AccountsResponse) Meta() map[string]any {
	return map[string]any{
		"total_lines": r.stats.TotalLines,
		"parsed_ok":   r.stats.ParsedOK,
		"parse_err":   r.stats.ParseErr,
		"applied":     r.stats.Applied,
		"rejected":    r.stats.Rejected,
	}
}

type RejectionsResponse struct {
	ReplayID   string              `json:"replay_id"`
	Status     entity.ReplayStatus `json:"status"`
	Rejections []Rejection         `json:"rejections"`
	page       int
	pageSize   int
	total      int
}

func (r RejectionsResponse) Meta() map[string]any {
	return map[string]any{
		"page":      r.page,
		"page_size": r.pageSize,
		"total":     r.total,
	}
}
