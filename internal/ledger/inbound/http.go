package inbound

import (
	"context"
	"io"

	"github.com/shandysiswandi/goledger/internal/ledger/usecase"
	"github.com/shandysiswandi/goledger/internal/pkg/pkgrouter"
)

type uc interface {
	Upload(ctx context.Context, r io.Reader) (usecase.UploadResult, error)
	Accounts(ctx context.Context, replayID string) (usecase.AccountsResult, error)
	Rejections(ctx context.Context, replayID string, filter usecase.RejectionFilter, page, pageSize int) (usecase.RejectionsResult, error)
}

func RegisterHTTPEndpoint(r *pkgrouter.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.POST("/replays", end.Replays)

	r.GET("/accounts", end.Accounts)     // ?replay_id=
	r.GET("/rejections", end.Rejections) // ?replay_id=
}
