package inbound

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/shandysiswandi/goledger/internal/ledger/entity"
	"github.com/shandysiswandi/goledger/internal/ledger/usecase"
	"github.com/shandysiswandi/goledger/internal/pkg/pkgerror"
)

type HTTPEndpoint struct {
	uc uc
}

func (h *HTTPEndpoint) Replays(ctx context.Context, r *http.Request) (any, error) {
	reader, cleanup, err := extractCSVReader(r)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	pr, pw := io.Pipe()
	result, err := h.uc.Upload(ctx, pr)
	if err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, err
	}

	if err := streamToPipe(reader, pw); err != nil {
		return nil, pkgerror.NewServer(err)
	}

	return ReplayResponse{ReplayID: result.ReplayID}, nil
}

func (h *HTTPEndpoint) Accounts(ctx context.Context, r *http.Request) (any, error) {
	replayID := strings.TrimSpace(r.URL.Query().Get("replay_id"))
	if replayID == "" {
		return nil, pkgerror.NewInvalidInput(errors.New("replay_id is required"))
	}

	result, err := h.uc.Accounts(ctx, replayID)
	if err != nil {
		return nil, err
	}

	accounts := make([]Account, 0, len(result.Accounts))
	for _, acc := range result.Accounts {
		accounts = append(accounts, toHTTPAccount(acc))
	}

	return AccountsResponse{
		ReplayID: result.ReplayID,
		Status:   result.Meta.Status,
		Error:    result.Meta.Err,
		Accounts: accounts,
		stats:    result.Meta,
	}, nil
}

func (h *HTTPEndpoint) Rejections(ctx context.Context, r *http.Request) (any, error) {
	query := r.URL.Query()
	replayID := strings.TrimSpace(query.Get("replay_id"))
	if replayID == "" {
		return nil, pkgerror.NewInvalidInput(errors.New("replay_id is required"))
	}

	page, pageSize, err := parsePagination(query.Get("page"), query.Get("page_size"))
	if err != nil {
		return nil, err
	}

	filter, err := parseRejectionFilter(query.Get("severity"), query.Get("reason"), query.Get("client"))
	if err != nil {
		return nil, err
	}

	result, err := h.uc.Rejections(ctx, replayID, filter, page, pageSize)
	if err != nil {
		return nil, err
	}

	rejections := make([]Rejection, 0, len(result.Rejections))
	for _, rej := range result.Rejections {
		rejections = append(rejections, toHTTPRejection(rej))
	}

	return RejectionsResponse{
		ReplayID:   result.ReplayID,
		Status:     result.Status,
		Rejections: rejections,
		page:       result.Page,
		pageSize:   result.PageSize,
		total:      result.Total,
	}, nil
}

func parsePagination(pageRaw, sizeRaw string) (int, int, error) {
	page := 1
	pageSize := 10

	if pageRaw != "" {
		value, err := strconv.Atoi(pageRaw)
		if err != nil || value < 1 {
			return 0, 0, pkgerror.NewInvalidInput(errors.New("invalid page"))
		}
		page = value
	}

	if sizeRaw != "" {
		value, err := strconv.Atoi(sizeRaw)
		if err != nil || value < 1 {
			return 0, 0, pkgerror.NewInvalidInput(errors.New("invalid page_size"))
		}
		pageSize = min(value, 100)
	}

	return page, pageSize, nil
}

func parseRejectionFilter(severityRaw, reasonRaw, clientRaw string) (usecase.RejectionFilter, error) {
	filter := usecase.RejectionFilter{}

	for _, value := range splitList(severityRaw) {
		severity, err := parseSeverity(value)
		if err != nil {
			return filter, err
		}
		filter.Severities = append(filter.Severities, severity)
	}

	for _, value := range splitList(reasonRaw) {
		reason, err := parseReason(value)
		if err != nil {
			return filter, err
		}
		filter.Reasons = append(filter.Reasons, reason)
	}

	if clientRaw = strings.TrimSpace(clientRaw); clientRaw != "" {
		value, err := strconv.ParseUint(clientRaw, 10, 16)
		if err != nil {
			return filter, pkgerror.NewInvalidInput(errors.New("invalid client filter"))
		}
		client := entity.ClientID(value)
		filter.Client = &client
	}

	return filter, nil
}

func splitList(raw string) []string {
	var out []string
	for _, value := range strings.Split(raw, ",") {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}

func parseSeverity(value string) (entity.Severity, error) {
	switch strings.ToUpper(value) {
	case string(entity.SeverityInfo):
		return entity.SeverityInfo, nil
	case string(entity.SeverityWarn):
		return entity.SeverityWarn, nil
	default:
		return "", pkgerror.NewInvalidInput(errors.New("invalid severity filter"))
	}
}

//nolint:gochecknoglobals // lookup table
var knownReasons = map[entity.Reason]struct{}{
	entity.ReasonInsufficientFunds:       {},
	entity.ReasonAccountLocked:           {},
	entity.ReasonMissingAmount:           {},
	entity.ReasonDuplicateTransaction:    {},
	entity.ReasonUnknownTransaction:      {},
	entity.ReasonClientMismatch:          {},
	entity.ReasonAlreadyDisputed:         {},
	entity.ReasonNotDisputed:             {},
	entity.ReasonWithdrawalNotDisputable: {},
	entity.ReasonUnknownKind:             {},
}

func parseReason(value string) (entity.Reason, error) {
	reason := entity.Reason(strings.ToLower(value))
	if _, ok := knownReasons[reason]; !ok {
		return "", pkgerror.NewInvalidInput(errors.New("invalid reason filter"))
	}
	return reason, nil
}

func toHTTPAccount(acc entity.Account) Account {
	return Account{
		Client:    acc.Client,
		Available: acc.Available.String(),
		Held:      acc.Held.String(),
		Total:     acc.Total.String(),
		Locked:    acc.Locked,
	}
}

func toHTTPRejection(rej entity.Rejection) Rejection {
	out := Rejection{
		Line:     rej.Line,
		Type:     rej.Tx.Kind.String(),
		Client:   rej.Tx.Client,
		Tx:       rej.Tx.Tx,
		Reason:   rej.Reason,
		Severity: rej.Severity,
	}
	if rej.Tx.Amount.Valid {
		amount := rej.Tx.Amount.Decimal.String()
		out.Amount = &amount
	}
	return out
}

func extractCSVReader(r *http.Request) (io.ReadCloser, func(), error) {
	contentType := r.Header.Get("Content-Type")
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil && strings.EqualFold(mediaType, "multipart/form-data") {
			return extractMultipartFile(r)
		}
	}

	if r.Body == nil {
		return nil, func() {}, pkgerror.NewInvalidInput(errors.New("empty request body"))
	}

	return r.Body, func() {}, nil
}

func extractMultipartFile(r *http.Request) (io.ReadCloser, func(), error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, func() {}, pkgerror.NewInvalidFormat()
	}

	for {
		part, err := reader.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, func() {}, pkgerror.NewInvalidInput(errors.New("file part is required"))
			}
			return nil, func() {}, pkgerror.NewInvalidFormat()
		}

		if part.FormName() == "file" {
			return part, func() { _ = part.Close() }, nil
		}
		_ = part.Close()
	}
}

func streamToPipe(src io.Reader, dst *io.PipeWriter) error {
	defer func() {
		_ = dst.Close()
	}()

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.CloseWithError(err)
		return err
	}

	return nil
}
