package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/logging"
	"github.com/example/conference-scheduler/internal/scheduler"
)

var (
	errBadRequestBody      = errors.New("無効なリクエスト形式です。")
	errInvalidConferenceID = errors.New("無効な学会 ID です。")
	errInvalidEntryID      = errors.New("無効なスケジュール項目 ID です。")
	errMissingAPIToken     = errors.New("認証トークンを指定してください")
	errInvalidAPIToken     = errors.New("認証トークンが無効です。")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// writeReason renders a rejected operation. The reason's wire name is returned as the error
// code so clients can branch on it without parsing the message.
func (r responder) writeReason(ctx context.Context, w http.ResponseWriter, reason scheduler.Reason, extra *entryDTO) {
	status := statusForReason(reason)
	r.writeJSON(ctx, w, status, errorResponse{
		ErrorCode:     reason.String(),
		Message:       localizedReasonMessage(reason),
		ConflictEntry: extra,
	})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	if reason := application.ReasonOf(err); reason != scheduler.ReasonNone {
		if statusForReason(reason) >= http.StatusInternalServerError {
			r.loggerFor(ctx).ErrorContext(ctx, "request failed", "reason", reason.String(), "error", err)
		}
		r.writeReason(ctx, w, reason, nil)
		return
	}

	switch {
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_REQUIRED",
			Message:   "認証が必要です。",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "指定されたリソースが見つかりません。"})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			details := localizeValidationErrors(vErr)
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				Message: "入力内容に誤りがあります。",
				Errors:  details,
			})
			return
		}

		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "サーバー内部でエラーが発生しました。"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusForReason(reason scheduler.Reason) int {
	switch reason.Category() {
	case scheduler.CategoryInput:
		return http.StatusUnprocessableEntity
	case scheduler.CategoryLookup:
		return http.StatusNotFound
	case scheduler.CategoryConflict:
		return http.StatusConflict
	case scheduler.CategoryTimeout:
		return http.StatusServiceUnavailable
	case scheduler.CategoryPersistence:
		if reason == scheduler.ReasonScheduleNotFound {
			return http.StatusNotFound
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusForbidden:
		return "この操作を実行する権限がありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	case http.StatusServiceUnavailable:
		return "処理が時間内に完了しませんでした。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizedReasonMessage(reason scheduler.Reason) string {
	switch reason {
	case scheduler.ReasonInvalidInputs:
		return "学会の期間、スロット長、会場の設定が正しくありません。"
	case scheduler.ReasonOutsideWindow:
		return "指定された時間は学会の期間外です。"
	case scheduler.ReasonInvalidTime:
		return "終了日時は開始日時より後である必要があります。"
	case scheduler.ReasonUnscheduled:
		return "割り当て済みの項目から会場または時間を外すことはできません。"
	case scheduler.ReasonNotFound:
		return "指定されたリソースが見つかりません。"
	case scheduler.ReasonConflict:
		return "指定された会場と時間は別の発表と重複しています。"
	case scheduler.ReasonDuplicatePaper:
		return "同じ論文が複数の項目に割り当てられています。"
	case scheduler.ReasonVersionConflict:
		return "スケジュールは他の利用者によって更新されています。再読み込みしてください。"
	case scheduler.ReasonGenerationTimeout:
		return "スケジュールの生成が時間内に完了しませんでした。"
	case scheduler.ReasonSaveFailed:
		return "スケジュールを保存できませんでした。"
	case scheduler.ReasonScheduleNotFound:
		return "スケジュールがまだ作成されていません。"
	case scheduler.ReasonConferenceStorageFailure:
		return "学会情報を保存できませんでした。"
	case scheduler.ReasonPublishStorageFailure:
		return "スケジュールの状態を更新できませんでした。"
	default:
		return localizedStatusMessage(statusForReason(reason))
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "name is required":
		return "学会名は必須です。"
	case "window start is required":
		return "開始日時は必須です。"
	case "window end is required":
		return "終了日時は必須です。"
	case "window end must be after window start":
		return "終了日時は開始日時より後である必要があります。"
	case "slot duration must be a positive number of minutes":
		return "スロット長は正の分数で指定してください。"
	case "slot duration produces too many slots":
		return "スロット長が短すぎるため、スロット数が上限を超えます。"
	case "at least one room is required":
		return "少なくとも 1 つの会場を指定してください。"
	case "room id or name is required":
		return "会場 ID または会場名は必須です。"
	case "duplicate room":
		return "会場が重複しています。"
	case "capacity cannot be negative":
		return "収容人数は 0 以上で指定してください。"
	case "id is required":
		return "論文 ID は必須です。"
	case "duplicate paper id":
		return "論文 ID が重複しています。"
	case "unknown paper status":
		return "論文の状態が不正です。"
	default:
		return message
	}
}

type errorResponse struct {
	ErrorCode     string            `json:"error_code,omitempty"`
	Message       string            `json:"message"`
	Errors        map[string]string `json:"errors,omitempty"`
	ConflictEntry *entryDTO         `json:"conflict_entry,omitempty"`
}
