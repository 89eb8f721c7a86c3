// Package handler はフロントエンドのHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hitoshi/newsdeck/internal/middleware"
	"github.com/hitoshi/newsdeck/internal/model"
)

// writeJSONResponse はJSONレスポンスを書き込む。
func writeJSONResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットのレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はエラーのカテゴリに応じたHTTPステータスでレスポンスを書き込む。
// validationは400、fetchは502、それ以外は500として扱う。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Category {
		case "validation":
			writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		case "fetch":
			writeAPIErrorResponse(w, http.StatusBadGateway, apiErr)
		default:
			writeAPIErrorResponse(w, http.StatusInternalServerError, apiErr)
		}
		return
	}
	middleware.WriteInternalServerError(w)
}
