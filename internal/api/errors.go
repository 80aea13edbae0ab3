// Package api はフィーチャー間で共有するHTTPペイロードを定義します。
package api

// ErrorResponse はエラー時の共通レスポンスです。
type ErrorResponse struct {
	Error string `json:"error"`
}
