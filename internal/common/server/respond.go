package server

import (
	"encoding/json"
	"io"
	"net/http"
)

// maxBodyBytes 请求体大小上限（防止恶意大包体）
const maxBodyBytes = 1 << 20

// FieldErrors 字段级校验错误，按字段聚合（序列化为 {"field": ["msg", ...]}）。
// 非字段级错误统一挂在 non_field_errors 下。
type FieldErrors map[string][]string

const NonFieldErrors = "non_field_errors"

// Add 追加一条字段错误
func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

// Empty 是否没有任何错误
func (fe FieldErrors) Empty() bool {
	return len(fe) == 0
}

// WriteJSON 输出 JSON 响应
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// DecodeJSON 读取并解析请求体（带大小上限）。
func DecodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// BadRequest 400 + 字段错误
func BadRequest(w http.ResponseWriter, fe FieldErrors) {
	WriteJSON(w, http.StatusBadRequest, fe)
}

// ParseError 400 + 请求体不可解析
func ParseError(w http.ResponseWriter) {
	WriteJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error"})
}

// Unauthenticated 401
func Unauthenticated(w http.ResponseWriter, detail string) {
	WriteJSON(w, http.StatusUnauthorized, map[string]string{"detail": detail})
}

// NotFound 404
func NotFound(w http.ResponseWriter) {
	WriteJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
}

// MethodNotAllowed 405（profile 更新类操作的固定出口）
func MethodNotAllowed(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": message})
}

// Throttled 429
func Throttled(w http.ResponseWriter) {
	WriteJSON(w, http.StatusTooManyRequests, map[string]string{"detail": "Request was throttled."})
}

// InternalError 500（不向调用方泄露内部细节）
func InternalError(w http.ResponseWriter) {
	WriteJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Internal server error."})
}
