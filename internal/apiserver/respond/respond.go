// Package respond 统一 JSON 响应信封
//
// 信封格式：{status: success|fail|error, data?, message?, results?}
//   - success：2xx
//   - fail：4xx（调用方错误）
//   - error：5xx（服务端错误）
//
// 非生产环境下错误响应额外携带底层错误详情。
package respond

import (
	"encoding/json"
	"log"
	"net/http"

	"pokedex-api/internal/shared/apperror"
)

// production 控制错误详情是否对外隐藏，启动时设置一次
var production bool

// SetProduction 设置生产模式（main 启动时调用一次）
func SetProduction(enabled bool) {
	production = enabled
}

// Envelope 响应信封
type Envelope struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Results *int        `json:"results,omitempty"`
	Detail  string      `json:"detail,omitempty"` // 非生产环境的错误详情
}

func writeJSON(w http.ResponseWriter, status int, v Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[respond] encode error: %v", err)
	}
}

// Success 写入成功响应
func Success(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, Envelope{Status: "success", Data: data})
}

// SuccessMessage 写入只带消息的成功响应
func SuccessMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Status: "success", Message: message})
}

// SuccessList 写入带结果计数的列表响应
func SuccessList(w http.ResponseWriter, status int, data interface{}, results int) {
	writeJSON(w, status, Envelope{Status: "success", Data: data, Results: &results})
}

// NoContent 写入 204
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error 将错误规范化并按信封格式写出
//
// 非 Operational 错误：消息统一为通用文案，底层错误进日志；
// 非生产环境额外在响应里携带详情。
func Error(w http.ResponseWriter, err error) {
	appErr := apperror.From(err)

	status := "error"
	if appErr.Status < http.StatusInternalServerError {
		status = "fail"
	}

	env := Envelope{Status: status, Message: appErr.Message}
	if !appErr.Operational {
		log.Printf("[respond] unexpected error: %v", appErr)
		if !production && appErr.Err != nil {
			env.Detail = appErr.Err.Error()
		}
	}

	writeJSON(w, appErr.Status, env)
}
