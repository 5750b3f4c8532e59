package wrapper

// JSONResult is the single response envelope every command returns.
// Success reflects the aggregated outcome across all addressed bots; Data
// carries the per-bot detail map where the command has one.
type JSONResult struct {
	Code    int         `json:"-"`
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func ResponseSuccess(httpCode int, data interface{}) JSONResult {
	return JSONResult{
		Code:    httpCode,
		Success: true,
		Message: "Success",
		Data:    data,
	}
}

func ResponseFailed(httpCode int, message string, data interface{}) JSONResult {
	return JSONResult{
		Code:    httpCode,
		Success: false,
		Message: message,
		Data:    data,
	}
}

// ResponseAggregated builds an envelope from an already-aggregated outcome.
// Unlike ResponseFailed, a false success here still ships the per-bot data:
// callers must be able to see which bots failed, because partial failure is
// a valid command outcome rather than an HTTP error.
func ResponseAggregated(httpCode int, success bool, message string, data interface{}) JSONResult {
	return JSONResult{
		Code:    httpCode,
		Success: success,
		Message: message,
		Data:    data,
	}
}
