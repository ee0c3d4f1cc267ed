package handler

// errorBody documents the error envelope rendered by the API error handler.
type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
