package model

// ToolResult is the JSON envelope every analytical tool returns to the model.
// Failures are reported in Error and Kind instead of failing the graph run.
type ToolResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	Kind   string `json:"kind,omitempty"`
}

// Failed reports whether the tool returned an error.
func (r *ToolResult) Failed() bool { return r != nil && r.Error != "" }
