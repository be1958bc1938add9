package nodes

// Graph node keys.
const (
	NodeInputConverter   = "InputConverter"
	NodeAnalystChatModel = "AnalystChatModel"
	NodeToolExecutor     = "ToolExecutor"
)
