// File: internal/router/tools.go
// Tool registry served by GET /tools and validated against by
// POST /execute/{tool}: the catalog of browser-automation verbs
// ("navigate", "click", "screenshot", "subscribeVideo", and friends) the
// gateway exposes, each with a declared parameter schema.
package router

// ParamType names a tool parameter's expected JSON type.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamInt    ParamType = "int"
	ParamBool   ParamType = "bool"
	ParamNumber ParamType = "number"
	ParamEnum   ParamType = "enum"
)

// ToolParam declares one parameter of a tool's schema.
type ToolParam struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Required    bool      `json:"required"`
	Description string    `json:"description"`
	Enum        []string  `json:"enum,omitempty"`
}

// ToolDef describes one automation tool: its name, description, and
// parameter schema.
type ToolDef struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ToolParam `json:"params"`
}

// ToolRegistry is the closed set of automation commands forwarded to the
// browser's IPC method of the same name.
var ToolRegistry = []ToolDef{
	{
		Name:        "navigate",
		Description: "Navigate the context's active page to a URL.",
		Params: []ToolParam{
			{Name: "url", Type: ParamString, Required: true, Description: "Absolute URL to load."},
			{Name: "contextId", Type: ParamString, Description: "Browser context id; default context if omitted."},
			{Name: "timeoutMs", Type: ParamInt, Description: "Navigation timeout override."},
		},
	},
	{
		Name:        "click",
		Description: "Click the first element matching a selector.",
		Params: []ToolParam{
			{Name: "selector", Type: ParamString, Required: true, Description: "CSS selector."},
			{Name: "contextId", Type: ParamString},
			{Name: "button", Type: ParamEnum, Enum: []string{"left", "right", "middle"}},
		},
	},
	{
		Name:        "type",
		Description: "Type text into the first element matching a selector.",
		Params: []ToolParam{
			{Name: "selector", Type: ParamString, Required: true},
			{Name: "text", Type: ParamString, Required: true},
			{Name: "contextId", Type: ParamString},
		},
	},
	{
		Name:        "scroll",
		Description: "Scroll the page or an element by a pixel delta.",
		Params: []ToolParam{
			{Name: "selector", Type: ParamString, Description: "Element to scroll; page scrolls if omitted."},
			{Name: "dx", Type: ParamNumber},
			{Name: "dy", Type: ParamNumber},
			{Name: "contextId", Type: ParamString},
		},
	},
	{
		Name:        "evaluate",
		Description: "Evaluate a JavaScript expression and return its JSON-serializable result.",
		Params: []ToolParam{
			{Name: "expression", Type: ParamString, Required: true},
			{Name: "contextId", Type: ParamString},
		},
	},
	{
		Name:        "waitFor",
		Description: "Wait until a selector matches or a timeout elapses.",
		Params: []ToolParam{
			{Name: "selector", Type: ParamString, Required: true},
			{Name: "timeoutMs", Type: ParamInt},
			{Name: "contextId", Type: ParamString},
		},
	},
	{
		Name:        "screenshot",
		Description: "Capture a JPEG screenshot of the current page.",
		Params: []ToolParam{
			{Name: "contextId", Type: ParamString},
			{Name: "fullPage", Type: ParamBool},
			{Name: "quality", Type: ParamInt, Description: "JPEG quality 1-100."},
		},
	},
	{
		Name:        "subscribeVideo",
		Description: "Start the shared-memory video stream for a context.",
		Params: []ToolParam{
			{Name: "contextId", Type: ParamString, Required: true},
			{Name: "fps", Type: ParamInt},
		},
	},
	{
		Name:        "unsubscribeVideo",
		Description: "Stop the shared-memory video stream for a context.",
		Params: []ToolParam{
			{Name: "contextId", Type: ParamString, Required: true},
		},
	},
	{
		Name:        "closeContext",
		Description: "Close a browser context and release its resources.",
		Params: []ToolParam{
			{Name: "contextId", Type: ParamString, Required: true},
		},
	},
}

func lookupTool(name string) (ToolDef, bool) {
	for _, t := range ToolRegistry {
		if t.Name == name {
			return t, true
		}
	}
	return ToolDef{}, false
}
