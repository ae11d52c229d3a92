package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Runtime warnings (E101-E119)
	// ============================================

	"E101": {
		Category: CategoryState,
		Message:  "Malformed state blob",
		Detail:   "A server-embedded state blob was missing, not valid JSON or not an object. The namespace starts empty.",
	},
	"E102": {
		Category: CategoryState,
		Message:  "State replaced by a non-object",
		Detail:   "A namespace's state can only be replaced by an object. The previous state was kept.",
	},
	"E103": {
		Category: CategoryDirective,
		Message:  "Directive evaluation failed",
		Detail:   "A directive evaluator failed. The element was skipped; its siblings and descendants still hydrate.",
	},
	"E104": {
		Category: CategoryDirective,
		Message:  "Re-entrant effect budget exceeded",
		Detail:   "An effect or render kept invalidating itself within one flush and was stopped until the next flush.",
	},
	"E105": {
		Category: CategoryDirective,
		Message:  "Context value is not an object",
		Detail:   "The value of a context directive must be a JSON object.",
	},
	"E106": {
		Category: CategoryNavigation,
		Message:  "Navigation fetch failed",
		Detail:   "The target page could not be fetched. The router fell back to a full page load.",
	},
	"E107": {
		Category: CategoryDirective,
		Message:  "Unknown action or expression",
		Detail:   "A directive referenced an action, callback or root that does not exist.",
	},
	"E108": {
		Category: CategoryState,
		Message:  "Write to read-only data",
		Detail:   "Server state and server context snapshots are read-only. The write was ignored.",
	},

	// ============================================
	// Config Errors (E120-E139)
	// ============================================

	"E120": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "islands.json could not be parsed.",
	},
	"E121": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration field has a value the runtime cannot use.",
	},

	// ============================================
	// CLI Errors (E140-E159)
	// ============================================

	"E140": {
		Category: CategoryCLI,
		Message:  "Input file not found",
		Detail:   "The HTML file passed on the command line does not exist or cannot be read.",
	},
	"E141": {
		Category: CategoryCLI,
		Message:  "Dev server failed",
		Detail:   "The development server could not start or stopped unexpectedly.",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
