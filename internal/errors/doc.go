// Package errors provides coded, structured warnings and errors for the
// islands runtime.
//
// Nothing in the runtime aborts a page: failures are reported as coded
// errors through the runtime's warning channel and the affected element or
// namespace degrades on its own. Each code maps to a registered template
// with a category, a short message and a longer explanation.
//
// # Error Codes
//
//	E101  malformed state blob
//	E102  state replaced by a non-object
//	E103  directive evaluation failed
//	E104  re-entrant effect budget exceeded
//	E105  context value is not an object
//	E106  navigation fetch failed
//	E107  unknown action or expression
//	E108  write to read-only data
//
// # Usage
//
//	err := errors.New("E103").
//	    WithElement(`<button data-wp-on--click="actions.go">`).
//	    WithNamespace("myblock").
//	    Wrap(cause)
//
//	fmt.Println(err.Format())
package errors
