// Package directive evaluates data-wp-* directive attributes against the
// store and the context chain and keeps the DOM in sync with them.
//
// # Bindings
//
// An attribute data-wp-<name>[--<suffix>]="[<ns>::]<expression>" is a
// Binding. Expressions are dot paths rooted at state, context, actions or
// callbacks, optionally negated with a leading "!":
//
//	<button data-wp-on--click="actions.toggle"
//	        data-wp-class--open="!state.closed"
//	        data-wp-text="context.label">
//
// # Levels
//
// The directives of one element are grouped by priority into levels. Each
// level is a job on the reactive scheduler that tracks what its evaluators
// read. When level L is invalidated the engine re-runs levels L through N,
// commits the element and then re-renders its children:
//
//	context (PriorityContext)
//	bind, class, style, on, init, watch, run (PriorityAttribute)
//	text (PriorityText)
//	each, slot, fill, body (PriorityChildren)
//
// The context level always comes first, so custom directives of any
// priority see the layer it provides.
//
// Evaluators do not touch the DOM directly. They declare attributes, class
// tokens, style properties and text through a Call, and the engine applies
// the difference against what the server rendered, so hydrating markup that
// already matches the state performs no mutations.
package directive
