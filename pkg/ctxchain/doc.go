// Package ctxchain implements the per-element context hierarchy.
//
// Each element carrying a context directive owns a Layer linked to the
// nearest ancestor layer of the same namespace. Reads through a View fall
// through the chain to the first layer owning the key; nested objects that
// several layers declare are merged one level at a time, so a child can
// repeat only the nested keys it wants to shadow. Writes go to the nearest
// layer already owning the key, else to the writer's own layer, so a child
// never clobbers a key its parent owns unless it shadows it.
//
// Tracking is per concrete property: a view read subscribes to exactly the
// keys it consulted in each layer.
package ctxchain
