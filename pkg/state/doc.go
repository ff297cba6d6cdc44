// Package state serialises the build, store and prune sequence of a
// preference namespace on top of a prefs.TypedKeyValueStore.
//
// A Repository owns one lock per namespace (root key). Save encodes a
// prefs.Node under the namespace and then deletes every key of that
// namespace the encoding did not write, so stale entries from an earlier
// generation never outlive the save that replaced them. Keys of other
// namespaces are never touched.
//
// Data flow:
//
//	Node -> prefs.(*Node).Store -> WrittenKeys -> prefs.StaleKeys -> Pruner
//
// Metadata:
//
//	Each namespace keeps its generation metadata next to the tree, under
//	keys of the form "<namespace>$<Field>". The "$" cannot appear in a
//	valid namespace, so these keys never collide with another namespace
//	and never match the namespace's own "<namespace>#" prefix.
//
// Activity:
//
//	When hooks are configured, Save emits preferences.stored (and
//	preferences.pruned when stale keys were removed) and Clear emits
//	preferences.cleared, all with the namespace as object id.
package state
