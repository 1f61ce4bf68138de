package defs

// Common labels for logging
const (
	LabelComponent = "component"
	LabelCategory  = "category"
	LabelStore     = "store"
	LabelPeer      = "peer"

	LabelLocal  = "local"
	LabelRemote = "remote"
)
