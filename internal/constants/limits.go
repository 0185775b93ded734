package constants

// IDRandomBytes is the number of random bytes in generated document ids.
const IDRandomBytes = 8

// Storage keys in the key-value store.
const (
	KeyCurrentUser   = "currentUser"
	KeyFirstLaunch   = "isFirstLaunch"
	KeySchemaVersion = "schemaVersion"
	KeyLegacyImport  = "legacyImported"
)

// SchemaVersion is the document layout written by this release. Version 1
// is the counter-based layout of the first releases.
const SchemaVersion = 2

// Content limits, in characters.
const (
	MaxPostLength    = 2000
	MaxTitleLength   = 120
	MaxCommentLength = 500
	MaxMessageLength = 4000
)

const WSClientSendBufferSize = 64
