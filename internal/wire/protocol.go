// Package wire implements the line-based protocol shared by the Controller
// and every Store: ASCII, LF-terminated, space-separated tokens, no token
// containing whitespace.
package wire

// Protocol token literals. Case-sensitive, exact.
const (
	Join    = "JOIN"
	Store   = "STORE"
	StoreTo = "STORE_TO"
	Ack     = "ACK"

	StoreAck      = "STORE_ACK"
	StoreComplete = "STORE_COMPLETE"

	List = "LIST"

	Load     = "LOAD"
	Reload   = "RELOAD"
	LoadFrom = "LOAD_FROM"
	LoadData = "LOAD_DATA"

	Remove         = "REMOVE"
	RemoveAck      = "REMOVE_ACK"
	RemoveComplete = "REMOVE_COMPLETE"

	ErrNotEnoughStores = "ERROR_NOT_ENOUGH_DSTORES"
	ErrFileExists      = "ERROR_FILE_ALREADY_EXISTS"
	ErrFileNotFound    = "ERROR_FILE_DOES_NOT_EXIST"
	ErrLoad            = "ERROR_LOAD"

	Rebalance         = "REBALANCE"
	RebalanceStore    = "REBALANCE_STORE"
	RebalanceComplete = "REBALANCE_COMPLETE"
)
