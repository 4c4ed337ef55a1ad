package domain

// AssetNative is the asset label used for native-asset rows in the
// transfer log, where token rows carry the token id.
const AssetNative = "native"

// TransferLogPoint is one outbound transfer in the analytics log.
// Corresponds to transfer_log table in ClickHouse.
type TransferLogPoint struct {
	VaultID     string
	Asset       string // AssetNative or a token id
	Recipient   string
	Amount      float64 // approximate, analytics only
	TimestampMs int64
}

// OutflowAggregate is total outflow for one asset on one UTC day.
type OutflowAggregate struct {
	VaultID string
	Asset   string
	Day     string // YYYY-MM-DD
	Total   float64
	Count   uint64
}
