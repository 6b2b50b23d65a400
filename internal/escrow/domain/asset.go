package domain

// Asset designates which custody path moves the deposit: the native-asset
// sentinel, or an address-like handle identifying a fungible-token ledger.
type Asset string

// AssetNative is the sentinel for direct native-value transfers.
const AssetNative Asset = "native"

// IsNative reports whether the asset uses the direct value-transfer path.
func (a Asset) IsNative() bool {
	return a == AssetNative
}

// Valid reports whether the asset handle is usable.
func (a Asset) Valid() bool {
	return a != ""
}
