package credentials

// Credentials is the content of credentials.toml: one API key per vendor
// registry name.
//
//	version = 0
//
//	[vendors.anthropic]
//	api_key = "sk-ant-..."
type Credentials struct {
	Version int                         `toml:"version"`
	Vendors map[string]VendorCredential `toml:"vendors"`
}

// VendorCredential is the stored key of one vendor.
type VendorCredential struct {
	APIKey string `toml:"api_key"`
}
