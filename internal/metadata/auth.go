package metadata

const (
	DefaultAuthHeader = "X-Api-Key"
	DefaultAuthQuery  = "api_key"
)

// AuthConfig is the effective API key configuration for a request.
type AuthConfig struct {
	Enabled bool
	Key     string
	Header  string
	Query   string
}

// AuthOverride is a per-endpoint auth block. Nil fields are absent.
type AuthOverride struct {
	Enabled *bool
	Key     *string
	Header  *string
	Query   *string
}

// Required reports whether a credential must be checked.
func (a AuthConfig) Required() bool {
	return a.Enabled && a.Key != ""
}

// HeaderName returns the credential header, falling back to the default.
func (a AuthConfig) HeaderName() string {
	if a.Header == "" {
		return DefaultAuthHeader
	}
	return a.Header
}

// QueryName returns the credential query parameter, falling back to the default.
func (a AuthConfig) QueryName() string {
	if a.Query == "" {
		return DefaultAuthQuery
	}
	return a.Query
}

// EffectiveAuth merges an endpoint override over the global settings.
// Fields present in the override win.
func EffectiveAuth(global AuthConfig, override *AuthOverride) AuthConfig {
	eff := global
	if override == nil {
		return eff
	}
	if override.Enabled != nil {
		eff.Enabled = *override.Enabled
	}
	if override.Key != nil {
		eff.Key = *override.Key
	}
	if override.Header != nil {
		eff.Header = *override.Header
	}
	if override.Query != nil {
		eff.Query = *override.Query
	}
	return eff
}
