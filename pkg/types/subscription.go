package types

// Channel names understood by the CLOB websocket.
const (
	ChannelMarket = "market"
	ChannelUser   = "user"
)

// MarketSubscription subscribes to the public market channel for a set of asset ids.
type MarketSubscription struct {
	AssetIDs []string `json:"assets_ids"`
	Type     string   `json:"type"`
}

// UserSubscription authenticates against the user channel. An empty Markets
// list receives events for every market.
type UserSubscription struct {
	Markets []string `json:"markets"`
	Type    string   `json:"type"`
	Auth    Auth     `json:"auth"`
}

// Auth carries the API credential triple.
type Auth struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}
