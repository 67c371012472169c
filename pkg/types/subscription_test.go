package types

import (
	"encoding/json"
	"testing"
)

func TestMarketSubscriptionJSONContract(t *testing.T) {
	payload, err := json.Marshal(MarketSubscription{AssetIDs: []string{"111", "222"}, Type: ChannelMarket})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"assets_ids":["111","222"],"type":"market"}`
	if string(payload) != want {
		t.Fatalf("unexpected payload %s", payload)
	}
}

func TestUserSubscriptionJSONContract(t *testing.T) {
	payload, err := json.Marshal(UserSubscription{
		Markets: []string{},
		Type:    ChannelUser,
		Auth:    Auth{APIKey: "k", Secret: "s", Passphrase: "p"},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"markets":[],"type":"user","auth":{"apiKey":"k","secret":"s","passphrase":"p"}}`
	if string(payload) != want {
		t.Fatalf("unexpected payload %s", payload)
	}
}
