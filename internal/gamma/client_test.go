package gamma

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolveMarketDecodesEncodedTokenIDs(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Method != http.MethodGet {
			t.Errorf("unexpected method %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"question":"Will it rain?","conditionId":"0xcond","slug":"will-it-rain","clobTokenIds":"[\"111\", \"222\"]"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL + "/"}, Dependencies{HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	res, err := client.ResolveMarket(context.Background(), "will-it-rain")
	if err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}
	if gotPath != "/markets/slug/will-it-rain" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if len(res.TokenIDs) != 2 || res.TokenIDs[0] != "111" || res.TokenIDs[1] != "222" {
		t.Fatalf("unexpected token ids %v", res.TokenIDs)
	}
	if res.Market.ConditionID != "0xcond" || res.Market.Question != "Will it rain?" {
		t.Fatalf("unexpected market %+v", res.Market)
	}
}

func TestResolveMarketNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL}, Dependencies{HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.ResolveMarket(context.Background(), "missing"); !errors.Is(err, ErrMarketNotFound) {
		t.Fatalf("expected ErrMarketNotFound got %v", err)
	}
}

func TestResolveMarketServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client, _ := NewClient(Config{BaseURL: srv.URL}, Dependencies{HTTPClient: srv.Client()})
	if _, err := client.ResolveMarket(context.Background(), "slug"); err == nil {
		t.Fatalf("expected error for 502")
	}
}

func TestParseTokenIDsVariants(t *testing.T) {
	cases := []struct {
		raw  string
		want []string
	}{
		{`["a","b"]`, []string{"a", "b"}},
		{`"[\"a\",\"b\"]"`, []string{"a", "b"}},
		{`"a, b ,,c"`, []string{"a", "b", "c"}},
		{`""`, []string{}},
		{`null`, nil},
	}
	for _, tc := range cases {
		got, err := ParseTokenIDs(json.RawMessage(tc.raw))
		if err != nil {
			t.Fatalf("ParseTokenIDs(%s): %v", tc.raw, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("ParseTokenIDs(%s): expected %v got %v", tc.raw, tc.want, got)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("ParseTokenIDs(%s): expected %v got %v", tc.raw, tc.want, got)
			}
		}
	}
	if _, err := ParseTokenIDs(json.RawMessage(`42`)); err == nil {
		t.Fatalf("expected error for numeric clobTokenIds")
	}
}

func TestNewClientRequiresDependencies(t *testing.T) {
	if _, err := NewClient(Config{}, Dependencies{HTTPClient: http.DefaultClient}); err == nil {
		t.Fatalf("expected error for missing base URL")
	}
	if _, err := NewClient(Config{BaseURL: "https://gamma-api.polymarket.com"}, Dependencies{}); err == nil {
		t.Fatalf("expected error for missing HTTP client")
	}
}
