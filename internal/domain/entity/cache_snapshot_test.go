package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
)

func TestCacheSnapshot_Usable(t *testing.T) {
	var nilSnapshot *CacheSnapshot
	if nilSnapshot.Usable() {
		t.Fatal("nil snapshot must not be usable")
	}
	if EmptyCacheSnapshot(CacheMetadata{}).Usable() {
		t.Fatal("empty snapshot must not be usable")
	}

	raw := RawSnapshot{"p": valueobject.ProviderData{"b": {}, "a": {}}}
	snapshot := NewCacheSnapshot(raw, nil, CacheMetadata{Size: 2})
	if !snapshot.Usable() {
		t.Fatal("snapshot with provider data must be usable")
	}
	if snapshot.ID() == "" {
		t.Fatal("expected generated id")
	}
	if snapshot.RuleResults() == nil {
		t.Fatal("rule results must never be nil")
	}
	if got := snapshot.AppIDs(); len(got) != 2 || got[0] != "a" {
		t.Fatalf("unexpected app ids: %v", got)
	}
}

func TestCacheMetadata_Age(t *testing.T) {
	if _, ok := (CacheMetadata{}).Age(time.Now()); ok {
		t.Fatal("metadata without update has no age")
	}

	last := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	age, ok := CacheMetadata{LastUpdate: &last}.Age(last.Add(90 * time.Second))
	if !ok || age != 90*time.Second {
		t.Fatalf("Age() = %v, %v", age, ok)
	}
}

func TestRuleResult_MarshalJSON(t *testing.T) {
	set := RuleResultSet{
		"ok":     NewRuleResult(map[string]valueobject.Verdict{"app1": valueobject.Pass("Low Priority")}),
		"broken": NewRuleError("boom"),
	}

	data, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	want := `{"broken":{"error":"Rule execution failed: boom"},"ok":{"app1":"Low Priority"}}`
	if string(data) != want {
		t.Fatalf("got %s, want %s", data, want)
	}

	forApp := set.ForApp("app1")
	if len(forApp) != 1 || forApp["ok"].Label != "Low Priority" {
		t.Fatalf("unexpected ForApp: %#v", forApp)
	}
}
