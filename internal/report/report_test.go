package report

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/SilentStoat/StoatBot/internal/domain"
)

var now = time.Date(2026, 1, 15, 19, 30, 0, 0, time.UTC)

func profile(id int64, name string, offset *int, zone *string) domain.Profile {
	return domain.Profile{ScopeID: 1, UserID: id, DisplayName: name, UTCOffsetMinutes: offset, ResolvedZone: zone}
}

func TestBuild_ThreeUsers(t *testing.T) {
	r := Build([]domain.Profile{
		profile(1, "carol", domain.Ptr(60), nil),
		profile(2, "bob", domain.Ptr(-300), nil),
		profile(3, "alice", domain.Ptr(-300), domain.Ptr("America/Bogota")),
	}, now)

	want := []Group{
		{OffsetMinutes: -300, Local: "14:30", Members: []Member{
			{UserID: 3, Name: "alice", Zone: "America/Bogota"},
			{UserID: 2, Name: "bob"},
		}},
		{OffsetMinutes: 60, Local: "20:30", Members: []Member{
			{UserID: 1, Name: "carol"},
		}},
	}
	if diff := cmp.Diff(want, r.Groups); diff != "" {
		t.Fatalf("groups (-want +got):\n%s", diff)
	}
	if got, want := r.Text(), "14:30 (UTC-5): alice, bob\n20:30 (UTC+1): carol"; got != want {
		t.Fatalf("text:\nwant %q\ngot  %q", want, got)
	}
}

func TestBuild_FiltersAndDerives(t *testing.T) {
	r := Build([]domain.Profile{
		profile(1, "dst only", nil, nil),
		{ScopeID: 1, UserID: 2, DisplayName: "zone only", ResolvedZone: domain.Ptr("Asia/Tokyo")},
		{ScopeID: 1, UserID: 3, DisplayName: "bad zone", ResolvedZone: domain.Ptr("Nowhere/Land")},
		{ScopeID: 1, UserID: 4, DSTObserved: domain.Ptr(true)},
		profile(5, "", domain.Ptr(540), nil),
	}, now)

	if len(r.Groups) != 1 {
		t.Fatalf("want one group, got %+v", r.Groups)
	}
	g := r.Groups[0]
	if g.OffsetMinutes != 540 || g.Local != "04:30" {
		t.Fatalf("group: %+v", g)
	}
	var names []string
	for _, m := range g.Members {
		names = append(names, m.Name)
	}
	if diff := cmp.Diff([]string{"user 5", "zone only"}, names); diff != "" {
		t.Fatalf("members (-want +got):\n%s", diff)
	}
}

func TestBuild_SameNameOrderedByID(t *testing.T) {
	r := Build([]domain.Profile{
		profile(9, "sam", domain.Ptr(0), nil),
		profile(4, "Sam", domain.Ptr(0), nil),
	}, now)
	if got := r.Groups[0].Members; got[0].UserID != 4 || got[1].UserID != 9 {
		t.Fatalf("order: %+v", got)
	}
}

func TestEmpty(t *testing.T) {
	for _, in := range [][]domain.Profile{nil, {profile(1, "x", nil, nil)}} {
		r := Build(in, now)
		if !r.Empty() {
			t.Fatalf("want empty report for %+v", in)
		}
		if r.Text() != EmptyText || r.HTML() != EmptyText {
			t.Fatalf("empty rendering: %q / %q", r.Text(), r.HTML())
		}
	}
}

func TestHTML_SanitizesNames(t *testing.T) {
	p := profile(1, "<i>bob</i> & co", domain.Ptr(-300), nil)
	p.Color = "blue"
	r := Build([]domain.Profile{p, profile(2, "<script>alert(1)</script>eve", domain.Ptr(-300), nil)}, now)

	want := "<b>14:30</b> (UTC-5): 🔵 bob &amp; co, eve"
	if got := r.HTML(); got != want {
		t.Fatalf("html:\nwant %q\ngot  %q", want, got)
	}
}
