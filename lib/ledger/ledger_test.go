// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"log/slog"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/agent-ethos/ethos/lib/apierror"
	"github.com/agent-ethos/ethos/lib/clock"
	"github.com/agent-ethos/ethos/lib/reputation"
)

func newTestStore(t *testing.T) (*Store, *clock.FakeClock) {
	t.Helper()

	fakeClock := clock.Fake(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	store, err := Open(Config{
		Path:     filepath.Join(t.TempDir(), "ledger.db"),
		PoolSize: 2,
		Clock:    fakeClock,
		Logger:   slog.New(slog.DiscardHandler),
		Params:   reputation.DefaultParams(),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store, fakeClock
}

// register creates an agent and returns it with its plaintext key.
func register(t *testing.T, store *Store, name string) (Agent, string) {
	t.Helper()
	agent, key, err := store.CreateAgent(context.Background(), name, "test agent")
	if err != nil {
		t.Fatalf("CreateAgent(%s): %v", name, err)
	}
	return agent, key
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCreateAgentAndAuthenticate(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	agent, key := register(t, store, "alice")
	if agent.ID == 0 {
		t.Error("agent id not assigned")
	}
	if agent.Reputation != 0 {
		t.Errorf("fresh agent reputation = %v, want 0", agent.Reputation)
	}

	authed, err := store.Authenticate(ctx, key)
	if err != nil {
		t.Fatalf("Authenticate with issued key: %v", err)
	}
	if authed.ID != agent.ID {
		t.Errorf("authenticated as agent %d, want %d", authed.ID, agent.ID)
	}

	// Wrong, malformed, and empty keys all fail identically.
	for _, bad := range []string{"ethos_0000000000000000_NOTREAL", "garbage", ""} {
		if _, err := store.Authenticate(ctx, bad); apierror.KindOf(err) != apierror.KindUnauthorized {
			t.Errorf("Authenticate(%q) = %v, want Unauthorized", bad, err)
		}
	}
}

func TestCreateAgentDuplicateNameCaseInsensitive(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	register(t, store, "Alice")
	_, _, err := store.CreateAgent(ctx, "alice", "")
	if apierror.KindOf(err) != apierror.KindConflict {
		t.Errorf("duplicate name: err = %v, want Conflict", err)
	}
}

func TestCreateAgentValidatesInput(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	longName := make([]byte, 65)
	for i := range longName {
		longName[i] = 'a'
	}
	longDesc := make([]byte, 501)
	for i := range longDesc {
		longDesc[i] = 'd'
	}

	cases := []struct {
		name, description string
	}{
		{"", ""},
		{"has space", ""},
		{"has/slash", ""},
		{string(longName), ""},
		{"ok-name", string(longDesc)},
	}
	for _, tc := range cases {
		if _, _, err := store.CreateAgent(ctx, tc.name, tc.description); apierror.KindOf(err) != apierror.KindValidation {
			t.Errorf("CreateAgent(%q, %d-char desc) = %v, want Validation",
				tc.name, len(tc.description), err)
		}
	}
}

func TestAgentByNameCaseInsensitive(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	created, _ := register(t, store, "Alice")

	found, err := store.AgentByName(ctx, "aLiCe")
	if err != nil {
		t.Fatalf("AgentByName: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("found agent %d, want %d", found.ID, created.ID)
	}
	if found.Name != "Alice" {
		t.Errorf("name = %q, want registered casing %q", found.Name, "Alice")
	}

	if _, err := store.AgentByName(ctx, "ghost"); apierror.KindOf(err) != apierror.KindNotFound {
		t.Errorf("AgentByName(ghost) = %v, want NotFound", err)
	}
}

func TestSubmitVouchRaisesTarget(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	alice, _ := register(t, store, "alice")
	register(t, store, "bob")

	vouch, err := store.SubmitVouch(ctx, alice.ID, "bob", 5, "shipped a solid release", "")
	if err != nil {
		t.Fatalf("SubmitVouch: %v", err)
	}
	if vouch.FromName != "alice" || vouch.ToName != "bob" {
		t.Errorf("vouch names = %q -> %q", vouch.FromName, vouch.ToName)
	}

	// Fresh voucher contributes at the multiplier floor: 5 * 0.2.
	bob, err := store.AgentByName(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(bob.Reputation, 1.0) {
		t.Errorf("bob reputation = %v, want 1.0", bob.Reputation)
	}
	if bob.ReputationEdgeCount != 1 {
		t.Errorf("edge count = %d, want 1", bob.ReputationEdgeCount)
	}
	if bob.ReputationComputedAt.IsZero() {
		t.Error("reputation_computed_at not set")
	}
}

func TestSubmitVouchRejectsInvalid(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	alice, _ := register(t, store, "alice")
	register(t, store, "bob")

	longNote := make([]byte, 501)
	for i := range longNote {
		longNote[i] = 'n'
	}

	// Self-vouch, regardless of score.
	if _, err := store.SubmitVouch(ctx, alice.ID, "alice", 5, "", ""); apierror.KindOf(err) != apierror.KindInvalidVouch {
		t.Errorf("self-vouch: %v, want InvalidVouch", err)
	}

	for _, score := range []int{0, 6, -6, 100} {
		if _, err := store.SubmitVouch(ctx, alice.ID, "bob", score, "", ""); apierror.KindOf(err) != apierror.KindInvalidVouch {
			t.Errorf("score %d: %v, want InvalidVouch", score, err)
		}
	}

	if _, err := store.SubmitVouch(ctx, alice.ID, "bob", 5, string(longNote), ""); apierror.KindOf(err) != apierror.KindInvalidVouch {
		t.Errorf("oversize note: want InvalidVouch")
	}

	if _, err := store.SubmitVouch(ctx, alice.ID, "ghost", 5, "", ""); apierror.KindOf(err) != apierror.KindNotFound {
		t.Errorf("unknown target: want NotFound")
	}

	// None of the rejected submissions touched bob.
	bob, err := store.AgentByName(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if bob.Reputation != 0 {
		t.Errorf("bob reputation = %v after rejected vouches, want 0", bob.Reputation)
	}
}

func TestRepeatVouchSupersedes(t *testing.T) {
	store, fakeClock := newTestStore(t)
	ctx := context.Background()

	alice, _ := register(t, store, "alice")
	bob, _ := register(t, store, "bob")

	if _, err := store.SubmitVouch(ctx, alice.ID, "bob", 5, "first impression", ""); err != nil {
		t.Fatal(err)
	}
	fakeClock.Advance(time.Hour)
	if _, err := store.SubmitVouch(ctx, alice.ID, "bob", -5, "changed my mind", ""); err != nil {
		t.Fatal(err)
	}

	// Only the newest vouch per pair counts: -5 * 0.2.
	bobNow, err := store.AgentByName(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(bobNow.Reputation, -1.0) {
		t.Errorf("bob reputation = %v, want -1.0", bobNow.Reputation)
	}
	if bobNow.ReputationEdgeCount != 1 {
		t.Errorf("edge count = %d, want 1 (superseded edge must not count)", bobNow.ReputationEdgeCount)
	}

	// Both rows stay listable, newest first.
	vouches, err := store.ListVouches(ctx, bob.ID, Incoming, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(vouches) != 2 {
		t.Fatalf("listed %d vouches, want 2", len(vouches))
	}
	if vouches[0].Score != -5 || vouches[1].Score != 5 {
		t.Errorf("order = %d, %d; want newest first", vouches[0].Score, vouches[1].Score)
	}
}

func TestListVouchesDirectionsAndLimit(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	alice, _ := register(t, store, "alice")
	bob, _ := register(t, store, "bob")
	carol, _ := register(t, store, "carol")

	if _, err := store.SubmitVouch(ctx, alice.ID, "bob", 3, "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := store.SubmitVouch(ctx, carol.ID, "bob", 2, "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := store.SubmitVouch(ctx, bob.ID, "carol", 4, "", ""); err != nil {
		t.Fatal(err)
	}

	incoming, err := store.ListVouches(ctx, bob.ID, Incoming, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(incoming) != 2 {
		t.Errorf("incoming = %d vouches, want 2", len(incoming))
	}

	outgoing, err := store.ListVouches(ctx, bob.ID, Outgoing, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(outgoing) != 1 || outgoing[0].ToName != "carol" {
		t.Errorf("outgoing = %+v, want one vouch to carol", outgoing)
	}

	limited, err := store.ListVouches(ctx, bob.ID, Incoming, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d vouches", len(limited))
	}

	if _, err := store.ListVouches(ctx, bob.ID, Direction("sideways"), 10); apierror.KindOf(err) != apierror.KindValidation {
		t.Errorf("bad direction: %v, want Validation", err)
	}
}

func TestFlagVouchDiscountsAndConflicts(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	alice, _ := register(t, store, "alice")
	register(t, store, "bob")
	carol, _ := register(t, store, "carol")
	dave, _ := register(t, store, "dave")

	vouch, err := store.SubmitVouch(ctx, alice.ID, "bob", 5, "", "")
	if err != nil {
		t.Fatal(err)
	}

	// One flag halves the contribution.
	if err := store.FlagVouch(ctx, vouch.ID, carol.ID, "looks fabricated"); err != nil {
		t.Fatalf("first flag: %v", err)
	}
	bob, _ := store.AgentByName(ctx, "bob")
	if !almostEqual(bob.Reputation, 0.5) {
		t.Errorf("after 1 flag: reputation = %v, want 0.5", bob.Reputation)
	}

	// The same flagger cannot flag twice.
	if err := store.FlagVouch(ctx, vouch.ID, carol.ID, "still fabricated"); apierror.KindOf(err) != apierror.KindConflict {
		t.Errorf("duplicate flag: %v, want Conflict", err)
	}

	// A second, distinct flagger zeroes it.
	if err := store.FlagVouch(ctx, vouch.ID, dave.ID, "agreed"); err != nil {
		t.Fatalf("second flag: %v", err)
	}
	bob, _ = store.AgentByName(ctx, "bob")
	if !almostEqual(bob.Reputation, 0) {
		t.Errorf("after 2 flags: reputation = %v, want 0", bob.Reputation)
	}

	// More flags never push it negative; the target may flag vouches
	// it received.
	if err := store.FlagVouch(ctx, vouch.ID, bob.ID, "unwanted endorsement"); err != nil {
		t.Fatalf("self-received flag: %v", err)
	}
	bob, _ = store.AgentByName(ctx, "bob")
	if !almostEqual(bob.Reputation, 0) {
		t.Errorf("after 3 flags: reputation = %v, want 0", bob.Reputation)
	}

	vouches, _ := store.ListVouches(ctx, bob.ID, Incoming, 10)
	if vouches[0].Flags != 3 {
		t.Errorf("flags_count = %d, want 3", vouches[0].Flags)
	}
}

func TestFlagVouchValidation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	alice, _ := register(t, store, "alice")
	register(t, store, "bob")
	vouch, err := store.SubmitVouch(ctx, alice.ID, "bob", 5, "", "")
	if err != nil {
		t.Fatal(err)
	}

	if err := store.FlagVouch(ctx, vouch.ID, alice.ID, ""); apierror.KindOf(err) != apierror.KindValidation {
		t.Errorf("empty reason: %v, want Validation", err)
	}
	if err := store.FlagVouch(ctx, 99999, alice.ID, "whatever"); apierror.KindOf(err) != apierror.KindNotFound {
		t.Errorf("unknown vouch: %v, want NotFound", err)
	}
}

func TestMutualVouchesAreDiscounted(t *testing.T) {
	store, fakeClock := newTestStore(t)
	ctx := context.Background()

	alice, _ := register(t, store, "alice")
	bob, _ := register(t, store, "bob")

	if _, err := store.SubmitVouch(ctx, alice.ID, "bob", 5, "", ""); err != nil {
		t.Fatal(err)
	}
	fakeClock.Advance(time.Hour)
	if _, err := store.SubmitVouch(ctx, bob.ID, "alice", 5, "", ""); err != nil {
		t.Fatal(err)
	}

	// Alice was rescored after the reverse edge existed, so her edge is
	// discounted: 5 * (0.2 + 1.0/25) * 0.5. Bob keeps his pre-reverse
	// cached value until something rescores him; the rebuild corrects
	// that drift.
	aliceNow, _ := store.AgentByName(ctx, "alice")
	if !almostEqual(aliceNow.Reputation, 0.6) {
		t.Errorf("alice reputation = %v, want 0.6", aliceNow.Reputation)
	}
	bobNow, _ := store.AgentByName(ctx, "bob")
	if !almostEqual(bobNow.Reputation, 1.0) {
		t.Errorf("bob reputation = %v, want cached 1.0", bobNow.Reputation)
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	store, fakeClock := newTestStore(t)
	ctx := context.Background()

	alice, _ := register(t, store, "alice")
	fakeClock.Advance(time.Minute)
	register(t, store, "bob")
	fakeClock.Advance(time.Minute)
	register(t, store, "carol")
	fakeClock.Advance(time.Minute)
	register(t, store, "dave")

	// bob gets a positive vouch, carol a negative one; alice and dave
	// stay at zero and tie, broken by earlier registration.
	if _, err := store.SubmitVouch(ctx, alice.ID, "bob", 5, "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := store.SubmitVouch(ctx, alice.ID, "carol", -5, "", ""); err != nil {
		t.Fatal(err)
	}

	board, err := store.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, a := range board {
		names = append(names, a.Name)
	}
	want := []string{"bob", "alice", "dave", "carol"}
	if len(names) != len(want) {
		t.Fatalf("leaderboard = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("leaderboard = %v, want %v", names, want)
		}
	}

	top, err := store.Leaderboard(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0].Name != "bob" {
		t.Errorf("Leaderboard(2) = %+v", top)
	}
}

func TestSnapshotAndRebuildRoundTrip(t *testing.T) {
	store, fakeClock := newTestStore(t)
	ctx := context.Background()

	alice, _ := register(t, store, "alice")
	bob, _ := register(t, store, "bob")
	carol, _ := register(t, store, "carol")

	if _, err := store.SubmitVouch(ctx, alice.ID, "bob", 5, "", ""); err != nil {
		t.Fatal(err)
	}
	fakeClock.Advance(time.Hour)
	if _, err := store.SubmitVouch(ctx, bob.ID, "carol", 5, "", ""); err != nil {
		t.Fatal(err)
	}

	snap, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Claimed) != 3 {
		t.Errorf("snapshot has %d agents, want 3", len(snap.Claimed))
	}
	if len(snap.Edges) != 2 {
		t.Errorf("snapshot has %d edges, want 2", len(snap.Edges))
	}

	reps := reputation.Rebuild(reputation.DefaultParams(), snap.Claimed, snap.Edges, 0)
	edgeCounts := make(map[int64]int)
	for _, e := range snap.Edges {
		edgeCounts[e.To]++
	}
	for id := range snap.Claimed {
		if _, ok := reps[id]; !ok {
			reps[id] = 0
		}
	}

	if err := store.ApplyReputations(ctx, reps, edgeCounts); err != nil {
		t.Fatalf("ApplyReputations: %v", err)
	}

	// The chain converges: bob at 1.0, carol lifted by bob's standing.
	bobNow, _ := store.AgentByID(ctx, bob.ID)
	if !almostEqual(bobNow.Reputation, 1.0) {
		t.Errorf("bob rebuilt reputation = %v, want 1.0", bobNow.Reputation)
	}
	carolNow, _ := store.AgentByID(ctx, carol.ID)
	if !almostEqual(carolNow.Reputation, 1.2) {
		t.Errorf("carol rebuilt reputation = %v, want 1.2", carolNow.Reputation)
	}
	aliceNow, _ := store.AgentByID(ctx, alice.ID)
	if aliceNow.Reputation != 0 {
		t.Errorf("alice rebuilt reputation = %v, want 0", aliceNow.Reputation)
	}
	if carolNow.ReputationEdgeCount != 1 {
		t.Errorf("carol edge count = %d, want 1", carolNow.ReputationEdgeCount)
	}
}
