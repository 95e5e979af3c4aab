package dedupe

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/harvester/internal/model"
)

func TestFingerprint_IgnoresCaseAccentsAndPunctuation(t *testing.T) {
	a := Fingerprint("Heavy Equipment Operator", "Hydro-Québec", "Montréal, QC")
	b := Fingerprint("HEAVY equipment operator", "hydro quebec", "Montreal QC")
	if a != b {
		t.Errorf("fingerprints differ: %016x vs %016x (distance %d)", a, b, Distance(a, b))
	}
}

func TestFingerprint_DistinctRecordsAreFarApart(t *testing.T) {
	a := Fingerprint("Heavy Equipment Operator", "Teck Resources", "Fort McMurray, AB")
	b := Fingerprint("Fisheries Biologist", "Fisheries and Oceans Canada", "Nanaimo, BC")
	if d := Distance(a, b); d <= DefaultThreshold {
		t.Errorf("distance = %d, want > %d", d, DefaultThreshold)
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	if Fingerprint("a b c") != Fingerprint("a b c") {
		t.Error("fingerprint is not deterministic")
	}
	if Fingerprint() != 0 {
		t.Error("empty input should give zero fingerprint")
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b uint64
		want int
	}{
		{0, 0, 0},
		{0, 0b111, 3},
		{^uint64(0), 0, 64},
		{0b1010, 0b0101, 4},
	}
	for _, tt := range tests {
		if got := Distance(tt.a, tt.b); got != tt.want {
			t.Errorf("Distance(%b, %b) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSet_CheckAndAdd(t *testing.T) {
	for _, bucketed := range []bool{false, true} {
		s := NewSet(3, bucketed)

		if _, dup := s.CheckAndAdd(0, "lever|1"); dup {
			t.Fatal("first fingerprint cannot be a duplicate")
		}
		if m, dup := s.CheckAndAdd(0b111, "lever|2"); !dup || m != 0 {
			t.Errorf("bucketed=%v: distance 3 should be a duplicate of 0, got %v %x", bucketed, dup, m)
		}
		if _, dup := s.CheckAndAdd(0b1111<<20, "lever|3"); dup {
			t.Errorf("bucketed=%v: distance 4 should be accepted", bucketed)
		}
		if s.Len() != 2 {
			t.Errorf("bucketed=%v: Len = %d, want 2", bucketed, s.Len())
		}
	}
}

func TestSet_BucketedMatchesLinear(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	var input []uint64
	for range 300 {
		base := rng.Uint64()
		input = append(input, base)
		// near copies with 1..5 flipped bits
		for range 3 {
			fp := base
			for range 1 + rng.IntN(5) {
				fp ^= 1 << rng.IntN(64)
			}
			input = append(input, fp)
		}
	}

	for _, threshold := range []int{0, 1, 3, 7} {
		linear := NewSet(threshold, false)
		bucketed := NewSet(threshold, true)
		for i, fp := range input {
			key := fmt.Sprintf("ashby|%d", i)
			_, d1 := linear.CheckAndAdd(fp, key)
			_, d2 := bucketed.CheckAndAdd(fp, key)
			if d1 != d2 {
				t.Fatalf("threshold %d, input %d: linear dup=%v, bucketed dup=%v", threshold, i, d1, d2)
			}
		}
	}
}

func TestSet_LoadedFingerprintsAreNotAdded(t *testing.T) {
	s := NewSet(3, false)
	s.Load([]Entry{{Fingerprint: 42, Key: "lever|old"}})

	if _, dup := s.CheckAndAdd(43, "lever|new"); !dup {
		t.Error("fingerprint close to a loaded one should be a duplicate")
	}
	s.CheckAndAdd(^uint64(0), "lever|other")
	added := s.Added()
	if len(added) != 1 || added[0].Fingerprint != ^uint64(0) || added[0].Key != "lever|other" {
		t.Errorf("Added = %+v", added)
	}
}

func TestSet_LoadedEntryDoesNotBlockItsOwnRecord(t *testing.T) {
	for _, bucketed := range []bool{false, true} {
		s := NewSet(3, bucketed)
		s.Load([]Entry{{Fingerprint: 0xABCD, Key: "lever|abc"}})

		if _, dup := s.CheckAndAdd(0xABCD, "lever|abc"); dup {
			t.Errorf("bucketed=%v: re-ingested record rejected as its own duplicate", bucketed)
		}
		if added := s.Added(); len(added) != 1 || added[0].Key != "lever|abc" {
			t.Errorf("bucketed=%v: re-ingested record not re-saved: %+v", bucketed, added)
		}
		if _, dup := s.CheckAndAdd(0xABCD, "greenhouse|xyz"); !dup {
			t.Errorf("bucketed=%v: different record with the same fingerprint accepted", bucketed)
		}
		if _, dup := s.CheckAndAdd(0xABCD, "lever|abc"); !dup {
			t.Errorf("bucketed=%v: second copy within one run accepted", bucketed)
		}
	}
}

func TestSet_ConcurrentCheckAndAddAcceptsOnce(t *testing.T) {
	s := NewSet(3, true)
	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// every goroutine offers a fingerprint within one bit of 0xFF00
			if _, dup := s.CheckAndAdd(0xFF00^uint64(i%2), fmt.Sprintf("workday|%d", i)); !dup {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()
	if accepted.Load() != 1 {
		t.Errorf("accepted = %d, want exactly 1", accepted.Load())
	}
}

func TestDeduper(t *testing.T) {
	d := New(NewSet(DefaultThreshold, false))

	first := &model.JobRecord{Title: "Mill Operator", CompanyName: "Cameco", Location: "Saskatoon, SK"}
	rec, err := d.Dedupe(first)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.HasFingerprint || rec.Fingerprint == 0 {
		t.Error("record should carry its fingerprint")
	}

	again := &model.JobRecord{Title: "MILL OPERATOR", CompanyName: "cameco", Location: "Saskatoon SK"}
	_, err = d.Dedupe(again)
	if !model.IsDuplicate(err) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
	if !errors.Is(err, model.ErrRejected) {
		t.Error("duplicate should match ErrRejected")
	}

	other := &model.JobRecord{Title: "Wildlife Biologist", CompanyName: "Parks Canada", Location: "Banff, AB"}
	if _, err := d.Dedupe(other); err != nil {
		t.Errorf("distinct record rejected: %v", err)
	}
}

func TestRedisHistory(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	h, err := NewRedisHistory(ctx, "redis://"+mr.Addr(), time.Hour)
	require.NoError(t, err)
	defer h.Close()

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	saved := []Entry{{Fingerprint: 1, Key: "lever|1"}, {Fingerprint: 0xdeadbeef, Key: "jobbank|42"}}
	require.NoError(t, h.Save(ctx, saved))

	got, err := h.Load(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, saved, got)

	now = now.Add(2 * time.Hour)
	got, err = h.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got, "expired fingerprints returned")
	assert.False(t, mr.Exists(DefaultHistoryKey+":keys"), "expired keys left behind")
}

func TestRedisHistory_ResaveExtendsExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	h, err := NewRedisHistory(ctx, "redis://"+mr.Addr(), time.Hour)
	require.NoError(t, err)
	defer h.Close()

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }
	e := Entry{Fingerprint: 7, Key: "ashby|7"}
	require.NoError(t, h.Save(ctx, []Entry{e}))

	now = now.Add(50 * time.Minute)
	require.NoError(t, h.Save(ctx, []Entry{e}))

	now = now.Add(50 * time.Minute)
	got, err := h.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Entry{e}, got)
}

func TestRedisHistory_BadURL(t *testing.T) {
	if _, err := NewRedisHistory(context.Background(), "not a url", time.Hour); err == nil {
		t.Error("expected error")
	}
}

func TestNopHistory(t *testing.T) {
	var h History = NopHistory{}
	entries, err := h.Load(context.Background())
	if err != nil || entries != nil {
		t.Errorf("Load = %v, %v", entries, err)
	}
	if err := h.Save(context.Background(), []Entry{{Fingerprint: 1}}); err != nil {
		t.Errorf("Save: %v", err)
	}
}
