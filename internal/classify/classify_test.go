package classify

import (
	"strings"
	"sync"
	"testing"

	"github.com/amishk599/harvester/internal/model"
)

func TestClassify(t *testing.T) {
	c := New(Keywords)
	tests := []struct {
		name string
		rec  model.JobRecord
		want model.Industry
	}{
		{
			name: "mining",
			rec:  model.JobRecord{Title: "Drill Blaster", CompanyName: "Northern Gold Mine"},
			want: model.IndustryMining,
		},
		{
			name: "oil and gas",
			rec:  model.JobRecord{Title: "Pipeline Welder"},
			want: model.IndustryOilGas,
		},
		{
			name: "fishing from description",
			rec:  model.JobRecord{Title: "Worker", Description: "Join our salmon hatchery team."},
			want: model.IndustryFishing,
		},
		{
			name: "tie goes to earlier category",
			rec:  model.JobRecord{Title: "solar farm"},
			want: model.IndustryAgriculture,
		},
		{
			name: "no keywords",
			rec:  model.JobRecord{Title: "Accountant", CompanyName: "Acme"},
			want: "",
		},
		{
			name: "case insensitive",
			rec:  model.JobRecord{Title: "LOGGING SUPERVISOR"},
			want: model.IndustryForestry,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.rec
			c.Classify(&rec)
			if rec.Industry != tt.want {
				t.Errorf("Industry = %q, want %q", rec.Industry, tt.want)
			}
		})
	}
}

func TestClassify_KeepsSuppliedIndustry(t *testing.T) {
	rec := &model.JobRecord{Title: "Underground Miner", Industry: model.IndustryEnvironmental}
	New(Keywords).Classify(rec)
	if rec.Industry != model.IndustryEnvironmental {
		t.Errorf("Industry = %q, want environmental", rec.Industry)
	}
}

func TestClassify_OnlyDescriptionPrefixCounts(t *testing.T) {
	rec := &model.JobRecord{
		Title:       "Worker",
		Description: strings.Repeat("x ", 1000) + "salmon fishery",
	}
	New(Keywords).Classify(rec)
	if rec.Industry != "" {
		t.Errorf("Industry = %q, want unset", rec.Industry)
	}
}

func TestScore_DistinctKeywordsCountOnce(t *testing.T) {
	c := New(map[model.Industry][]string{
		model.IndustryMining:  {"gold"},
		model.IndustryFishing: {"crab", "boat"},
	})
	// "gold" three times still scores 1, so two distinct fishing words win.
	got, ok := c.Score("gold gold gold crab boat")
	if !ok || got != model.IndustryFishing {
		t.Errorf("Score = %q, %v, want fishing", got, ok)
	}
}

func TestScore_SharedKeywordCountsForBoth(t *testing.T) {
	c := New(Keywords)
	// "sustainability" belongs to renewable energy and environmental; the
	// tie resolves to renewable energy, listed first.
	got, ok := c.Score("sustainability")
	if !ok || got != model.IndustryRenewableEnergy {
		t.Errorf("Score = %q, %v, want renewable_energy", got, ok)
	}
}

func TestClassify_Concurrent(t *testing.T) {
	c := New(Keywords)
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				rec := &model.JobRecord{Title: "Underground Miner"}
				c.Classify(rec)
				if rec.Industry != model.IndustryMining {
					t.Errorf("Industry = %q", rec.Industry)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestNew_EmptyTable(t *testing.T) {
	c := New(nil)
	if _, ok := c.Score("mining"); ok {
		t.Error("empty classifier should never match")
	}
}
