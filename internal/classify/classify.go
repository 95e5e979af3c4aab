// Package classify assigns an industry to records whose source did not
// supply one, by counting keyword hits per category.
package classify

import (
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/amishk599/harvester/internal/model"
)

// descriptionPrefix is how much of the description takes part in scoring.
const descriptionPrefix = 2000

// Keywords lists the vocabulary of each industry.
var Keywords = map[model.Industry][]string{
	model.IndustryMining: {
		"mining", "mine", "miner", "geologist", "geology", "metallurgy",
		"ore", "mineral", "drill", "blast", "gold", "copper", "uranium",
		"potash", "nickel", "iron ore", "diamond", "coal", "quarry",
		"exploration", "assay", "mill", "tailings", "concentrate",
	},
	model.IndustryOilGas: {
		"oil", "gas", "petroleum", "drilling", "rig", "pipeline",
		"refinery", "upstream", "downstream", "wellsite", "oilfield",
		"natural gas", "lng", "fracking", "hydraulic fracturing",
		"production operator", "derrick", "roughneck", "mudlogger",
		"completions", "wellhead", "reservoir", "seismic",
	},
	model.IndustryForestry: {
		"forestry", "forest", "lumber", "logging", "sawmill", "pulp",
		"paper", "timber", "woodlands", "silviculture", "harvesting",
		"feller", "skidder", "log", "wood", "plywood", "veneer",
		"forester", "tree planter", "dendrologist",
	},
	model.IndustryFishing: {
		"fishing", "fish", "seafood", "aquaculture", "fishery",
		"salmon", "crab", "lobster", "shrimp", "shellfish",
		"processing plant", "trawler", "vessel", "captain",
		"deckhand", "marine harvest", "hatchery",
	},
	model.IndustryAgriculture: {
		"agriculture", "farm", "farming", "agricultural", "crop",
		"livestock", "dairy", "grain", "wheat", "canola", "cattle",
		"poultry", "hog", "agri", "fertilizer", "seed", "harvest",
		"agronomist", "ranch", "feedlot", "irrigation",
	},
	model.IndustryRenewableEnergy: {
		"renewable", "solar", "wind", "hydro", "hydroelectric",
		"wind turbine", "solar panel", "clean energy", "green energy",
		"sustainability", "battery", "energy storage", "geothermal",
		"biomass", "power generation", "transmission",
	},
	model.IndustryEnvironmental: {
		"environmental", "environment", "ecology", "ecologist",
		"remediation", "assessment", "contamination", "cleanup",
		"eia", "sustainability", "conservation", "wildlife",
		"water quality", "air quality", "compliance", "reclamation",
		"habitat", "biodiversity", "esg",
	},
}

// Classifier scores text against every industry in a single pass.
// It is safe for concurrent use.
type Classifier struct {
	matcher  *ahocorasick.Matcher
	keywords []string
	owners   map[string][]int // keyword -> indexes into model.Industries
}

// New builds a Classifier over the given keyword table.
func New(table map[model.Industry][]string) *Classifier {
	c := &Classifier{owners: make(map[string][]int)}
	for i, ind := range model.Industries {
		for _, kw := range table[ind] {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			if _, ok := c.owners[kw]; !ok {
				c.keywords = append(c.keywords, kw)
			}
			c.owners[kw] = append(c.owners[kw], i)
		}
	}
	if len(c.keywords) > 0 {
		c.matcher = ahocorasick.NewStringMatcher(c.keywords)
	}
	return c
}

// Classify sets rec.Industry unless the source already supplied one. The
// industry with the most distinct keyword hits wins; ties go to the
// category listed first in model.Industries. No hits leaves it unset.
func (c *Classifier) Classify(rec *model.JobRecord) *model.JobRecord {
	if rec.Industry != "" {
		return rec
	}
	if ind, ok := c.Score(text(rec)); ok {
		rec.Industry = ind
	}
	return rec
}

// Score returns the best-scoring industry for already lowercased text.
func (c *Classifier) Score(text string) (model.Industry, bool) {
	if c.matcher == nil {
		return "", false
	}
	scores := make([]int, len(model.Industries))
	seen := make(map[int]bool)
	for _, hit := range c.matcher.MatchThreadSafe([]byte(text)) {
		if seen[hit] {
			continue
		}
		seen[hit] = true
		for _, i := range c.owners[c.keywords[hit]] {
			scores[i]++
		}
	}

	best := -1
	for i, s := range scores {
		if s > 0 && (best < 0 || s > scores[best]) {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return model.Industries[best], true
}

func text(rec *model.JobRecord) string {
	desc := rec.Description
	if r := []rune(desc); len(r) > descriptionPrefix {
		desc = string(r[:descriptionPrefix])
	}
	return strings.ToLower(rec.Title + " " + rec.CompanyName + " " + desc)
}
