package wallet

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"polymarket-surveillance/pkg/types"
)

// FundingAnalyzer maintains address->events and source->recipients indexes
// over externally-supplied funding events and estimates wallet clusters
// (spec §4.5).
type FundingAnalyzer struct {
	mu          sync.Mutex
	byAddress   map[string][]types.FundingEvent
	bySource    map[string]map[string]bool // source -> set of recipient addresses
	walletTrades map[string][]time.Time     // address -> trade timestamps (recorded; no heuristic reads them)
	walletMarkets map[string]map[string]bool // address -> set of markets traded
}

// NewFundingAnalyzer creates an empty analyzer.
func NewFundingAnalyzer() *FundingAnalyzer {
	return &FundingAnalyzer{
		byAddress:     make(map[string][]types.FundingEvent),
		bySource:      make(map[string]map[string]bool),
		walletTrades:  make(map[string][]time.Time),
		walletMarkets: make(map[string]map[string]bool),
	}
}

// RecordFundingEvent indexes a funding event by both address and source.
func (f *FundingAnalyzer) RecordFundingEvent(e types.FundingEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byAddress[e.Address] = append(f.byAddress[e.Address], e)
	set, ok := f.bySource[e.Source]
	if !ok {
		set = make(map[string]bool)
		f.bySource[e.Source] = set
	}
	set[e.Address] = true
}

// RecordMarketActivity tracks that address traded market at t. The market
// set feeds cluster discovery's common-market score; the timestamp is
// stored but not used by any heuristic.
func (f *FundingAnalyzer) RecordMarketActivity(address, market string, t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.walletTrades[address] = append(f.walletTrades[address], t)
	set, ok := f.walletMarkets[address]
	if !ok {
		set = make(map[string]bool)
		f.walletMarkets[address] = set
	}
	set[market] = true
}

// PrimaryFundingSource returns the source with the maximum summed amount
// funding address, or "" if none known.
func (f *FundingAnalyzer) PrimaryFundingSource(address string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	totals := make(map[string]decimal.Decimal)
	for _, e := range f.byAddress[address] {
		totals[e.Source] = totals[e.Source].Add(e.Amount)
	}

	best := ""
	bestAmt := decimal.Zero
	for source, amt := range totals {
		if amt.GreaterThan(bestAmt) {
			bestAmt = amt
			best = source
		}
	}
	return best
}

// fundedWithin1hOf reports whether candidate received any funding from
// source within 1 hour of seed's first funding from that source.
func (f *FundingAnalyzer) fundedWithin1hOf(source, seed, candidate string) bool {
	var seedTime time.Time
	for _, e := range f.byAddress[seed] {
		if e.Source == source {
			seedTime = e.Timestamp
			break
		}
	}
	if seedTime.IsZero() {
		return false
	}
	for _, e := range f.byAddress[candidate] {
		if e.Source != source {
			continue
		}
		diff := e.Timestamp.Sub(seedTime)
		if diff < 0 {
			diff = -diff
		}
		if diff <= time.Hour {
			return true
		}
	}
	return false
}

func (f *FundingAnalyzer) commonMarkets(a, b string) int {
	count := 0
	for m := range f.walletMarkets[a] {
		if f.walletMarkets[b][m] {
			count++
		}
	}
	return count
}

// roundTripPartner reports whether candidate shares a funding source with
// seed and has itself funded seed — a crude round-trip heuristic. Only the
// candidate-to-seed direction is checked.
func (f *FundingAnalyzer) roundTripPartner(seed, candidate string) bool {
	seedSources := make(map[string]bool)
	for _, e := range f.byAddress[seed] {
		seedSources[e.Source] = true
	}
	for _, e := range f.byAddress[candidate] {
		if seedSources[e.Source] && f.bySource[candidate][seed] {
			return true
		}
	}
	return false
}

// ClusterMember is a candidate wallet with its confidence score.
type ClusterMember struct {
	Address    string
	Confidence float64
}

// BuildCluster accumulates candidates whose confidence score (relative to
// seed) is >= 0.5, per spec §4.5's weighting.
func (f *FundingAnalyzer) BuildCluster(seed string) []ClusterMember {
	f.mu.Lock()
	defer f.mu.Unlock()

	source := f.primaryFundingSourceLocked(seed)
	if source == "" {
		return nil
	}

	seedMarkets := len(f.walletMarkets[seed])

	var members []ClusterMember
	for candidate := range f.bySource[source] {
		if candidate == seed {
			continue
		}

		confidence := 0.4 // same-source

		if f.fundedWithin1hOf(source, seed, candidate) {
			confidence += 0.3
		}

		if seedMarkets > 0 {
			common := f.commonMarkets(seed, candidate)
			if common >= 2 {
				confidence += 0.2 * (float64(common) / float64(seedMarkets))
			}
		}

		if f.roundTripPartner(seed, candidate) {
			confidence += 0.1
		}

		if confidence >= 0.5 {
			members = append(members, ClusterMember{Address: candidate, Confidence: confidence})
		}
	}
	return members
}

func (f *FundingAnalyzer) primaryFundingSourceLocked(address string) string {
	totals := make(map[string]decimal.Decimal)
	for _, e := range f.byAddress[address] {
		totals[e.Source] = totals[e.Source].Add(e.Amount)
	}
	best := ""
	bestAmt := decimal.Zero
	for source, amt := range totals {
		if amt.GreaterThan(bestAmt) {
			bestAmt = amt
			best = source
		}
	}
	return best
}

// ConnectionConfidence returns the BuildCluster confidence for a specific
// (seed, candidate) pair, or 0 if candidate is not part of the cluster.
func (f *FundingAnalyzer) ConnectionConfidence(seed, candidate string) float64 {
	for _, m := range f.BuildCluster(seed) {
		if m.Address == candidate {
			return m.Confidence
		}
	}
	return 0
}
