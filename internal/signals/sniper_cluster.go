package signals

import (
	"sort"
	"time"

	"polymarket-surveillance/internal/config"
	"polymarket-surveillance/internal/wallet"
	"polymarket-surveillance/pkg/types"
)

// sniperLookback bounds how far back the processor fetches a market's
// trades before binning them into windows; the spec leaves this unbounded
// ("fetch recent trades for the market"), so we cap it generously relative
// to the default 5-minute window.
const sniperLookback = 2 * time.Hour

// SniperClusterProcessor flags windows where several distinct wallets trade
// the same outcome within a short span, weighting detection by wallet count
// and estimated funding/market-overlap connection (spec §4.9).
type SniperClusterProcessor struct {
	cfg     config.SniperClusterConfig
	history TradeHistory
	funding *wallet.FundingAnalyzer
	now     func() time.Time
}

// NewSniperClusterProcessor builds the sniper-cluster detector over the
// shared trade history reader and funding analyzer.
func NewSniperClusterProcessor(cfg config.SniperClusterConfig, history TradeHistory, funding *wallet.FundingAnalyzer) *SniperClusterProcessor {
	return &SniperClusterProcessor{cfg: cfg, history: history, funding: funding, now: time.Now}
}

func (p *SniperClusterProcessor) Name() string    { return "sniper-cluster" }
func (p *SniperClusterProcessor) Kind() Kind       { return KindMarketOnly }
func (p *SniperClusterProcessor) Weight() float64 { return p.cfg.Weight }

type sniperCandidate struct {
	direction   types.Direction
	wallets     map[string]bool
	totalVolume float64
	windowStart time.Time
}

func (p *SniperClusterProcessor) Process(ctx Context) (Result, error) {
	if ctx.Market.TokenID == "" {
		return Result{}, nil
	}

	trades := p.history.TradesForMarket(ctx.Market.TokenID, p.now().Add(-sniperLookback))
	if len(trades) == 0 {
		return Result{}, nil
	}
	sort.Slice(trades, func(i, j int) bool { return trades[i].Timestamp.Before(trades[j].Timestamp) })

	windowLen := time.Duration(p.cfg.WindowMinutes * float64(time.Minute))

	var best *sniperCandidate
	windowStart := trades[0].Timestamp
	buckets := map[types.Direction]*sniperCandidate{}

	flush := func() {
		for _, c := range buckets {
			if len(c.wallets) >= p.cfg.MinWallets {
				if best == nil || float64(len(c.wallets))*p.candidateConfidence(c) > float64(len(best.wallets))*p.candidateConfidence(best) {
					best = c
				}
			}
		}
		buckets = map[types.Direction]*sniperCandidate{}
	}

	for _, tr := range trades {
		if tr.Timestamp.Sub(windowStart) > windowLen {
			flush()
			windowStart = tr.Timestamp
		}

		addr := tr.Maker
		if addr == "" {
			addr = tr.Taker
		}
		if addr == "" {
			continue
		}

		dir := sideDirection(tr.Side)
		c, ok := buckets[dir]
		if !ok {
			c = &sniperCandidate{direction: dir, wallets: make(map[string]bool), windowStart: windowStart}
			buckets[dir] = c
		}
		c.wallets[addr] = true
		size, _ := tr.Size.Float64()
		c.totalVolume += size
	}
	flush()

	if best == nil {
		return Result{}, nil
	}

	confidence := p.candidateConfidence(best)
	clusterSize := len(best.wallets)

	severity := types.SeverityMedium
	if clusterSize >= 5 {
		severity = types.SeverityHigh
	}

	walletList := make([]string, 0, clusterSize)
	for w := range best.wallets {
		walletList = append(walletList, w)
	}
	sort.Strings(walletList)

	return Result{
		Detected:   true,
		Confidence: confidence,
		Direction:  best.direction,
		Severity:   severity,
		Metadata: map[string]any{
			"clusterSize": clusterSize,
			"wallets":     walletList,
			"totalVolume": best.totalVolume,
			"direction":   best.direction,
			"windowMs":    windowLen.Milliseconds(),
		},
	}, nil
}

// candidateConfidence combines wallet-count weight with an estimated
// funding/overlap connection confidence across the cluster's wallets,
// seeded from the lexicographically smallest address. Any panic from the
// funding analyzer is treated as connectionConfidence=0 per spec §4.9.
func (p *SniperClusterProcessor) candidateConfidence(c *sniperCandidate) float64 {
	sizeConfidence := minFloat(float64(len(c.wallets))/10, 0.7)
	connectionConfidence := p.safeConnectionConfidence(c.wallets)
	return minFloat(sizeConfidence+0.3*connectionConfidence, 1)
}

func (p *SniperClusterProcessor) safeConnectionConfidence(wallets map[string]bool) (confidence float64) {
	defer func() {
		if recover() != nil {
			confidence = 0
		}
	}()

	if p.funding == nil || len(wallets) < 2 {
		return 0
	}

	addrs := make([]string, 0, len(wallets))
	for w := range wallets {
		addrs = append(addrs, w)
	}
	sort.Strings(addrs)
	seed := addrs[0]

	var sum float64
	var count int
	for _, candidate := range addrs[1:] {
		sum += p.funding.ConnectionConfidence(seed, candidate)
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
