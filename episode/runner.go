package episode

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/stockbot/simcore/alloc"
	"github.com/stockbot/simcore/config"
	"github.com/stockbot/simcore/execution"
	"github.com/stockbot/simcore/journal"
	"github.com/stockbot/simcore/market"
	"github.com/stockbot/simcore/metrics"
	"github.com/stockbot/simcore/obs"
	"github.com/stockbot/simcore/pkg/id"
	"github.com/stockbot/simcore/portfolio"
	"github.com/stockbot/simcore/reward"
	"github.com/stockbot/simcore/risk"
	"github.com/stockbot/simcore/telemetry"
)

// Runner drives one episode over an aligned panel. Build it once per run;
// Run may be called exactly once.
type Runner struct {
	cfg      *config.Config
	provider *market.Provider
	policy   Policy
	jnl      journal.Journal
	log      zerolog.Logger

	mapper *alloc.Mapper
	guard  *risk.Guard
	exec   *execution.Model
	norm   *obs.Normalizer

	hub *telemetry.Hub
	rec *metrics.Recorder
}

// NewRunner wires the simulation components from a validated config. The
// normalizer trains online unless frozen stats are configured, in which
// case it loads them and refuses dimension drift.
func NewRunner(cfg *config.Config, provider *market.Provider, policy Policy, jnl journal.Journal, log zerolog.Logger) (*Runner, error) {
	n := len(provider.Panel().Symbols)

	mapper, err := alloc.NewMapper(alloc.Config{
		Mode:             alloc.Mode(cfg.Mapping.Mode),
		InvestMax:        cfg.Mapping.InvestMax,
		GrossLeverageCap: cfg.Mapping.GrossLeverageCap,
		MaxStepChange:    cfg.Mapping.MaxStepChange,
		RebalanceEps:     cfg.Mapping.RebalanceEps,
		PerNameCap:       cfg.Guards.PerNameWeightCap,
	}, n)
	if err != nil {
		return nil, err
	}

	guard := risk.NewGuard(riskConfig(cfg))
	exec := execution.NewModel(execConfig(cfg), log)

	marketDim := n * provider.Lookback() * len(provider.Panel().Columns)
	var norm *obs.Normalizer
	if cfg.Train.FrozenStats != "" {
		norm, err = obs.LoadFrozen(cfg.Train.FrozenStats)
		if err != nil {
			return nil, err
		}
		if norm.Dim() != marketDim {
			return nil, &obs.ShapeError{Got: norm.Dim(), Want: marketDim}
		}
	} else {
		norm = obs.NewNormalizer(marketDim)
	}

	return &Runner{
		cfg:      cfg,
		provider: provider,
		policy:   policy,
		jnl:      jnl,
		log:      log,
		mapper:   mapper,
		guard:    guard,
		exec:     exec,
		norm:     norm,
	}, nil
}

// SetHub attaches a telemetry hub; nil disables publishing.
func (r *Runner) SetHub(h *telemetry.Hub) { r.hub = h }

// SetRecorder attaches a metrics recorder; nil disables it.
func (r *Runner) SetRecorder(rec *metrics.Recorder) { r.rec = rec }

// ObsDim is the length of the vector handed to the policy: the normalized
// market block plus the raw portfolio vector.
func (r *Runner) ObsDim() int {
	n := len(r.provider.Panel().Symbols)
	return r.norm.Dim() + 3 + n
}

// ActionDim is the raw action length the policy must emit.
func (r *Runner) ActionDim() int { return r.mapper.InputDim() }

// Run executes the episode until data exhaustion, the configured horizon,
// a terminal condition, cancellation, or an internal failure. The context
// is checked between steps only; a step in flight always settles.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	panel := r.provider.Panel()
	symbols := panel.Symbols

	res := Result{
		RunID:       id.New(),
		Status:      StatusRunning,
		StartEquity: r.cfg.Account.InitialCash,
	}
	log := r.log.With().Str("run_id", res.RunID).Logger()
	log.Info().
		Strs("symbols", symbols).
		Str("mode", r.cfg.Mapping.Mode).
		Int("lookback", r.cfg.Run.Lookback).
		Msg("episode start")

	acct := portfolio.NewAccount(r.cfg.Account.InitialCash)
	shaper := reward.NewShaper(rewardConfig(r.cfg), r.cfg.Account.InitialCash)
	volWin := obs.NewRolling(r.cfg.Reward.VolWindow)

	var allTrades []journal.TradeRecord
	prevEquity := r.cfg.Account.InitialCash

	fail := func(reason string, err error) (Result, error) {
		res.Status = StatusFailed
		res.Reason = reason
		res.EndEquity = acct.Equity()
		r.finish(&res, allTrades)
		return res, err
	}

	// Each step decides at bar d's close and settles against bar d+1.
	last := r.provider.LastIndex() - 1
	for d := r.provider.FirstIndex(); d <= last; d++ {
		if err := ctx.Err(); err != nil {
			res.Status = StatusCancelled
			res.Reason = "cancelled"
			res.EndEquity = acct.Equity()
			r.finish(&res, allTrades)
			return res, err
		}
		if r.cfg.Run.Horizon > 0 && res.Steps >= r.cfg.Run.Horizon {
			res.Reason = "horizon_reached"
			break
		}
		step := res.Steps
		started := time.Now()

		// Decision-bar marks.
		acct.MarkToMarket(marksAt(panel, d))

		w, err := r.provider.Window(d)
		if err != nil {
			return fail("data_gap", err)
		}
		w.Portfolio = market.PortfolioVector{
			CashFraction:  acct.CashFraction(),
			GrossExposure: acct.GrossExposure(),
			Drawdown:      acct.Drawdown(),
			Weights:       acct.Weights(symbols),
		}

		observation, err := r.observe(w)
		if err != nil {
			return fail("observation", err)
		}
		raw, err := r.policy.Act(observation)
		if err != nil {
			return fail("policy", err)
		}

		prev := acct.Weights(symbols)
		targets, err := r.mapper.Map(raw, prev)
		if err != nil {
			return fail("action_mapping", err)
		}

		realizedVol := volWin.Annualized(r.cfg.Run.PeriodsPerYear)
		wasHalted := r.guard.Halted()
		guarded := r.guard.PreTrade(panel.Times[d], targets, realizedVol)

		stepRes, err := r.exec.Rebalance(step, guarded, acct, panel, d+1)
		if err != nil {
			return fail("execution", err)
		}
		if err := r.journalStep(res.RunID, stepRes); err != nil {
			return fail("journal", err)
		}
		allTrades = append(allTrades, tradeRecords(res.RunID, symbols, stepRes.Trades)...)

		// Settlement-bar marks, then the books must balance.
		acct.MarkToMarket(marksAt(panel, d+1))
		if err := acct.Reconcile(); err != nil {
			log.Error().Err(err).Int("step", step).Msg("reconciliation failed")
			return fail("invariant_violation", err)
		}
		for _, sym := range symbols {
			rec := journal.MarkRecord{RunID: res.RunID, Step: step, Symbol: sym, Price: panel.Bar(sym, d+1).Close}
			if err := r.jnl.RecordMark(rec); err != nil {
				return fail("journal", err)
			}
		}

		equity := acct.Equity()
		r.guard.OnEquity(panel.Times[d+1], equity)
		if !wasHalted && r.guard.Halted() {
			log.Warn().Int("step", step).Float64("equity", equity).Msg("daily loss limit tripped, flattening")
			if r.rec != nil {
				r.rec.RecordHalt()
			}
		}

		rw, terminal := shaper.Step(reward.Inputs{
			Equity:        equity,
			Drawdown:      acct.Drawdown(),
			Turnover:      stepRes.Turnover,
			RealizedVol:   realizedVol,
			GrossExposure: acct.GrossExposure(),
		})
		if equity > 0 && prevEquity > 0 {
			volWin.Push(math.Log(equity / prevEquity))
		}
		prevEquity = equity

		snap := journal.EquitySnapshot{
			RunID:         res.RunID,
			Step:          step,
			Time:          panel.Times[d+1],
			Cash:          acct.Cash,
			Equity:        equity,
			GrossExposure: acct.GrossExposure(),
			Drawdown:      acct.Drawdown(),
			Reward:        rw,
			Halted:        r.guard.Halted(),
		}
		if err := r.jnl.RecordEquity(snap); err != nil {
			return fail("journal", err)
		}

		if r.rec != nil {
			r.rec.RecordStep(res.RunID, equity, time.Since(started).Seconds())
			for _, f := range stepRes.Fills {
				r.rec.RecordFill(f.Symbol)
			}
		}
		r.publish(res.RunID, step, acct, symbols, stepRes, rw, terminal)

		res.Equity = append(res.Equity, equity)
		res.Steps++

		if terminal != reward.TerminalNone {
			res.Reason = string(terminal)
			log.Info().Int("step", step).Str("reason", res.Reason).Msg("terminal condition")
			break
		}
	}

	if res.Reason == "" {
		res.Reason = "data_exhausted"
	}
	res.Status = StatusSucceeded
	res.EndEquity = acct.Equity()
	r.finish(&res, allTrades)

	if r.cfg.Train.StatsPath != "" && r.norm.Mode() == obs.ModeTrain {
		if err := r.norm.Save(r.cfg.Train.StatsPath); err != nil {
			return res, err
		}
	}

	log.Info().
		Int("steps", res.Steps).
		Float64("end_equity", res.EndEquity).
		Str("reason", res.Reason).
		Msg("episode done")
	return res, nil
}

// observe flattens the window symbol-major (symbol, bar, column),
// normalizes the market block, and appends the raw portfolio vector.
func (r *Runner) observe(w *market.Window) ([]float32, error) {
	raw := make([]float64, 0, r.norm.Dim())
	for _, sym := range w.Symbols {
		for _, b := range w.Bars[sym] {
			for _, col := range w.Columns {
				raw = append(raw, b.Feature(col))
			}
		}
	}
	normed, err := r.norm.Normalize(raw)
	if err != nil {
		return nil, err
	}

	out := make([]float32, 0, len(normed)+3+len(w.Portfolio.Weights))
	out = append(out, normed...)
	out = append(out,
		float32(w.Portfolio.CashFraction),
		float32(w.Portfolio.GrossExposure),
		float32(w.Portfolio.Drawdown))
	for _, wt := range w.Portfolio.Weights {
		out = append(out, float32(wt))
	}
	return out, nil
}

func (r *Runner) journalStep(runID string, s execution.StepResult) error {
	for _, o := range s.Orders {
		rec := journal.OrderRecord{
			RunID:          runID,
			OrderID:        o.ID,
			Symbol:         o.Symbol,
			Side:           string(o.Side),
			Qty:            o.Qty,
			Type:           string(o.Type),
			LimitOffsetBps: o.LimitOffsetBps,
			Step:           o.Step,
		}
		if err := r.jnl.RecordOrder(rec); err != nil {
			return err
		}
	}
	for _, f := range s.Fills {
		rec := journal.FillRecord{
			RunID:         runID,
			OrderID:       f.OrderID,
			Symbol:        f.Symbol,
			Qty:           f.Qty,
			Price:         f.Price,
			Commission:    f.Commission,
			Fee:           f.Fee,
			SlippageBps:   f.SlippageBps,
			Partial:       f.Partial,
			PartialWindow: f.PartialWindow,
			Step:          f.Step,
			Time:          f.Time,
		}
		if err := r.jnl.RecordFill(rec); err != nil {
			return err
		}
	}
	for _, t := range tradeRecords(runID, nil, s.Trades) {
		if err := r.jnl.RecordTrade(t); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) publish(runID string, step int, acct *portfolio.Account, symbols []string, s execution.StepResult, rw float64, terminal reward.Terminal) {
	if r.hub == nil {
		return
	}
	slip := 0.0
	for _, f := range s.Fills {
		slip += f.SlippageBps
	}
	if len(s.Fills) > 0 {
		slip /= float64(len(s.Fills))
	}
	r.hub.Publish(telemetry.Snapshot{
		RunID:         runID,
		Step:          step,
		Equity:        acct.Equity(),
		Cash:          acct.Cash,
		Drawdown:      acct.Drawdown(),
		GrossExposure: acct.GrossExposure(),
		Reward:        rw,
		Weights:       acct.Weights(symbols),
		Symbols:       symbols,
		Fills:         len(s.Fills),
		AvgSlippageBp: slip,
		Halted:        r.guard.Halted(),
		Terminal:      string(terminal),
	})
}

// finish computes run metrics and writes the run record. Journal errors
// here are logged, not returned; the run outcome is already decided.
func (r *Runner) finish(res *Result, trades []journal.TradeRecord) {
	res.Metrics = metrics.Compute(res.Equity, trades, r.cfg.Run.PeriodsPerYear)

	snapshot, err := r.cfg.Snapshot()
	if err != nil {
		r.log.Error().Err(err).Msg("config snapshot failed")
	}
	rec := journal.RunRecord{
		RunID:       res.RunID,
		Created:     time.Now().UTC(),
		Symbols:     strings.Join(r.provider.Panel().Symbols, ","),
		Mode:        r.cfg.Mapping.Mode,
		Status:      string(res.Status),
		Reason:      res.Reason,
		Steps:       res.Steps,
		StartEquity: res.StartEquity,
		EndEquity:   res.EndEquity,
		Config:      snapshot,
	}
	if err := r.jnl.RecordRun(rec); err != nil {
		r.log.Error().Err(err).Msg("run record failed")
	}
	if r.rec != nil {
		r.rec.RecordRunEnd(string(res.Status))
	}
}

func marksAt(panel *market.Panel, idx int) map[string]float64 {
	marks := make(map[string]float64, len(panel.Symbols))
	for _, sym := range panel.Symbols {
		marks[sym] = panel.Bar(sym, idx).Close
	}
	return marks
}

func tradeRecords(runID string, _ []string, trades []portfolio.ClosedTrade) []journal.TradeRecord {
	out := make([]journal.TradeRecord, 0, len(trades))
	for _, t := range trades {
		out = append(out, journal.TradeRecord{
			RunID:      runID,
			Symbol:     t.Symbol,
			Qty:        t.Qty,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			EntryTime:  t.EntryTime,
			ExitTime:   t.ExitTime,
			EntryStep:  t.EntryStep,
			ExitStep:   t.ExitStep,
			RealizedPL: t.RealizedPL,
		})
	}
	return out
}

func riskConfig(cfg *config.Config) risk.Config {
	rc := risk.Config{
		PerNameWeightCap:  cfg.Guards.PerNameWeightCap,
		DailyLossLimitPct: cfg.Guards.DailyLossLimitPct,
		VolTarget: risk.VolTargetConfig{
			Enabled:      cfg.Guards.VolTarget.Enabled,
			AnnualTarget: cfg.Guards.VolTarget.AnnualTarget,
			MinVol:       cfg.Guards.VolTarget.MinVol,
			ClampMin:     cfg.Guards.VolTarget.Clamp.Min,
			ClampMax:     cfg.Guards.VolTarget.Clamp.Max,
		},
	}
	switch cfg.Mapping.Mode {
	case "simplex_cash":
		rc.InvestMax = cfg.Mapping.InvestMax
	case "tanh_leverage":
		rc.GrossLeverageCap = cfg.Mapping.GrossLeverageCap
	}
	return rc
}

func execConfig(cfg *config.Config) execution.Config {
	return execution.Config{
		Policy:         execution.FillPolicy(cfg.Execution.FillPolicy),
		VWAPBars:       cfg.Execution.VWAPBars,
		UseLimitOrders: cfg.Execution.UseLimitOrders,
		LimitOffsetBps: cfg.Execution.LimitOffsetBps,
		Costs: execution.CostConfig{
			CommissionPerShare: cfg.Execution.CommissionPerShare,
			TakerFeeBps:        cfg.Execution.TakerFeeBps,
			MakerRebateBps:     cfg.Execution.MakerRebateBps,
			HalfSpreadBps:      cfg.Execution.HalfSpreadBps,
			ImpactK:            cfg.Execution.ImpactK,
			MaxParticipation:   cfg.Execution.MaxParticipation,
		},
	}
}

func rewardConfig(cfg *config.Config) reward.Config {
	return reward.Config{
		Base:       reward.Base(cfg.Reward.Base),
		WDrawdown:  cfg.Reward.WDrawdown,
		WTurnover:  cfg.Reward.WTurnover,
		WVol:       cfg.Reward.WVol,
		WLeverage:  cfg.Reward.WLeverage,
		StopEqFrac: cfg.Reward.StopEqFrac,
	}
}
