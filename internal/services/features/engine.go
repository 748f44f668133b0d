package features

import "OptionsOracle/internal/domain/models"

// Inputs is everything one scoring pass reads.
type Inputs struct {
	Prices        []float64
	Participation float64
	VolStatus     models.VolStatus
	VWAPBullish   bool
	OptionLtp     []models.PricePoint
	Depth         []models.DepthPoint
}

// Scores is the output of one scoring pass.
type Scores struct {
	RSI           float64 `json:"rsi"`
	MACrossover   float64 `json:"ma_crossover"`
	HV            float64 `json:"hv"`
	VolumeImpulse float64 `json:"volume_impulse"`
	IVS           float64 `json:"ivs"`
	LMS           float64 `json:"lms"`
	PDR           float64 `json:"pdr"`
	Leading       float64 `json:"leading"`
	Lagging       float64 `json:"lagging"`
	Combined      float64 `json:"combined"`
}

type EngineOption func(*Engine)

func WithRSIPeriod(n int) EngineOption { return func(e *Engine) { e.rsiPeriod = n } }

func WithMAPeriods(fast, slow int) EngineOption {
	return func(e *Engine) { e.fast, e.slow = fast, slow }
}

func WithHVPeriod(n int) EngineOption { return func(e *Engine) { e.hvPeriod = n } }

// Engine runs the full metrics layer over a snapshot view.
type Engine struct {
	rsiPeriod int
	fast      int
	slow      int
	hvPeriod  int
	impulseN  int
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		rsiPeriod: DefaultRSIPeriod,
		fast:      DefaultFastMA,
		slow:      DefaultSlowMA,
		hvPeriod:  DefaultHVPeriod,
		impulseN:  5,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Evaluate(in Inputs) Scores {
	var s Scores
	s.RSI = RSI(in.Prices, e.rsiPeriod)
	s.MACrossover = MACrossover(in.Prices, e.fast, e.slow)
	s.HV = HistoricalVolatility(in.Prices, e.hvPeriod)
	s.VolumeImpulse = Impulse(in.Prices, e.impulseN)
	s.IVS = IVSStub()
	s.LMS = LMSScore(in.Depth)
	s.PDR = PDRPenalty(in.OptionLtp)

	part := in.Participation
	s.Leading = LeadingScore(LeadingInputs{
		VixMomentum:   in.VolStatus,
		Participation: &part,
		VolumeImpulse: &s.VolumeImpulse,
		IVS:           &s.IVS,
		LMS:           &s.LMS,
		VWAPBullish:   in.VWAPBullish,
	})
	hv := min(11, s.HV)
	s.Lagging = LaggingScore(&s.RSI, s.MACrossover > 0.5, &hv)
	s.Combined = CombinedScore(s.Leading, s.Lagging, s.PDR)
	return s
}
