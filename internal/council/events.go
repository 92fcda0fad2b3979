package council

import (
	"time"

	"council/internal/llm"
)

// Stage1Result, Stage2Result, and Stage3Result are the per-stage result
// shapes named in spec §3; orchestrators assemble these from multiplexer
// and client output.
type Stage1Result struct {
	Model    llm.ModelID
	Response string
	Usage    *llm.Usage
}

type Stage2Result struct {
	Model         llm.ModelID
	Ranking       string
	ParsedRanking []string
}

type Stage3Result struct {
	Model               llm.ModelID
	Response            string
	Usage               *llm.Usage
	SecurityValidation  SecurityValidation
}

// SecurityValidation mirrors safety.OutputValidation's caller-facing
// fields (§4.4.6), without requiring orchestrator callers to import
// internal/safety directly for the struct shape.
type SecurityValidation struct {
	IsSafe     bool
	RiskLevel  string
	IssueCount int
}

// Stage1Event is the tagged union of events Stage1 emits, one variant per
// §6.1 wire tag.
type Stage1Event interface{ isStage1Event() }

type Stage1Token struct {
	Model   llm.ModelID
	Content string
}
type Stage1ModelComplete struct {
	Model    llm.ModelID
	Response string
	Usage    *llm.Usage
}
type Stage1ModelError struct {
	Model llm.ModelID
	Error string
}
type Stage1Timeout struct {
	Elapsed    time.Duration
	Timeout    time.Duration
	Completed  int
	Successful int
	Total      int
}
type Stage1Insufficient struct {
	Received int
	Required int
	Total    int
	Data     []Stage1Result
}
type Stage1AllComplete struct {
	Data []Stage1Result
}

func (Stage1Token) isStage1Event()          {}
func (Stage1ModelComplete) isStage1Event()  {}
func (Stage1ModelError) isStage1Event()     {}
func (Stage1Timeout) isStage1Event()        {}
func (Stage1Insufficient) isStage1Event()   {}
func (Stage1AllComplete) isStage1Event()    {}

// Stage2Event is the tagged union of events Stage2 emits.
type Stage2Event interface{ isStage2Event() }

type Stage2Token struct {
	Model   llm.ModelID
	Content string
}
type Stage2ModelComplete struct {
	Model   llm.ModelID
	Ranking string
	Usage   *llm.Usage
}
type Stage2ModelError struct {
	Model llm.ModelID
	Error string
}
type Stage2Timeout struct {
	Elapsed    time.Duration
	Timeout    time.Duration
	Completed  int
	Successful int
	Total      int
}
type Stage2Insufficient struct {
	Received     int
	Required     int
	Total        int
	Data         []Stage2Result
	LabelToModel map[string]llm.ModelID
}
type Stage2AllComplete struct {
	Data                 []Stage2Result
	LabelToModel         map[string]llm.ModelID
	AggregateRankings    []AggregateEntry
	ManipulationWarning  ManipulationWarning
}

// ManipulationWarning is the caller-facing shape of a safety.ManipulationResult.
type ManipulationWarning struct {
	Suspicious bool
	Patterns   []string
}

func (Stage2Token) isStage2Event()         {}
func (Stage2ModelComplete) isStage2Event() {}
func (Stage2ModelError) isStage2Event()    {}
func (Stage2Timeout) isStage2Event()       {}
func (Stage2Insufficient) isStage2Event()  {}
func (Stage2AllComplete) isStage2Event()   {}

// Stage3Event is the tagged union of events Stage3 emits.
type Stage3Event interface{ isStage3Event() }

type Stage3Token struct {
	Model   llm.ModelID
	Content string
}
type Stage3Truncated struct {
	Model llm.ModelID
}
type Stage3Fallback struct {
	FailedModel llm.ModelID
	NextModel   llm.ModelID
}
type Stage3Error struct {
	Model llm.ModelID
	Error string
}
type Stage3Timeout struct {
	Elapsed         time.Duration
	Timeout         time.Duration
	AttemptedModels int
}
type Stage3Complete struct {
	Data Stage3Result
}

func (Stage3Token) isStage3Event()    {}
func (Stage3Truncated) isStage3Event() {}
func (Stage3Fallback) isStage3Event() {}
func (Stage3Error) isStage3Event()    {}
func (Stage3Timeout) isStage3Event()  {}
func (Stage3Complete) isStage3Event() {}
