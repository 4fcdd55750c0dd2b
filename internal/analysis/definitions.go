package analysis

import (
	"context"
	"time"

	"github.com/aristath/aurum/internal/artifact"
	"github.com/aristath/aurum/internal/cache"
)

const (
	primaryTemperature   = 0.3
	secondaryTemperature = 0.7
	maxTokens            = 4096
)

// Deps wires the definitions to their context and storage.
type Deps struct {
	Context      *ContextBuilder
	Factors      *FactorRepository
	Institutions *InstitutionRepository
	Producer     artifact.Deps
}

func options(webSearch bool) artifact.Options {
	return artifact.Options{
		System:              systemPrompt,
		Temperature:         primaryTemperature,
		FallbackTemperature: secondaryTemperature,
		MaxTokens:           maxTokens,
		WebSearch:           webSearch,
	}
}

func stamp(s *string) {
	if *s == "" {
		*s = time.Now().Format(lastUpdatedLayout)
	}
}

// BullishDefinition produces bullish_factors.
func BullishDefinition(d Deps) artifact.Definition[BullishPayload] {
	return artifact.Definition[BullishPayload]{
		Kind:         KindBullish,
		Key:          cache.KeyBullishFactors,
		BuildContext: d.Context.Market,
		Prompt:       bullishPrompt,
		Validate: func(p *BullishPayload) error {
			stamp(&p.LastUpdated)
			return ValidateBullish(p)
		},
		Persist: func(ctx context.Context, p *BullishPayload) error {
			return d.Factors.Upsert(ctx, FactorBullish, p.Factors)
		},
		Default: DefaultBullish,
		Options: options(true),
	}
}

// BearishDefinition produces bearish_factors.
func BearishDefinition(d Deps) artifact.Definition[BearishPayload] {
	return artifact.Definition[BearishPayload]{
		Kind:         KindBearish,
		Key:          cache.KeyBearishFactors,
		BuildContext: d.Context.Market,
		Prompt:       bearishPrompt,
		Validate: func(p *BearishPayload) error {
			stamp(&p.LastUpdated)
			return ValidateBearish(p)
		},
		Persist: func(ctx context.Context, p *BearishPayload) error {
			return d.Factors.Upsert(ctx, FactorBearish, p.Factors)
		},
		Default: DefaultBearish,
		Options: options(true),
	}
}

// InstitutionsDefinition produces institution_predictions.
func InstitutionsDefinition(d Deps) artifact.Definition[InstitutionsPayload] {
	return artifact.Definition[InstitutionsPayload]{
		Kind:         KindInstitutions,
		Key:          cache.KeyInstitutions,
		BuildContext: d.Context.Market,
		Prompt:       institutionsPrompt,
		Validate: func(p *InstitutionsPayload) error {
			stamp(&p.LastUpdated)
			return ValidateInstitutions(p)
		},
		Persist: func(ctx context.Context, p *InstitutionsPayload) error {
			return d.Institutions.Upsert(ctx, p.Institutions)
		},
		Default: DefaultInstitutions,
		Options: options(true),
	}
}

// AdviceDefinition produces investment_advice from the market and the other views.
func AdviceDefinition(d Deps) artifact.Definition[AdvicePayload] {
	return artifact.Definition[AdvicePayload]{
		Kind:         KindAdvice,
		Key:          cache.KeyInvestmentAdvice,
		BuildContext: d.Context.Dependent,
		Prompt:       advicePrompt,
		Validate:     ValidateAdvice,
		Default:      DefaultAdvice,
		Options:      options(false),
	}
}

// SummaryDefinition produces market_summary from the market and the other views.
func SummaryDefinition(d Deps) artifact.Definition[SummaryPayload] {
	return artifact.Definition[SummaryPayload]{
		Kind:         KindSummary,
		Key:          cache.KeyMarketSummary,
		BuildContext: d.Context.Dependent,
		Prompt:       summaryPrompt,
		Validate:     ValidateSummary,
		Default:      DefaultSummary,
		Options:      options(false),
	}
}

// Registry holds one runner per artifact kind in dependency order.
type Registry struct {
	order  []artifact.Runner
	byKind map[string]artifact.Runner
}

// NewRegistry builds the producers for all five artifacts. The order is the
// one the scheduled refresh uses: advice and summary read the first three.
func NewRegistry(d Deps) *Registry {
	return newRegistry(
		artifact.NewProducer(BullishDefinition(d), d.Producer),
		artifact.NewProducer(BearishDefinition(d), d.Producer),
		artifact.NewProducer(InstitutionsDefinition(d), d.Producer),
		artifact.NewProducer(AdviceDefinition(d), d.Producer),
		artifact.NewProducer(SummaryDefinition(d), d.Producer),
	)
}

func newRegistry(runners ...artifact.Runner) *Registry {
	r := &Registry{byKind: make(map[string]artifact.Runner, len(runners))}
	for _, run := range runners {
		r.order = append(r.order, run)
		r.byKind[run.Kind()] = run
	}
	return r
}

// Get returns the runner for kind.
func (r *Registry) Get(kind string) (artifact.Runner, bool) {
	run, ok := r.byKind[kind]
	return run, ok
}

// All returns the runners in dependency order.
func (r *Registry) All() []artifact.Runner {
	out := make([]artifact.Runner, len(r.order))
	copy(out, r.order)
	return out
}

// Kinds lists the registered kinds in dependency order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, len(r.order))
	for i, run := range r.order {
		kinds[i] = run.Kind()
	}
	return kinds
}

// InstitutionsTier serves institution views straight from the store when at
// least minRows rows were updated within window.
func InstitutionsTier(repo *InstitutionRepository, window time.Duration, minRows int) func(ctx context.Context) (interface{}, bool) {
	return func(ctx context.Context) (interface{}, bool) {
		views, err := repo.UpdatedSince(ctx, repo.now().Add(-window))
		if err != nil || len(views) < minRows {
			return nil, false
		}
		return InstitutionsPayload{
			Institutions:    views,
			AnalysisSummary: "基于数据库中最近更新的机构预测",
			LastUpdated:     repo.now().Format(lastUpdatedLayout),
		}, true
	}
}
