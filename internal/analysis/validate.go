package analysis

import (
	"errors"
	"fmt"
	"strings"
)

var (
	errNoFactors      = errors.New("no factors in result")
	errNoInstitutions = errors.New("no institutions in result")
	errNoStrategies   = errors.New("no strategies in result")
	errEmptySummary   = errors.New("summary has neither bullish logic nor risks")
)

func validateFactors(factors []Factor) error {
	if len(factors) == 0 {
		return errNoFactors
	}
	for i := range factors {
		f := &factors[i]
		f.Title = strings.TrimSpace(f.Title)
		if f.Title == "" {
			return fmt.Errorf("factor %d has no title", i)
		}
		f.Impact = normalizeImpact(f.Impact)
		if f.Details == nil {
			f.Details = []string{}
		}
	}
	return nil
}

func normalizeImpact(impact string) string {
	switch strings.ToLower(strings.TrimSpace(impact)) {
	case ImpactHigh:
		return ImpactHigh
	case ImpactLow:
		return ImpactLow
	default:
		return ImpactMedium
	}
}

// ValidateBullish checks and normalises a bullish payload in place.
func ValidateBullish(p *BullishPayload) error {
	return validateFactors(p.Factors)
}

// ValidateBearish checks and normalises a bearish payload in place.
func ValidateBearish(p *BearishPayload) error {
	return validateFactors(p.Factors)
}

// ValidateInstitutions requires named institutions with a positive target.
func ValidateInstitutions(p *InstitutionsPayload) error {
	if len(p.Institutions) == 0 {
		return errNoInstitutions
	}
	for i := range p.Institutions {
		inst := &p.Institutions[i]
		inst.Name = strings.TrimSpace(inst.Name)
		if inst.Name == "" {
			return fmt.Errorf("institution %d has no name", i)
		}
		if inst.TargetPrice <= 0 {
			return fmt.Errorf("institution %s has no target price", inst.Name)
		}
		switch strings.ToLower(inst.Rating) {
		case RatingBullish, RatingBearish:
			inst.Rating = strings.ToLower(inst.Rating)
		default:
			inst.Rating = RatingNeutral
		}
		if inst.KeyPoints == nil {
			inst.KeyPoints = []string{}
		}
	}
	return nil
}

func ValidateAdvice(p *AdvicePayload) error {
	if len(p.Strategies) == 0 {
		return errNoStrategies
	}
	return nil
}

func ValidateSummary(p *SummaryPayload) error {
	if len(p.CoreBullishLogic) == 0 && len(p.MainRisks) == 0 {
		return errEmptySummary
	}
	return nil
}
