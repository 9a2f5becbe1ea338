package checkout

import (
	"github.com/streampass/streampass-backend/pkg/config"
)

// FeeSplit is the marketplace's cut of one purchase, computed up front
// from configured basis points. The processor share is an estimate until
// the gateway reports the real fee at settlement.
type FeeSplit struct {
	AmountCents       int64
	PlatformFeeCents  int64
	ProcessorFeeCents int64
}

// NetCents is what the owner keeps after both fees.
func (f FeeSplit) NetCents() int64 {
	return f.AmountCents - f.PlatformFeeCents - f.ProcessorFeeCents
}

// ComputeFeeSplit applies the configured split to the discounted amount.
// Both fee shares round down; a zero amount carries no fees at all.
func ComputeFeeSplit(cfg config.CheckoutConfig, amountCents int64) FeeSplit {
	if amountCents <= 0 {
		return FeeSplit{}
	}
	split := FeeSplit{
		AmountCents:       amountCents,
		PlatformFeeCents:  amountCents * int64(cfg.PlatformFeeBps) / 10_000,
		ProcessorFeeCents: amountCents*int64(cfg.ProcessorFeeBps)/10_000 + cfg.ProcessorFeeFixedCents,
	}
	if split.PlatformFeeCents+split.ProcessorFeeCents > split.AmountCents {
		split.ProcessorFeeCents = split.AmountCents - split.PlatformFeeCents
		if split.ProcessorFeeCents < 0 {
			split.ProcessorFeeCents = 0
			split.PlatformFeeCents = split.AmountCents
		}
	}
	return split
}
