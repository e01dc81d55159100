package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/buildsmith/buildsmith/pkg/telemetry"
)

// ProcessOptions parameterize one processing pass.
type ProcessOptions struct {
	// Policy is the pack load policy handed to the resolver.
	Policy LoadPolicy

	// RequestedToolchain is the user's explicit toolchain request in
	// name[@version] form; it wins over any per-context outcome.
	RequestedToolchain string

	// EnforcePolicy turns pack policy violations into context failures
	// instead of warnings.
	EnforcePolicy bool

	// DeferredWarnings are messages collected before processing (such as
	// selection patterns that matched nothing) and reported after the loop.
	DeferredWarnings []string

	// Verbose reports, per component, which configuration files were
	// produced.
	Verbose bool
}

// Processor drives per-context resolution, isolating failures and
// accumulating the run state the emitter depends on.
type Processor struct {
	resolver Resolver
	policy   PolicyChecker
	tel      *telemetry.Telemetry
	log      *telemetry.Logger
}

// NewProcessor creates a processor. The policy checker may be nil when no
// pack policy is configured.
func NewProcessor(resolver Resolver, policy PolicyChecker, tel *telemetry.Telemetry) *Processor {
	return &Processor{
		resolver: resolver,
		policy:   policy,
		tel:      tel,
		log:      tel.Logger.NewComponentLogger("processor"),
	}
}

// Run visits every context in order. Unselected contexts are recorded as
// discovered but never attempted; selected contexts are attempted whether
// resolution succeeds or fails. A per-context failure is isolated, recorded
// and diagnosed, and never aborts the loop: one broken context must not
// prevent diagnosis or emission for the others.
func (p *Processor) Run(ctx context.Context, reg *Registry, names []string, opts ProcessOptions) *RunState {
	state := NewRunState()

	for _, name := range names {
		c, ok := reg.Get(name)
		if !ok {
			continue
		}

		// Every materialized context is discovered, selection aside; the
		// full index enumerates them all.
		state.All = append(state.All, c)

		if !c.Selected {
			p.log.WithBuildContext(name).Debug("context not selected, skipping")
			continue
		}

		spanCtx, span := p.tel.Tracer.StartContextSpan(ctx, name)
		start := time.Now()

		err := p.resolver.Resolve(spanCtx, c, opts.Policy)
		c.Processed = true
		state.Attempted = append(state.Attempted, c)

		if err == nil && p.policy != nil {
			err = p.checkPolicy(spanCtx, c, opts.EnforcePolicy)
		}

		if err != nil {
			c.Err = err
			state.Failed[name] = true
			telemetry.RecordError(span, err)
			span.End()
			p.tel.Metrics.RecordContextProcessed("failed", time.Since(start))
			p.log.WithBuildContext(name).WithError(err).Error("context processing failed")
			continue
		}

		telemetry.RecordSuccess(span)
		span.End()
		p.tel.Metrics.RecordContextProcessed("resolved", time.Since(start))
		p.tel.Metrics.RecordPacksResolved(len(c.Packs))
		p.tel.Metrics.RecordComponentsResolved(len(c.Components))

		if len(c.UnresolvedVariables) > 0 {
			p.log.WithBuildContext(name).Warnf("unresolved build variables: %s",
				strings.Join(c.UnresolvedVariables, ", "))
		}
		if opts.Verbose {
			p.reportConfigFiles(c)
		}
		p.log.WithBuildContext(name).Debugf("resolved %d packs, %d components",
			len(c.Packs), len(c.Components))
	}

	state.Toolchain = p.resolveRunToolchain(state, opts.RequestedToolchain)

	for _, w := range opts.DeferredWarnings {
		p.log.Warn(w)
	}

	return state
}

func (p *Processor) checkPolicy(ctx context.Context, c *Context, enforce bool) error {
	violations, err := p.policy.CheckContext(ctx, c)
	if err != nil {
		return NewResolutionError("pack policy evaluation failed", err).WithBuildContext(c.Name)
	}
	if len(violations) == 0 {
		return nil
	}
	if enforce {
		return NewResolutionError(
			fmt.Sprintf("pack policy violated: %s", strings.Join(violations, "; ")), nil,
		).WithBuildContext(c.Name)
	}
	for _, v := range violations {
		p.log.WithBuildContext(c.Name).Warnf("pack policy: %s", v)
	}
	return nil
}

func (p *Processor) reportConfigFiles(c *Context) {
	for _, comp := range c.Components {
		for _, f := range comp.ConfigFiles {
			p.log.WithBuildContext(c.Name).Infof("component %s: config file %s", comp.ID(), f)
		}
	}
}

// resolveRunToolchain computes the single run-wide toolchain value persisted
// into the selection-set artifact: the explicit request when one was given,
// otherwise the common toolchain of the successfully attempted contexts.
func (p *Processor) resolveRunToolchain(state *RunState, requested string) *ResolvedToolchain {
	if requested != "" {
		tc := ResolvedToolchain{Name: requested}
		if at := strings.LastIndex(requested, "@"); at > 0 {
			tc.Name = requested[:at]
			tc.Version = requested[at+1:]
		}
		return &tc
	}

	var common *ResolvedToolchain
	for _, c := range state.Attempted {
		if c.Failed() || c.Toolchain == nil {
			continue
		}
		if common == nil {
			common = c.Toolchain
			continue
		}
		if common.ID() != c.Toolchain.ID() {
			return nil
		}
	}
	return common
}
