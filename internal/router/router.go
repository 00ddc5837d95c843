package router

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"selene/internal/config"
	"selene/internal/logging"
	"selene/internal/provider"
)

// Router produces one Decision per inbound message.
type Router struct {
	cfg        config.RouterConfig
	classifier *remoteClassifier
}

// New creates a Router. client may be nil; the keyword classifier and the
// factual fallback then carry classification alone.
func New(cfg config.RouterConfig, client provider.Client, classifierModel string) *Router {
	return &Router{
		cfg: cfg,
		classifier: newRemoteClassifier(
			client,
			classifierModel,
			cfg.GetClassifierTimeout(),
			cfg.GetCacheTTL(),
			cfg.CacheKeyLength,
			cfg.SweepDenominator,
		),
	}
}

// Route classifies a message and emits the routing decision.
// Order is strict: greeting suppression, hard escalation, intent
// classification, independent freshness/risk analysis, route matrix.
func (r *Router) Route(ctx context.Context, message string, _ Context) *Decision {
	start := time.Now()
	timer := logging.StartTimer(logging.CategoryRouter, "Router.Route")
	defer timer.Stop()

	decision := r.route(ctx, message)
	decision.DecisionTimeMs = time.Since(start).Milliseconds()

	logging.Router("decision: %s", decision)
	return decision
}

func (r *Router) route(ctx context.Context, message string) *Decision {
	greeting := isShortGreeting(message)

	// 1. Hard escalation, suppressed for short greetings so "how are you
	// today" does not escalate on "today".
	if !greeting {
		if matched := matchEscalation(message); len(matched) > 0 {
			logging.RouterDebug("hard escalation: %v", matched)
			return escalated(SourceHardRule, matched)
		}
	}

	// 2. Intent classification: keyword first, remote below threshold.
	cls := classifyKeywords(message)
	if cls.confidence < r.cfg.ConfidenceThreshold {
		logging.RouterDebug("keyword confidence %.2f below %.2f, deferring to remote classifier",
			cls.confidence, r.cfg.ConfidenceThreshold)
		cls = r.classifier.classify(ctx, message)
	}

	// 3. Freshness and risk run independently over the raw message.
	var fresh bool
	var risk Risk
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		fresh = needsFreshData(message)
		return nil
	})
	g.Go(func() error {
		risk = assessRisk(message)
		return nil
	})
	_ = g.Wait() // both branches are infallible

	// 4. Route decision matrix, first match wins.
	return r.applyMatrix(cls, fresh, risk)
}

// applyMatrix applies the ordered route decision matrix.
func (r *Router) applyMatrix(cls classification, fresh bool, risk Risk) *Decision {
	d := &Decision{
		Class:           cls.class,
		NeedsFreshData:  fresh,
		RiskIfWrong:     risk,
		DecisionSource:  cls.source,
		MatchedPatterns: cls.matched,
	}

	switch {
	case risk == RiskHigh:
		d.Route, d.ConfidenceRequired, d.NeedsTools = RouteProTools, ConfidenceVerified, true
	case cls.class == ClassActionable && fresh:
		d.Route, d.ConfidenceRequired, d.NeedsTools = RouteProTools, ConfidenceVerified, true
	case cls.class == ClassActionable:
		d.Route, d.ConfidenceRequired, d.NeedsTools = RouteProTools, ConfidenceVerified, true
	case cls.class == ClassFactual && fresh:
		d.Route, d.ConfidenceRequired, d.NeedsTools = RouteProTools, ConfidenceVerified, true
	case risk == RiskMedium:
		d.Route, d.ConfidenceRequired = RoutePro, ConfidenceEstimate
	case cls.confidence < 0.6:
		d.Route, d.ConfidenceRequired = RoutePro, ConfidenceEstimate
	case cls.class == ClassChat:
		d.Route, d.ConfidenceRequired = RouteNano, ConfidenceEstimate
	case cls.class == ClassTransform:
		d.Route, d.ConfidenceRequired = RouteNano, ConfidenceEstimate
	case cls.class == ClassFactual:
		d.Route, d.ConfidenceRequired = RoutePro, ConfidenceEstimate
	default:
		// Fail-safe: unknown combinations get the capable tier.
		d.Route, d.ConfidenceRequired = RoutePro, ConfidenceEstimate
		d.DecisionSource = SourceFailSafe
	}

	return d
}

// QuickRoute replicates hard escalation and the obvious high/low risk
// checks without any network call. Returns nil when full analysis is
// required.
func (r *Router) QuickRoute(message string) *Decision {
	greeting := isShortGreeting(message)

	if !greeting {
		if matched := matchEscalation(message); len(matched) > 0 {
			d := escalated(SourceHardRule, matched)
			return d
		}
		if assessRisk(message) == RiskHigh {
			d := escalated(SourceQuickRule, nil)
			d.Class = ClassFactual
			return d
		}
	}

	if greeting {
		return &Decision{
			Class:              ClassChat,
			RiskIfWrong:        RiskLow,
			ConfidenceRequired: ConfidenceEstimate,
			Route:              RouteNano,
			DecisionSource:     SourceQuickRule,
		}
	}

	return nil
}
