package session

// Outcome is the routing decision for one inbound message.
type Outcome int

const (
	// OutcomeCorrelated: the message named a live session.
	OutcomeCorrelated Outcome = iota
	// OutcomeFallback: single-tenant mode picked the most recent session.
	OutcomeFallback
	// OutcomeUndelivered: nothing to deliver to. Accepted, not an error.
	OutcomeUndelivered
	// OutcomeRejected: sessions exist but the message cannot be attributed
	// to one of them.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCorrelated:
		return "correlated"
	case OutcomeFallback:
		return "fallback"
	case OutcomeUndelivered:
		return "undelivered"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Delivered reports whether the outcome carries a handle.
func (o Outcome) Delivered() bool {
	return o == OutcomeCorrelated || o == OutcomeFallback
}

type Router struct {
	registry     *Registry
	singleTenant bool
}

// NewRouter builds a router over registry. With singleTenant set, messages
// lacking a usable session id go to the most recent session instead of being
// rejected.
func NewRouter(registry *Registry, singleTenant bool) *Router {
	return &Router{registry: registry, singleTenant: singleTenant}
}

func (rt *Router) SingleTenant() bool { return rt.singleTenant }

// Route selects the handle for a message carrying sessionID, which may be
// empty. The handle is nil unless the outcome is delivered.
func (rt *Router) Route(sessionID string) (Handle, Outcome) {
	if rt.registry.Len() == 0 {
		return nil, OutcomeUndelivered
	}
	if sessionID != "" {
		if h, ok := rt.registry.Lookup(sessionID); ok {
			return h, OutcomeCorrelated
		}
	}
	if rt.singleTenant {
		if h, ok := rt.registry.MostRecent(); ok {
			return h, OutcomeFallback
		}
		return nil, OutcomeUndelivered
	}
	if sessionID == "" {
		return nil, OutcomeRejected
	}
	// A named session that is gone most likely just disconnected.
	return nil, OutcomeUndelivered
}
