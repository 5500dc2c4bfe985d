package session

// Lookup results reported to Observer.SessionLookup.
const (
	LookupHit     = "hit"
	LookupMiss    = "miss"
	LookupExpired = "expired"
	LookupError   = "error"
)

// Observer receives lifecycle events from a Manager.
// Implementations must be safe for concurrent use.
type Observer interface {
	SessionIssued()
	SessionRotated()
	SessionRevoked()
	SessionLookup(result string)
}

type nopObserver struct{}

func (nopObserver) SessionIssued()       {}
func (nopObserver) SessionRotated()      {}
func (nopObserver) SessionRevoked()      {}
func (nopObserver) SessionLookup(string) {}
