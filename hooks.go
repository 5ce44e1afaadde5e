package querycache

// Hooks are callbacks for high-signal cache events.
// Implementations MUST be cheap and non-blocking and MUST NOT call back into
// the Client: some hooks run while the cache lock is held.
type Hooks interface {
	// A producer call started for key.
	FetchStarted(key string)

	// A completion was ignored because it no longer matched its entry.
	// reason ∈ {"dropped", "superseded", "closed"}
	FetchDiscarded(key, reason string)

	// A producer call failed (after retries); the entry is now in error state.
	FetchFailed(key string, err error)

	// An invalidation matched entries; refetched had subscribers, dropped did not.
	Invalidated(prefix string, refetched, dropped int)

	// A mutation's write failed; no invalidation ran.
	MutationFailed(entity, op string, err error)

	// A persisted result was deleted on restore.
	// reason ∈ {"corrupt", "gen_mismatch", "value_decode"}
	SelfHeal(storageKey, reason string)

	// The provider refused or failed to persist a result.
	PersistRejected(storageKey string, err error)

	// GenStore snapshot or bump failed for scope.
	GenError(scope string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) FetchStarted(string)                  {}
func (NopHooks) FetchDiscarded(string, string)        {}
func (NopHooks) FetchFailed(string, error)            {}
func (NopHooks) Invalidated(string, int, int)         {}
func (NopHooks) MutationFailed(string, string, error) {}
func (NopHooks) SelfHeal(string, string)              {}
func (NopHooks) PersistRejected(string, error)        {}
func (NopHooks) GenError(string, error)               {}
