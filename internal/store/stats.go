package store

// Statistics keys, per spec.md §3. RESETTABLE keys are zeroed by
// Reset; NON-RESETTABLE keys survive it (CacheEntries, CacheSize).
const (
	StatCallsTotal                 = "CallsTotal"
	StatCallsWithoutSourceFile     = "CallsWithoutSourceFile"
	StatCallsForMultipleSourceFiles = "CallsForMultipleSourceFiles"
	StatCallsForLinking            = "CallsForLinking"
	StatCallsWithPch               = "CallsWithPch"
	StatCallsWithDebugInfo         = "CallsWithDebugInfo"
	StatCallsForPreprocessing      = "CallsForPreprocessing"
	StatCallsWithInvalidArgument   = "CallsWithInvalidArgument"

	StatCacheHits   = "CacheHits"
	StatCacheMisses = "CacheMisses"

	StatEvictedMisses       = "EvictedMisses"
	StatHeaderChangedMisses = "HeaderChangedMisses"
	StatSourceChangedMisses = "SourceChangedMisses"

	StatCacheEntries = "CacheEntries"
	StatCacheSize    = "CacheSize"
)

// resettableKeys is the RESETTABLE group from spec.md §3: everything
// except CacheEntries and CacheSize.
var resettableKeys = map[string]bool{
	StatCallsTotal:                  true,
	StatCallsWithoutSourceFile:      true,
	StatCallsForMultipleSourceFiles: true,
	StatCallsForLinking:             true,
	StatCallsWithPch:                true,
	StatCallsWithDebugInfo:          true,
	StatCallsForPreprocessing:       true,
	StatCallsWithInvalidArgument:    true,
	StatCacheHits:                   true,
	StatCacheMisses:                 true,
	StatEvictedMisses:               true,
	StatHeaderChangedMisses:         true,
	StatSourceChangedMisses:         true,
}

var nonResettableKeys = map[string]bool{
	StatCacheEntries: true,
	StatCacheSize:    true,
}

// missSubclassStats maps a miss subclass name to its counter key, used
// by RegisterMiss to also bump the CacheMisses aggregate (spec.md §4.E:
// "Register miss-X increments both the subclass counter and the
// aggregate CacheMisses").
var missSubclassStats = map[string]string{
	"evicted":        StatEvictedMisses,
	"header-changed":  StatHeaderChangedMisses,
	"source-changed":  StatSourceChangedMisses,
}

// Statistics exposes one accessor and one incrementor per counter,
// backed by a persistent Dict (spec.md §4.E).
type Statistics struct {
	dict *Dict
}

func NewStatistics(dict *Dict) *Statistics {
	return &Statistics{dict: dict}
}

func (s *Statistics) Get(key string) int64 { return s.dict.Get(key) }

func (s *Statistics) Increment(key string) int64 { return s.dict.Add(key, 1) }

func (s *Statistics) Add(key string, delta int64) int64 { return s.dict.Add(key, delta) }

func (s *Statistics) Set(key string, value int64) { s.dict.Set(key, value) }

// RegisterMiss bumps both the given miss subclass counter and the
// aggregate CacheMisses.
func (s *Statistics) RegisterMiss(subclass string) {
	if key, ok := missSubclassStats[subclass]; ok {
		s.dict.Add(key, 1)
	}
	s.dict.Add(StatCacheMisses, 1)
}

func (s *Statistics) RegisterHit() {
	s.dict.Add(StatCacheHits, 1)
}

// RegisterAnalysisError bumps CallsTotal plus the counter named by key.
func (s *Statistics) RegisterAnalysisError(key string) {
	s.dict.Add(StatCallsTotal, 1)
	s.dict.Add(key, 1)
}

// Reset zeroes only RESETTABLE keys (spec.md invariant: "Resetting
// statistics does not change CacheEntries or CacheSize").
func (s *Statistics) Reset() {
	for key := range resettableKeys {
		s.dict.Set(key, 0)
	}
}

func (s *Statistics) Close() error { return s.dict.Close() }

// AllResettableKeys is exported for the administrative "print stats" report.
func AllResettableKeys() map[string]bool { return resettableKeys }

// AllNonResettableKeys is exported for the same reason.
func AllNonResettableKeys() map[string]bool { return nonResettableKeys }
