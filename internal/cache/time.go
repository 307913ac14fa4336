package cache

// TimeProvider returns the current epoch second. Abstracted so
// that tests can drive caches and the battle scheduler through a
// deterministic clock rather than `time.Now`, per the Battle
// Scheduler's configured `TimeProvider` dependency.
type TimeProvider func() int64
