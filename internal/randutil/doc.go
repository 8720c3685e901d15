// Package randutil holds the small numeric and formatting helpers shared by
// the synthetic producers. The helpers are pure; randomness comes from an
// injected Source so tests can pin a seed.
package randutil
