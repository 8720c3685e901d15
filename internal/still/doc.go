// Package still holds the single captured or ingested frame shown beside the
// live preview.
package still
