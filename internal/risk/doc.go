// Package risk holds the scoring formulas.
//
// Every function is pure: the same inputs always give the same score, and
// scores never decay with time. All scores are bounded to [0, 100].
package risk
