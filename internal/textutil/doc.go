// Package textutil provides text normalization helpers for names, labels, and
// digit-bearing upstream fields.
//
// Name keys are produced with Unicode NFKC normalization followed by case
// folding and whitespace collapsing, so fullwidth forms, letter case, and
// irregular spacing do not produce distinct keys.
package textutil
