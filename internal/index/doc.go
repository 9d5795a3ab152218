// Package index derives the read-only search artifacts from the detail cache.
//
// A Builder makes one pass over the cache, feeding every readable record into
// an Accumulator owned by that build. The accumulator produces the movie index
// (one row per title, ordered by release date with undated titles first) and
// the person index (one row per contributor key with a newest-first
// filmography). Both documents are written atomically; a build that found no
// usable records leaves previously published files untouched.
package index
