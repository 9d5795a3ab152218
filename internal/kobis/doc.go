// Package kobis is a small client for the Korean Film Council open API.
//
// It covers the three endpoints the pipeline needs: title details
// (searchMovieInfo), the weekly box office report (searchWeeklyBoxOfficeList),
// and the paged title list (searchMovieList). Every error it returns carries a
// services marker: the documented quota fault becomes ErrQuotaExhausted,
// throttling, server errors, and network timeouts become ErrTransient, and
// everything else is ErrPermanent. The client performs exactly one HTTP
// request per call; retries and budgeting belong to the fetcher.
package kobis
