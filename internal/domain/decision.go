package domain

import "time"

// IsNewerPost decides whether a candidate post is newer than a subscription's
// last announced one. Equal timestamps with a different URI count as newer:
// some platforms have coarse timestamp resolution and distinct posts can
// share a timestamp.
func IsNewerPost(lastURI string, lastTS *time.Time, candidateURI string, candidateTS time.Time) bool {
	if lastTS == nil {
		return false
	}
	if candidateTS.After(*lastTS) {
		return true
	}
	return candidateTS.Equal(*lastTS) && NormalizeURI(candidateURI) != NormalizeURI(lastURI)
}
