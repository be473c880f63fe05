package entity

import (
	"strings"
	"time"
)

// FollowEdge is a directed follower -> following relation.
type FollowEdge struct {
	ID          string    `json:"id" firestore:"id"`
	FollowerID  string    `json:"follower_id" firestore:"followerId"`
	FollowingID string    `json:"following_id" firestore:"followingId"`
	CreatedAt   time.Time `json:"created_at" firestore:"createdAt"`
}

// idEscaper keeps "_" (the pair separator) and "/" (illegal in document ids)
// out of encoded identities. "~" is escaped first so decoding stays unique.
var idEscaper = strings.NewReplacer("~", "~~", "_", "~u", "/", "~s")

// pairKey joins two identities so that distinct ordered pairs never share a key.
// Identities without "~", "_" or "/" encode to themselves.
func pairKey(first, second string) string {
	return idEscaper.Replace(first) + "_" + idEscaper.Replace(second)
}

// FollowEdgeID is the deterministic document id for an ordered pair.
func FollowEdgeID(followerID, followingID string) string {
	return pairKey(followerID, followingID)
}
