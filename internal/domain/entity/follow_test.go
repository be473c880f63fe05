package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFollowEdgeID(t *testing.T) {
	assert.Equal(t, "alice_bob", FollowEdgeID("alice", "bob"))
	assert.NotEqual(t, FollowEdgeID("alice", "bob"), FollowEdgeID("bob", "alice"))
	assert.NotEqual(t, FollowEdgeID("a_b", "c"), FollowEdgeID("a", "b_c"))
	assert.NotEqual(t, FollowEdgeID("a~", "b"), FollowEdgeID("a", "~b"))
}
