package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChannelState(t *testing.T) {
	u := newTestUser(1, "alice")
	c := newChannel("#test", u)

	assert.True(t, c.checkMode('t'), "new channels start topic protected")
	assert.True(t, c.hasOps(u))
	assert.True(t, c.hasMember(u))
	assert.Equal(t, -1, c.UserLimit)
	assert.Equal(t, c, u.Channels["#test"])
}

func TestChannelDerivedOperMode(t *testing.T) {
	alice := newTestUser(1, "alice")
	c := newChannel("#test", alice)

	assert.True(t, c.checkMode('o'))
	assert.Equal(t, "+to", c.modesString())

	c.setMode('i', true)
	c.setKey("secret")
	c.setUserLimit(5)
	assert.Equal(t, "+itklo", c.modesString())

	c.removeKey()
	c.removeUserLimit()
	assert.Equal(t, "+ito", c.modesString())
	assert.Equal(t, -1, c.UserLimit)
	assert.False(t, c.checkMode('l'))
}

func TestChannelSetModeReportsChange(t *testing.T) {
	c := newChannel("#test", newTestUser(1, "alice"))

	assert.False(t, c.setMode('t', true), "t already set")
	assert.True(t, c.setMode('t', false))
	assert.True(t, c.setMode('i', true))
	assert.False(t, c.setMode('i', true))
}

func TestChannelOperatorPromotion(t *testing.T) {
	alice := newTestUser(1, "alice")
	carol := newTestUser(2, "carol")
	bob := newTestUser(3, "bob")

	c := newChannel("#test", alice)
	c.addMember(carol)
	c.addMember(bob)

	require.True(t, c.hasOps(alice))
	require.False(t, c.hasOps(carol))
	require.False(t, c.hasOps(bob))

	// Removing the only operator promotes the member with the
	// smallest nick.
	c.removeMember(alice)
	assert.True(t, c.hasOps(bob))
	assert.False(t, c.hasOps(carol))

	c.removeOps(bob)
	assert.True(t, c.hasOps(bob), "sole candidate gets re-promoted")
}

func TestChannelAddMemberConsumesInvite(t *testing.T) {
	alice := newTestUser(1, "alice")
	bob := newTestUser(2, "bob")

	c := newChannel("#test", alice)
	c.invite(bob)
	require.True(t, c.isInvited(bob))

	c.addMember(bob)
	assert.False(t, c.isInvited(bob))
	assert.True(t, c.hasMember(bob))
	assert.False(t, c.hasOps(bob), "channel already had an operator")
}

func TestChannelNamesList(t *testing.T) {
	alice := newTestUser(1, "alice")
	bob := newTestUser(2, "bob")
	carol := newTestUser(3, "carol")

	c := newChannel("#test", alice)
	c.addMember(carol)
	c.addMember(bob)
	c.grantOps(carol)

	assert.Equal(t, "@alice @carol bob", c.namesList())
}

func TestChannelGrantOpsNonMember(t *testing.T) {
	alice := newTestUser(1, "alice")
	bob := newTestUser(2, "bob")

	c := newChannel("#test", alice)
	c.grantOps(bob)
	assert.False(t, c.hasOps(bob))
}
