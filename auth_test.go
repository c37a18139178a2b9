package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/onedrive-kb/internal/authbroker"
	"github.com/tonimelisma/onedrive-kb/internal/graph"
	"github.com/tonimelisma/onedrive-kb/internal/identity"
)

var testAccounts = []identity.Account{
	{Username: "alice@contoso.com", TokenPath: "/t/alice@contoso.com.json"},
	{Username: "bob@contoso.com", TokenPath: "/t/bob@contoso.com.json"},
}

func TestSelectAccount(t *testing.T) {
	acc, err := selectAccount(testAccounts, "")
	require.NoError(t, err)
	assert.Equal(t, "alice@contoso.com", acc.Username)

	acc, err = selectAccount(testAccounts, "BOB@contoso.com")
	require.NoError(t, err)
	assert.Equal(t, "bob@contoso.com", acc.Username)

	_, err = selectAccount(testAccounts, "carol@contoso.com")
	assert.ErrorIs(t, err, identity.ErrUnknownAccount)

	_, err = selectAccount(nil, "")
	assert.ErrorIs(t, err, authbroker.ErrNoAccount)
}

func TestWhoamiOutput_MarksActiveAccount(t *testing.T) {
	user := &graph.User{ID: "u1", DisplayName: "Bob", Email: "bob@contoso.com"}

	out := newWhoamiOutput(user, testAccounts, testAccounts[1])

	assert.Equal(t, whoamiUser{ID: "u1", DisplayName: "Bob", Email: "bob@contoso.com"}, out.User)
	require.Len(t, out.Accounts, 2)
	assert.False(t, out.Accounts[0].Active)
	assert.True(t, out.Accounts[1].Active)
}

func TestPrintWhoamiText(t *testing.T) {
	user := &graph.User{ID: "u1", DisplayName: "Alice", Email: "alice@contoso.com"}

	var single bytes.Buffer
	printWhoamiText(&single, user, testAccounts[:1], testAccounts[0])
	assert.Equal(t, "User:  Alice (alice@contoso.com)\nID:    u1\n", single.String())

	var several bytes.Buffer
	printWhoamiText(&several, user, testAccounts, testAccounts[0])
	assert.Contains(t, several.String(), "  * alice@contoso.com\n")
	assert.Contains(t, several.String(), "    bob@contoso.com\n")
}
