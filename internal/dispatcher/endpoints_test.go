package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyz-jphil/ccapis-proxy/internal/credential"
	"github.com/xyz-jphil/ccapis-proxy/internal/health"
)

func testDispatcher(pool *credential.Pool, monitor *health.Monitor) *Dispatcher {
	return New(credential.NewSource(pool), nil, nil, monitor, nil)
}

func TestBuildHealth_ReportsActiveCredentials(t *testing.T) {
	pool := credential.NewPool([]credential.Credential{
		{ID: "a", Flags: credential.Flags{Active: true}},
		{ID: "b", Flags: credential.Flags{Active: false}},
	})
	d := testDispatcher(pool, health.NewMonitor(health.DefaultConfig()))

	hs := d.BuildHealth()
	require.Len(t, hs.ActiveCredentials, 1)
	assert.Equal(t, "a", hs.ActiveCredentials[0])
	assert.Equal(t, 2, hs.CredentialCount)
	assert.Equal(t, "ok", hs.Status)
	assert.Equal(t, serviceName, hs.Service)
}

func TestBuildAccountHealthText_OneLinePerCredential(t *testing.T) {
	pool := credential.NewPool([]credential.Credential{
		{ID: "a", Tier: 1, Flags: credential.Flags{Active: true}},
		{ID: "b", Tier: 2, Flags: credential.Flags{Active: true}},
	})
	d := testDispatcher(pool, health.NewMonitor(health.DefaultConfig()))

	text := d.BuildAccountHealthText()
	assert.Contains(t, text, "a\tHEALTHY\tactive=true\ttier=1")
	assert.Contains(t, text, "b\tHEALTHY\tactive=true\ttier=2")
}
