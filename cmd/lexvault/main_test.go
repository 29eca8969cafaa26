package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alwitt/lexvault/auth"
	"github.com/alwitt/lexvault/config"
	"github.com/apex/log"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeTestConfig(t *testing.T) string {
	assert := assert.New(t)
	certFile, err := filepath.Abs("../../test/ut_rsa.crt")
	assert.Nil(err)
	keyFile, err := filepath.Abs("../../test/ut_rsa.key")
	assert.Nil(err)

	configFile := fmt.Sprintf("/tmp/lexvault_ut_%s.yaml", ulid.Make().String())
	assert.Nil(os.WriteFile(configFile, []byte(fmt.Sprintf(`
database:
  sqliteFile: /tmp/lexvault_ut_%s.db
crypto:
  primaryRSACertFile: %s
  primaryRSAKeyFile: %s
auth:
  jwtSecret: %s
audit:
  log: false
`, ulid.Make().String(), certFile, keyFile, testSecret)), 0600))
	t.Cleanup(func() { _ = os.Remove(configFile) })
	return configFile
}

func TestMigrateCommand(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)
	t.Setenv(config.JWTSecretEnvVar, "")

	configFile := writeTestConfig(t)

	cmd := newRootCommand()
	cmd.SetArgs([]string{"--config", configFile, "--log-level", "debug", "migrate"})
	assert.Nil(cmd.Execute())

	// Unknown config file
	cmd = newRootCommand()
	cmd.SetArgs([]string{"--config", configFile + ".missing", "migrate"})
	cmd.SetErr(&bytes.Buffer{})
	assert.NotNil(cmd.Execute())
}

func TestIssueTokenCommand(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)
	t.Setenv(config.JWTSecretEnvVar, "")

	configFile := writeTestConfig(t)

	output := &bytes.Buffer{}
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--config", configFile, "issue-token", "--ttl", "5m", "reviewer-1"})
	cmd.SetOut(output)
	assert.Nil(cmd.Execute())

	authn, err := auth.NewJWTAuthenticator([]byte(testSecret), "lexvault", nil)
	assert.Nil(err)
	identity, err := authn.Verify(strings.TrimSpace(output.String()))
	assert.Nil(err)
	assert.Equal("reviewer-1", identity.UserID)

	// Missing account
	cmd = newRootCommand()
	cmd.SetArgs([]string{"--config", configFile, "issue-token"})
	cmd.SetErr(&bytes.Buffer{})
	assert.NotNil(cmd.Execute())
}
