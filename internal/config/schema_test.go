// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classgate/classgate/pkg/errutil"
)

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, SchemaID, doc["$id"])
	assert.Equal(t, "ClassGate Configuration", doc["title"])
	assert.Equal(t, []any{"version"}, doc["required"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"version", "http", "observability", "log", "database", "session", "notify", "auth"} {
		assert.Contains(t, props, key)
	}

	session := props["session"].(map[string]any)["properties"].(map[string]any)
	idle := session["idle_timeout"].(map[string]any)
	assert.Equal(t, "string", idle["type"])
}

func TestValidateYAML(t *testing.T) {
	valid := map[string]string{
		"minimal": `version: "1.0.0"`,
		"full sections": `
version: "1.0.0"
log: {format: text, level: debug}
notify:
  driver: smtp
  smtp: {host: mail.example.com, port: 2525, from: noreply@example.com, tls: none, timeout: 3s}
auth:
  argon2: {time: 2, memory: 19456, threads: 1}
`,
	}
	for name, doc := range valid {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, ValidateYAML([]byte(doc)))
		})
	}

	invalid := map[string]string{
		"missing version":  `http: {addr: ":80"}`,
		"unknown key":      "version: \"1.0.0\"\nbogus: true\n",
		"bad enum":         "version: \"1.0.0\"\nlog: {format: xml}\n",
		"numeric duration": "version: \"1.0.0\"\nauth: {challenge_ttl: 300}\n",
		"port range":       "version: \"1.0.0\"\nnotify: {smtp: {port: 70000}}\n",
	}
	for name, doc := range invalid {
		t.Run(name, func(t *testing.T) {
			err := ValidateYAML([]byte(doc))
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "CONFIG_SCHEMA_INVALID")
		})
	}

	t.Run("empty", func(t *testing.T) {
		errutil.AssertErrorCode(t, ValidateYAML([]byte("  \n")), "CONFIG_EMPTY")
	})

	t.Run("not yaml", func(t *testing.T) {
		errutil.AssertErrorCode(t, ValidateYAML([]byte("version: [unclosed")), "CONFIG_PARSE_FAILED")
	})
}
