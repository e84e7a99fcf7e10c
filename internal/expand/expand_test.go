package expand

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnv(t *testing.T) {
	env := map[string]string{"HOST": "node-1", "PORT": "1094"}
	prev := LookupFunc
	LookupFunc = func(key string) string { return env[key] }
	defer func() { LookupFunc = prev }()

	var testCases = []struct {
		description string
		input       string
		expect      string
	}{
		{description: "plain", input: "host: localhost", expect: "host: localhost"},
		{description: "single", input: "host: ${env.HOST}", expect: "host: node-1"},
		{description: "multiple", input: "${env.HOST}:${env.PORT}/${env.HOST}", expect: "node-1:1094/node-1"},
		{description: "unset", input: "x${env.MISSING}y", expect: "xy"},
		{description: "unterminated", input: "host: ${env.HOST", expect: "host: ${env.HOST"},
		{description: "invalid name", input: "${env.A-B}", expect: "${env.A-B}"},
		{description: "nested after invalid", input: "${env.${env.HOST}}", expect: "${env.node-1}"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			assert.Equal(t, testCase.expect, Env(testCase.input))
		})
	}
}
