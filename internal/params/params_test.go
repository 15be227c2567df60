package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anhofmann/aicore-go/internal/capabilities"
	"github.com/anhofmann/aicore-go/internal/domain"
)

var testTable = []Entry{
	{OptionKey: "maxOutputTokens", SettingsKey: "maxTokens", OutputKey: "max_tokens"},
	{OptionKey: "temperature", SettingsKey: "temperature", OutputKey: "temperature"},
	{OptionKey: "topP", SettingsKey: "topP", OutputKey: "top_p"},
	{OptionKey: "frequencyPenalty", SettingsKey: "frequencyPenalty", OutputKey: "frequency_penalty"},
	{OptionKey: "presencePenalty", SettingsKey: "presencePenalty", OutputKey: "presence_penalty"},
	{
		SettingsKey: "n", OutputKey: "n",
		Supported: func(c capabilities.Capabilities) bool { return c.SupportsN },
	},
}

func TestBuild_CallOptionWinsOverSettings(t *testing.T) {
	out, warnings, err := Build(testTable,
		map[string]any{"maxOutputTokens": 256},
		nil,
		map[string]any{"maxTokens": 1024},
		capabilities.Capabilities{},
	)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, 256, out["max_tokens"])
	// The settings alias must not survive in the output bag.
	assert.NotContains(t, out, "maxTokens")
	assert.NotContains(t, out, "maxOutputTokens")
}

func TestBuild_ProviderOptionBeatsSettings(t *testing.T) {
	out, _, err := Build(testTable,
		nil,
		map[string]any{"temperature": 0.2},
		map[string]any{"temperature": 0.9},
		capabilities.Capabilities{},
	)
	require.NoError(t, err)
	assert.Equal(t, 0.2, out["temperature"])
}

func TestBuild_SettingsDefaultUsedWhenNothingElse(t *testing.T) {
	out, _, err := Build(testTable,
		nil, nil,
		map[string]any{"topP": 0.5},
		capabilities.Capabilities{},
	)
	require.NoError(t, err)
	assert.Equal(t, 0.5, out["top_p"])
	assert.NotContains(t, out, "topP")
}

func TestBuild_UnknownKeysPassThrough(t *testing.T) {
	out, _, err := Build(testTable,
		nil,
		map[string]any{"logit_bias": map[string]any{"50256": -100}},
		map[string]any{"user": "abc"},
		capabilities.Capabilities{},
	)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"50256": -100}, out["logit_bias"])
	assert.Equal(t, "abc", out["user"])
}

func TestBuild_OutOfRangeWarnsButForwards(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]any
		param   string
	}{
		{"temperature above 2", map[string]any{"temperature": 3.0}, "temperature"},
		{"negative temperature", map[string]any{"temperature": -0.1}, "temperature"},
		{"topP above 1", map[string]any{"topP": 1.5}, "topP"},
		{"penalty below -2", map[string]any{"frequencyPenalty": -3.0}, "frequencyPenalty"},
		{"zero max tokens", map[string]any{"maxOutputTokens": 0}, "maxOutputTokens"},
		{"fractional max tokens", map[string]any{"maxOutputTokens": 1.5}, "maxOutputTokens"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, warnings, err := Build(testTable, tt.options, nil, nil, capabilities.Capabilities{})
			require.NoError(t, err)
			require.Len(t, warnings, 1)
			assert.Equal(t, domain.WarningParamOutOfRange, warnings[0].Kind)
			assert.Equal(t, tt.param, warnings[0].Param)
			// Forwarded regardless: the remote API is authoritative.
			assert.NotEmpty(t, out)
		})
	}
}

func TestBuild_CapabilityGatedParamOmitted(t *testing.T) {
	out, warnings, err := Build(testTable,
		nil, nil,
		map[string]any{"n": 3},
		capabilities.Capabilities{SupportsN: false},
	)
	require.NoError(t, err)
	assert.NotContains(t, out, "n")
	require.Len(t, warnings, 1)
	assert.Equal(t, domain.WarningUnsupportedParam, warnings[0].Kind)
	assert.Equal(t, "n", warnings[0].Param)
}

func TestBuild_CapabilityGatedParamForwardedWhenSupported(t *testing.T) {
	out, warnings, err := Build(testTable,
		nil, nil,
		map[string]any{"n": 3},
		capabilities.Capabilities{SupportsN: true},
	)
	require.NoError(t, err)
	assert.Equal(t, 3, out["n"])
	assert.Empty(t, warnings)
}
