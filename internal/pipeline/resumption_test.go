package pipeline

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qredence/skill-fleet/internal/skill"
)

func sampleResumption() *ResumptionContext {
	req := testRequirements("which Go version?")
	plan := testPlan()
	return &ResumptionContext{
		Phase: PhaseUnderstanding,
		Request: &HITLRequest{
			Kind:    HITLClarify,
			Clarify: &ClarifyPayload{Questions: []ClarifyQuestion{{ID: "q1", Question: "which Go version?"}}},
		},
		Understanding: &UnderstandingBundle{
			Requirements: &req,
			Plan:         &plan,
		},
		Style:          skill.StyleComprehensive,
		EnablePreview:  true,
		ExistingSkills: []string{"engineering/go/go-modules"},
		UserContext:    map[string]string{"team": "platform"},
	}
}

func TestResumptionRoundTrip(t *testing.T) {
	rc := sampleResumption()

	blob, err := EncodeResumption(rc)
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	decoded, err := DecodeResumption(blob)
	require.NoError(t, err)

	assert.Equal(t, rc.Phase, decoded.Phase)
	assert.Equal(t, rc.Request.Kind, decoded.Request.Kind)
	assert.Equal(t, rc.Request.Clarify.Questions, decoded.Request.Clarify.Questions)
	assert.Equal(t, rc.Understanding.Requirements.SuggestedName, decoded.Understanding.Requirements.SuggestedName)
	assert.Equal(t, rc.Understanding.Plan.SkillName, decoded.Understanding.Plan.SkillName)
	assert.Equal(t, rc.Style, decoded.Style)
	assert.True(t, decoded.EnablePreview)
	assert.Equal(t, rc.ExistingSkills, decoded.ExistingSkills)
	assert.Equal(t, rc.UserContext, decoded.UserContext)
}

func TestEncodeResumptionNil(t *testing.T) {
	_, err := EncodeResumption(nil)
	assert.Error(t, err)
}

func TestDecodeResumptionEmpty(t *testing.T) {
	_, err := DecodeResumption(nil)
	assert.Error(t, err)

	_, err = DecodeResumption([]byte{})
	assert.Error(t, err)
}

func TestDecodeResumptionChecksumMismatch(t *testing.T) {
	blob, err := EncodeResumption(sampleResumption())
	require.NoError(t, err)

	var envelope struct {
		Version  int             `json:"version"`
		Checksum string          `json:"checksum"`
		Data     json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(blob, &envelope))

	// Tamper with the payload without updating the checksum.
	tampered := bytes.Replace(envelope.Data, []byte("go-testing"), []byte("go-tempering"), 1)
	require.NotEqual(t, string(envelope.Data), string(tampered))
	envelope.Data = tampered

	corrupted, err := json.Marshal(envelope)
	require.NoError(t, err)

	_, err = DecodeResumption(corrupted)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum")
}

func TestDecodeResumptionVersionBounds(t *testing.T) {
	blob, err := EncodeResumption(sampleResumption())
	require.NoError(t, err)

	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(blob, &envelope))

	t.Run("future version", func(t *testing.T) {
		envelope["version"] = json.RawMessage("99")
		future, err := json.Marshal(envelope)
		require.NoError(t, err)

		_, err = DecodeResumption(future)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "newer")
	})

	t.Run("version zero", func(t *testing.T) {
		envelope["version"] = json.RawMessage("0")
		zero, err := json.Marshal(envelope)
		require.NoError(t, err)

		_, err = DecodeResumption(zero)
		assert.Error(t, err)
	})
}

func TestDecodeResumptionMissingRequest(t *testing.T) {
	rc := sampleResumption()
	rc.Request = nil

	blob, err := EncodeResumption(rc)
	require.NoError(t, err)

	_, err = DecodeResumption(blob)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request")
}

func TestDecodeResumptionInvalidPhase(t *testing.T) {
	rc := sampleResumption()
	rc.Phase = PhaseName("deployment")

	blob, err := EncodeResumption(rc)
	require.NoError(t, err)

	_, err = DecodeResumption(blob)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phase")
}
