package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfreebuds/freebuds-go/pkg/property"
	"github.com/openfreebuds/freebuds-go/pkg/spp"
)

func TestNoiseModeNames(t *testing.T) {
	assert.Equal(t, "off", NoiseOff.String())
	assert.Equal(t, "cancellation", NoiseCancellation.String())
	assert.Equal(t, "awareness", NoiseAwareness.String())
	assert.Equal(t, "unknown", NoiseMode(9).String())

	assert.True(t, NoiseAwareness.Valid())
	assert.False(t, NoiseMode(3).Valid())
}

func TestNoiseControlOnPackage(t *testing.T) {
	store := property.New()
	n := NewNoiseControl(newFakeRequester(), store, nil)

	pkt := spp.NewPacket(spp.CmdNoiseNotify, map[uint8][]byte{
		ParamNoiseMode: {byte(NoiseAwareness)},
	})
	require.NoError(t, n.OnPackage(context.Background(), pkt))

	assert.Equal(t, map[string]any{
		"mode":      2,
		"mode_name": "awareness",
	}, store.Namespace(NamespaceNoise))
}

func TestNoiseControlIgnoresEmptyReport(t *testing.T) {
	store := property.New()
	n := NewNoiseControl(newFakeRequester(), store, nil)

	pkt := spp.NewPacket(spp.CmdNoiseNotify, map[uint8][]byte{2: {0x01}})
	require.NoError(t, n.OnPackage(context.Background(), pkt))

	assert.Empty(t, store.Namespace(NamespaceNoise))
}

func TestNoiseControlOnInitBootstraps(t *testing.T) {
	requester := newFakeRequester()
	requester.respond(spp.CmdNoiseRead, map[uint8][]byte{
		ParamNoiseMode: {byte(NoiseCancellation)},
	})
	store := property.New()
	n := NewNoiseControl(requester, store, nil)

	require.NoError(t, n.OnInit(context.Background()))
	assert.Equal(t, 1, store.Get(NamespaceNoise, "mode", nil))
}

func TestNoiseControlSetMode(t *testing.T) {
	requester := newFakeRequester()
	requester.respond(spp.CmdNoiseSet, nil)
	requester.respond(spp.CmdNoiseRead, map[uint8][]byte{
		ParamNoiseMode: {byte(NoiseCancellation)},
	})
	store := property.New()
	n := NewNoiseControl(requester, store, nil)

	require.NoError(t, n.SetMode(context.Background(), NoiseCancellation))

	// One set command followed by a confirming read.
	require.Equal(t, 2, requester.requestCount())
	set := requester.requests[0]
	assert.Equal(t, spp.CmdNoiseSet, set.Command)
	data, ok := set.Param(ParamNoiseMode)
	require.True(t, ok)
	assert.Equal(t, []byte{byte(NoiseCancellation)}, data)
	assert.Equal(t, spp.CmdNoiseRead, requester.requests[1].Command)

	assert.Equal(t, "cancellation", store.Get(NamespaceNoise, "mode_name", nil))
}

func TestNoiseControlSetModeRejectsInvalid(t *testing.T) {
	requester := newFakeRequester()
	n := NewNoiseControl(requester, property.New(), nil)

	err := n.SetMode(context.Background(), NoiseMode(7))
	require.Error(t, err)
	assert.Zero(t, requester.requestCount())
}

func TestNoiseControlSetModeSendFailure(t *testing.T) {
	requester := newFakeRequester()
	requester.fail(assert.AnError)
	n := NewNoiseControl(requester, property.New(), nil)

	err := n.SetMode(context.Background(), NoiseOff)
	assert.ErrorIs(t, err, assert.AnError)
}
