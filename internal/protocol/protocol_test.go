package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	env, err := Decode([]byte(`{"type":"produce","ack":7,"data":{"transportId":"t1","kind":"video","rtpParameters":{"codecs":[]}}}`))
	require.NoError(t, err)
	assert.Equal(t, EventProduce, env.Type)
	assert.Equal(t, uint64(7), env.Ack)

	var req ProduceRequest
	require.NoError(t, env.DecodeData(&req))
	assert.Equal(t, "t1", req.TransportID)
	assert.Equal(t, "video", req.Kind)
}

func TestDecodeRejectsMissingType(t *testing.T) {
	_, err := Decode([]byte(`{"data":{}}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{`))
	assert.Error(t, err)
}

func TestDecodeDataWithoutPayload(t *testing.T) {
	env, err := Decode([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	req := RouterCapabilitiesRequest{RoomID: "keep"}
	require.NoError(t, env.DecodeData(&req))
	assert.Equal(t, "keep", req.RoomID)
}

func TestEncodeAck(t *testing.T) {
	b, err := EncodeAck(3, ErrorResponse{Error: "transport not found"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ack","ack":3,"data":{"error":"transport not found"}}`, string(b))
}

func TestEncodeEvent(t *testing.T) {
	b, err := Encode(EventNewProducer, NewProducer{PeerID: "p1", ProducerID: "pr1", Kind: "video"})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(b, &env))
	assert.Equal(t, EventNewProducer, env.Type)
	assert.Zero(t, env.Ack)
	assert.JSONEq(t, `{"peerId":"p1","producerId":"pr1","kind":"video"}`, string(env.Data))
}

func TestConsumeRequestLegacyKey(t *testing.T) {
	var req ConsumeRequest
	require.NoError(t, json.Unmarshal([]byte(`{"trasportId":"t9","producerId":"p"}`), &req))
	assert.Equal(t, "t9", req.Transport())
}
