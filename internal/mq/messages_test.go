package mq

import (
	"encoding/json"
	"testing"

	"Go_PanStore/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSweepEmptyBin(t *testing.T) {
	req, err := DecodeSweep([]byte(`{"kind":"empty_bin","owner_id":42}`))
	require.NoError(t, err)
	assert.Equal(t, dto.SweepKindEmptyBin, req.Kind)
	assert.Equal(t, uint64(42), req.OwnerID)
}

func TestDecodeSweepRejectsGarbage(t *testing.T) {
	_, err := DecodeSweep([]byte("not json"))
	assert.Error(t, err)
}

func TestEncodeSweepOmitsOwnerForExpired(t *testing.T) {
	body, err := EncodeSweep(dto.SweepRequest{Kind: dto.SweepKindExpired})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"expired"}`, string(body))
}

func TestTopologyBindsEveryQueue(t *testing.T) {
	queues := map[string]bool{}
	for _, b := range topology {
		queues[b.queue] = true
	}
	assert.True(t, queues[QueueSweep])
	assert.True(t, queues[QueueOrphan])
	assert.True(t, queues[QueueDLQ])
}

func TestOrphanMessageFields(t *testing.T) {
	body, err := json.Marshal(OrphanMessage{BlobKey: "files/1/x", Stage: "purge"})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"blob_key":"files/1/x"`)
	assert.Contains(t, string(body), `"stage":"purge"`)
}
