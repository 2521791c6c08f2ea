package entities

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_EncodeDecode(t *testing.T) {
	stream := uuid.New()
	raw, err := EncodeMetadata(TipMetadata{StreamID: &stream, Message: "gg"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"tip","data":{"streamId":"`+stream.String()+`","message":"gg"}}`, string(raw))

	decoded, err := DecodeMetadata(raw)
	require.NoError(t, err)
	tip, ok := decoded.(TipMetadata)
	require.True(t, ok)
	assert.Equal(t, stream, *tip.StreamID)
	assert.Equal(t, &stream, StreamOf(decoded))

	none, err := EncodeMetadata(nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	empty, err := DecodeMetadata(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = DecodeMetadata([]byte("{"))
	assert.Error(t, err)
}

func TestMetadata_UnknownKindIsPreserved(t *testing.T) {
	decoded, err := DecodeMetadata([]byte(`{"kind":"sticker","data":{"id":7}}`))
	require.NoError(t, err)
	rawMeta, ok := decoded.(RawMetadata)
	require.True(t, ok)
	assert.Equal(t, MetadataKind("sticker"), rawMeta.Kind())

	again, err := EncodeMetadata(rawMeta)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"sticker","data":{"id":7}}`, string(again))
}

func TestDecodeMetadataFor(t *testing.T) {
	asset := uuid.New()
	m, err := DecodeMetadataFor(EntryTypePPVUnlock, json.RawMessage(`{"assetId":"`+asset.String()+`"}`))
	require.NoError(t, err)
	assert.Equal(t, UnlockMetadata{AssetID: asset}, m)
	assert.True(t, MetadataMatches(EntryTypePPVUnlock, m))
	assert.False(t, MetadataMatches(EntryTypeTip, m))
	assert.True(t, MetadataMatches(EntryTypeTip, nil))

	m, err = DecodeMetadataFor(EntryTypeGift, json.RawMessage("null"))
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = DecodeMetadataFor(EntryTypeGift, json.RawMessage(`{"giftId":12}`))
	assert.Error(t, err)

	assert.Equal(t, MetadataKindTip, MetadataKindFor(EntryTypeStreamTip))
	assert.Nil(t, StreamOf(UnlockMetadata{}))
}

func TestEntryTypeClassification(t *testing.T) {
	assert.True(t, EntryTypeGift.IsTransfer())
	assert.False(t, EntryTypeGift.IsSingleSided())
	assert.True(t, EntryTypeHoldRelease.IsSingleSided())
	assert.False(t, EntryTypeHoldRelease.IsSystemRecordable())
	assert.True(t, EntryTypeReferralBonus.IsSystemRecordable())
	assert.False(t, EntryType("bogus").IsTransfer())
}

func TestWalletAvailable(t *testing.T) {
	var w *Wallet
	assert.Zero(t, w.Available())
	assert.Equal(t, int64(60), (&Wallet{Balance: 100, HeldBalance: 40}).Available())

	e := &LedgerEntry{Amount: -5, Status: EntryStatusPending}
	assert.True(t, e.IsDebit())
	assert.False(t, e.Committed())
}

func TestKeysAndChannels(t *testing.T) {
	id := uuid.MustParse("0190a7a4-4e45-7d3c-9e6a-2b2f5c1d8e11")
	assert.Equal(t, "hold:"+id.String()+":settle", SettlementKey(id))
	assert.Equal(t, "reversal:"+id.String(), ReversalKey(id))
	assert.Equal(t, id.String()+":k1", ScopedIdempotencyKey(id, "k1"))
	assert.Equal(t, "user:"+id.String(), UserChannel(id))
	assert.Equal(t, "stream:"+id.String(), StreamChannel(id))
	assert.Equal(t, "goal:"+id.String(), GoalChannel(id))
	assert.True(t, (&Asset{CreatorID: id, Price: 10}).IsFreeFor(id))
	assert.False(t, (&Asset{CreatorID: uuid.New(), Price: 10}).IsFreeFor(id))
}
