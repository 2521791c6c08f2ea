package entities

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MetadataKind discriminates the metadata payload stored with an entry
type MetadataKind string

const (
	MetadataKindTip        MetadataKind = "tip"
	MetadataKindGift       MetadataKind = "gift"
	MetadataKindUnlock     MetadataKind = "unlock"
	MetadataKindMessage    MetadataKind = "message"
	MetadataKindPayout     MetadataKind = "payout"
	MetadataKindReferral   MetadataKind = "referral"
	MetadataKindFreeAccess MetadataKind = "free_access"
	MetadataKindHold       MetadataKind = "hold"
	MetadataKindReversal   MetadataKind = "reversal"
	MetadataKindAdjustment MetadataKind = "adjustment"
)

// Metadata is the typed, per-entry-type payload of a ledger entry.
// Only fields that are never queried live here.
type Metadata interface {
	Kind() MetadataKind
}

type TipMetadata struct {
	StreamID *uuid.UUID `json:"streamId,omitempty"`
	GoalID   *uuid.UUID `json:"goalId,omitempty"`
	Message  string     `json:"message,omitempty"`
}

func (TipMetadata) Kind() MetadataKind { return MetadataKindTip }

type GiftMetadata struct {
	GiftID   string     `json:"giftId"`
	StreamID *uuid.UUID `json:"streamId,omitempty"`
	Quantity int        `json:"quantity,omitempty"`
}

func (GiftMetadata) Kind() MetadataKind { return MetadataKindGift }

type UnlockMetadata struct {
	AssetID uuid.UUID `json:"assetId"`
}

func (UnlockMetadata) Kind() MetadataKind { return MetadataKindUnlock }

type MessageMetadata struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId,omitempty"`
}

func (MessageMetadata) Kind() MetadataKind { return MetadataKindMessage }

type PayoutMetadata struct {
	PayoutRef string `json:"payoutRef"`
}

func (PayoutMetadata) Kind() MetadataKind { return MetadataKindPayout }

type ReferralMetadata struct {
	ReferredUserID uuid.UUID `json:"referredUserId"`
}

func (ReferralMetadata) Kind() MetadataKind { return MetadataKindReferral }

type FreeAccessMetadata struct {
	AssetID uuid.UUID `json:"assetId"`
	Reason  string    `json:"reason"`
}

func (FreeAccessMetadata) Kind() MetadataKind { return MetadataKindFreeAccess }

type HoldMetadata struct {
	Purpose   string    `json:"purpose,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (HoldMetadata) Kind() MetadataKind { return MetadataKindHold }

type ReversalMetadata struct {
	OriginalTransactionID uuid.UUID `json:"originalTransactionId"`
	Reason                string    `json:"reason,omitempty"`
	ActorID               uuid.UUID `json:"actorId"`
}

func (ReversalMetadata) Kind() MetadataKind { return MetadataKindReversal }

type AdjustmentMetadata struct {
	Note string `json:"note,omitempty"`
}

func (AdjustmentMetadata) Kind() MetadataKind { return MetadataKindAdjustment }

// RawMetadata keeps payloads of kinds this build does not know about
type RawMetadata struct {
	RawKind MetadataKind    `json:"-"`
	Data    json.RawMessage `json:"data"`
}

func (m RawMetadata) Kind() MetadataKind { return m.RawKind }

type metadataEnvelope struct {
	Kind MetadataKind    `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// EncodeMetadata serializes metadata into its tagged envelope. Nil encodes to nil.
func EncodeMetadata(m Metadata) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	var data []byte
	var err error
	if raw, ok := m.(RawMetadata); ok {
		data = raw.Data
	} else {
		data, err = json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s metadata: %w", m.Kind(), err)
		}
	}
	return json.Marshal(metadataEnvelope{Kind: m.Kind(), Data: data})
}

// DecodeMetadata restores metadata from its tagged envelope
func DecodeMetadata(b []byte) (Metadata, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var env metadataEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("failed to decode metadata envelope: %w", err)
	}
	return decodeKind(env.Kind, env.Data)
}

func decodeKind(kind MetadataKind, data json.RawMessage) (Metadata, error) {
	var (
		m   Metadata
		err error
	)
	switch kind {
	case MetadataKindTip:
		var v TipMetadata
		err = unmarshalData(data, &v)
		m = v
	case MetadataKindGift:
		var v GiftMetadata
		err = unmarshalData(data, &v)
		m = v
	case MetadataKindUnlock:
		var v UnlockMetadata
		err = unmarshalData(data, &v)
		m = v
	case MetadataKindMessage:
		var v MessageMetadata
		err = unmarshalData(data, &v)
		m = v
	case MetadataKindPayout:
		var v PayoutMetadata
		err = unmarshalData(data, &v)
		m = v
	case MetadataKindReferral:
		var v ReferralMetadata
		err = unmarshalData(data, &v)
		m = v
	case MetadataKindFreeAccess:
		var v FreeAccessMetadata
		err = unmarshalData(data, &v)
		m = v
	case MetadataKindHold:
		var v HoldMetadata
		err = unmarshalData(data, &v)
		m = v
	case MetadataKindReversal:
		var v ReversalMetadata
		err = unmarshalData(data, &v)
		m = v
	case MetadataKindAdjustment:
		var v AdjustmentMetadata
		err = unmarshalData(data, &v)
		m = v
	default:
		return RawMetadata{RawKind: kind, Data: data}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s metadata: %w", kind, err)
	}
	return m, nil
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// MetadataKindFor is the payload kind a client-supplied metadata object is
// decoded as for the given entry type.
func MetadataKindFor(t EntryType) MetadataKind {
	switch t {
	case EntryTypeTip, EntryTypeStreamTip:
		return MetadataKindTip
	case EntryTypeGift:
		return MetadataKindGift
	case EntryTypePPVUnlock:
		return MetadataKindUnlock
	case EntryTypeMessage:
		return MetadataKindMessage
	case EntryTypeCreatorPayout:
		return MetadataKindPayout
	case EntryTypeReferralBonus:
		return MetadataKindReferral
	case EntryTypeFreeAccess:
		return MetadataKindFreeAccess
	case EntryTypeSystemAdjustment:
		return MetadataKindAdjustment
	}
	return MetadataKind(t)
}

// DecodeMetadataFor decodes an untagged client payload as the kind matching the entry type
func DecodeMetadataFor(t EntryType, data json.RawMessage) (Metadata, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	return decodeKind(MetadataKindFor(t), data)
}

// MetadataMatches reports whether m may be attached to an entry of type t
func MetadataMatches(t EntryType, m Metadata) bool {
	if m == nil {
		return true
	}
	if _, ok := m.(RawMetadata); ok {
		return true
	}
	return m.Kind() == MetadataKindFor(t)
}

// StreamOf returns the stream a tip or gift was sent in, if any
func StreamOf(m Metadata) *uuid.UUID {
	switch v := m.(type) {
	case TipMetadata:
		return v.StreamID
	case GiftMetadata:
		return v.StreamID
	}
	return nil
}
