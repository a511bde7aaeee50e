package channel

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Feed frame parsing errors.
var (
	ErrInvalidCBOR     = errors.New("invalid CBOR data")
	ErrMissingTenant   = errors.New("missing tenant in frame")
	ErrMissingRoomType = errors.New("missing room type in frame")
	ErrInvalidDate     = errors.New("invalid date in frame")
	ErrUnknownKind     = errors.New("unknown frame kind")
	ErrNegativeValue   = errors.New("frame value must not be negative")
)

// Frame kinds sent by the channel manager.
const (
	KindAvailability = "availability"
	KindRate         = "rate"
)

// FeedFrame represents one CBOR-encoded update from the channel-manager
// feed. Seq is the feed's monotonic cursor; Date is a YYYY-MM-DD
// calendar day. Available applies to availability frames, Rate (minor
// units) to rate frames.
type FeedFrame struct {
	Seq      int64  `cbor:"seq"`
	Kind     string `cbor:"kind"`
	TenantID string `cbor:"tenant_id"`
	RoomType string `cbor:"room_type"`
	Date     string `cbor:"date"`

	Available int64 `cbor:"available,omitempty"`
	Rate      int64 `cbor:"rate,omitempty"`
}

// Update is a validated feed frame ready to apply to the store.
type Update struct {
	Seq      int64
	Kind     string
	TenantID string
	RoomType string
	Date     time.Time

	Available int64
	Rate      int64
}

// DecodeFrame decodes a CBOR-encoded feed frame.
func DecodeFrame(data []byte) (*FeedFrame, error) {
	if len(data) == 0 {
		return nil, ErrInvalidCBOR
	}

	var frame FeedFrame
	dec := cbor.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCBOR, err)
	}

	return &frame, nil
}

// MapFrame validates a decoded frame and maps it to an Update.
func MapFrame(frame *FeedFrame) (*Update, error) {
	if frame.TenantID == "" {
		return nil, ErrMissingTenant
	}
	if frame.RoomType == "" {
		return nil, ErrMissingRoomType
	}

	date, err := time.Parse("2006-01-02", frame.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, frame.Date)
	}

	switch frame.Kind {
	case KindAvailability:
		if frame.Available < 0 {
			return nil, ErrNegativeValue
		}
	case KindRate:
		if frame.Rate <= 0 {
			return nil, ErrNegativeValue
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, frame.Kind)
	}

	return &Update{
		Seq:       frame.Seq,
		Kind:      frame.Kind,
		TenantID:  frame.TenantID,
		RoomType:  frame.RoomType,
		Date:      date,
		Available: frame.Available,
		Rate:      frame.Rate,
	}, nil
}

// EncodeFrame encodes a feed frame as CBOR, for tests and fixtures.
func EncodeFrame(frame *FeedFrame) ([]byte, error) {
	return cbor.Marshal(frame)
}
