package someip

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageLength(t *testing.T) {
	m := NewMessage(MessageId{ServiceId: 0x1234, MethodId: 0x5678},
		RequestId{ClientId: 0x9ABC, SessionId: 0xDEF0},
		1, MessageTypeRequest, EOk, []byte{1, 2, 3, 4, 5})

	assert.EqualValues(t, 13, m.Length()) // 8 + 5
}

func TestMessageIdIsSD(t *testing.T) {
	assert.True(t, MessageId{ServiceId: SDServiceId, MethodId: SDMethodId}.IsSD())
	assert.False(t, MessageId{ServiceId: 0x1234, MethodId: SDMethodId}.IsSD())
}

func TestMessageTypeIsTP(t *testing.T) {
	tests := []struct {
		mt   MessageType
		isTP bool
	}{
		{MessageTypeRequest, false},
		{MessageTypeTPRequest, true},
		{MessageTypeNotification, false},
		{MessageTypeTPNotification, true},
		{MessageTypeResponse, false},
		{MessageTypeTPResponse, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.isTP, tt.mt.IsTP(), tt.mt.String())
	}
}

func TestMessageTypeIsValid(t *testing.T) {
	assert.True(t, MessageTypeRequest.IsValid())
	assert.True(t, MessageTypeTPError.IsValid())
	assert.False(t, MessageType(0x99).IsValid())
}

func TestReturnCodeIsValid(t *testing.T) {
	assert.True(t, EOk.IsValid())
	assert.True(t, EWrongMessageType.IsValid())
	assert.True(t, ReturnCode(0x30).IsValid()) // E2E reserved range
	assert.False(t, ReturnCode(0x0B).IsValid())
	assert.False(t, ReturnCode(0xFF).IsValid())
}

func TestReturnCodeFor(t *testing.T) {
	assert.Equal(t, EMalformedMessage, ReturnCodeFor(KindMalformedMessage))
	assert.Equal(t, ETimeout, ReturnCodeFor(KindTimeout))
	assert.Equal(t, ENotOk, ReturnCodeFor(KindInvalidSegment))
}

func TestErrorIs(t *testing.T) {
	err := NewError(KindTimeout, nil)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrMalformedMessage)
}
