package omnik

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSerial uint32 = 1608449224

// replyFrame builds a frame the way the logger sends it back.
func replyFrame(messageType byte, serialNumber uint32, payload []byte) []byte {
	frame := packMessage(messageType, serialNumber, payload)
	frame[2] = messageRecvSep
	frame[len(frame)-2] = checksum(frame[1 : len(frame)-2])
	return frame
}

func TestCreateInformationRequest(t *testing.T) {
	assert := assert.New(t)

	req := CreateInformationRequest(testSerial)
	assert.Len(req, 16)
	assert.Equal(byte(messageStart), req[0])
	assert.Equal(byte(2), req[1])
	assert.Equal(byte(messageSendSep), req[2])
	assert.Equal(byte(messageTypeInformationRequest), req[3])
	assert.Equal(testSerial, binary.LittleEndian.Uint32(req[4:8]))
	assert.Equal(testSerial, binary.LittleEndian.Uint32(req[8:12]))
	assert.Equal([]byte{0x01, 0x00}, req[12:14])
	assert.Equal(checksum(req[1:14]), req[14])
	assert.Equal(byte(messageEnd), req[15])
}

func TestReadMessage(t *testing.T) {
	payload := []byte("hello")
	r := bufio.NewReader(bytes.NewReader(replyFrame(messageTypeString, testSerial, payload)))

	msg, err := readMessage(r)
	require.NoError(t, err)
	assert.Equal(t, byte(messageTypeString), msg.Type)
	assert.Equal(t, testSerial, msg.Serial)
	assert.Equal(t, payload, msg.Payload)

	_, err = readMessage(r)
	assert.ErrorIs(t, err, errEndOfStream)
}

func TestReadMessageCorrupt(t *testing.T) {
	valid := replyFrame(messageTypeString, testSerial, []byte("hello"))

	badChecksum := bytes.Clone(valid)
	badChecksum[len(badChecksum)-2]++

	badSeparator := packMessage(messageTypeString, testSerial, []byte("hello"))

	badSerial := bytes.Clone(valid)
	badSerial[8]++
	badSerial[len(badSerial)-2]++

	badEnd := bytes.Clone(valid)
	badEnd[len(badEnd)-1] = 0x00

	tests := []struct {
		name  string
		frame []byte
	}{
		{"checksum", badChecksum},
		{"separator", badSeparator},
		{"serial mismatch", badSerial},
		{"end byte", badEnd},
		{"start byte", append([]byte{0x10}, valid[1:]...)},
		{"truncated", valid[:10]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readMessage(bufio.NewReader(bytes.NewReader(tt.frame)))
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestParseMessages(t *testing.T) {
	info := encodeInformationReply(t, sampleInformationReply())

	var stream []byte
	stream = append(stream, replyFrame(messageTypeString, testSerial, []byte("NO INVERTER DATA"))...)
	stream = append(stream, replyFrame(messageTypeInformationReply, testSerial, info)...)
	stream = append(stream, messageFiller, messageFiller)

	payload, err := parseMessages(testSerial, bufio.NewReader(bytes.NewReader(stream)), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, info, payload)
}

func TestParseMessagesWithoutInformationReply(t *testing.T) {
	stream := replyFrame(messageTypeErrorString, testSerial, []byte("ERROR"))

	_, err := parseMessages(testSerial, bufio.NewReader(bytes.NewReader(stream)), zap.NewNop())
	assert.ErrorIs(t, err, ErrParse)
}

func TestParseMessagesUnknownType(t *testing.T) {
	stream := replyFrame(0x42, testSerial, []byte{0x00})

	_, err := parseMessages(testSerial, bufio.NewReader(bytes.NewReader(stream)), zap.NewNop())
	assert.ErrorIs(t, err, ErrParse)
}
