package omnik

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

const (
	messageStart                  = 0x68
	messageEnd                    = 0x16
	messageSendSep                = 0x40
	messageRecvSep                = 0x41
	messageFiller                 = 0xFF
	messageTypeInformationRequest = 0x30
	messageTypeInformationReply   = 0xB0
	messageTypeErrorString        = 0xB1
	messageTypeString             = 0xF0

	// The length byte does not count: length, separator, message type,
	// the serial number (twice) and the checksum.
	messageHeaderSize = 3 + 2*4 + 1
)

var errEndOfStream = errors.New("end of message stream")

type message struct {
	Type    byte
	Serial  uint32
	Payload []byte
}

// CreateInformationRequest builds the frame the logger answers with an
// information reply.
func CreateInformationRequest(serialNumber uint32) []byte {
	return packMessage(messageTypeInformationRequest, serialNumber, []byte{0x01, 0x00})
}

func packMessage(messageType byte, serialNumber uint32, payload []byte) []byte {
	buf := make([]byte, 0, len(payload)+messageHeaderSize+2)
	buf = append(buf, messageStart, byte(len(payload)), messageSendSep, messageType)
	buf = binary.LittleEndian.AppendUint32(buf, serialNumber)
	buf = binary.LittleEndian.AppendUint32(buf, serialNumber)
	buf = append(buf, payload...)
	// start byte is not part of the checksum
	buf = append(buf, checksum(buf[1:]), messageEnd)
	return buf
}

func checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// unpackMessage validates a frame from the length byte up to and including
// the checksum.
func unpackMessage(frame []byte) (*message, error) {
	if len(frame) < messageHeaderSize {
		return nil, invalidPacket("frame too short (%d bytes)", len(frame))
	}
	crc := frame[len(frame)-1]
	body := frame[:len(frame)-1]
	if sum := checksum(body); sum != crc {
		return nil, invalidPacket("checksum mismatch (calculated %d got %d)", sum, crc)
	}
	if body[1] != messageRecvSep {
		return nil, invalidPacket("invalid receiver separator")
	}
	serial0 := binary.LittleEndian.Uint32(body[3:7])
	serial1 := binary.LittleEndian.Uint32(body[7:11])
	if serial0 != serial1 {
		return nil, invalidPacket("serial number mismatch in reply %d != %d", serial0, serial1)
	}
	return &message{
		Type:    body[2],
		Serial:  serial0,
		Payload: body[11:],
	}, nil
}

func readMessage(r *bufio.Reader) (*message, error) {
	start, err := r.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errEndOfStream
		}
		return nil, err
	}
	if start == messageFiller {
		return nil, errEndOfStream
	}
	if start != messageStart {
		return nil, invalidPacket("invalid start byte %02x", start)
	}

	length, err := r.ReadByte()
	if err != nil {
		return nil, frameErr(err)
	}
	frame := make([]byte, int(length)+messageHeaderSize)
	frame[0] = length
	if _, err := io.ReadFull(r, frame[1:]); err != nil {
		return nil, frameErr(err)
	}

	end, err := r.ReadByte()
	if err != nil {
		return nil, frameErr(err)
	}
	if end != messageEnd {
		return nil, invalidPacket("invalid end byte %02x", end)
	}
	return unpackMessage(frame)
}

// parseMessages returns the payload of the information reply.
func parseMessages(serialNumber uint32, r *bufio.Reader, logger *zap.Logger) ([]byte, error) {
	var info []byte
	for {
		msg, err := readMessage(r)
		if errors.Is(err, errEndOfStream) {
			break
		}
		if err != nil {
			return nil, err
		}
		logger.Debug("tcp message", zap.String("type", fmt.Sprintf("%02x", msg.Type)), zap.Int("length", len(msg.Payload)))

		if msg.Serial != serialNumber {
			logger.Debug("replied serial number differs from request", zap.Uint32("reply", msg.Serial), zap.Uint32("request", serialNumber))
		}

		switch msg.Type {
		case messageTypeInformationReply:
			if info != nil {
				logger.Warn("inverter sent multiple information replies")
			}
			info = msg.Payload
		case messageTypeString:
			logger.Warn("inverter sent text message", zap.ByteString("message", msg.Payload))
		case messageTypeErrorString:
			logger.Warn("inverter sent error message", zap.ByteString("message", msg.Payload))
		default:
			return nil, invalidPacket("unknown message type %02x", msg.Type)
		}

		if info != nil && r.Buffered() == 0 {
			break
		}
	}

	if info == nil {
		return nil, invalidPacket("none of the messages contained an information reply")
	}
	return info, nil
}

func (c *Client) tcpRequest(ctx context.Context) ([]byte, error) {
	defer RecordTimer("TCPRequest", c.instrument)()

	conn, err := c.dialer.DialContext(ctx, "tcp", c.tcpAddress())
	if err != nil {
		return nil, connectionErr(err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// unblock pending reads and writes on cancellation
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.Write(CreateInformationRequest(c.cfg.SerialNumber)); err != nil {
		return nil, tcpErr(ctx, err)
	}

	payload, err := parseMessages(c.cfg.SerialNumber, bufio.NewReaderSize(conn, 1024), c.logger)
	if err != nil {
		return nil, tcpErr(ctx, err)
	}
	return payload, nil
}

func tcpErr(ctx context.Context, err error) error {
	var perr *ParseError
	if errors.As(err, &perr) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w: %v", ErrConnection, ctxErr, err)
	}
	return connectionErr(err)
}

func frameErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return invalidPacket("truncated frame")
	}
	return err
}

func invalidPacket(format string, args ...any) error {
	return &ParseError{Source: SourceTCP, Err: fmt.Errorf(format, args...)}
}
